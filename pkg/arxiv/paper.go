package arxiv

import (
	"fmt"
	"strings"
)

// Paper is one record of the arXiv metadata snapshot.
type Paper struct {
	ID         string    `json:"id"`
	Submitter  string    `json:"submitter"`
	Authors    string    `json:"authors"`
	Title      string    `json:"title"`
	Abstract   string    `json:"abstract"`
	Categories string    `json:"categories"`
	JournalRef string    `json:"journal-ref"`
	DOI        string    `json:"doi"`
	License    string    `json:"license"`
	Versions   []Version `json:"versions"`
}

type Version struct {
	Version string `json:"version"`
	Created string `json:"created"`
}

// PrimaryCategory is the first entry of the space separated category list.
func (p *Paper) PrimaryCategory() string {
	fields := strings.Fields(p.Categories)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// PretrainText renders the paper as a single cleaned paragraph for
// continued pretraining.
func (p *Paper) PretrainText() string {
	var latest Version
	if len(p.Versions) > 0 {
		latest = p.Versions[len(p.Versions)-1]
	}

	text := fmt.Sprintf("This is a paper with ID %s, titled \"%s\", submitted by %s. The authors are %s.\n"+
		"The paper belongs to the %s category and is published in %s. "+
		"The latest version is %s, created on %s. "+
		"The DOI is %s. The license is %s.\n\nAbstract:\n%s",
		orDefault(p.ID, "N/A"),
		orDefault(p.Title, "N/A"),
		orDefault(p.Submitter, "N/A"),
		orDefault(p.Authors, "N/A"),
		orDefault(p.Categories, "N/A"),
		orDefault(p.JournalRef, "not published in any journal"),
		orDefault(latest.Version, "N/A"),
		orDefault(latest.Created, "N/A"),
		orDefault(p.DOI, "No DOI information available"),
		orDefault(p.License, "No license information available"),
		p.Abstract,
	)
	return CleanText(text)
}

// Entry is a paper selected for supervised fine-tuning.
type Entry struct {
	Title    string
	Authors  string
	Abstract string
	Category string
}

// Prompt fills a template's {title}, {authors}, {summary} and {options}
// placeholders.
func (e Entry) Prompt(template, options string) string {
	return strings.NewReplacer(
		"{title}", e.Title,
		"{authors}", e.Authors,
		"{summary}", e.Abstract,
		"{options}", options,
	).Replace(template)
}
