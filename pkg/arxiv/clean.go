package arxiv

import (
	"regexp"
	"strings"
)

var (
	blankLinesRe = regexp.MustCompile(`\n\s*\n`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	latexCmdRe   = regexp.MustCompile(`\\[a-zA-Z]+\{.*?\}`)
)

// CleanText collapses whitespace runs to single spaces and drops inline LaTeX
// commands with a braced argument, such as \emph{...}.
func CleanText(text string) string {
	text = latexCmdRe.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// truncateAbstract shortens abstract so that title, authors and abstract fit
// in maxWords, keeping 50 words of headroom for the prompt template.
func truncateAbstract(title, authors, abstract string, maxWords int) string {
	titleWords := len(strings.Fields(title))
	authorWords := len(strings.Fields(authors))
	abstractWords := strings.Fields(abstract)
	if titleWords+authorWords+len(abstractWords) <= maxWords {
		return abstract
	}

	keep := maxWords - titleWords - authorWords - 50
	keep = max(keep, 0)
	keep = min(keep, len(abstractWords))
	return strings.Join(abstractWords[:keep], " ") + "..."
}
