package arxiv_test

import (
	"bufio"
	"context"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/boristopalov/paperrl/pkg/arxiv"
	"github.com/boristopalov/paperrl/pkg/config"
	"github.com/boristopalov/paperrl/pkg/dataset"
	"github.com/m-mizutani/gt"
)

func TestCleanText(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: "  hello\n\n\n  world  ", want: "hello world"},
		{in: "a\tb\nc", want: "a b c"},
		{in: `We \emph{propose} a model`, want: "We a model"},
		{in: "", want: ""},
	}
	for _, tc := range testCases {
		gt.Equal(t, arxiv.CleanText(tc.in), tc.want)
	}
}

func TestPaperPretrainText(t *testing.T) {
	p := arxiv.Paper{
		ID:         "0704.0001",
		Title:      "A  Title",
		Submitter:  "Ann",
		Authors:    "Ann, Bob",
		Categories: "cs.AI cs.LG",
		Abstract:   "Line one.\n Line two.",
		Versions:   []arxiv.Version{{Version: "v1", Created: "Mon"}, {Version: "v2", Created: "Tue"}},
	}
	text := p.PretrainText()
	gt.True(t, strings.HasPrefix(text, `This is a paper with ID 0704.0001, titled "A Title", submitted by Ann.`))
	gt.True(t, strings.Contains(text, "published in not published in any journal."))
	gt.True(t, strings.Contains(text, "The latest version is v2, created on Tue."))
	gt.True(t, strings.Contains(text, "The DOI is No DOI information available."))
	gt.True(t, strings.HasSuffix(text, "Abstract: Line one. Line two."))
	gt.Equal(t, p.PrimaryCategory(), "cs.AI")
}

func writeSnapshot(t *testing.T, path string, lines []string) {
	t.Helper()
	gt.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func paperLine(t *testing.T, p arxiv.Paper) string {
	t.Helper()
	raw, err := json.Marshal(p)
	gt.NoError(t, err)
	return string(raw)
}

func countRecords(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	gt.NoError(t, err)
	defer f.Close()
	n := 0
	s := bufio.NewScanner(f)
	for s.Scan() {
		n++
	}
	return n
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "arxiv.jsonl")

	lines := []string{
		paperLine(t, arxiv.Paper{ID: "1", Title: "Agents", Abstract: "About agents.", Authors: "A", Categories: "cs.AI"}),
		paperLine(t, arxiv.Paper{ID: "1b", Title: "Agents", Abstract: "About  agents.", Authors: "A", Categories: "cs.AI"}),
		paperLine(t, arxiv.Paper{ID: "2", Title: "Parsing", Abstract: "About parsing.", Authors: "B", Categories: "cs.CL cs.AI"}),
		paperLine(t, arxiv.Paper{ID: "3", Title: "Physics", Abstract: "Not selected.", Authors: "C", Categories: "hep-th"}),
		paperLine(t, arxiv.Paper{ID: "4", Title: "", Abstract: "No title."}),
		`{"id": broken`,
		paperLine(t, arxiv.Paper{ID: "5", Title: "Long", Abstract: strings.Repeat("word ", 200), Authors: "D", Categories: "cs.CL"}),
	}
	writeSnapshot(t, input, lines)

	base := config.ArxivConfig{
		InputFilepath:         input,
		PretrainFilepath:      filepath.Join(dir, "out", "pretrain.jsonl"),
		SFTTrainFilepath:      filepath.Join(dir, "out", "train.jsonl"),
		SFTValidationFilepath: filepath.Join(dir, "out", "val.jsonl"),
		SFTFullFilepath:       filepath.Join(dir, "out", "full.jsonl"),
		ProcessingPercentage:  1.0,
		MaxWords:              80,
		ValSplitRatio:         0.5,
		CategoryToLetter:      map[string]string{"cs.AI": "A", "cs.CL": "B"},
		PromptOptions:         "A. cs.AI\nB. cs.CL",
		PromptTemplates:       []string{"T1 {title} | {authors} | {summary}\n{options}"},
	}
	ctx := logging.With(context.Background(), logging.TestLogger())

	t.Run("train and validation split", func(t *testing.T) {
		cfg := base
		stats, err := arxiv.Process(ctx, &cfg, rand.New(rand.NewPCG(1, 1)))
		gt.NoError(t, err)
		gt.Equal(t, stats.TotalLines, len(lines))
		gt.Equal(t, stats.MalformedLines, 1)
		gt.Equal(t, stats.UniquePapers, 4)
		gt.Equal(t, stats.SFTEntries, 4)
		gt.Equal(t, stats.ValidationRecords, 2)
		gt.Equal(t, stats.TrainRecords, 2)
		gt.Equal(t, countRecords(t, cfg.PretrainFilepath), 4)

		train, err := dataset.LoadJSONL(cfg.SFTTrainFilepath)
		gt.NoError(t, err)
		val, err := dataset.LoadJSONL(cfg.SFTValidationFilepath)
		gt.NoError(t, err)
		for _, ex := range append(train, val...) {
			gt.True(t, strings.HasPrefix(ex.Input, "T1 "))
			gt.True(t, strings.HasSuffix(ex.Input, "A. cs.AI\nB. cs.CL"))
			gt.True(t, ex.Output == "A" || ex.Output == "B")
			gt.Equal(t, ex.Instruction, dataset.DefaultInstruction)
			if strings.HasPrefix(ex.Input, "T1 Long") {
				gt.True(t, strings.Contains(ex.Input, "..."))
				gt.True(t, len(strings.Fields(ex.Input)) < 80)
			}
		}
	})

	t.Run("full dataset", func(t *testing.T) {
		cfg := base
		cfg.GenerateFullSFT = true
		stats, err := arxiv.Process(ctx, &cfg, rand.New(rand.NewPCG(2, 2)))
		gt.NoError(t, err)
		gt.Equal(t, stats.FullRecords, 4)
		gt.Equal(t, countRecords(t, cfg.SFTFullFilepath), 4)
	})

	t.Run("percentage limits lines", func(t *testing.T) {
		cfg := base
		cfg.ProcessingPercentage = 0.3
		stats, err := arxiv.Process(ctx, &cfg, rand.New(rand.NewPCG(3, 3)))
		gt.NoError(t, err)
		gt.Equal(t, stats.ProcessedLines, 2)
		gt.Equal(t, stats.UniquePapers, 1)
	})

	t.Run("missing input", func(t *testing.T) {
		cfg := base
		cfg.InputFilepath = filepath.Join(dir, "missing.jsonl")
		_, err := arxiv.Process(ctx, &cfg, rand.New(rand.NewPCG(4, 4)))
		gt.Error(t, err)
	})
}
