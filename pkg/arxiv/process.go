// Package arxiv turns the raw arXiv metadata snapshot into a continued
// pretraining corpus and prompt/label SFT datasets.
package arxiv

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/boristopalov/paperrl/pkg/config"
	"github.com/boristopalov/paperrl/pkg/dataset"
	"github.com/m-mizutani/goerr/v2"
)

const maxLineSize = 64 << 20

// Stats summarises one Process run.
type Stats struct {
	TotalLines        int
	ProcessedLines    int
	MalformedLines    int
	UniquePapers      int
	SFTEntries        int
	PretrainRecords   int
	FullRecords       int
	TrainRecords      int
	ValidationRecords int
}

type paperKey struct {
	title    string
	abstract string
}

// Process reads cfg.InputFilepath and writes the pretrain corpus plus either
// the full SFT dataset or a shuffled train/validation split. rng drives
// template choice and shuffling.
func Process(ctx context.Context, cfg *config.ArxivConfig, rng *rand.Rand) (*Stats, error) {
	logger := logging.From(ctx)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	templates := cfg.PromptTemplates
	if len(templates) == 0 {
		templates = []string{config.DefaultPromptTemplate}
	}
	instruction := cfg.Instruction
	if instruction == "" {
		instruction = dataset.DefaultInstruction
	}

	f, err := os.Open(cfg.InputFilepath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open arXiv input", goerr.V("path", cfg.InputFilepath))
	}
	defer f.Close()

	stats := &Stats{}
	stats.TotalLines, err = countLines(f)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, goerr.Wrap(err, "failed to rewind arXiv input")
	}
	limit := int(float64(stats.TotalLines) * cfg.ProcessingPercentage)
	logger.Info("processing arXiv snapshot",
		slog.Int("lines", limit),
		slog.Int("total_lines", stats.TotalLines),
		slog.Float64("percentage", cfg.ProcessingPercentage),
	)

	var (
		order   []paperKey
		papers  = make(map[paperKey]*Paper)
		entries []Entry
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for i := 0; i < limit && scanner.Scan(); i++ {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		stats.ProcessedLines++

		var paper Paper
		if err := json.Unmarshal(scanner.Bytes(), &paper); err != nil {
			stats.MalformedLines++
			logger.Warn("skip malformed arXiv line", slog.Int("line", i+1), slog.Any("error", err))
			continue
		}
		if paper.Title == "" || paper.Abstract == "" {
			continue
		}

		title, abstract := CleanText(paper.Title), CleanText(paper.Abstract)
		key := paperKey{title: title, abstract: abstract}
		if _, ok := papers[key]; !ok {
			p := paper
			papers[key] = &p
			order = append(order, key)
		}

		category := paper.PrimaryCategory()
		if _, ok := cfg.CategoryToLetter[category]; !ok {
			continue
		}
		entries = append(entries, Entry{
			Title:    title,
			Authors:  paper.Authors,
			Abstract: truncateAbstract(title, paper.Authors, abstract, cfg.MaxWords),
			Category: category,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to scan arXiv input", goerr.V("path", cfg.InputFilepath))
	}

	stats.UniquePapers = len(order)
	stats.SFTEntries = len(entries)
	logger.Info("collected arXiv papers",
		slog.Int("unique_papers", stats.UniquePapers),
		slog.Int("sft_entries", stats.SFTEntries),
	)

	pretrain := make([]*Paper, 0, len(order))
	for _, key := range order {
		pretrain = append(pretrain, papers[key])
	}
	if stats.PretrainRecords, err = writePretrain(cfg.PretrainFilepath, pretrain); err != nil {
		return nil, err
	}
	logger.Info("wrote pretrain corpus", slog.String("path", cfg.PretrainFilepath), slog.Int("records", stats.PretrainRecords))

	build := func(set []Entry) []dataset.Example {
		out := make([]dataset.Example, 0, len(set))
		for _, e := range set {
			template := templates[rng.IntN(len(templates))]
			out = append(out, dataset.Example{
				Instruction: instruction,
				Input:       e.Prompt(template, cfg.PromptOptions),
				Output:      cfg.CategoryToLetter[e.Category],
			})
		}
		return out
	}

	if cfg.GenerateFullSFT {
		full := build(entries)
		if err := dataset.SaveJSONL(cfg.SFTFullFilepath, full); err != nil {
			return nil, err
		}
		stats.FullRecords = len(full)
		logger.Info("wrote full SFT dataset", slog.String("path", cfg.SFTFullFilepath), slog.Int("records", stats.FullRecords))
		return stats, nil
	}

	rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	split := int(float64(len(entries)) * cfg.ValSplitRatio)
	val, train := build(entries[:split]), build(entries[split:])

	if err := dataset.SaveJSONL(cfg.SFTTrainFilepath, train); err != nil {
		return nil, err
	}
	if err := dataset.SaveJSONL(cfg.SFTValidationFilepath, val); err != nil {
		return nil, err
	}
	stats.TrainRecords, stats.ValidationRecords = len(train), len(val)
	logger.Info("wrote SFT split",
		slog.String("train_path", cfg.SFTTrainFilepath),
		slog.Int("train_records", stats.TrainRecords),
		slog.String("validation_path", cfg.SFTValidationFilepath),
		slog.Int("validation_records", stats.ValidationRecords),
	)
	return stats, nil
}

func countLines(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		n++
	}
	if err := scanner.Err(); err != nil {
		return 0, goerr.Wrap(err, "failed to count lines")
	}
	return n, nil
}

type pretrainRecord struct {
	Text string `json:"text"`
}

func writePretrain(path string, papers []*Paper) (int, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, goerr.Wrap(err, "failed to create directory", goerr.V("dir", dir))
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create pretrain file", goerr.V("path", path))
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, p := range papers {
		if err := enc.Encode(pretrainRecord{Text: p.PretrainText()}); err != nil {
			return 0, goerr.Wrap(err, "failed to encode pretrain record", goerr.V("id", p.ID))
		}
	}
	if err := w.Flush(); err != nil {
		return 0, goerr.Wrap(err, "failed to flush pretrain file", goerr.V("path", path))
	}
	return len(papers), nil
}
