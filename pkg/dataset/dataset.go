// Package dataset reads and writes the labelled prompt/label examples used for
// supervised fine-tuning and as the sampling pool of the RL environment.
//
// On disk an example is one JSON object per line:
//
//	{"instruction": "...", "input": "<prompt>", "output": "<label>"}
//
// Only input and output are required.
package dataset

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrNoData           = goerr.New("dataset contains no examples")
	ErrMalformedExample = goerr.New("malformed example")
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 64 << 20

type Example struct {
	Instruction string `json:"instruction,omitempty"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

type rawExample struct {
	Instruction string  `json:"instruction"`
	Input       *string `json:"input"`
	Output      *string `json:"output"`
}

// Read parses JSONL examples from r. Blank lines are ignored. Any other line
// that is not an object with string "input" and "output" fields fails the
// whole read with ErrMalformedExample.
func Read(r io.Reader) ([]Example, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var examples []Example
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw rawExample
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, goerr.Wrap(ErrMalformedExample, "invalid JSON",
				goerr.V("line", lineNo),
				goerr.V("cause", err.Error()),
			)
		}
		if raw.Input == nil {
			return nil, goerr.Wrap(ErrMalformedExample, "missing input field", goerr.V("line", lineNo))
		}
		if raw.Output == nil {
			return nil, goerr.Wrap(ErrMalformedExample, "missing output field", goerr.V("line", lineNo))
		}

		examples = append(examples, Example{
			Instruction: raw.Instruction,
			Input:       *raw.Input,
			Output:      *raw.Output,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to scan dataset", goerr.V("line", lineNo+1))
	}

	if len(examples) == 0 {
		return nil, ErrNoData
	}
	return examples, nil
}

// LoadJSONL reads every example in the file at path.
func LoadJSONL(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open dataset", goerr.V("path", path))
	}
	defer f.Close()

	examples, err := Read(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load dataset", goerr.V("path", path))
	}
	return examples, nil
}

// WriteJSONL writes one example per line. Non-ASCII text is written as is.
func WriteJSONL(w io.Writer, examples []Example) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return goerr.Wrap(err, "failed to encode example", goerr.V("index", i))
		}
	}
	if err := bw.Flush(); err != nil {
		return goerr.Wrap(err, "failed to flush examples")
	}
	return nil
}

// SaveJSONL writes examples to path, creating parent directories.
func SaveJSONL(path string, examples []Example) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	if err := WriteJSONL(f, examples); err != nil {
		f.Close()
		return goerr.Wrap(err, "failed to write dataset", goerr.V("path", path))
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "failed to close dataset", goerr.V("path", path))
	}
	return nil
}
