package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultInstruction is the system instruction attached to every converted
// example ("you are an excellent paper classifier").
const DefaultInstruction = "你是个优秀的论文分类师"

const (
	csvQuestionColumn = "question"
	csvAnswerColumn   = "answer"
)

// ReadCSV parses a validation sheet whose header carries at least "question"
// (the full prompt, options included) and "answer" (the correct letter).
// Every other column is ignored.
func ReadCSV(r io.Reader, instruction string) ([]Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read CSV header")
	}

	qIdx, aIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case csvQuestionColumn:
			qIdx = i
		case csvAnswerColumn:
			aIdx = i
		}
	}
	if qIdx < 0 || aIdx < 0 {
		return nil, goerr.Wrap(ErrMalformedExample, "CSV header must contain question and answer",
			goerr.V("header", header))
	}

	var examples []Example
	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read CSV row", goerr.V("row", row))
		}
		if qIdx >= len(record) || aIdx >= len(record) {
			return nil, goerr.Wrap(ErrMalformedExample, "CSV row is too short",
				goerr.V("row", row),
				goerr.V("fields", len(record)),
			)
		}
		examples = append(examples, Example{
			Instruction: instruction,
			Input:       record[qIdx],
			Output:      record[aIdx],
		})
	}

	if len(examples) == 0 {
		return nil, ErrNoData
	}
	return examples, nil
}

// ConvertCSV converts the CSV at csvPath into JSONL at jsonlPath and returns
// the number of records written.
func ConvertCSV(csvPath, jsonlPath, instruction string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open CSV", goerr.V("path", csvPath))
	}
	defer f.Close()

	examples, err := ReadCSV(f, instruction)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to convert CSV", goerr.V("path", csvPath))
	}
	if err := SaveJSONL(jsonlPath, examples); err != nil {
		return 0, err
	}
	return len(examples), nil
}
