package rollout

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var statsHeader = []string{
	"Timestamp", "Name", "Episodes", "Failed", "Correct", "Accuracy", "MeanReward", "DurationSeconds",
}

// AppendStats appends s as one CSV row to path, writing the header first when
// the file is new.
func AppendStats(path string, s *Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create stats dir", goerr.V("path", path))
	}
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return goerr.Wrap(err, "failed to open stats file", goerr.V("path", path))
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(statsHeader); err != nil {
			return goerr.Wrap(err, "failed to write stats header", goerr.V("path", path))
		}
	}
	row := []string{
		time.Now().Format(time.RFC3339),
		s.Name,
		strconv.Itoa(s.Episodes),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Correct),
		strconv.FormatFloat(s.Accuracy, 'f', 4, 64),
		strconv.FormatFloat(s.MeanReward, 'f', 4, 64),
		strconv.FormatFloat(s.Duration.Seconds(), 'f', 3, 64),
	}
	if err := w.Write(row); err != nil {
		return goerr.Wrap(err, "failed to write stats row", goerr.V("path", path))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return goerr.Wrap(err, "failed to flush stats", goerr.V("path", path))
	}
	return nil
}
