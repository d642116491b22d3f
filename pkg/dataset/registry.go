package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const parquetExt = ".parquet"

// Registry stores named dataset splits as parquet files under Dir, laid out
// as <Dir>/<name>/<split>.parquet.
type Registry struct {
	Dir string
}

func NewRegistry(dir string) *Registry {
	return &Registry{Dir: dir}
}

func (r *Registry) path(name, split string) string {
	return filepath.Join(r.Dir, name, split+parquetExt)
}

// Register writes examples as the given split of dataset name, replacing any
// previous version, and returns the file path.
func (r *Registry) Register(name, split string, examples []Example) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if err := validateName(split); err != nil {
		return "", err
	}
	p := r.path(name, split)
	if err := WriteParquet(p, examples); err != nil {
		return "", goerr.Wrap(err, "failed to register dataset",
			goerr.V("name", name),
			goerr.V("split", split),
		)
	}
	return p, nil
}

// Load reads a registered split.
func (r *Registry) Load(name, split string) ([]Example, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateName(split); err != nil {
		return nil, err
	}
	return ReadParquet(r.path(name, split))
}

// Splits lists the registered splits of dataset name in lexical order.
func (r *Registry) Splits(name string) ([]string, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(r.Dir, name))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list dataset splits", goerr.V("name", name))
	}

	var splits []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), parquetExt) {
			continue
		}
		splits = append(splits, strings.TrimSuffix(e.Name(), parquetExt))
	}
	sort.Strings(splits)
	return splits, nil
}

func validateName(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return goerr.New("invalid dataset name", goerr.V("name", s))
	}
	return nil
}
