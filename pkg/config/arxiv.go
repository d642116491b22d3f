package config

import (
	"github.com/m-mizutani/goerr/v2"
)

// DefaultPromptTemplate is used when an arXiv config lists no templates.
const DefaultPromptTemplate = "Based on the title '{title}', authors '{authors}', and abstract '{summary}', please determine the scientific category of this paper.\n\n{options}"

// ArxivConfig describes one arXiv preprocessing run. The loader accepts the
// JSON form as well, since YAML is a superset of it.
type ArxivConfig struct {
	InputFilepath         string            `yaml:"input_filepath"`
	PretrainFilepath      string            `yaml:"pretrain_filepath"`
	GenerateFullSFT       bool              `yaml:"generate_full_sft_dataset"`
	SFTFullFilepath       string            `yaml:"sft_full_filepath"`
	SFTTrainFilepath      string            `yaml:"sft_train_filepath"`
	SFTValidationFilepath string            `yaml:"sft_validation_filepath"`
	ProcessingPercentage  float64           `yaml:"processing_percentage"`
	MaxWords              int               `yaml:"max_words"`
	ValSplitRatio         float64           `yaml:"val_split_ratio"`
	CategoryToLetter      map[string]string `yaml:"category_to_letter"`
	PromptOptions         string            `yaml:"prompt_options"`
	PromptTemplates       []string          `yaml:"prompt_templates"`
	Instruction           string            `yaml:"instruction"`
}

func DefaultArxivConfig() *ArxivConfig {
	return &ArxivConfig{
		ProcessingPercentage: 1.0,
		MaxWords:             2048,
		ValSplitRatio:        0.02,
	}
}

func LoadArxivConfig(path string) (*ArxivConfig, error) {
	cfg := DefaultArxivConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}
	if len(cfg.PromptTemplates) == 0 {
		cfg.PromptTemplates = []string{DefaultPromptTemplate}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ArxivConfig) Validate() error {
	if c.InputFilepath == "" {
		return goerr.New("input_filepath is required")
	}
	if c.PretrainFilepath == "" {
		return goerr.New("pretrain_filepath is required")
	}
	if len(c.CategoryToLetter) == 0 {
		return goerr.New("category_to_letter is required")
	}
	if c.ProcessingPercentage <= 0 || c.ProcessingPercentage > 1 {
		return goerr.New("processing_percentage must be in (0, 1]", goerr.V("value", c.ProcessingPercentage))
	}
	if c.MaxWords < 1 {
		return goerr.New("max_words must be positive", goerr.V("value", c.MaxWords))
	}
	if c.GenerateFullSFT {
		if c.SFTFullFilepath == "" {
			return goerr.New("sft_full_filepath is required when generate_full_sft_dataset is set")
		}
		return nil
	}
	if c.SFTTrainFilepath == "" || c.SFTValidationFilepath == "" {
		return goerr.New("sft_train_filepath and sft_validation_filepath are required")
	}
	if c.ValSplitRatio < 0 || c.ValSplitRatio > 1 {
		return goerr.New("val_split_ratio must be in [0, 1]", goerr.V("value", c.ValSplitRatio))
	}
	return nil
}
