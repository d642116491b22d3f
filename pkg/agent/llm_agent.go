package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/boristopalov/paperrl/pkg/core"
	"github.com/boristopalov/paperrl/pkg/dataset"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const (
	ANSWER_PROMPT_TEMPLATE = `%s

Very briefly think about which category fits the paper best, then give the letter of your choice after the string "ANSWER" like so: ANSWER: A`
)

type ModelInfo struct {
	Id     string         // e.g. "gpt-4o-mini"
	Config map[string]any // model-specific configuration
}

// LLMClient is the completion backend of a Classifier.
type LLMClient interface {
	Complete(ctx context.Context, model string, system string, prompt string) (string, error)
}

var _ core.Agent = (*Classifier)(nil)

// Classifier asks a language model for the label of the paper in each
// observation.
type Classifier struct {
	id           string
	model        ModelInfo
	client       LLMClient
	systemPrompt string
}

type AgentParams struct {
	AgentID      string
	Model        ModelInfo
	Client       LLMClient
	SystemPrompt string
}

type AgentOption func(*AgentParams)

func WithModel(model ModelInfo) AgentOption {
	return func(p *AgentParams) {
		p.Model = model
	}
}

func WithAgentId(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithClient(c LLMClient) AgentOption {
	return func(p *AgentParams) {
		p.Client = c
	}
}

func WithSystemPrompt(s string) AgentOption {
	return func(p *AgentParams) {
		p.SystemPrompt = s
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		Model: ModelInfo{
			Id:     "gpt-4o-mini",
			Config: make(map[string]any),
		},
		AgentID:      "agent-" + uuid.New().String(),
		SystemPrompt: dataset.DefaultInstruction,
	}
}

// NewClassifier creates a classifier agent. A client is required.
func NewClassifier(opts ...AgentOption) (*Classifier, error) {
	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Client == nil {
		return nil, goerr.New("LLM client is not set", goerr.V("agent_id", params.AgentID))
	}

	return &Classifier{
		id:           params.AgentID,
		model:        params.Model,
		client:       params.Client,
		systemPrompt: params.SystemPrompt,
	}, nil
}

func (a *Classifier) GetID() string {
	return a.id
}

func (a *Classifier) GetModel() ModelInfo {
	return a.model
}

// Act returns the predicted label for the paper in obs.
func (a *Classifier) Act(ctx context.Context, obs core.Observation) (core.Action, error) {
	prompt := fmt.Sprintf(ANSWER_PROMPT_TEMPLATE, obs.Observation)

	response, err := a.client.Complete(ctx, a.model.Id, a.systemPrompt, prompt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate response", goerr.V("agent_id", a.id))
	}

	label := ParseLabel(response)
	logging.From(ctx).Debug("classifier response",
		slog.String("agent_id", a.id),
		slog.String("label", label),
		slog.String("response", response),
	)
	return core.NewAction(label), nil
}

var (
	answerRe       = regexp.MustCompile(`(?i)ANSWER\s*[:：]\s*\(?([A-Za-z0-9][A-Za-z0-9.\-]*)`)
	singleLetterRe = regexp.MustCompile(`\b([A-Z])\b`)
)

// ParseLabel extracts the label from a model response. It prefers the token
// after "ANSWER:", then the first standalone capital letter, then the whole
// trimmed response.
func ParseLabel(response string) string {
	if m := answerRe.FindStringSubmatch(response); len(m) == 2 {
		return strings.TrimRight(m[1], ".-")
	}
	if m := singleLetterRe.FindStringSubmatch(response); len(m) == 2 {
		return m[1]
	}
	return strings.TrimSpace(response)
}
