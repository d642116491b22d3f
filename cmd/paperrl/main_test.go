package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boristopalov/paperrl/pkg/dataset"
	"github.com/m-mizutani/gt"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	return cmd.ExecuteContext(context.Background())
}

func TestConvertAndRegister(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "val.csv")
	jsonlPath := filepath.Join(dir, "out", "env.jsonl")
	registry := filepath.Join(dir, "registry")

	gt.NoError(t, os.WriteFile(csvPath, []byte("question,answer\n\"Classify paper X. A. cs.AI B. cs.CL\",A\nClassify paper Y,B\n"), 0o644))

	gt.NoError(t, execute(t, "convert-csv", "--csv", csvPath, "--out", jsonlPath))
	examples, err := dataset.LoadJSONL(jsonlPath)
	gt.NoError(t, err)
	gt.A(t, examples).Length(2)
	gt.Equal(t, examples[0].Instruction, dataset.DefaultInstruction)
	gt.Equal(t, examples[1].Output, "B")

	gt.NoError(t, execute(t, "to-parquet", "--in", jsonlPath, "--registry", registry, "--name", "env", "--splits", "train,test"))
	splits, err := dataset.NewRegistry(registry).Splits("env")
	gt.NoError(t, err)
	gt.Equal(t, splits, []string{"test", "train"})

	loaded, err := loadExamples(filepath.Join(registry, "env", "test.parquet"))
	gt.NoError(t, err)
	gt.Equal(t, loaded, examples)
}

func TestRolloutCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"logprobs": null,
				"message": {"role": "assistant", "content": "The paper is about parsing. ANSWER: a", "refusal": null}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "env.jsonl")
	gt.NoError(t, dataset.SaveJSONL(dataPath, []dataset.Example{
		{Input: "Classify paper X", Output: "A"},
		{Input: "Classify paper Y", Output: "A"},
	}))

	trajPath := filepath.Join(dir, "out", "trajectories.jsonl")
	statsPath := filepath.Join(dir, "out", "stats.csv")
	cfgPath := filepath.Join(dir, "rollout.yaml")
	cfg := fmt.Sprintf(`name: cli
dataset_path: %s
episodes: 6
workers: 2
seed: 7
agent:
  provider: openai
  model: gpt-4o-mini
  base_url: %s
  api_key: sk-test
output:
  trajectories_path: %s
  stats_path: %s
`, dataPath, srv.URL+"/v1/", trajPath, statsPath)
	gt.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	gt.NoError(t, execute(t, "rollout", "--config", cfgPath))

	f, err := os.Open(trajPath)
	gt.NoError(t, err)
	defer f.Close()
	lines := 0
	for sc := bufio.NewScanner(f); sc.Scan(); {
		lines++
	}
	gt.Equal(t, lines, 6)

	stats, err := os.ReadFile(statsPath)
	gt.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(stats)), "\n")
	gt.A(t, rows).Length(2)
	gt.True(t, strings.Contains(rows[1], ",cli,6,0,6,1.0000,1.0000,"))
}

func TestRolloutUnknownProvider(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "rollout.yaml")
	gt.NoError(t, os.WriteFile(cfgPath, []byte("agent:\n  provider: nope\n"), 0o644))
	gt.Error(t, execute(t, "rollout", "--config", cfgPath))
}
