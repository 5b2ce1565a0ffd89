// Package config provides configuration loading for the conference concierge.
//
// Precedence (highest first): CONCIERGE_* environment variables, an optional
// YAML file, hardcoded defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CONCIERGE_"

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type LLMConfig struct {
	// Model drives intake, planning, execution and synthesis.
	Model string `koanf:"model"`
	// GuardrailModel classifies single messages; a lighter model is fine.
	GuardrailModel string `koanf:"guardrail_model"`
	// EmbeddingModel embeds schedule documents and queries.
	EmbeddingModel string `koanf:"embedding_model"`
}

type ExecutorConfig struct {
	// MaxTaskTurns bounds the tool-calling loop per task.
	MaxTaskTurns int `koanf:"max_task_turns"`
	// CallTimeout is the wall-clock bound on one decision or tool call.
	// Zero disables the bound.
	CallTimeout time.Duration `koanf:"call_timeout"`
}

type RAGConfig struct {
	// RetrieveK candidates are pulled from the vector store before rerank.
	RetrieveK int `koanf:"retrieve_k"`
	// TopK results survive the rerank.
	TopK int `koanf:"top_k"`
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	DataDir  string         `koanf:"data_dir"`
	LLM      LLMConfig      `koanf:"llm"`
	Executor ExecutorConfig `koanf:"executor"`
	RAG      RAGConfig      `koanf:"rag"`
}

var defaults = []byte(`
server:
  addr: ":8080"
data_dir: "db"
llm:
  model: "gemini-1.5-flash"
  guardrail_model: "gemini-1.5-flash"
  embedding_model: "text-embedding-004"
executor:
  max_task_turns: 20
  call_timeout: 60s
rag:
  retrieve_k: 20
  top_k: 5
`)

// Load reads configuration from defaults, then the YAML file at path (if it
// exists; empty path skips the file), then CONCIERGE_* env overrides, e.g.
// CONCIERGE_EXECUTOR_MAX_TASK_TURNS=10 -> executor.max_task_turns.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := k.Load(rawbytes.Provider(b), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKeys maps flattened env names to config paths where the generic
// underscore-to-dot rule would split multi-word leaves.
var envKeys = map[string]string{
	"data_dir":                "data_dir",
	"llm_guardrail_model":     "llm.guardrail_model",
	"llm_embedding_model":     "llm.embedding_model",
	"executor_max_task_turns": "executor.max_task_turns",
	"executor_call_timeout":   "executor.call_timeout",
	"rag_retrieve_k":          "rag.retrieve_k",
	"rag_top_k":               "rag.top_k",
}

func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if mapped, ok := envKeys[s]; ok {
		return mapped
	}
	return strings.ReplaceAll(s, "_", ".")
}

func (c *Config) Validate() error {
	if c.Executor.MaxTaskTurns <= 0 {
		return fmt.Errorf("executor.max_task_turns must be positive, got %d", c.Executor.MaxTaskTurns)
	}
	if c.RAG.TopK <= 0 || c.RAG.RetrieveK < c.RAG.TopK {
		return fmt.Errorf("rag.retrieve_k (%d) must be >= rag.top_k (%d) and both positive", c.RAG.RetrieveK, c.RAG.TopK)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}
