// Package config loads leanNERD configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all leanNERD configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Prover    ProverConfig    `yaml:"prover"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Verifier  VerifierConfig  `yaml:"verifier"`
	Search    SearchConfig    `yaml:"search"`
	Prompts   PromptConfig    `yaml:"prompts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the reasoner LLM endpoint. Any
// OpenAI-compatible chat-completions server works (cloud API or vLLM).
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
}

// ProverConfig configures the optional local prover model (a vLLM
// server hosting a dedicated theorem-proving model). When Enabled is
// false the orchestrator runs without the direct-prover fallback.
type ProverConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Timeout   string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine used to index and
// query the theorem store.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama or genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// RetrievalConfig configures the theorem store and retriever.
type RetrievalConfig struct {
	DBPath     string `yaml:"db_path"`
	TopK       int    `yaml:"top_k"`
	MaxQueries int    `yaml:"max_queries"`
}

// VerifierConfig configures the Lake/Lean runner.
type VerifierConfig struct {
	ProjectPath string `yaml:"project_path"`
	Timeout     string `yaml:"timeout"`
	Cleanup     bool   `yaml:"cleanup"`
}

// SearchConfig holds the retry budgets that bound every dimension of
// the proof search. All values are fixed at startup; the orchestrator
// never adjusts them dynamically.
type SearchConfig struct {
	MaxDepth            int `yaml:"max_depth"`
	SketchAttempts      int `yaml:"sketch_attempts"`
	SketchCorrections   int `yaml:"sketch_corrections"`
	TheoremCorrections  int `yaml:"theorem_corrections"`
	SubgoalCorrections  int `yaml:"subgoal_corrections"`
	AssemblyCorrections int `yaml:"assembly_corrections"`
	ProverAttempts      int `yaml:"prover_attempts"`
	LLMProofAttempts    int `yaml:"llm_proof_attempts"`
}

// PromptConfig configures the prompt template store.
type PromptConfig struct {
	Dir       string `yaml:"dir"`        // override directory; embedded defaults when empty
	HotReload bool   `yaml:"hot_reload"` // watch Dir for template edits
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     "120s",
		},
		Prover: ProverConfig{
			Enabled:   false,
			BaseURL:   "http://localhost:8000/v1",
			Model:     "Goedel-LM/Goedel-Prover-V2-32B",
			MaxTokens: 1024,
			Timeout:   "300s",
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Retrieval: RetrievalConfig{
			DBPath:     ".leannerd/theorems.db",
			TopK:       5,
			MaxQueries: 3,
		},
		Verifier: VerifierConfig{
			ProjectPath: "lean_playground",
			Timeout:     "60s",
			Cleanup:     true,
		},
		Search: SearchConfig{
			MaxDepth:            2,
			SketchAttempts:      3,
			SketchCorrections:   3,
			TheoremCorrections:  2,
			SubgoalCorrections:  2,
			AssemblyCorrections: 2,
			ProverAttempts:      1,
			LLMProofAttempts:    2,
		},
		Prompts: PromptConfig{},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads the config file at path, layering it over defaults and
// then applying LEANNERD_* environment overrides. A missing file is
// not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. API keys in particular are
// usually kept out of the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("LEANNERD_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LEANNERD_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LEANNERD_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LEANNERD_PROVER_BASE_URL"); v != "" {
		c.Prover.BaseURL = v
		c.Prover.Enabled = true
	}
	if v := os.Getenv("LEANNERD_GENAI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("LEANNERD_VERIFIER_PROJECT"); v != "" {
		c.Verifier.ProjectPath = v
	}
	if v := os.Getenv("LEANNERD_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = debug
		}
	}
}

func (c *Config) validate() error {
	if c.Search.MaxDepth < 1 {
		return fmt.Errorf("search.max_depth must be at least 1, got %d", c.Search.MaxDepth)
	}
	if c.Search.SketchAttempts < 1 {
		return fmt.Errorf("search.sketch_attempts must be at least 1, got %d", c.Search.SketchAttempts)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	return nil
}

// ParseTimeout parses a duration string with a fallback.
func ParseTimeout(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
