package model

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the complete curator configuration
type Config struct {
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Oracle    OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	Sentinel  SentinelConfig  `yaml:"sentinel" mapstructure:"sentinel"`
	Architect ArchitectConfig `yaml:"architect" mapstructure:"architect"`
	Analyst   AnalystConfig   `yaml:"analyst" mapstructure:"analyst"`
	Editor    EditorConfig    `yaml:"editor" mapstructure:"editor"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Scout     ScoutConfig     `yaml:"scout" mapstructure:"scout"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Authority AuthorityConfig `yaml:"authority" mapstructure:"authority"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Proxy     ProxyConfig     `yaml:"proxy" mapstructure:"proxy"`

	PersonaPath string `yaml:"persona_path" mapstructure:"persona_path"`
	OutputPath  string `yaml:"output_path" mapstructure:"output_path"` // latest.json; siblings go in the same dir
}

// LLMConfig selects and configures the oracle provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // gemini, openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// OracleConfig bounds retries, pacing and fan-out of oracle calls
type OracleConfig struct {
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	Fanout            int           `yaml:"fanout" mapstructure:"fanout"`
	BatchSize         int           `yaml:"batch_size" mapstructure:"batch_size"`
}

type SentinelConfig struct {
	RelevanceThreshold float64 `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
}

type ArchitectConfig struct {
	Grouping         string  `yaml:"grouping" mapstructure:"grouping"` // oracle or lexical
	OverlapThreshold float64 `yaml:"overlap_threshold" mapstructure:"overlap_threshold"`
	TitleSimilarity  float64 `yaml:"title_similarity" mapstructure:"title_similarity"`
	SimhashDistance  int     `yaml:"simhash_distance" mapstructure:"simhash_distance"`
	MinClusterSize   int     `yaml:"min_cluster_size" mapstructure:"min_cluster_size"`
}

type AnalystConfig struct {
	MinDepth      int           `yaml:"min_depth" mapstructure:"min_depth"`
	MaxChars      int           `yaml:"max_chars" mapstructure:"max_chars"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	MaxBytes      int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

type EditorConfig struct {
	SNRThreshold        int `yaml:"snr_threshold" mapstructure:"snr_threshold"`
	ImportanceThreshold int `yaml:"importance_threshold" mapstructure:"importance_threshold"`
	BreakingThreshold   int `yaml:"breaking_threshold" mapstructure:"breaking_threshold"`
}

type HistoryConfig struct {
	Backend         string `yaml:"backend" mapstructure:"backend"` // file or postgres
	Path            string `yaml:"path" mapstructure:"path"`
	DatabaseURL     string `yaml:"database_url,omitempty" mapstructure:"database_url"`
	RetentionDays   int    `yaml:"retention_days" mapstructure:"retention_days"`
	DedupWindowDays int    `yaml:"dedup_window_days" mapstructure:"dedup_window_days"`
}

type ScoutConfig struct {
	Languages   []string `yaml:"languages" mapstructure:"languages"`
	FeedsPath   string   `yaml:"feeds_path" mapstructure:"feeds_path"`
	MaxAgeHours int      `yaml:"max_age_hours" mapstructure:"max_age_hours"`
	GoogleNews  bool     `yaml:"google_news" mapstructure:"google_news"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ProxyConfig routes outbound HTTP (feeds, articles, oracle) through a proxy.
// Empty values fall back to the HTTP_PROXY family of environment variables.
type ProxyConfig struct {
	HTTP    string `yaml:"http" mapstructure:"http"`
	HTTPS   string `yaml:"https" mapstructure:"https"`
	NoProxy string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console or json
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-3-flash-preview",
			Timeout:     60,
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		Oracle: OracleConfig{
			MaxRetries:        5,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        15 * time.Second,
			RequestsPerSecond: 0.5,
			Burst:             1,
			Fanout:            4,
			BatchSize:         25,
		},
		Sentinel: SentinelConfig{
			RelevanceThreshold: 0.6,
		},
		Architect: ArchitectConfig{
			Grouping:         "oracle",
			OverlapThreshold: 0,
			TitleSimilarity:  0.6,
			SimhashDistance:  3,
			MinClusterSize:   1,
		},
		Analyst: AnalystConfig{
			MinDepth:      3,
			MaxChars:      4000,
			UserAgent:     "Curator/0.1 (+https://github.com/ppiankov/curator)",
			FetchTimeout:  20 * time.Second,
			MaxBytes:      2_000_000,
			RespectRobots: true,
		},
		Editor: EditorConfig{
			SNRThreshold:        5,
			ImportanceThreshold: 8,
			BreakingThreshold:   8,
		},
		History: HistoryConfig{
			Backend:         "file",
			Path:            "data/history.json",
			RetentionDays:   30,
			DedupWindowDays: 7,
		},
		Scout: ScoutConfig{
			Languages:   []string{"en", "fr", "es"},
			FeedsPath:   "data/feeds.txt",
			MaxAgeHours: 48,
			GoogleNews:  true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".curator-cache",
			TTL:     24 * time.Hour,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"reuters.com", "apnews.com", "afp.com", "europa.eu", "un.org", "who.int",
			},
			SecondaryDomains: []string{
				"bbc.co.uk", "bbc.com", "nytimes.com", "theguardian.com", "washingtonpost.com",
				"ft.com", "economist.com", "lemonde.fr", "lefigaro.fr", "elpais.com",
				"elmundo.es", "nature.com", "science.org", "arstechnica.com",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		PersonaPath: "data/memory.md",
		OutputPath:  "output/latest.json",
	}
}

// ConfigurationError reports an invalid configuration detected before any oracle call.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

func configErr(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration for values that would make a run meaningless.
func (c Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "google", "openai", "anthropic", "claude":
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return configErr("llm.api_key", "credential required for provider %q", c.LLM.Provider)
		}
	case "ollama":
	default:
		return configErr("llm.provider", "unknown provider %q (supported: gemini, openai, anthropic, ollama)", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return configErr("llm.model", "model identifier required")
	}
	if len(c.Scout.Languages) == 0 {
		return configErr("scout.languages", "at least one search language required")
	}
	for _, lang := range c.Scout.Languages {
		if strings.TrimSpace(lang) == "" {
			return configErr("scout.languages", "blank language code")
		}
	}

	if c.Sentinel.RelevanceThreshold < 0 || c.Sentinel.RelevanceThreshold > 1 {
		return configErr("sentinel.relevance_threshold", "must be within [0,1], got %v", c.Sentinel.RelevanceThreshold)
	}

	for field, v := range map[string]int{
		"editor.snr_threshold":        c.Editor.SNRThreshold,
		"editor.importance_threshold": c.Editor.ImportanceThreshold,
		"editor.breaking_threshold":   c.Editor.BreakingThreshold,
		"analyst.min_depth":           c.Analyst.MinDepth,
	} {
		if v < 1 || v > 10 {
			return configErr(field, "must be within [1,10], got %d", v)
		}
	}

	switch c.Architect.Grouping {
	case "oracle", "lexical":
	default:
		return configErr("architect.grouping", "unknown strategy %q (supported: oracle, lexical)", c.Architect.Grouping)
	}
	if c.Architect.OverlapThreshold < 0 || c.Architect.OverlapThreshold >= 1 {
		return configErr("architect.overlap_threshold", "must be within [0,1), got %v", c.Architect.OverlapThreshold)
	}
	if c.Architect.MinClusterSize < 1 {
		return configErr("architect.min_cluster_size", "must be at least 1")
	}

	switch c.History.Backend {
	case "file":
		if strings.TrimSpace(c.History.Path) == "" {
			return configErr("history.path", "required for file backend")
		}
	case "postgres":
		if strings.TrimSpace(c.History.DatabaseURL) == "" {
			return configErr("history.database_url", "required for postgres backend")
		}
	default:
		return configErr("history.backend", "unknown backend %q (supported: file, postgres)", c.History.Backend)
	}
	if c.History.DedupWindowDays < 1 {
		return configErr("history.dedup_window_days", "must be at least 1")
	}
	if c.History.RetentionDays < c.History.DedupWindowDays {
		return configErr("history.retention_days", "must not be shorter than the dedup window (%d days)", c.History.DedupWindowDays)
	}

	if c.Oracle.MaxRetries < 1 {
		return configErr("oracle.max_retries", "must be at least 1")
	}
	if c.Oracle.Fanout < 1 {
		return configErr("oracle.fanout", "must be at least 1")
	}
	if c.Oracle.BatchSize < 1 {
		return configErr("oracle.batch_size", "must be at least 1")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return configErr("output_path", "required")
	}
	return nil
}
