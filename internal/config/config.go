// Package config loads the orchestrator's configuration surface
// from environment variables, with defaults sourced from an optional
// YAML document for local/dev runs.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LiteratureAgent and AnalysisAgent select the primary provider for their
// respective capability, via PRIMARY_LITERATURE_AGENT / PRIMARY_ANALYSIS_AGENT.
type (
	LiteratureAgent string
	AnalysisAgent   string
)

const (
	LiteratureEdison     LiteratureAgent = "EDISON"
	LiteratureBioLitDeep LiteratureAgent = "BIOLITDEEP"
	LiteratureBioLit     LiteratureAgent = "BIOLIT"

	AnalysisEdison AnalysisAgent = "EDISON"
	AnalysisBio    AnalysisAgent = "BIO"
)

// QueueConfig carries the per-queue concurrency, lease, and backoff policy
// for each queue.
type QueueConfig struct {
	Concurrency         int           `yaml:"concurrency"`
	MaxAttempts         int           `yaml:"max_attempts"`
	BaseBackoff         time.Duration `yaml:"base_backoff"`
	LeaseDuration       time.Duration `yaml:"lease_duration"`
	LeaseRenewal        time.Duration `yaml:"lease_renewal"`
	StalledSweepPeriod  time.Duration `yaml:"stalled_sweep_period"`
	SuccessRetention    time.Duration `yaml:"success_retention"`
	FailureRetention    time.Duration `yaml:"failure_retention"`
}

// Config is the fully-resolved orchestrator configuration.
type Config struct {
	MaxAutoIterationsSemiAutonomous int `yaml:"max_auto_iterations"`

	DeepResearchQueue QueueConfig `yaml:"deep_research_queue"`
	ChatQueue         QueueConfig `yaml:"chat_queue"`
	FileProcessQueue  QueueConfig `yaml:"file_process_queue"`
	PaperQueue        QueueConfig `yaml:"paper_queue"`

	PrimaryLiteratureAgent LiteratureAgent `yaml:"primary_literature_agent"`
	PrimaryAnalysisAgent   AnalysisAgent   `yaml:"primary_analysis_agent"`

	OpenScholarAPIURL string `yaml:"openscholar_api_url"`
	KnowledgeDocsPath string `yaml:"knowledge_docs_path"`

	FileBarrierPollInterval time.Duration `yaml:"file_barrier_poll_interval"`
	FileBarrierTimeout      time.Duration `yaml:"file_barrier_timeout"`

	LiteratureTimeout time.Duration `yaml:"literature_timeout"`
	AnalysisTimeout   time.Duration `yaml:"analysis_timeout"`

	LockTTL         time.Duration `yaml:"lock_ttl"`
	LockMaxRetries  int           `yaml:"lock_max_retries"`
	LockRetryDelay  time.Duration `yaml:"lock_retry_delay"`
}

// Defaults returns the configuration baseline used when no YAML override or
// environment variable is present.
func Defaults() Config {
	return Config{
		MaxAutoIterationsSemiAutonomous: 5,
		DeepResearchQueue: QueueConfig{
			Concurrency:        3,
			MaxAttempts:        2,
			BaseBackoff:        5 * time.Second,
			LeaseDuration:      30 * time.Minute,
			LeaseRenewal:       5 * time.Minute,
			StalledSweepPeriod: 10 * time.Minute,
			SuccessRetention:   24 * time.Hour,
			FailureRetention:   7 * 24 * time.Hour,
		},
		ChatQueue: QueueConfig{
			Concurrency: 5,
			MaxAttempts: 3,
			BaseBackoff: 1 * time.Second,
		},
		FileProcessQueue: QueueConfig{
			Concurrency: 5,
			MaxAttempts: 3,
			BaseBackoff: 1 * time.Second,
		},
		PaperQueue: QueueConfig{
			Concurrency: 1,
			MaxAttempts: 1,
		},
		PrimaryLiteratureAgent:  LiteratureEdison,
		PrimaryAnalysisAgent:    AnalysisEdison,
		FileBarrierPollInterval: 500 * time.Millisecond,
		FileBarrierTimeout:      120 * time.Second,
		LiteratureTimeout:       30 * time.Minute,
		AnalysisTimeout:         60 * time.Minute,
		LockTTL:                 5 * time.Second,
		LockMaxRetries:          10,
		LockRetryDelay:          100 * time.Millisecond,
	}
}

// LoadYAML merges a YAML document (e.g. read from a config file) over the
// built-in defaults.
func LoadYAML(data []byte) (Config, error) {
	cfg := Defaults()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv overlays recognized environment variables onto cfg,
// leaving any unset variable's existing value untouched.
func LoadEnv(cfg Config) Config {
	if v, ok := os.LookupEnv("MAX_AUTO_ITERATIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAutoIterationsSemiAutonomous = n
		}
	}
	if v, ok := os.LookupEnv("DEEP_RESEARCH_QUEUE_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DeepResearchQueue.Concurrency = n
		}
	}
	if v, ok := os.LookupEnv("CHAT_QUEUE_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChatQueue.Concurrency = n
		}
	}
	if v, ok := os.LookupEnv("FILE_PROCESS_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FileProcessQueue.Concurrency = n
		}
	}
	if v, ok := os.LookupEnv("PAPER_GENERATION_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PaperQueue.Concurrency = n
		}
	}
	if v, ok := os.LookupEnv("PRIMARY_LITERATURE_AGENT"); ok {
		cfg.PrimaryLiteratureAgent = LiteratureAgent(v)
	}
	if v, ok := os.LookupEnv("PRIMARY_ANALYSIS_AGENT"); ok {
		cfg.PrimaryAnalysisAgent = AnalysisAgent(v)
	}
	if v, ok := os.LookupEnv("OPENSCHOLAR_API_URL"); ok {
		cfg.OpenScholarAPIURL = v
	}
	if v, ok := os.LookupEnv("KNOWLEDGE_DOCS_PATH"); ok {
		cfg.KnowledgeDocsPath = v
	}
	return cfg
}

// MaxAutoIterations implements the per-mode cap: steering
// always caps at 1, fully-autonomous at 20, semi-autonomous at the configured
// value (default 5).
func (c Config) MaxAutoIterations(mode string) int {
	switch mode {
	case "steering":
		return 1
	case "fully-autonomous":
		return 20
	default:
		return c.MaxAutoIterationsSemiAutonomous
	}
}

// OpenScholarEnabled reports whether the optional OpenScholar literature
// source is enabled (enabled by presence of its URL).
func (c Config) OpenScholarEnabled() bool { return c.OpenScholarAPIURL != "" }

// KnowledgeBaseEnabled reports whether the optional knowledge-base literature
// source is enabled (enabled by presence of its docs path).
func (c Config) KnowledgeBaseEnabled() bool { return c.KnowledgeDocsPath != "" }
