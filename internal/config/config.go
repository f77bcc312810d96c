package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds claimlens configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Models    ModelsConfig    `yaml:"models"`
	Batch     BatchConfig     `yaml:"batch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Addr                  string `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	MaxBodyBytes          int64  `yaml:"max_body_bytes"`
	MaxBatchClaims        int    `yaml:"max_batch_claims"`

	// Clients enables bearer-token auth on /v1 routes. Empty means open.
	Clients []ClientConfig `yaml:"clients"`
}

type ClientConfig struct {
	ID         string   `yaml:"id"`
	APIKeys    []string `yaml:"api_keys"`
	APIKeysEnv []string `yaml:"api_keys_env"`
}

// ModelsConfig selects and locates the NLP backends.
type ModelsConfig struct {
	BundleDir         string        `yaml:"bundle_dir"`
	SeqLen            int           `yaml:"seq_len"`
	SentimentMaxChars int           `yaml:"sentiment_max_chars"`
	Warmup            bool          `yaml:"warmup"`
	Runtime           RuntimeConfig `yaml:"runtime"`
	NER               BackendConfig `yaml:"ner"`
	Sentiment         BackendConfig `yaml:"sentiment"`
	Segmenter         string        `yaml:"segmenter"` // prose
	Remote            RemoteConfig  `yaml:"remote"`
	OpenAI            OpenAIConfig  `yaml:"openai"`
}

// RuntimeConfig tunes the shared ONNX runtime. Zero values mean auto.
type RuntimeConfig struct {
	MaxSessions  int `yaml:"max_sessions"`
	IntraThreads int `yaml:"intra_threads"`
	InterThreads int `yaml:"inter_threads"`
}

type BackendConfig struct {
	Backend string `yaml:"backend"` // onnx | prose | remote | openai
	Dir     string `yaml:"dir"`     // onnx model dir; relative paths resolve under bundle_dir
	URL     string `yaml:"url"`     // remote endpoint
}

type RemoteConfig struct {
	APIKeyEnv      string `yaml:"api_key_env"` // e.g. "HF_API_TOKEN"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type OpenAIConfig struct {
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type BatchConfig struct {
	Workers           int     `yaml:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables the limiter
	Burst             int     `yaml:"burst"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"` // grpc | http
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{Enabled: true},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeoutSeconds <= 0 {
		cfg.Server.RequestTimeoutSeconds = 30
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MaxBatchClaims <= 0 {
		cfg.Server.MaxBatchClaims = 100
	}

	m := &cfg.Models
	if m.BundleDir == "" {
		m.BundleDir = "./models"
	}
	if m.SeqLen <= 0 {
		m.SeqLen = 256
	}
	if m.SentimentMaxChars <= 0 {
		m.SentimentMaxChars = 512
	}
	if m.NER.Backend == "" {
		m.NER.Backend = "onnx"
	}
	if m.NER.Dir == "" {
		m.NER.Dir = "ner"
	}
	if m.Sentiment.Backend == "" {
		m.Sentiment.Backend = "onnx"
	}
	if m.Sentiment.Dir == "" {
		m.Sentiment.Dir = "sentiment"
	}
	if m.Segmenter == "" {
		m.Segmenter = "prose"
	}
	if m.Remote.APIKeyEnv == "" {
		m.Remote.APIKeyEnv = "HF_API_TOKEN"
	}
	if m.Remote.TimeoutSeconds <= 0 {
		m.Remote.TimeoutSeconds = 30
	}
	if m.OpenAI.APIKeyEnv == "" {
		m.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if m.OpenAI.TimeoutSeconds <= 0 {
		m.OpenAI.TimeoutSeconds = 30
	}

	if cfg.Batch.Workers <= 0 {
		cfg.Batch.Workers = 4
	}
	if cfg.Batch.Burst <= 0 {
		cfg.Batch.Burst = 1
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "claimlens"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "claimlens"
	}
}

// ModelDir resolves a backend dir against the bundle dir.
func (m ModelsConfig) ModelDir(b BackendConfig) string {
	if b.Dir == "" || filepath.IsAbs(b.Dir) {
		return b.Dir
	}
	return filepath.Join(m.BundleDir, b.Dir)
}
