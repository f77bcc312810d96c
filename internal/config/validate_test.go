package config

import (
	"strings"
	"testing"
)

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing server addr",
			mutate: func(c *Config) { c.Server.Addr = "" },
			want:   "server.addr",
		},
		{
			name:   "client without id",
			mutate: func(c *Config) { c.Server.Clients = []ClientConfig{{APIKeys: []string{"k"}}} },
			want:   "server.clients[0].id",
		},
		{
			name: "duplicate client id",
			mutate: func(c *Config) {
				c.Server.Clients = []ClientConfig{{ID: "a"}, {ID: "a"}}
			},
			want: "duplicate id",
		},
		{
			name:   "unknown ner backend",
			mutate: func(c *Config) { c.Models.NER.Backend = "spacy" },
			want:   "models.ner.backend",
		},
		{
			name:   "openai is not an ner backend",
			mutate: func(c *Config) { c.Models.NER.Backend = "openai" },
			want:   "models.ner.backend",
		},
		{
			name:   "remote sentiment without url",
			mutate: func(c *Config) { c.Models.Sentiment.Backend = "remote" },
			want:   "models.sentiment.url",
		},
		{
			name: "remote ner with bad scheme",
			mutate: func(c *Config) {
				c.Models.NER.Backend = "remote"
				c.Models.NER.URL = "ftp://models.example.com/ner"
			},
			want: "http or https",
		},
		{
			name:   "unknown segmenter",
			mutate: func(c *Config) { c.Models.Segmenter = "spacy" },
			want:   "models.segmenter",
		},
		{
			name:   "invalid openai base url",
			mutate: func(c *Config) { c.Models.OpenAI.BaseURL = "::://bad" },
			want:   "models.openai.base_url",
		},
		{
			name:   "negative rate",
			mutate: func(c *Config) { c.Batch.RequestsPerSecond = -1 },
			want:   "requests_per_second",
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
			},
			want: "endpoint",
		},
		{
			name: "telemetry bad protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = "localhost:4317"
				c.Telemetry.Protocol = "udp"
			},
			want: "telemetry.protocol",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			} else if !contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(defaultConfig()); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}

	remote := defaultConfig()
	remote.Models.NER = BackendConfig{Backend: "remote", URL: "https://api-inference.huggingface.co/models/dslim/bert-base-NER"}
	remote.Models.Sentiment = BackendConfig{Backend: "openai"}
	remote.Models.OpenAI.BaseURL = "http://127.0.0.1:11434/v1"
	if err := Validate(remote); err != nil {
		t.Fatalf("expected remote config to be valid, got %v", err)
	}

	if err := Validate(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}
