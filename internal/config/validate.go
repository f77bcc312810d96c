package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	seen := map[string]bool{}
	for i, c := range cfg.Server.Clients {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return fmt.Errorf("server.clients[%d].id must be set", i)
		}
		if seen[id] {
			return fmt.Errorf("server.clients: duplicate id %q", id)
		}
		seen[id] = true
	}

	if err := validateModelsConfig(cfg.Models); err != nil {
		return err
	}

	if cfg.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative, got %d", cfg.Batch.Workers)
	}
	if cfg.Batch.RequestsPerSecond < 0 {
		return fmt.Errorf("batch.requests_per_second must not be negative, got %v", cfg.Batch.RequestsPerSecond)
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateModelsConfig(m ModelsConfig) error {
	if m.SentimentMaxChars < 0 {
		return errors.New("models.sentiment_max_chars must not be negative")
	}
	if err := validateBackend("models.ner", m.NER, "onnx", "prose", "remote"); err != nil {
		return err
	}
	if err := validateBackend("models.sentiment", m.Sentiment, "onnx", "remote", "openai"); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(m.Segmenter)) {
	case "", "prose":
	default:
		return fmt.Errorf("models.segmenter must be prose, got %q", m.Segmenter)
	}
	if m.OpenAI.BaseURL != "" {
		if err := validateURL("models.openai.base_url", m.OpenAI.BaseURL); err != nil {
			return err
		}
	}
	return nil
}

func validateBackend(field string, b BackendConfig, allowed ...string) error {
	kind := strings.ToLower(strings.TrimSpace(b.Backend))
	if kind == "" {
		return nil
	}
	ok := false
	for _, a := range allowed {
		if kind == a {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%s.backend must be one of %s, got %q", field, strings.Join(allowed, ", "), b.Backend)
	}
	if kind == "remote" {
		if strings.TrimSpace(b.URL) == "" {
			return fmt.Errorf("%s.url must be set for the remote backend", field)
		}
		return validateURL(field+".url", b.URL)
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is invalid", field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https", field)
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
