package auth

import (
	"testing"

	"github.com/claimlens/claimlens/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	t.Setenv("CLAIMLENS_TEST_KEY", "env-key")

	a, err := NewFromConfig(config.ServerConfig{Clients: []config.ClientConfig{
		{ID: "triage", APIKeys: []string{"k1", " "}},
		{ID: "batch", APIKeysEnv: []string{"CLAIMLENS_TEST_KEY", "CLAIMLENS_TEST_UNSET"}},
	}})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if !a.Enabled() {
		t.Fatal("expected auth enabled")
	}
	if c, ok := a.Lookup("k1"); !ok || c.ID != "triage" {
		t.Fatalf("k1 = %+v %v", c, ok)
	}
	if c, ok := a.Lookup("env-key"); !ok || c.ID != "batch" {
		t.Fatalf("env-key = %+v %v", c, ok)
	}
	if _, ok := a.Lookup(""); ok {
		t.Fatal("empty key must not resolve")
	}
}

func TestNewFromConfigErrors(t *testing.T) {
	if _, err := NewFromConfig(config.ServerConfig{Clients: []config.ClientConfig{{APIKeys: []string{"k"}}}}); err == nil {
		t.Fatal("expected error for empty client id")
	}
	dup := config.ServerConfig{Clients: []config.ClientConfig{
		{ID: "a", APIKeys: []string{"same"}},
		{ID: "b", APIKeys: []string{"same"}},
	}}
	if _, err := NewFromConfig(dup); err == nil {
		t.Fatal("expected error for shared key")
	}
}

func TestNoClientsMeansOpen(t *testing.T) {
	a, err := NewFromConfig(config.ServerConfig{})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if a.Enabled() {
		t.Fatal("expected auth disabled")
	}
	var nilAuth *Auth
	if nilAuth.Enabled() {
		t.Fatal("nil auth must be disabled")
	}
}

func TestParseBearerToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseBearerToken(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseBearerToken(%q) = %q %v", tc.in, got, ok)
		}
	}
}
