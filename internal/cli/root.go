// Package cli implements the claimlens command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/redact"
)

const envPrefix = "CLAIMLENS"

// overridable lists the config keys that CLAIMLENS_* env vars and flags may set.
// Env names replace dots with underscores: CLAIMLENS_MODELS_NER_BACKEND.
var overridable = []string{
	"server.addr",
	"models.bundle_dir",
	"models.warmup",
	"models.ner.backend",
	"models.ner.url",
	"models.sentiment.backend",
	"models.sentiment.url",
	"models.openai.model",
	"batch.workers",
	"batch.requests_per_second",
	"telemetry.enabled",
	"telemetry.endpoint",
	"metrics.enabled",
}

type rootOptions struct {
	v       *viper.Viper
	version string
	cfg     *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{v: viper.New(), version: version}

	root := &cobra.Command{
		Use:   "claimlens",
		Short: "claimlens - insurance claim text analysis",
		Long: `claimlens reads free-text insurance claim descriptions and reports
extracted entities, a severity tier, fraud indicators and a one-line summary.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CLAIMLENS_*), including an optional .env file
3. Config file (claimlens.yaml)
4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.loadConfig()
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "claimlens.yaml", "path to claimlens config file")
	pf.String("env-file", ".env", "optional dotenv file loaded before configuration")
	_ = opts.v.BindPFlag("config", pf.Lookup("config"))
	_ = opts.v.BindPFlag("env_file", pf.Lookup("env-file"))

	root.AddCommand(
		newAnalyzeCmd(opts),
		newBatchCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// loadConfig reads .env, the YAML file, then env/flag overrides, and validates.
func (o *rootOptions) loadConfig() error {
	if err := godotenv.Load(o.v.GetString("env_file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	o.v.SetEnvPrefix(envPrefix)
	o.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	o.v.AutomaticEnv()
	for _, key := range overridable {
		_ = o.v.BindEnv(key)
	}

	path := o.v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	applyOverrides(cfg, o.v)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	o.cfg = cfg
	return nil
}

func applyOverrides(cfg *config.Config, v *viper.Viper) {
	set := func(key string, apply func()) {
		if v.IsSet(key) {
			apply()
			redact.Logf("config override: %s", key)
		}
	}
	set("server.addr", func() { cfg.Server.Addr = v.GetString("server.addr") })
	set("models.bundle_dir", func() { cfg.Models.BundleDir = v.GetString("models.bundle_dir") })
	set("models.warmup", func() { cfg.Models.Warmup = v.GetBool("models.warmup") })
	set("models.ner.backend", func() { cfg.Models.NER.Backend = v.GetString("models.ner.backend") })
	set("models.ner.url", func() { cfg.Models.NER.URL = v.GetString("models.ner.url") })
	set("models.sentiment.backend", func() { cfg.Models.Sentiment.Backend = v.GetString("models.sentiment.backend") })
	set("models.sentiment.url", func() { cfg.Models.Sentiment.URL = v.GetString("models.sentiment.url") })
	set("models.openai.model", func() { cfg.Models.OpenAI.Model = v.GetString("models.openai.model") })
	set("batch.workers", func() { cfg.Batch.Workers = v.GetInt("batch.workers") })
	set("batch.requests_per_second", func() { cfg.Batch.RequestsPerSecond = v.GetFloat64("batch.requests_per_second") })
	set("telemetry.enabled", func() { cfg.Telemetry.Enabled = v.GetBool("telemetry.enabled") })
	set("telemetry.endpoint", func() { cfg.Telemetry.Endpoint = v.GetString("telemetry.endpoint") })
	set("metrics.enabled", func() { cfg.Metrics.Enabled = v.GetBool("metrics.enabled") })
}

func newVersionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip config loading so version works anywhere.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "claimlens %s\n", o.version)
		},
	}
}
