// Package config handles loading and managing bizhealth configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/bizhealth/bizhealth/pkg/clienthealth"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: BIZHEALTH_SERVER__DATABASE_URL sets
// server.database_url.
const EnvPrefix = "BIZHEALTH_"

// Config is the top-level configuration for bizhealth.
type Config struct {
	Scoring ScoringConfig `koanf:"scoring"`
	Clients ClientConfig  `koanf:"clients"`
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
}

// ScoringConfig overrides category scoring targets. Zero values and empty
// tables keep the built-in defaults.
type ScoringConfig struct {
	DefaultBillableRatio float64        `koanf:"default_billable_ratio"` // percent
	DefaultDailyHours    float64        `koanf:"default_daily_hours"`
	DefaultDaysPerWeek   float64        `koanf:"default_days_per_week"`
	PaymentTermsDays     int            `koanf:"payment_terms_days"`
	DaySteps             []scoring.Tier `koanf:"day_steps"`
	CountSteps           []scoring.Tier `koanf:"count_steps"`
	AmountSteps          []scoring.Tier `koanf:"amount_steps"`
	ConcentrationTiers   []scoring.Tier `koanf:"concentration_tiers"`
}

// ClientConfig overrides client health rules.
type ClientConfig struct {
	PaymentTermsDays    int     `koanf:"payment_terms_days"`
	InactiveAfterDays   int     `koanf:"inactive_after_days"`
	HighEngagementHours float64 `koanf:"high_engagement_hours"`
}

// ServerConfig controls the bizhealthd daemon.
type ServerConfig struct {
	Addr          string `koanf:"addr"`
	MetricsAddr   string `koanf:"metrics_addr"`
	DatabaseURL   string `koanf:"database_url"`
	APIKey        string `koanf:"api_key"`
	WebhookSecret string `koanf:"webhook_secret"` // enables signed snapshot pushes
	CacheSize     int    `koanf:"cache_size"`     // scored reports kept in memory
	Concurrency   int    `koanf:"concurrency"`    // parallel client scoring limit
}

// StorageConfig selects the report archive backend.
type StorageConfig struct {
	Backend  string `koanf:"backend"` // local, gcs or s3
	Dir      string `koanf:"dir"`     // local backend root
	Bucket   string `koanf:"bucket"`
	Prefix   string `koanf:"prefix"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // S3-compatible endpoint override
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console or json
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
			CacheSize:   256,
			Concurrency: 8,
		},
		Storage: StorageConfig{
			Backend: "local",
			Dir:     ReportDir(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds a Config by layering, lowest precedence first:
//  1. defaults
//  2. the YAML file at path, when it exists
//  3. BIZHEALTH_ environment variables
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local", "gcs", "s3":
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}
	if c.Storage.Backend != "local" && c.Storage.Bucket == "" {
		return fmt.Errorf("%w: storage.bucket is required for %s", ErrInvalid, c.Storage.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalid)
	}
	return nil
}

// Thresholds returns the scoring defaults with configured overrides applied.
func (c *Config) Thresholds() scoring.Thresholds {
	t := scoring.Defaults()
	s := c.Scoring
	if s.DefaultBillableRatio > 0 {
		t.DefaultBillableRatio = s.DefaultBillableRatio
	}
	if s.DefaultDailyHours > 0 {
		t.DefaultDailyHours = s.DefaultDailyHours
	}
	if s.DefaultDaysPerWeek > 0 {
		t.DefaultDaysPerWeek = s.DefaultDaysPerWeek
	}
	if s.PaymentTermsDays > 0 {
		t.DefaultPaymentTermsInDays = s.PaymentTermsDays
	}
	if len(s.DaySteps) > 0 {
		t.DaySteps = s.DaySteps
	}
	if len(s.CountSteps) > 0 {
		t.CountSteps = s.CountSteps
	}
	if len(s.AmountSteps) > 0 {
		t.AmountSteps = s.AmountSteps
	}
	if len(s.ConcentrationTiers) > 0 {
		t.ConcentrationTiers = s.ConcentrationTiers
	}
	return t
}

// Rules returns the client health defaults with configured overrides applied.
func (c *Config) Rules() clienthealth.Rules {
	r := clienthealth.DefaultRules()
	if c.Clients.PaymentTermsDays > 0 {
		r.DefaultPaymentTerms = c.Clients.PaymentTermsDays
	}
	if c.Clients.InactiveAfterDays > 0 {
		r.InactiveAfterDays = c.Clients.InactiveAfterDays
	}
	if c.Clients.HighEngagementHours > 0 {
		r.HighEngagementHours = c.Clients.HighEngagementHours
	}
	return r
}

// FindConfigFile looks for .bizhealth/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".bizhealth", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns ~/.cache/bizhealth.
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "bizhealth")
}

// ReportDir returns the local report archive directory.
func ReportDir() string {
	return filepath.Join(CacheDir(), "reports")
}

// WorkspaceReportDir returns the directory holding one workspace's
// archived reports under root. An empty root means ReportDir.
func WorkspaceReportDir(root, workspace string) string {
	if root == "" {
		root = ReportDir()
	}
	return filepath.Join(root, Slug(workspace))
}

// Slug creates a filesystem-safe identifier from a workspace name.
func Slug(workspace string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(workspace)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "default"
	}
	return s
}
