package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/bizhealth/bizhealth/internal/logging"
	"github.com/bizhealth/bizhealth/pkg/config"
	"github.com/bizhealth/bizhealth/pkg/facts"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// globalOpts are the persistent root flags.
type globalOpts struct {
	configPath string
	verbose    bool
}

// loadConfig reads the --config file, or the nearest .bizhealth/config.yaml
// above the working directory. An explicit path that fails to load is an
// error; a discovered one only warns.
func (g *globalOpts) loadConfig(stderr io.Writer) (*config.Config, error) {
	if g.configPath != "" {
		cfg, err := config.Load(g.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", g.configPath, err)
		}
		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	cfgFile := config.FindConfigFile(cwd)
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: failed to load config: %v\n", err)
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

func (g *globalOpts) logger() *zap.Logger {
	if !g.verbose {
		return zap.NewNop()
	}
	l, err := logging.NewLogger("debug", "console")
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// readFacts loads a snapshot from path. "-" reads JSON from stdin.
func readFacts(path string, stdin io.Reader) (*facts.Snapshot, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return facts.Decode(data, "json")
	}
	return facts.LoadSnapshot(path)
}

// applyAsOf overrides the snapshot date with a YYYY-MM-DD --as-of value.
func applyAsOf(snap *facts.Snapshot, asOf string) error {
	if asOf == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		return fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD", asOf)
	}
	snap.AsOf = facts.NewDate(t)
	return nil
}

func newEngine(cfg *config.Config) *scoring.Engine {
	return scoring.NewEngine(nil, scoring.DefaultScorers(cfg.Thresholds())...)
}

// snapshotClock pins client scoring to the snapshot date when one is set.
func snapshotClock(snap *facts.Snapshot) scoring.Clock {
	if snap.AsOf.Known() {
		return scoring.FixedClock(snap.AsOf.Time)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
