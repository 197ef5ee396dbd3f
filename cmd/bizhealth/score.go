package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bizhealth/bizhealth/internal/ingestion"
	"github.com/bizhealth/bizhealth/pkg/config"
	"github.com/bizhealth/bizhealth/pkg/facts"
	"github.com/bizhealth/bizhealth/pkg/scoring"
	"github.com/bizhealth/bizhealth/pkg/surface"
)

func newScoreCmd(g *globalOpts) *cobra.Command {
	var opts scoreOpts

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a facts snapshot",
		Long: `Scores a facts snapshot (JSON, YAML or TOML) and renders the result.
With --save the facts and the result are archived under the local report
directory, and the facts are kept as the workspace's latest snapshot for
"compare --base last".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), g, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.factsPath, "facts", "", "Path to facts file, or - for JSON on stdin (required)")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text, json or markdown")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "Score as of this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.workspace, "workspace", "", "Workspace name (default: from facts)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Archive facts and result in the local report directory")
	_ = cmd.MarkFlagRequired("facts")

	return cmd
}

type scoreOpts struct {
	factsPath string
	outputFmt string
	asOf      string
	workspace string
	save      bool
}

func runScore(ctx context.Context, g *globalOpts, opts scoreOpts, stdin io.Reader, stdout, stderr io.Writer) error {
	renderer, err := surface.ForFormat(opts.outputFmt)
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig(stderr)
	if err != nil {
		return err
	}
	logger := g.logger()
	defer func() { _ = logger.Sync() }()

	snap, err := readFacts(opts.factsPath, stdin)
	if err != nil {
		return err
	}
	if err := applyAsOf(snap, opts.asOf); err != nil {
		return err
	}
	snap.Workspace = firstNonEmpty(opts.workspace, snap.Workspace)

	engine := newEngine(cfg)

	var result *scoring.Result
	if opts.save {
		rep, err := saveReport(ctx, cfg, engine, snap, logger)
		if err != nil {
			return err
		}
		result = rep.Result
		fmt.Fprintf(stderr, "Report saved: %s (%s)\n", rep.ID, rep.StorageRef)
	} else {
		result, err = engine.Score(snap)
		if err != nil {
			return fmt.Errorf("scoring: %w", err)
		}
	}
	logger.Debug("scored snapshot",
		zap.String("workspace", result.Workspace),
		zap.Float64("total", result.Total),
		zap.String("band", string(result.Band)),
	)

	if err := renderer.Render(stdout, result); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	return nil
}

// saveReport scores snap through the ingestion pipeline against the local
// archive. No history index is kept for CLI runs.
func saveReport(ctx context.Context, cfg *config.Config, engine *scoring.Engine, snap *facts.Snapshot, logger *zap.Logger) (*ingestion.Report, error) {
	dir := firstNonEmpty(cfg.Storage.Dir, config.ReportDir())
	svc := ingestion.NewService(engine, ingestion.NewLocalStorage(dir), nil, nil, logger)
	rep, err := svc.Ingest(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}
	if err := facts.SaveSnapshot(latestSnapshotPath(dir, snap.Workspace), snap); err != nil {
		return nil, err
	}
	return rep, nil
}

// latestSnapshotPath is where score --save keeps a workspace's most recent facts.
func latestSnapshotPath(root, workspace string) string {
	return filepath.Join(config.WorkspaceReportDir(root, workspace), "latest.json")
}
