package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/bizhealth/bizhealth/pkg/breakdown"
	"github.com/bizhealth/bizhealth/pkg/facts"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

// baseLast selects the head workspace's latest saved snapshot as base.
const baseLast = "last"

func newCompareCmd(g *globalOpts) *cobra.Command {
	var opts compareOpts

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the scores of two facts snapshots",
		Long: `Scores two snapshots with the same configuration and prints the per-category movement from base to head.
Either side may be - to read JSON from stdin. --base last compares against the
snapshot most recently archived with "score --save" for the head's workspace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(g, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.basePath, "base", "", "Facts file of the earlier period, - for stdin or last (required)")
	cmd.Flags().StringVar(&opts.headPath, "head", "", "Facts file of the later period, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("head")

	return cmd
}

type compareOpts struct {
	basePath  string
	headPath  string
	outputFmt string
}

// categoryDelta is the movement of one score between two runs.
type categoryDelta struct {
	Category string  `json:"category"`
	Base     float64 `json:"base"`
	Head     float64 `json:"head"`
	Delta    float64 `json:"delta"`
}

type comparison struct {
	Categories []categoryDelta `json:"categories"`
	Total      categoryDelta   `json:"total"`
	BaseBand   breakdown.Band  `json:"base_band"`
	HeadBand   breakdown.Band  `json:"head_band"`
}

func compareResults(base, head *scoring.Result) comparison {
	c := comparison{BaseBand: base.Band, HeadBand: head.Band}
	for _, cat := range []scoring.Category{
		scoring.CategoryProfit,
		scoring.CategoryCashflow,
		scoring.CategoryEfficiency,
		scoring.CategoryRisk,
	} {
		c.Categories = append(c.Categories, delta(string(cat), base.Scores.Get(cat), head.Scores.Get(cat)))
	}
	c.Total = delta("total", base.Total, head.Total)
	return c
}

func delta(name string, base, head float64) categoryDelta {
	// Both sides are already at one decimal; round away float noise.
	return categoryDelta{Category: name, Base: base, Head: head, Delta: math.Round((head-base)*10) / 10}
}

func runCompare(g *globalOpts, opts compareOpts, stdin io.Reader, stdout, stderr io.Writer) error {
	if opts.basePath == "-" && opts.headPath == "-" {
		return errors.New("only one of --base and --head can read stdin")
	}
	cfg, err := g.loadConfig(stderr)
	if err != nil {
		return err
	}
	engine := newEngine(cfg)

	head, err := readFacts(opts.headPath, stdin)
	if err != nil {
		return err
	}
	basePath := opts.basePath
	if basePath == baseLast {
		basePath = latestSnapshotPath(cfg.Storage.Dir, head.Workspace)
	}
	base, err := readFacts(basePath, stdin)
	if err != nil {
		return err
	}

	paths := [2]string{basePath, opts.headPath}
	var results [2]*scoring.Result
	for i, snap := range [2]*facts.Snapshot{base, head} {
		if results[i], err = engine.Score(snap); err != nil {
			return fmt.Errorf("scoring %s: %w", paths[i], err)
		}
	}
	c := compareResults(results[0], results[1])

	switch opts.outputFmt {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case "", "text":
		for _, d := range c.Categories {
			fmt.Fprintf(stdout, "%-12s %5s → %5s  (%s)\n", d.Category, breakdown.Points(d.Base), breakdown.Points(d.Head), signed(d.Delta))
		}
		fmt.Fprintf(stdout, "%-12s %5s → %5s  (%s)  %s → %s\n", "total",
			breakdown.Points(c.Total.Base), breakdown.Points(c.Total.Head), signed(c.Total.Delta), c.BaseBand, c.HeadBand)
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text or json)", opts.outputFmt)
}

func signed(v float64) string {
	if v > 0 {
		return "+" + breakdown.Points(v)
	}
	return breakdown.Points(v)
}
