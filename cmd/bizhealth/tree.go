package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bizhealth/bizhealth/pkg/scoring"
	"github.com/bizhealth/bizhealth/pkg/surface"
	"github.com/bizhealth/bizhealth/pkg/viewstate"
)

func newTreeCmd(g *globalOpts) *cobra.Command {
	var opts treeOpts

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the breakdown tree of one category",
		Long: `Scores a facts snapshot and prints the breakdown tree of one category.
Only the root and its first level are shown until a node is expanded with
--activate. --focus prints the calculation behind a single node and expands
the branch containing it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(g, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.factsPath, "facts", "", "Path to facts file, or - for JSON on stdin (required)")
	cmd.Flags().StringVar(&opts.category, "category", "profit", "Category: profit, cashflow, efficiency or risk")
	cmd.Flags().StringVar(&opts.activate, "activate", "", "Expand this first-level node")
	cmd.Flags().StringVar(&opts.focus, "focus", "", "Inspect the calculation of this node")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "Score as of this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("facts")

	return cmd
}

type treeOpts struct {
	factsPath string
	category  string
	activate  string
	focus     string
	asOf      string
	outputFmt string
}

func runTree(g *globalOpts, opts treeOpts, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := g.loadConfig(stderr)
	if err != nil {
		return err
	}
	snap, err := readFacts(opts.factsPath, stdin)
	if err != nil {
		return err
	}
	if err := applyAsOf(snap, opts.asOf); err != nil {
		return err
	}
	result, err := newEngine(cfg).Score(snap)
	if err != nil {
		return fmt.Errorf("scoring: %w", err)
	}

	tree := result.Tree(scoring.Category(strings.ToLower(opts.category)))
	if tree == nil {
		return fmt.Errorf("unknown category %q (want profit, cashflow, efficiency or risk)", opts.category)
	}

	state := viewstate.State{}
	if opts.activate != "" {
		next := viewstate.Reduce(tree, state, viewstate.Activate{ID: opts.activate})
		if next == state {
			fmt.Fprintf(stderr, "Warning: %q is not a first-level node of %s\n", opts.activate, tree.ID)
		}
		state = next
	}
	if opts.focus != "" {
		next := viewstate.Reduce(tree, state, viewstate.Focus{ID: opts.focus})
		if next.Focus != opts.focus {
			fmt.Fprintf(stderr, "Warning: node %q not found in %s\n", opts.focus, tree.ID)
		}
		state = next
	}

	switch opts.outputFmt {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			State   viewstate.State `json:"state"`
			Visible []string        `json:"visible"`
			Tree    any             `json:"tree"`
		}{state, viewstate.Visible(tree, state), tree})
	case "", "text":
		return surface.RenderTree(stdout, tree, state)
	}
	return fmt.Errorf("unknown output format %q (want text or json)", opts.outputFmt)
}
