package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bizhealth/bizhealth/pkg/clienthealth"
	"github.com/bizhealth/bizhealth/pkg/surface"
)

func newClientsCmd(g *globalOpts) *cobra.Command {
	var opts clientsOpts

	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Score the client list of a facts snapshot",
		Long:  `Scores every client in the snapshot from 0 to 100 and lists them with their main risk and opportunity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClients(g, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.factsPath, "facts", "", "Path to facts file, or - for JSON on stdin (required)")
	cmd.Flags().StringVar(&opts.sortBy, "sort", "score", "Sort order: score, revenue or risk")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("facts")

	return cmd
}

type clientsOpts struct {
	factsPath string
	sortBy    string
	outputFmt string
}

func runClients(g *globalOpts, opts clientsOpts, stdin io.Reader, stdout, stderr io.Writer) error {
	by, ok := clienthealth.ParseSortBy(opts.sortBy)
	if !ok {
		return fmt.Errorf("invalid --sort %q (want score, revenue or risk)", opts.sortBy)
	}
	cfg, err := g.loadConfig(stderr)
	if err != nil {
		return err
	}
	snap, err := readFacts(opts.factsPath, stdin)
	if err != nil {
		return err
	}
	if len(snap.Clients) == 0 {
		fmt.Fprintln(stderr, "No clients in snapshot.")
	}

	scores := clienthealth.New(cfg.Rules(), snapshotClock(snap)).ScoreAll(snap.Clients, by)

	switch opts.outputFmt {
	case "json":
		return surface.RenderClientsJSON(stdout, scores)
	case "", "text":
		return surface.RenderClients(stdout, scores)
	}
	return fmt.Errorf("unknown output format %q (want text or json)", opts.outputFmt)
}
