package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/acidtib/jiji/internal/deploy"
)

func newServiceCommand(engine **deploy.Engine) *cobra.Command {
	root := &cobra.Command{
		Use:   "service",
		Short: "Inspect deployed services.",
	}

	var from string
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List known services.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServiceLs(cmd.Context(), *engine, from)
		},
	}
	ls.Flags().StringVar(&from, "from", "", "Hostname whose store replica to read (required)")
	root.AddCommand(ls)

	return root
}

func runServiceLs(ctx context.Context, engine *deploy.Engine, from string) error {
	if from == "" {
		return fmt.Errorf("--from is required: specify a reachable host to read the cluster's service list from")
	}

	services, err := engine.Services(ctx, from)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tPROJECT")
	for _, s := range services {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Project)
	}
	return tw.Flush()
}
