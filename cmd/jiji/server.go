package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/acidtib/jiji/internal/deploy"
)

func newServerCommand(engine **deploy.Engine) *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "Inspect cluster hosts.",
	}

	var from string
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List hosts in the cluster.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerLs(cmd.Context(), *engine, from)
		},
	}
	ls.Flags().StringVar(&from, "from", "", "Hostname whose store replica to read (required)")
	root.AddCommand(ls)

	return root
}

func runServerLs(ctx context.Context, engine *deploy.Engine, from string) error {
	if from == "" {
		return fmt.Errorf("--from is required: specify a reachable host to read the cluster's server list from")
	}

	servers, err := engine.Servers(ctx, from)
	if err != nil {
		return fmt.Errorf("list servers: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tHOSTNAME\tSUBNET\tWIREGUARD IP\tMANAGEMENT IP\tENDPOINTS\tLAST SEEN")
	for _, s := range servers {
		lastSeen := "-"
		if s.LastSeen > 0 {
			lastSeen = time.Since(time.UnixMilli(s.LastSeen)).Round(time.Second).String() + " ago"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Hostname, s.Subnet, s.WireGuardIP, s.ManagementIP, strings.Join(s.Endpoints, ","), lastSeen)
	}
	return tw.Flush()
}
