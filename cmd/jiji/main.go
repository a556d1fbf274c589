// Command jiji is the operator's CLI: it drives deployments and reports
// cluster state from a workstation, reaching every fleet host over SSH.
// It never runs on a fleet host itself.
package main

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/acidtib/jiji/internal/deploy"
	"github.com/acidtib/jiji/internal/sshexec"
)

type globalOptions struct {
	sshUser             string
	sshPort             int
	sshKeyPath          string
	poolSize            int64
	corrosionConfigPath string
	corrosionAPIAddr    string
	serviceDomain       string
}

func main() {
	opts := globalOptions{}

	var engine *deploy.Engine
	var pool *sshexec.Pool

	cmd := &cobra.Command{
		Use:           "jiji",
		Short:         "Deploy and inspect services on a jiji fleet.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			apiAddr, err := netip.ParseAddrPort(opts.corrosionAPIAddr)
			if err != nil {
				return fmt.Errorf("parse --corrosion-api-addr %q: %w", opts.corrosionAPIAddr, err)
			}
			pool = sshexec.NewPool(opts.sshUser, opts.sshPort, opts.sshKeyPath, opts.poolSize)
			engine = deploy.NewEngine(pool, opts.corrosionConfigPath, apiAddr, opts.serviceDomain)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if pool == nil {
				return nil
			}
			return pool.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.sshUser, "ssh-user", "root", "SSH user for connecting to fleet hosts")
	cmd.PersistentFlags().IntVar(&opts.sshPort, "ssh-port", 22, "SSH port for connecting to fleet hosts")
	cmd.PersistentFlags().StringVar(&opts.sshKeyPath, "ssh-key", "~/.ssh/id_ed25519", "SSH private key path")
	cmd.PersistentFlags().Int64Var(&opts.poolSize, "ssh-pool-size", sshexec.DefaultPoolSize,
		"Maximum number of concurrent SSH commands across the fleet")
	cmd.PersistentFlags().StringVar(&opts.corrosionConfigPath, "corrosion-config", "/opt/jiji/corrosion/config.toml",
		"Path to the store's config.toml on every fleet host")
	cmd.PersistentFlags().StringVar(&opts.corrosionAPIAddr, "corrosion-api-addr", "127.0.0.1:8080",
		"Loopback address of the store's transaction HTTP API on every fleet host")
	cmd.PersistentFlags().StringVar(&opts.serviceDomain, "service-domain", "",
		"DNS domain of the project-service name used as the proxy target when the container IP is unknown and the health check is not command-based")

	cmd.AddCommand(
		newDeployCommand(&engine),
		newServerCommand(&engine),
		newServiceCommand(&engine),
	)

	cobra.CheckErr(cmd.ExecuteContext(context.Background()))
}
