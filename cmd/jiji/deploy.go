package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/acidtib/jiji/internal/api"
	"github.com/acidtib/jiji/internal/deploy"
	"github.com/acidtib/jiji/internal/store"
)

type deployOptions struct {
	name          string
	project       string
	env           []string
	volumes       []string
	ports         []string
	hosts         []string
	cpu           int64
	memory        int64
	healthPort    int
	healthCommand []string
	proxyPorts    []int
	proxyPrefix   string
	proxyTLS      bool
	deployTimeout time.Duration
}

func newDeployCommand(engine **deploy.Engine) *cobra.Command {
	opts := deployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy IMAGE",
		Short: "Deploy a service to one or more hosts with zero downtime.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), *engine, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Service name (required)")
	cmd.Flags().StringVar(&opts.project, "project", "", "Project namespace prefixing the container name")
	cmd.Flags().StringSliceVarP(&opts.env, "env", "e", nil, "Environment variable KEY=VALUE, repeatable")
	cmd.Flags().StringSliceVarP(&opts.volumes, "volume", "v", nil,
		"Bind mount host:container[:ro], repeatable")
	cmd.Flags().StringSliceVarP(&opts.ports, "publish", "p", nil,
		"Published port host:container[/protocol], repeatable")
	cmd.Flags().StringSliceVar(&opts.hosts, "host", nil, "Target hostname, repeatable (required)")
	cmd.Flags().Int64Var(&opts.cpu, "cpu-nanos", 0, "CPU limit in nanocores (0 = unlimited)")
	cmd.Flags().Int64Var(&opts.memory, "memory-bytes", 0, "Memory limit in bytes (0 = unlimited)")
	cmd.Flags().IntVar(&opts.healthPort, "health-port", 0, "TCP port the reconciler probes for health")
	cmd.Flags().StringSliceVar(&opts.healthCommand, "health-command", nil,
		"Command exec'd in the container to check health, repeatable args; mutually exclusive with --health-port")
	cmd.Flags().IntSliceVar(&opts.proxyPorts, "proxy-port", nil,
		"Container port the reverse-proxy sidecar routes to, repeatable")
	cmd.Flags().StringVar(&opts.proxyPrefix, "proxy-path-prefix", "", "Path prefix the proxy routes on")
	cmd.Flags().BoolVar(&opts.proxyTLS, "proxy-tls", false, "Terminate TLS at the proxy")
	cmd.Flags().DurationVar(&opts.deployTimeout, "timeout", 2*time.Minute,
		"How long to wait for the new container to report healthy")

	return cmd
}

func runDeploy(ctx context.Context, engine *deploy.Engine, image string, opts deployOptions) error {
	if opts.name == "" {
		return fmt.Errorf("--name is required")
	}
	if len(opts.hosts) == 0 {
		return fmt.Errorf("at least one --host is required")
	}

	env := make(map[string]string, len(opts.env))
	for _, kv := range opts.env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --env %q, want KEY=VALUE", kv)
		}
		env[k] = v
	}

	spec := api.ServiceSpec{
		Name:    opts.name,
		Project: opts.project,
		Image:   image,
		Env:     env,
		Volumes: opts.volumes,
		Ports:   opts.ports,
		Hosts:   opts.hosts,
		Resources: api.ContainerResources{
			CPU:    opts.cpu,
			Memory: opts.memory,
		},
		Proxy: api.ProxySpec{
			AppPorts:   opts.proxyPorts,
			PathPrefix: opts.proxyPrefix,
			TLS:        opts.proxyTLS,
		},
		DeployTimeout: opts.deployTimeout,
	}
	if len(opts.healthCommand) > 0 {
		spec.HealthCheck = api.HealthCheck{Kind: api.HealthCheckCommand, Command: opts.healthCommand}
	} else if opts.healthPort > 0 {
		spec.HealthCheck = api.HealthCheck{Kind: api.HealthCheckPort, Port: opts.healthPort}
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid service spec: %w", err)
	}

	targets, err := resolveTargets(ctx, engine, spec.TargetHosts())
	if err != nil {
		return fmt.Errorf("resolve target hosts: %w", err)
	}

	results := engine.DeployAll(ctx, spec, targets)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "HOST\tSTATE\tERROR")
	failed := 0
	for _, r := range results {
		errStr := "-"
		if r.Err != nil {
			errStr = r.Err.Error()
			failed++
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Host, r.State, errStr)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deployments failed", failed, len(results))
	}
	return nil
}

// resolveTargets looks up each requested hostname's server row in the
// cluster's replicated store, read from the first target's own replica
// (any host's replica reflects the whole cluster, per §3). The deploy
// engine needs the real server id, not just the hostname, to scope the
// write it makes to the target's own server-owned rows.
func resolveTargets(ctx context.Context, engine *deploy.Engine, hosts []string) ([]store.Server, error) {
	all, err := engine.Servers(ctx, hosts[0])
	if err != nil {
		return nil, fmt.Errorf("list cluster servers: %w", err)
	}

	byHostname := make(map[string]store.Server, len(all))
	for _, srv := range all {
		byHostname[srv.Hostname] = srv
	}

	targets := make([]store.Server, 0, len(hosts))
	for _, host := range hosts {
		srv, ok := byHostname[host]
		if !ok {
			return nil, fmt.Errorf("host %q is not a member of the cluster", host)
		}
		targets = append(targets, srv)
	}
	return targets, nil
}
