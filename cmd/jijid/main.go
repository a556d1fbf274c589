// Command jijid is the per-host reconciler daemon (§4.5): it joins the
// replicated store, derives this host's network identity, brings up the
// local WireGuard interface and firewall rules, and then runs the
// reconciliation loop until terminated.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acidtib/jiji/internal/corrosion"
	"github.com/acidtib/jiji/internal/dockerengine"
	"github.com/acidtib/jiji/internal/firewall"
	"github.com/acidtib/jiji/internal/hostconfig"
	jijilog "github.com/acidtib/jiji/internal/log"
	"github.com/acidtib/jiji/internal/network"
	"github.com/acidtib/jiji/internal/reconcile"
	"github.com/acidtib/jiji/internal/store"
	"github.com/acidtib/jiji/internal/subnet"
	"github.com/acidtib/jiji/internal/wgkey"
)

type options struct {
	dataDir             string
	hostname            string
	clusterCIDR         string
	corrosionConfigPath string
	corrosionAPIAddr    string
	fabricInterface     string
	openPorts           []string
}

func main() {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "jijid",
		Short:         "Per-host reconciler daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.dataDir, "data-dir", "d", "/opt/jiji", "Directory for persisted host state")
	cmd.Flags().StringVar(&opts.hostname, "hostname", "", "This host's hostname (default os.Hostname())")
	cmd.Flags().StringVar(&opts.clusterCIDR, "cluster-cidr", "",
		"Cluster-wide subnet allocation CIDR, required the first time this host joins")
	cmd.Flags().StringVar(&opts.corrosionConfigPath, "corrosion-config", "",
		"Path to the store's config.toml (default <data-dir>/corrosion/config.toml)")
	cmd.Flags().StringVar(&opts.corrosionAPIAddr, "corrosion-api-addr", "127.0.0.1:8080",
		"Loopback address of the store's transaction HTTP API")
	cmd.Flags().StringVar(&opts.fabricInterface, "fabric-interface", network.InterfaceName,
		"Name of the local WireGuard interface")
	cmd.Flags().StringSliceVar(&opts.openPorts, "open-port", nil,
		"port/protocol pairs to accept inbound on this host (e.g. 80/tcp), applied once at startup")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	cobra.CheckErr(cmd.ExecuteContext(ctx))
}

func run(ctx context.Context, opts options) error {
	jijilog.InitFromEnv()

	if opts.hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("determine hostname: %w", err)
		}
		opts.hostname = h
	}
	if opts.corrosionConfigPath == "" {
		opts.corrosionConfigPath = filepath.Join(opts.dataDir, "corrosion", "config.toml")
	}
	apiAddr, err := netip.ParseAddrPort(opts.corrosionAPIAddr)
	if err != nil {
		return fmt.Errorf("parse corrosion API address %q: %w", opts.corrosionAPIAddr, err)
	}

	client, err := corrosion.NewClient(apiAddr)
	if err != nil {
		return fmt.Errorf("create store client: %w", err)
	}
	reader := corrosion.NewReader(opts.corrosionConfigPath)

	if err = store.Migrate(ctx, client); err != nil {
		return fmt.Errorf("migrate store schema: %w", err)
	}

	hostConfigPath := filepath.Join(opts.dataDir, "host.toml")
	var hc *hostconfig.HostConfig
	if hostconfig.Exists(hostConfigPath) {
		hc, err = hostconfig.Load(hostConfigPath)
		if err != nil {
			return fmt.Errorf("load host config: %w", err)
		}
	} else {
		hc, err = joinCluster(ctx, reader, opts)
		if err != nil {
			return fmt.Errorf("join cluster: %w", err)
		}
		if err = hc.Save(hostConfigPath); err != nil {
			return fmt.Errorf("save host config: %w", err)
		}
		slog.Info("Joined cluster.", "server_id", hc.SelfID, "subnet_index", hc.SubnetIndex)
	}

	st := store.New(client, reader, hc.SelfID)

	cidr, err := netip.ParsePrefix(hc.ClusterCIDR)
	if err != nil {
		return fmt.Errorf("parse cluster CIDR %q: %w", hc.ClusterCIDR, err)
	}
	selfSubnet, err := subnet.Allocate(cidr, hc.SubnetIndex)
	if err != nil {
		return fmt.Errorf("allocate own subnet: %w", err)
	}
	selfContainerSubnet, err := subnet.ContainerSubnet(cidr, hc.SubnetIndex)
	if err != nil {
		return fmt.Errorf("allocate own container subnet: %w", err)
	}
	publicKey := hc.WireGuardPrivateKey.Public()
	managementIP := network.ManagementIP(publicKey)

	if err = registerSelf(ctx, st, hc, selfSubnet, managementIP, publicKey); err != nil {
		return fmt.Errorf("register self: %w", err)
	}

	device, err := network.NewDevice()
	if err != nil {
		return fmt.Errorf("create WireGuard device: %w", err)
	}

	if err = bootstrapFirewall(selfSubnet, selfContainerSubnet, cidr, opts); err != nil {
		slog.Warn("Firewall bootstrap failed; continuing without it.", "err", err)
	}

	engine, err := dockerengine.NewLocalClient()
	if err != nil {
		return fmt.Errorf("create local engine client: %w", err)
	}

	daemon := reconcile.New(st, device, engine, reconcile.Config{
		SelfID:              hc.SelfID,
		Hostname:            hc.Hostname,
		Subnet:              selfSubnet.String(),
		ContainerSubnet:     selfContainerSubnet.String(),
		WireGuardPublicKey:  publicKey.String(),
		WireGuardPrivateKey: hc.WireGuardPrivateKey,
		ManagementIP:        network.FormatManagementIP(managementIP),
		FabricInterface:     opts.fabricInterface,
	})

	deviceErrs := make(chan error, 1)
	go func() { deviceErrs <- device.Run(ctx) }()

	if err = daemon.Run(ctx); err != nil {
		return fmt.Errorf("run reconciler: %w", err)
	}
	<-deviceErrs
	return nil
}

// joinCluster derives this host's identity and subnet assignment the
// first time it starts: a unique server id, the next free subnet index
// (the count of servers already registered, per §4.1's join-order
// assignment), and a fresh WireGuard key pair.
func joinCluster(ctx context.Context, reader *corrosion.Reader, opts options) (*hostconfig.HostConfig, error) {
	base := store.DeriveServerID(opts.hostname)
	selfID, err := store.ResolveServerID(ctx, reader, base)
	if err != nil {
		return nil, fmt.Errorf("resolve server id: %w", err)
	}

	if opts.clusterCIDR == "" {
		return nil, fmt.Errorf("--cluster-cidr is required on first join")
	}
	cidr, err := netip.ParsePrefix(opts.clusterCIDR)
	if err != nil {
		return nil, fmt.Errorf("parse --cluster-cidr %q: %w", opts.clusterCIDR, err)
	}
	if err = subnet.ValidateClusterCIDR(cidr); err != nil {
		return nil, err
	}

	existing, err := reader.QueryContext(ctx, "SELECT id FROM server")
	if err != nil {
		return nil, fmt.Errorf("count existing servers: %w", err)
	}
	index := uint32(len(existing))

	privateKey, err := wgkey.New()
	if err != nil {
		return nil, fmt.Errorf("generate WireGuard key: %w", err)
	}

	return &hostconfig.HostConfig{
		SelfID:              selfID,
		Hostname:            opts.hostname,
		ClusterCIDR:         opts.clusterCIDR,
		SubnetIndex:         index,
		WireGuardPrivateKey: privateKey,
		CorrosionConfigPath: opts.corrosionConfigPath,
		CorrosionAPIAddr:    opts.corrosionAPIAddr,
		FabricInterface:     opts.fabricInterface,
	}, nil
}

// registerSelf bootstraps the cluster_cidr metadata row (first host only,
// a no-op afterwards per SetMetadata's INSERT OR IGNORE) and writes this
// host's own server row, discovering its advertised endpoints fresh on
// every startup.
func registerSelf(
	ctx context.Context, st *store.Store, hc *hostconfig.HostConfig,
	selfSubnet netip.Prefix, managementIP netip.Addr, publicKey wgkey.Key,
) error {
	if err := st.SetMetadata(ctx, store.MetadataClusterCIDR, hc.ClusterCIDR); err != nil {
		return fmt.Errorf("bootstrap cluster CIDR metadata: %w", err)
	}

	endpoints, err := network.DiscoverEndpoints(ctx, hc.FabricInterface, hc.Hostname)
	if err != nil {
		return fmt.Errorf("discover endpoints: %w", err)
	}

	return st.UpsertServer(ctx, store.Server{
		ID:                 hc.SelfID,
		Hostname:           hc.Hostname,
		Subnet:             selfSubnet.String(),
		WireGuardIP:        network.ServerAddress(selfSubnet).String(),
		WireGuardPublicKey: publicKey.String(),
		ManagementIP:       network.FormatManagementIP(managementIP),
		Endpoints:          endpoints,
		LastSeen:           0,
	})
}

// bootstrapFirewall installs the one-time routing and iptables rules
// required for cross-host container traffic (§4.3), plus any statically
// declared --open-port rules. Run once at startup; every call is
// idempotent so a restart never duplicates rules.
func bootstrapFirewall(
	selfSubnet, selfContainerSubnet netip.Prefix, clusterCIDR netip.Prefix, opts options,
) error {
	if err := firewall.EnableIPForwarding(); err != nil {
		return fmt.Errorf("enable IP forwarding: %w", err)
	}
	if err := firewall.CreateInputChain(); err != nil {
		return fmt.Errorf("create input chain: %w", err)
	}
	if err := firewall.AllowGossipFromManagementNetwork(opts.fabricInterface); err != nil {
		return fmt.Errorf("allow gossip traffic: %w", err)
	}
	if err := firewall.AllowWireGuardTraffic(network.Port); err != nil {
		return fmt.Errorf("allow WireGuard traffic: %w", err)
	}
	if err := firewall.AllowEstablishedRelated(); err != nil {
		return fmt.Errorf("allow established/related forwarding: %w", err)
	}
	if err := firewall.InstallNATRules(selfContainerSubnet, selfSubnet, clusterCIDR, opts.fabricInterface); err != nil {
		return fmt.Errorf("install NAT rules: %w", err)
	}

	for _, spec := range opts.openPorts {
		port, proto, err := parsePortProto(spec)
		if err != nil {
			return fmt.Errorf("parse --open-port %q: %w", spec, err)
		}
		if err = firewall.OpenPort(firewall.InputChain, port, proto); err != nil {
			return fmt.Errorf("open port %s: %w", spec, err)
		}
	}

	return nil
}

func parsePortProto(spec string) (int, string, error) {
	proto := "tcp"
	portStr := spec
	if idx := lastSlash(spec); idx != -1 {
		portStr, proto = spec[:idx], spec[idx+1:]
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return 0, "", fmt.Errorf("invalid port %q", portStr)
	}
	return port, proto, nil
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
