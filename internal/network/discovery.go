package network

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"strings"
	"time"
)

// Port is the UDP port WireGuard listens on for mesh traffic, per §4.3.
const Port = 51820

// ipEchoTimeout bounds each external IP-echo request, per §4.4/§5.
const ipEchoTimeout = 5 * time.Second

// interfacePrefixes lists the name prefixes of interfaces that must never
// be treated as routable host interfaces: Docker/Podman bridges, other
// container bridges, WireGuard interfaces, and the fabric's own interface.
var interfacePrefixes = []string{"docker", "br-", "wg"}

var ipv4Regexp = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)

// ipEchoServices are queried in order; the first one to answer within its
// timeout wins. A plaintext IPv4 address is extracted from the body with
// ipv4Regexp so that services returning extra whitespace or headers still
// parse correctly.
var ipEchoServices = []string{
	"https://api.ipify.org",
	"https://ipinfo.io/ip",
	"http://ip-api.com/line/?fields=query",
}

// DiscoverPublicIP queries, in order, up to three external IP-echo
// services with a 5-second per-request timeout each, returning the first
// IPv4 address found in a response body.
func DiscoverPublicIP(ctx context.Context) (netip.Addr, error) {
	var lastErr error
	for _, service := range ipEchoServices {
		ip, err := queryIPEchoService(ctx, service)
		if err != nil {
			lastErr = err
			continue
		}
		return ip, nil
	}
	return netip.Addr{}, fmt.Errorf("query public IP from all %d services: %w", len(ipEchoServices), lastErr)
}

func queryIPEchoService(ctx context.Context, service string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, ipEchoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("read response body: %w", err)
	}

	match := ipv4Regexp.FindString(string(body))
	if match == "" {
		return netip.Addr{}, fmt.Errorf("no IPv4 address found in response from %s", service)
	}
	return netip.ParseAddr(match)
}

// isExcludedInterface reports whether a network interface must be skipped
// when enumerating local addresses, based on its name prefix: Docker/Podman
// bridges, other container bridge conventions, WireGuard interfaces, and
// the fabric's own interface.
func isExcludedInterface(name, fabricInterface string) bool {
	if name == fabricInterface {
		return true
	}
	for _, prefix := range interfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// isPrivate reports whether ip lies in an RFC 1918 private IPv4 range.
func isPrivate(ip netip.Addr) bool {
	return ip.Is4() && ip.IsPrivate()
}

// ListPrivateIPs enumerates IPv4 addresses on all local interfaces,
// excluding loopback, WireGuard, container-bridge interfaces (see
// isExcludedInterface), and any interface that is not administratively UP.
// Only RFC 1918 addresses are returned.
func ListPrivateIPs(fabricInterface string) ([]netip.Addr, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list network interfaces: %w", err)
	}

	var private []netip.Addr
	for _, iface := range interfaces {
		if isExcludedInterface(iface.Name, fabricInterface) {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, aErr := iface.Addrs()
		if aErr != nil {
			return nil, fmt.Errorf("list addresses for interface %q: %w", iface.Name, aErr)
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip, pErr := netip.ParseAddr(ipNet.IP.String())
			if pErr != nil {
				continue
			}
			if isPrivate(ip) {
				private = append(private, ip)
			}
		}
	}
	return private, nil
}

// DiscoverEndpoints returns the ordered list of WireGuard endpoint
// candidates for this host as "host:port" strings: the discovered public
// IP first (if any), followed by discovered private IPs, each suffixed
// with the WireGuard port. If both discovery paths fail, it falls back to
// a single endpoint built from fallbackHost, which need not be a literal
// IP — server.endpoints entries are operator-facing host:port strings, not
// necessarily resolved addresses.
func DiscoverEndpoints(ctx context.Context, fabricInterface, fallbackHost string) ([]string, error) {
	var endpoints []string

	if publicIP, err := DiscoverPublicIP(ctx); err == nil {
		endpoints = append(endpoints, FormatEndpoint(publicIP.String()))
	}

	privateIPs, privErr := ListPrivateIPs(fabricInterface)
	for _, ip := range privateIPs {
		endpoints = append(endpoints, FormatEndpoint(ip.String()))
	}

	if len(endpoints) == 0 {
		if privErr != nil && fallbackHost == "" {
			return nil, fmt.Errorf("discover public IP and enumerate private IPs: %w", privErr)
		}
		if fallbackHost == "" {
			return nil, fmt.Errorf("no endpoints discovered and no fallback hostname configured")
		}
		return []string{FormatEndpoint(fallbackHost)}, nil
	}

	return endpoints, nil
}

// FormatEndpoint appends the WireGuard port to a bare host or IP.
func FormatEndpoint(host string) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", Port))
}

// ParseEndpoint resolves a "host:port" endpoint string to a netip.AddrPort
// when host is a literal IP address. Hostname endpoints return an error;
// callers needing to dial a hostname endpoint should use net.Dial instead.
func ParseEndpoint(endpoint string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(endpoint)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("endpoint %q is not a literal address:port: %w", endpoint, err)
	}
	return ap, nil
}
