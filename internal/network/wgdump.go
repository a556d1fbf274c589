package network

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// DumpRow is one peer line of `wg show <iface> dump`, parsed by the
// authoritative column order: public-key, preshared-key, endpoint,
// allowed-ips, latest-handshake (unix seconds), transfer-rx, transfer-tx,
// persistent-keepalive. The first line of the command's output (the
// interface's own private-key/listen-port/fwmark row) has a different
// shape and is not represented by this type; callers should skip it.
type DumpRow struct {
	PublicKey                  string
	PresharedKey               string
	Endpoint                   string
	AllowedIPs                 []netip.Prefix
	LatestHandshake            time.Time
	RxBytes                    int64
	TxBytes                    int64
	PersistentKeepaliveSeconds int
}

// ParseWireGuardDump parses the full output of `wg show <iface> dump`,
// returning one DumpRow per peer line. The interface header line (fewer
// columns, no allowed-ips) is detected and skipped by column count rather
// than by position, since some wg versions omit it when run as `wg show
// <iface> dump` against a specific peer.
//
// Earlier shell-based reconcilers have been seen indexing columns
// positionally (e.g. treating $3 as endpoint and $5 as handshake) in a way
// that silently breaks if a field like preshared-key is "(none)" rather
// than empty - the column is always present, so counting from the left
// with this fixed order is the only correct approach.
func ParseWireGuardDump(output string) ([]DumpRow, error) {
	var rows []DumpRow
	for lineNum, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 8 {
			// Interface header line: private-key, public-key, listen-port, fwmark.
			continue
		}

		row, err := parseDumpRow(cols)
		if err != nil {
			return nil, fmt.Errorf("parse wg dump line %d: %w", lineNum+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseDumpRow(cols []string) (DumpRow, error) {
	row := DumpRow{
		PublicKey:    cols[0],
		PresharedKey: cols[1],
		Endpoint:     cols[2],
	}

	if cols[3] != "" && cols[3] != "(none)" {
		for _, cidr := range strings.Split(cols[3], ",") {
			prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
			if err != nil {
				return DumpRow{}, fmt.Errorf("parse allowed-ip %q: %w", cidr, err)
			}
			row.AllowedIPs = append(row.AllowedIPs, prefix)
		}
	}

	handshakeUnix, err := strconv.ParseInt(cols[4], 10, 64)
	if err != nil {
		return DumpRow{}, fmt.Errorf("parse latest-handshake %q as unix time: %w", cols[4], err)
	}
	if handshakeUnix > 0 {
		row.LatestHandshake = time.Unix(handshakeUnix, 0)
	}

	row.RxBytes, err = strconv.ParseInt(cols[5], 10, 64)
	if err != nil {
		return DumpRow{}, fmt.Errorf("parse transfer-rx %q: %w", cols[5], err)
	}
	row.TxBytes, err = strconv.ParseInt(cols[6], 10, 64)
	if err != nil {
		return DumpRow{}, fmt.Errorf("parse transfer-tx %q: %w", cols[6], err)
	}

	if cols[7] != "off" && cols[7] != "" {
		keepalive, kErr := strconv.Atoi(cols[7])
		if kErr != nil {
			return DumpRow{}, fmt.Errorf("parse persistent-keepalive %q: %w", cols[7], kErr)
		}
		row.PersistentKeepaliveSeconds = keepalive
	}

	return row, nil
}
