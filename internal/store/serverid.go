package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/acidtib/jiji/internal/corrosion"
)

var invalidServerIDChars = regexp.MustCompile(`[^a-z0-9-]+`)
var repeatedDashes = regexp.MustCompile(`-{2,}`)

// DeriveServerID lowercases hostname and collapses every run of
// non-alphanumeric-dash characters into a single dash, per §6's "server
// id: hostname lowercased and non-alphanumeric-dash collapsed" rule.
func DeriveServerID(hostname string) string {
	id := strings.ToLower(hostname)
	id = invalidServerIDChars.ReplaceAllString(id, "-")
	id = repeatedDashes.ReplaceAllString(id, "-")
	return strings.Trim(id, "-")
}

// ResolveServerID returns base if no server row with that id already
// exists, or base suffixed with "-N" for the smallest N >= 2 that is free,
// per §6's "suffixed with -N on collision" rule. It takes the CLI reader
// directly rather than a *Store, since it runs during a host's first join
// before that host's own selfID-scoped Store can be constructed.
func ResolveServerID(ctx context.Context, reader *corrosion.Reader, base string) (string, error) {
	rows, err := reader.QueryContext(ctx, "SELECT id FROM server WHERE id = ? OR id LIKE ?", base, base+"-%")
	if err != nil {
		return "", fmt.Errorf("query existing server ids for %q: %w", base, err)
	}

	existing := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		var id string
		if err := row.Scan(map[string]any{"id": &id}); err != nil {
			return "", fmt.Errorf("scan server id: %w", err)
		}
		existing[id] = struct{}{}
	}

	if _, taken := existing[base]; !taken {
		return base, nil
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, taken := existing[candidate]; !taken {
			return candidate, nil
		}
	}
}
