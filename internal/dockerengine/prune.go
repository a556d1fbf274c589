package dockerengine

import (
	"context"
	"fmt"
)

// DefaultImageRetentionCount is the number of most-recent images per
// service kept by PruneImages when the service config doesn't override it
// (§4.6 step 7, §8 supplemented feature: the retention count is
// configurable rather than a hardcoded 3).
const DefaultImageRetentionCount = 3

// PruneImages removes all but the keep most-recently-created images
// matching ref's repository, then removes dangling images, per §4.6
// step 7. keep <= 0 falls back to DefaultImageRetentionCount.
func (c *Client) PruneImages(ctx context.Context, ref string, keep int) error {
	if keep <= 0 {
		keep = DefaultImageRetentionCount
	}

	refs, err := c.ImagesForRepository(ctx, ref)
	if err != nil {
		return err
	}
	if len(refs) > keep {
		for _, old := range refs[keep:] {
			if err := c.RemoveImage(ctx, old.ID); err != nil {
				return err
			}
		}
	}

	if _, err := c.PruneDangling(ctx); err != nil {
		return fmt.Errorf("prune dangling images for %q: %w", ref, err)
	}
	return nil
}
