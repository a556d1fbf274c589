package deploy

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/acidtib/jiji/internal/api"
	"github.com/acidtib/jiji/internal/store"
)

// DeployAll runs spec's deployment against every target concurrently,
// bounded by the engine's SSH pool semaphore (§5, default 30) rather than
// by the number of targets. One target's failure never cancels the
// others; every target gets its own Result.
func (e *Engine) DeployAll(ctx context.Context, spec api.ServiceSpec, targets []store.Server) []Result {
	results := make([]Result, len(targets))

	var g errgroup.Group
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			results[i] = e.Deploy(ctx, spec, target)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
