package builders

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/WarpBuilds/docker-configure/pkg/client"
)

const teardownRetryDelay = 5 * time.Second

// Releaser tears down acquired builders. It runs during cleanup, so it
// reports problems through the log and never through its return path: a
// broken teardown must not mask the primary result.
type Releaser struct {
	client *client.Client
	logger *slog.Logger

	retryDelay time.Duration
}

// NewReleaser creates a Releaser.
func NewReleaser(c *client.Client, logger *slog.Logger) *Releaser {
	return &Releaser{
		client:     c,
		logger:     logger,
		retryDelay: teardownRetryDelay,
	}
}

// ReleaseAll attempts a teardown for every builder, independently of the
// others' outcomes. It returns the number of builders that could not be
// released, for logging only.
func (r *Releaser) ReleaseAll(ctx context.Context, builderIDs []string) int {
	failed := 0
	for _, id := range builderIDs {
		if !r.release(ctx, id) {
			failed++
		}
	}
	return failed
}

// release tears down one builder. Server errors and transport failures get
// exactly one retry after a short delay. A 404 or 410 means the builder is
// already gone, which is the state we wanted.
func (r *Releaser) release(ctx context.Context, builderID string) bool {
	ok, retry := r.attempt(ctx, builderID)
	if ok || !retry {
		return ok
	}

	r.logger.Warn("teardown failed, retrying once", "builder", builderID)
	timer := time.NewTimer(r.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	ok, _ = r.attempt(ctx, builderID)
	return ok
}

func (r *Releaser) attempt(ctx context.Context, builderID string) (ok, retry bool) {
	res, err := r.client.Teardown(ctx, builderID)
	if err != nil {
		r.logger.Warn("teardown request failed", "builder", builderID, "error", err)
		return false, true
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		r.logger.Info("builder released", "builder", builderID)
		return true, false
	case res.StatusCode == http.StatusNotFound, res.StatusCode == http.StatusGone:
		r.logger.Info("builder already released", "builder", builderID)
		return true, false
	case res.StatusCode >= 500:
		r.logger.Warn("teardown returned server error", "builder", builderID, "status", res.StatusCode)
		return false, true
	default:
		r.logger.Warn("teardown rejected", "builder", builderID, "status", res.StatusCode, "body", res.RawBody)
		return false, false
	}
}
