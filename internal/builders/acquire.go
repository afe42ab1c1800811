// Package builders implements the builder lifecycle against the
// provisioning API: acquiring builders for a profile, waiting for them to
// become reachable, and releasing them when the job is done.
package builders

import (
	"context"
	"log/slog"
	"time"

	"github.com/WarpBuilds/docker-configure/internal/deadline"
	"github.com/WarpBuilds/docker-configure/pkg/client"
	"github.com/WarpBuilds/docker-configure/pkg/types"
)

const assignRetryInterval = 10 * time.Second

// Acquirer requests builder assignments, retrying capacity conflicts at a
// fixed interval within the shared deadline.
type Acquirer struct {
	client *client.Client
	logger *slog.Logger

	retryInterval time.Duration
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(c *client.Client, logger *slog.Logger) *Acquirer {
	return &Acquirer{
		client:        c,
		logger:        logger,
		retryInterval: assignRetryInterval,
	}
}

// Acquire tries each profile in order until one yields builders. Retryable
// responses (409, 429, 5xx) and transport errors are retried against the
// same profile after a fixed interval; the provisioning service resolves
// capacity conflicts within a bounded window, so backing off exponentially
// would only stretch the tail. A fatal response aborts the whole operation
// without trying the remaining profiles.
//
// One deadline spans all profiles. When it runs out, the error names every
// profile attempted and matches errors.Is(err, ErrTimeout).
func (a *Acquirer) Acquire(ctx context.Context, profiles []string, dl *deadline.Deadline) ([]types.BuilderInstance, error) {
	for _, profile := range profiles {
		for !dl.Expired() {
			res, err := a.client.Assign(ctx, profile)
			if err != nil {
				a.logger.Warn("assign request failed, retrying", "profile", profile, "error", err)
				dl.Sleep(ctx, a.retryInterval)
				continue
			}

			switch client.ClassifyAssign(res) {
			case client.ClassSuccess:
				a.logger.Info("builders assigned", "profile", profile, "count", len(res.Instances))
				return res.Instances, nil
			case client.ClassRetryable:
				a.logger.Info("assign not yet possible, retrying",
					"profile", profile, "status", res.StatusCode, "remaining", dl.Remaining().Round(time.Second))
				dl.Sleep(ctx, a.retryInterval)
			default:
				return nil, &FatalStatusError{Profile: profile, StatusCode: res.StatusCode, Body: res.RawBody}
			}
		}
		a.logger.Warn("deadline exhausted for profile", "profile", profile, "elapsed", dl.Elapsed().Round(time.Second))
	}
	return nil, &ProfilesExhaustedError{Profiles: profiles, Elapsed: dl.Elapsed()}
}
