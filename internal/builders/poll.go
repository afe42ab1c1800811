package builders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/WarpBuilds/docker-configure/internal/deadline"
	"github.com/WarpBuilds/docker-configure/pkg/client"
	"github.com/WarpBuilds/docker-configure/pkg/types"
)

const detailsPollInterval = 2 * time.Second

// ReadyBuilder is a builder whose endpoint and TLS material are complete.
type ReadyBuilder struct {
	ID         string
	Host       string
	CACert     string
	ClientCert string
	ClientKey  string
	Platforms  []string
}

// Poller waits for assigned builders to report ready.
type Poller struct {
	client *client.Client
	logger *slog.Logger

	pollInterval time.Duration
}

// NewPoller creates a Poller.
func NewPoller(c *client.Client, logger *slog.Logger) *Poller {
	return &Poller{
		client:       c,
		logger:       logger,
		pollInterval: detailsPollInterval,
	}
}

// Wait polls a single builder until it reports ready or failed, or the
// deadline runs out. Transport errors and unparseable bodies are transient:
// they only cost budget, never the builder. A failed status and a ready
// status without a host are both terminal.
func (p *Poller) Wait(ctx context.Context, inst types.BuilderInstance, dl *deadline.Deadline) (*ReadyBuilder, error) {
	for {
		if dl.Expired() {
			return nil, &TimeoutError{Phase: "readiness polling", BuilderID: inst.ID, Elapsed: dl.Elapsed()}
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("polling builder %s: %w", inst.ID, err)
		}

		res, err := p.client.GetDetails(ctx, inst.ID)
		if err != nil {
			p.logger.Warn("details request failed, will poll again", "builder", inst.ID, "error", err)
			dl.Sleep(ctx, p.pollInterval)
			continue
		}

		switch res.Status {
		case types.StatusReady:
			if res.Metadata.Host == "" {
				return nil, &MalformedResponseError{BuilderID: inst.ID, Reason: "missing host"}
			}
			return &ReadyBuilder{
				ID:         inst.ID,
				Host:       res.Metadata.Host,
				CACert:     res.Metadata.CACert,
				ClientCert: res.Metadata.ClientCert,
				ClientKey:  res.Metadata.ClientKey,
				Platforms:  NormalizePlatforms(res.Arch),
			}, nil
		case types.StatusFailed:
			return nil, &InitFailedError{BuilderID: inst.ID}
		default:
			// Anything else, including error statuses and empty bodies,
			// counts as still pending.
			p.logger.Debug("builder not ready yet", "builder", inst.ID, "status", res.Status, "http_status", res.StatusCode)
			dl.Sleep(ctx, p.pollInterval)
		}
	}
}

// WaitAll polls every builder concurrently and returns the ready builders
// in the same order as the input. The first terminal failure cancels the
// sibling pollers, so one failed machine does not leave the others
// burning the remaining budget; total wall-clock time is bounded by the
// slowest builder rather than the sum.
func (p *Poller) WaitAll(ctx context.Context, insts []types.BuilderInstance, dl *deadline.Deadline) ([]*ReadyBuilder, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make([]*ReadyBuilder, len(insts))
	errs := make([]error, len(insts))

	var wg sync.WaitGroup
	for i, inst := range insts {
		wg.Add(1)
		go func(i int, inst types.BuilderInstance) {
			defer wg.Done()
			ready[i], errs[i] = p.Wait(waitCtx, inst, dl)
			if errs[i] != nil {
				cancel()
			}
		}(i, inst)
	}
	wg.Wait()

	// Siblings stopped by the cancellation report context.Canceled; the
	// terminal error that triggered it is the one the caller needs.
	var cancelled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return nil, err
		}
		if cancelled == nil {
			cancelled = err
		}
	}
	if cancelled != nil {
		return nil, cancelled
	}
	return ready, nil
}
