// Package capability detects optional tracker subsystems (agile boards,
// service desk, ...) and remembers the answer for the life of a client.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	trackerhttp "github.com/randalmurphal/trackerkit/http"
)

// Agile is the board/sprint subsystem.
const Agile = "agile"

// ErrUnknownCapability is returned for ids that were never registered.
var ErrUnknownCapability = errors.New("unknown capability")

// ErrUnsupportedDeployment may be returned by a Check to declare the
// capability unavailable on this deployment without a network probe.
var ErrUnsupportedDeployment = errors.New("capability not supported on this deployment")

// Reason explains why a capability is unavailable.
type Reason string

// Unavailability reasons.
const (
	ReasonNone                  Reason = ""
	ReasonNotDeployed           Reason = "not-deployed"
	ReasonPlanExcluded          Reason = "plan-excluded"
	ReasonUnauthorized          Reason = "unauthorized"
	ReasonUnsupportedDeployment Reason = "unsupported-deployment"
)

// Status is the memoized outcome of a probe.
type Status struct {
	ID        string
	Available bool
	Reason    Reason
}

// Check performs one probe. A nil error means available.
type Check func(ctx context.Context) error

// Prober runs each registered check at most once per lifetime and shares
// in-flight probes between concurrent callers. It is safe for concurrent use.
type Prober struct {
	logger *slog.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	checks  map[string]Check
	results map[string]Status
}

// NewProber creates an empty prober. A nil logger uses slog.Default().
func NewProber(logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		logger:  logger,
		checks:  make(map[string]Check),
		results: make(map[string]Status),
	}
}

// Register installs or replaces the check for id and forgets any
// memoized result.
func (p *Prober) Register(id string, check Check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[id] = check
	delete(p.results, id)
}

// Available reports whether id is usable. Only definitive answers are
// memoized, so a process probes each capability at most once per definitive
// outcome; transient failures count as unavailable for this call only and
// the next call probes again. Concurrent first calls share one probe that
// runs under the first caller's ctx, so cancelling it fails every waiter.
func (p *Prober) Available(ctx context.Context, id string) bool {
	st, err := p.Status(ctx, id)
	return err == nil && st.Available
}

// Status returns the memoized outcome for id, probing on first use.
// Network failures, server errors and cancellation are returned as errors
// and are not remembered. Callers that arrive while a probe is in flight
// wait for it and receive its result, including an error caused by the
// first caller's ctx.
func (p *Prober) Status(ctx context.Context, id string) (Status, error) {
	p.mu.RLock()
	st, ok := p.results[id]
	check := p.checks[id]
	p.mu.RUnlock()
	if ok {
		return st, nil
	}
	if check == nil {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownCapability, id)
	}

	v, err, _ := p.group.Do(id, func() (any, error) {
		p.mu.RLock()
		st, ok := p.results[id]
		p.mu.RUnlock()
		if ok {
			return st, nil
		}

		st, err := classify(id, check(ctx))
		if err != nil {
			p.logger.Debug("capability probe failed", "capability", id, "error", err)
			return Status{}, err
		}

		p.mu.Lock()
		p.results[id] = st
		p.mu.Unlock()
		p.logger.Debug("capability probed", "capability", id, "available", st.Available, "reason", string(st.Reason))
		return st, nil
	})
	if err != nil {
		return Status{}, err
	}
	return v.(Status), nil
}

// Snapshot returns the memoized outcomes.
func (p *Prober) Snapshot() map[string]Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Status, len(p.results))
	for id, st := range p.results {
		out[id] = st
	}
	return out
}

// Reset forgets all memoized outcomes. Registered checks are kept.
func (p *Prober) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.results)
}

// classify maps a probe result to a memoizable status, or returns the error
// when the failure is transient.
func classify(id string, err error) (Status, error) {
	st := Status{ID: id}
	if err == nil {
		st.Available = true
		return st, nil
	}
	if errors.Is(err, ErrUnsupportedDeployment) {
		st.Reason = ReasonUnsupportedDeployment
		return st, nil
	}
	switch trackerhttp.StatusCode(err) {
	case http.StatusNotFound:
		st.Reason = ReasonNotDeployed
	case http.StatusForbidden:
		st.Reason = ReasonPlanExcluded
	case http.StatusUnauthorized:
		st.Reason = ReasonUnauthorized
	default:
		return Status{}, err
	}
	return st, nil
}

// GetCheck probes by issuing an uncached GET against path.
func GetCheck(client *trackerhttp.Client, path string) Check {
	return func(ctx context.Context) error {
		_, err := client.Execute(ctx, http.MethodGet, path, nil, trackerhttp.SkipCache())
		return err
	}
}
