package sweep

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"
)

// MountState tags the lifecycle of the one-time IMU-to-lidar transform
// resolution. Disabled is terminal: once retries are exhausted, motion
// compensation stays off for the rest of the run.
type MountState int

const (
	MountUnresolved MountState = iota
	MountResolving
	MountResolved
	MountDisabled
)

func (s MountState) String() string {
	switch s {
	case MountUnresolved:
		return "unresolved"
	case MountResolving:
		return "resolving"
	case MountResolved:
		return "resolved"
	case MountDisabled:
		return "disabled"
	}
	return "unknown"
}

// Defaults matching the bounded-retry policy of the transform lookup.
const (
	DefaultMountRetries = 10
	DefaultMountBackoff = time.Second
)

// ErrMountDisabled is returned by Resolve once retries are exhausted.
var ErrMountDisabled = errors.New("imu-to-lidar transform unresolved, compensation disabled for this run")

// MountLookup fetches the fixed IMU-to-lidar rotation from wherever it
// lives (static config, calibration service). It is called under the
// resolver's bounded retry policy.
type MountLookup func(ctx context.Context) (quat.Number, error)

// MountResolver resolves the fixed IMU-to-lidar rotation once at
// startup, with bounded retries and a fixed backoff. On exhaustion it
// permanently disables compensation rather than blocking the pipeline.
type MountResolver struct {
	mu       sync.RWMutex
	state    MountState
	retries  int
	rotation quat.Number

	lookup     MountLookup
	maxRetries int
	backoff    time.Duration
}

// NewMountResolver creates a resolver around lookup with the default
// retry policy.
func NewMountResolver(lookup MountLookup) *MountResolver {
	return &MountResolver{
		lookup:     lookup,
		maxRetries: DefaultMountRetries,
		backoff:    DefaultMountBackoff,
	}
}

// SetRetryPolicy overrides the retry count and backoff. Only meaningful
// before Resolve is called.
func (r *MountResolver) SetRetryPolicy(maxRetries int, backoff time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxRetries = maxRetries
	r.backoff = backoff
}

// State returns the resolver's current state.
func (r *MountResolver) State() MountState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Rotation returns the resolved rotation. ok is false until resolution
// succeeds and forever after the resolver is disabled.
func (r *MountResolver) Rotation() (quat.Number, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != MountResolved {
		return quat.Number{Real: 1}, false
	}
	return r.rotation, true
}

// Resolve runs the bounded lookup loop. It returns nil once resolved,
// ErrMountDisabled after exhausting retries, or the context error if
// cancelled first. Calling Resolve on a Resolved or Disabled resolver
// is a no-op returning the settled outcome.
func (r *MountResolver) Resolve(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case MountResolved:
		r.mu.Unlock()
		return nil
	case MountDisabled:
		r.mu.Unlock()
		return ErrMountDisabled
	}
	r.state = MountResolving
	maxRetries, backoff := r.maxRetries, r.backoff
	r.mu.Unlock()

	for attempt := 1; ; attempt++ {
		q, err := r.lookup(ctx)
		if err == nil {
			r.mu.Lock()
			r.state = MountResolved
			r.rotation = q
			r.retries = attempt - 1
			r.mu.Unlock()
			log.Printf("resolved IMU-to-lidar mount rotation after %d attempt(s)", attempt)
			return nil
		}

		r.mu.Lock()
		r.retries = attempt
		r.mu.Unlock()

		if attempt > maxRetries {
			r.mu.Lock()
			r.state = MountDisabled
			r.mu.Unlock()
			log.Printf("\033[93mgiving up on IMU-to-lidar transform after %d attempts: %v — motion compensation disabled for this run\033[0m", attempt, err)
			return ErrMountDisabled
		}

		log.Printf("IMU-to-lidar transform lookup failed (attempt %d/%d): %v — retrying in %v", attempt, maxRetries, err, backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// StaticMountLookup returns a MountLookup that always yields the given
// rotation, for deployments with a calibrated static mount.
func StaticMountLookup(q quat.Number) MountLookup {
	return func(context.Context) (quat.Number, error) { return q, nil }
}
