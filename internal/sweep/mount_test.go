package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/kestrel-data/sweepfeatures/internal/spatial"
)

func TestMountResolverStaticLookup(t *testing.T) {
	want := spatial.FromEulerAngles(0.1, -0.2, 0.3)
	r := NewMountResolver(StaticMountLookup(want))

	if err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := r.State(); got != MountResolved {
		t.Fatalf("state = %v, want resolved", got)
	}
	got, ok := r.Rotation()
	if !ok || got != want {
		t.Fatalf("Rotation() = %v, %v; want %v, true", got, ok, want)
	}
}

func TestMountResolverDisablesAfterBoundedRetries(t *testing.T) {
	calls := 0
	r := NewMountResolver(func(context.Context) (quat.Number, error) {
		calls++
		return quat.Number{}, errors.New("no transform yet")
	})
	r.SetRetryPolicy(2, 0)

	if err := r.Resolve(context.Background()); !errors.Is(err, ErrMountDisabled) {
		t.Fatalf("expected ErrMountDisabled, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 lookup attempts (initial + 2 retries), got %d", calls)
	}
	if got := r.State(); got != MountDisabled {
		t.Fatalf("state = %v, want disabled", got)
	}
	if _, ok := r.Rotation(); ok {
		t.Fatal("disabled resolver must not report a rotation")
	}

	// Disabled is terminal: a second Resolve fails without retrying.
	if err := r.Resolve(context.Background()); !errors.Is(err, ErrMountDisabled) {
		t.Fatalf("expected ErrMountDisabled on settled resolver, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("settled resolver called lookup again: %d calls", calls)
	}
}

func TestMountResolverEventualSuccess(t *testing.T) {
	calls := 0
	want := spatial.Identity()
	r := NewMountResolver(func(context.Context) (quat.Number, error) {
		calls++
		if calls < 3 {
			return quat.Number{}, errors.New("still booting")
		}
		return want, nil
	})
	r.SetRetryPolicy(5, 0)

	if err := r.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected success on attempt 3, got %d calls", calls)
	}
}

func TestMountResolverHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewMountResolver(func(context.Context) (quat.Number, error) {
		cancel()
		return quat.Number{}, errors.New("unreachable")
	})
	r.SetRetryPolicy(10, time.Hour)

	if err := r.Resolve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := r.State(); got == MountResolved {
		t.Fatalf("cancelled resolve must not end resolved, got %v", got)
	}
}
