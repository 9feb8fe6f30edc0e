package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewPageDefaultsTimeouts(t *testing.T) {
	p := newPage(context.Background(), func() {}, 0, 0)
	if p.navTimeout != DefaultNavigationTimeout || p.opTimeout != DefaultOperationTimeout {
		t.Fatalf("unexpected defaults nav=%s op=%s", p.navTimeout, p.opTimeout)
	}

	p = newPage(context.Background(), func() {}, 90*time.Second, 2*time.Second)
	if p.navTimeout != 90*time.Second || p.opTimeout != 2*time.Second {
		t.Fatalf("configured timeouts not kept: nav=%s op=%s", p.navTimeout, p.opTimeout)
	}
}

func TestOpCtxAppliesTimeout(t *testing.T) {
	p := newPage(context.Background(), func() {}, time.Minute, 20*time.Millisecond)

	runCtx, cancel := p.opCtx(context.Background(), p.opTimeout)
	defer cancel()
	deadline, ok := runCtx.Deadline()
	if !ok {
		t.Fatalf("expected operation context to carry a deadline")
	}
	if until := time.Until(deadline); until > p.opTimeout {
		t.Fatalf("deadline too far out: %s", until)
	}

	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatalf("operation context was not cancelled by its timeout")
	}
	if !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", runCtx.Err())
	}
}

func TestOpCtxFollowsCaller(t *testing.T) {
	p := newPage(context.Background(), func() {}, 0, 0)
	caller, stop := context.WithCancel(context.Background())

	runCtx, cancel := p.opCtx(caller, p.opTimeout)
	defer cancel()
	stop()

	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatalf("operation context ignored caller cancellation")
	}
}
