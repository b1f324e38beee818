package syncer_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"herhaven/internal/logging"
	"herhaven/internal/syncer"
)

func TestNoopRegistrarAlwaysSucceeds(t *testing.T) {
	var registrar syncer.Registrar = syncer.Noop{}
	if err := registrar.Register(context.Background(), "sos-sync"); err != nil {
		t.Fatalf("Noop.Register returned error: %v", err)
	}
}

func TestFireUnregistersOnSuccess(t *testing.T) {
	manager := syncer.NewManager(logging.NewNop(), 0)
	var calls int32
	manager.Handle("sos-sync", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err := manager.Register(context.Background(), "sos-sync"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := manager.Register(context.Background(), "sos-sync"); err != nil {
		t.Fatalf("second Register returned error: %v", err)
	}
	if got := manager.Pending(); len(got) != 1 || got[0] != "sos-sync" {
		t.Fatalf("expected single pending tag, got %v", got)
	}

	if cleared := manager.Fire(context.Background()); cleared != 1 {
		t.Fatalf("expected 1 cleared tag, got %d", cleared)
	}
	if calls != 1 {
		t.Fatalf("expected handler called once, got %d", calls)
	}
	if len(manager.Pending()) != 0 {
		t.Fatalf("expected no pending tags, got %v", manager.Pending())
	}
}

func TestFireKeepsTagWhenHandlerFails(t *testing.T) {
	manager := syncer.NewManager(logging.NewNop(), 0)
	manager.Handle("sos-sync", func(context.Context) error { return errors.New("still pending") })
	_ = manager.Register(context.Background(), "sos-sync")

	if cleared := manager.Fire(context.Background()); cleared != 0 {
		t.Fatalf("expected no cleared tags, got %d", cleared)
	}
	if len(manager.Pending()) != 1 {
		t.Fatal("expected tag to remain registered")
	}
}

func TestFireDropsTagsWithoutHandler(t *testing.T) {
	manager := syncer.NewManager(logging.NewNop(), 0)
	_ = manager.Register(context.Background(), "contact-sync")
	manager.Fire(context.Background())
	if len(manager.Pending()) != 0 {
		t.Fatalf("expected unhandled tag dropped, got %v", manager.Pending())
	}
}

func TestRegisterRejectsEmptyTag(t *testing.T) {
	manager := syncer.NewManager(logging.NewNop(), 0)
	if err := manager.Register(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty tag")
	}
}

func TestRunFiresOnRegistrationWhenGateOpen(t *testing.T) {
	manager := syncer.NewManager(logging.NewNop(), 0)
	done := make(chan struct{})
	manager.Handle("sos-sync", func(context.Context) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx, func() bool { return true })

	_ = manager.Register(ctx, "sos-sync")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not fired")
	}
}

func TestRunHoldsTagsWhileGateClosed(t *testing.T) {
	manager := syncer.NewManager(logging.NewNop(), 5*time.Millisecond)
	var calls int32
	manager.Handle("sos-sync", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	var open atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx, open.Load)

	_ = manager.Register(ctx, "sos-sync")
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("expected no fire while gate is closed")
	}

	open.Store(true)
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected handler fired once gate opened, got %d", atomic.LoadInt32(&calls))
	}
}
