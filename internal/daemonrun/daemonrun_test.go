package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"herhaven/internal/config"
	"herhaven/internal/ipc"
	"herhaven/internal/logging"
	"herhaven/internal/queue"
	"herhaven/internal/testsupport"
)

func TestBuildWiresQueuesAndSync(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, err := Build(context.Background(), cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if len(rt.Queues) != len(queue.Kinds) {
		t.Fatalf("expected %d queues, got %d", len(queue.Kinds), len(rt.Queues))
	}
	if rt.Sync == nil {
		t.Fatal("expected background sync manager")
	}
	kinds := rt.Workflow.Kinds()
	if len(kinds) != 2 || kinds[0] != queue.KindSOS {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	if state := rt.Daemon.Status(context.Background()).BreakerState; state == "" {
		t.Fatal("expected breaker state in status")
	}
}

func TestBuildWithoutSync(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sync.Enabled = false
	rt, err := Build(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()
	if rt.Sync != nil {
		t.Fatal("expected no sync manager when disabled")
	}
}

func TestBuildSQLiteBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBackend(config.BackendSQLite))
	rt, err := Build(context.Background(), cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()
	if _, err := os.Stat(cfg.Storage.SQLitePath); err != nil {
		t.Fatalf("expected sqlite database: %v", err)
	}
}

func TestBuildRequiresConfig(t *testing.T) {
	if _, err := Build(context.Background(), nil, nil, nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRunServesIPCUntilCanceled(t *testing.T) {
	remote := testsupport.NewRemote(t)
	cfg := testsupport.NewConfig(t, testsupport.WithRemote(remote.URL))
	cfg.Logging.Format = "json"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{LogLevel: "warn"}) }()

	var client *ipc.Client
	deadline := time.Now().Add(5 * time.Second)
	for client == nil {
		c, err := ipc.Dial(cfg.SocketPath())
		if err == nil {
			client = c
			break
		}
		select {
		case err := <-done:
			if err != nil && strings.Contains(err.Error(), "operation not permitted") {
				t.Skipf("skipping daemon run test: %v", err)
			}
			t.Fatalf("Run exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("socket never became reachable: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	defer client.Close()

	deadline = time.Now().Add(5 * time.Second)
	for {
		status, err := client.Status()
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.Running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon never reported running")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "herhaven.pid")); err != nil {
		t.Fatalf("expected pid file: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, logging.LogFileName)); err != nil {
		t.Fatalf("expected current log pointer: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(cfg.SocketPath()); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed, stat err=%v", err)
	}
}

func TestEnsureCurrentLogPointerReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "herhaven-1.log")
	second := filepath.Join(dir, "herhaven-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	target, err := os.Readlink(filepath.Join(dir, logging.LogFileName))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != second {
		t.Fatalf("expected pointer to %s, got %s", second, target)
	}
}
