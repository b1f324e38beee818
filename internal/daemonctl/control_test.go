package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"herhaven/internal/daemonrun"
	"herhaven/internal/ipc"
	"herhaven/internal/logging"
	"herhaven/internal/testsupport"
)

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "herhaven.pid")

	if pid, err := ReadPID(path); err != nil || pid != 0 {
		t.Fatalf("missing file: pid=%d err=%v", pid, err)
	}

	if err := os.WriteFile(path, []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if pid, err := ReadPID(path); err != nil || pid != 4242 {
		t.Fatalf("expected 4242, got pid=%d err=%v", pid, err)
	}

	if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ReadPID(path); err == nil {
		t.Fatal("expected error for malformed pid")
	}
}

func TestSignalProcessRefusesSelf(t *testing.T) {
	if err := signalProcess(os.Getpid(), syscall.SIGTERM); err == nil {
		t.Fatal("expected refusal to signal current process")
	}
	if err := signalProcess(0, syscall.SIGTERM); err == nil {
		t.Fatal("expected error for unknown pid")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := StopAndTerminate(cfg.SocketPath(), cfg, time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if err := WaitForShutdown(cfg.SocketPath(), time.Second); err != nil {
		t.Fatalf("WaitForShutdown on missing socket: %v", err)
	}
}

func TestEnsureStartedReportsRunningDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutIntakeAPI())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := daemonrun.Build(ctx, cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), rt.Daemon, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC test: %v", err)
		}
		t.Fatalf("NewServer: %v", err)
	}
	srv.Serve()
	defer srv.Close()

	alive, pid, err := ProcessInfo(cfg.SocketPath())
	if err != nil || !alive || pid != os.Getpid() {
		t.Fatalf("ProcessInfo: alive=%v pid=%d err=%v", alive, pid, err)
	}

	// The executable is never launched because the socket already answers.
	result, err := EnsureStarted(cfg.SocketPath(), "/nonexistent/herhaven", LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != StartStateAlreadyRunning || result.PID != os.Getpid() {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := StopAndTerminate(cfg.SocketPath(), cfg, time.Second); err == nil {
		t.Fatal("expected refusal to signal the test process")
	}
}
