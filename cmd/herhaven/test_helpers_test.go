package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"herhaven/internal/config"
	"herhaven/internal/daemonrun"
	"herhaven/internal/ipc"
	"herhaven/internal/logging"
	"herhaven/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	runtime    *daemonrun.Runtime
	socketPath string
	configPath string
}

// setupCLITestEnv writes a config file for cfg and, when withDaemon is set,
// serves an idle daemon on its socket.
func setupCLITestEnv(t *testing.T, withDaemon bool, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{cfg: cfg, socketPath: cfg.SocketPath(), configPath: configPath}
	if !withDaemon {
		return env
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt, err := daemonrun.Build(ctx, cfg, logging.NewNop(), logging.NewStreamHub(64))
	if err != nil {
		cancel()
		t.Fatalf("daemonrun.Build: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.socketPath, rt.Daemon, logging.NewNop())
	if err != nil {
		cancel()
		rt.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI daemon test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	env.runtime = rt

	t.Cleanup(func() {
		cancel()
		srv.Close()
		rt.Close()
	})
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, args, e.socketPath, e.configPath)
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
