package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"herhaven/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckRemoteAPI_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := CheckRemoteAPI(context.Background(), srv.URL, "good")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckRemoteAPI_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := CheckRemoteAPI(context.Background(), srv.URL, "bad")
	if result.Passed {
		t.Fatal("expected failure for rejected token")
	}
}

func TestCheckRemoteAPI_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := CheckRemoteAPI(context.Background(), url, "")
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestCheckRemoteAPI_MissingURL(t *testing.T) {
	result := CheckRemoteAPI(context.Background(), "", "key")
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckStorage_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "queues.db")

	result := CheckStorage(context.Background(), &cfg)
	if !result.Passed {
		t.Fatalf("expected sqlite check to pass: %s", result.Detail)
	}
}

func TestCheckStorage_UnsupportedBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "floppy"

	result := CheckStorage(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for unsupported backend")
	}
}

func TestCheckNotificationsFromConfig(t *testing.T) {
	cfg := config.Default()
	if r := CheckNotificationsFromConfig(&cfg); !r.Passed || r.Detail != "Disabled" {
		t.Fatalf("expected disabled pass, got %#v", r)
	}
	cfg.Notifications.NtfyTopic = "herhaven-alerts"
	if r := CheckNotificationsFromConfig(&cfg); r.Passed {
		t.Fatal("expected failure for bare topic name")
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/herhaven-alerts"
	if r := CheckNotificationsFromConfig(&cfg); !r.Passed {
		t.Fatalf("expected pass, got %#v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.LogDir = base
	cfg.Storage.Backend = config.BackendMemory
	cfg.API.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	// data dir, storage, remote api
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}
