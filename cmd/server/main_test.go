package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/examtrail/pyqbank/internal/platform/config"
)

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
			setupLogger(config.LogConfig{Level: level, Format: format})
		}
	}
}

func TestRun_MissingCatalogDir(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Database.URL = ""
	cfg.Catalog.Path = "/does/not/exist"

	if err := run(context.Background(), cfg); err == nil {
		t.Fatal("run() should fail for a missing catalog directory")
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	dir := t.TempDir()
	fixture := `exams:
  - id: jee
    name: JEE Main
`
	if err := os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Database.URL = ""
	cfg.Cache.URL = ""
	cfg.Catalog.Path = dir
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0 // let the OS pick

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not shut down after cancel")
	}
}
