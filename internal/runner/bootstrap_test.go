package runner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/michaelbrown/rubybox/internal/config"
	"github.com/michaelbrown/rubybox/internal/sandbox"
)

func runtimeConfig() *config.Config {
	p := sandbox.DefaultPolicy()
	return &config.Config{
		Server: config.ServerConfig{Port: 5000, ShutdownTimeout: time.Second},
		Sandbox: config.SandboxConfig{
			Timeout:        p.Timeout,
			MemoryBytes:    p.Memory,
			NanoCPUs:       p.NanoCPUs,
			MaxOutputBytes: p.MaxOutputBytes,
			Command:        p.Command,
		},
		// Nothing listens here; the client only dials on first use.
		Docker: config.DockerConfig{Host: "tcp://127.0.0.1:1"},
	}
}

func TestNewRuntimeDefaultCatalog(t *testing.T) {
	rt, err := NewRuntime(runtimeConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	if n := rt.Service.Catalog().Len(); n != 97 {
		t.Errorf("catalog has %d versions, want the built-in 97", n)
	}
}

func TestNewRuntimeCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.yaml")
	data := "versions:\n  \"3.3.0\": ruby:3.3.0-alpine\n  \"2.7.8\": ruby:2.7.8\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := runtimeConfig()
	cfg.Catalog.Path = path
	rt, err := NewRuntime(cfg, nil)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	if image, err := rt.Service.Catalog().Resolve("2.7.8"); err != nil || image != "ruby:2.7.8" {
		t.Errorf("Resolve(2.7.8) = %q, %v", image, err)
	}
	if n := rt.Service.Catalog().Len(); n != 2 {
		t.Errorf("catalog has %d versions, want 2", n)
	}
}

func TestNewRuntimeMissingCatalog(t *testing.T) {
	cfg := runtimeConfig()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := NewRuntime(cfg, nil); err == nil {
		t.Error("expected error for missing catalog file")
	}
}
