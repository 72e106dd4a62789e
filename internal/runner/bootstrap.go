package runner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/michaelbrown/rubybox/internal/catalog"
	"github.com/michaelbrown/rubybox/internal/config"
	"github.com/michaelbrown/rubybox/internal/sandbox"
)

// Runtime is a Service backed by the Docker daemon, plus the connection
// it holds.
type Runtime struct {
	Service *Service
	backend *sandbox.DockerBackend
}

// NewRuntime builds the catalog, the Docker backend and the orchestrator
// described by cfg. The Docker client connects lazily, so a stopped daemon
// shows up on the first request rather than here.
func NewRuntime(cfg *config.Config, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	backend, err := sandbox.NewDockerBackend(cfg.Docker.Host)
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}

	policy := cfg.Policy()
	orch := sandbox.NewOrchestrator(backend, policy, log)

	return &Runtime{
		Service: NewService(cat, backend, orch, policy.Timeout, log),
		backend: backend,
	}, nil
}

// Close releases the Docker client.
func (r *Runtime) Close() error {
	return r.backend.Close()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return c, nil
}
