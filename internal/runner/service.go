// Package runner validates execution requests, resolves the requested
// version, runs the code through the sandbox and assembles the response.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/michaelbrown/rubybox/internal/catalog"
	"github.com/michaelbrown/rubybox/internal/sandbox"
)

// Executor runs code on a resolved image.
type Executor interface {
	Execute(ctx context.Context, code, image string) (sandbox.Outcome, error)
}

// Service is the entry point used by the HTTP layer, the CLI and the tool server.
type Service struct {
	catalog *catalog.Catalog
	prober  *catalog.Prober
	exec    Executor
	timeout time.Duration
	log     *zap.Logger
}

// NewService wires a catalog, the backend's image inventory and an executor.
// timeout is only used to describe deadline failures.
func NewService(c *catalog.Catalog, inv catalog.Inventory, exec Executor, timeout time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		catalog: c,
		prober:  catalog.NewProber(c, inv),
		exec:    exec,
		timeout: timeout,
		log:     log,
	}
}

// Catalog returns the configured version catalog.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// AvailableVersions probes the backend for usable versions.
func (s *Service) AvailableVersions(ctx context.Context) (catalog.Snapshot, error) {
	return s.prober.Probe(ctx)
}

// MissingVersions lists configured versions whose images are not present.
func (s *Service) MissingVersions(ctx context.Context) ([]string, error) {
	return s.prober.Missing(ctx)
}

// Execute runs code with the requested version. It never retries; every
// failure is reported in the returned Result.
func (s *Service) Execute(ctx context.Context, code, versionID string) Result {
	started := time.Now()
	log := s.log.With(zap.String("version", versionID))

	outcome, err := s.execute(ctx, code, versionID)
	elapsed := time.Since(started)
	res := Assemble(outcome, elapsed, versionID, err)

	fields := []zap.Field{
		zap.String("execution_id", outcome.ExecutionID),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case err == nil:
		log.Info("execution completed", append(fields, zap.String("state", "completed"), zap.Int64("exit_code", outcome.ExitCode))...)
	case errors.Is(err, ErrExecutionTimeout):
		log.Info("execution timed out", append(fields, zap.String("state", "timed_out"))...)
	case IsCallerError(err):
		log.Debug("execution rejected", append(fields, zap.String("state", "rejected"), zap.Error(err))...)
	default:
		log.Warn("execution failed", append(fields, zap.String("state", "backend_failed"), zap.Error(err))...)
	}
	return res
}

func (s *Service) execute(ctx context.Context, code, versionID string) (sandbox.Outcome, error) {
	if strings.TrimSpace(code) == "" {
		return sandbox.Outcome{}, &Error{Kind: KindEmptyCode, Message: "code is required"}
	}

	image, err := s.catalog.Resolve(versionID)
	if err != nil {
		msg := fmt.Sprintf("unknown version %q", versionID)
		if versionID == "" {
			msg = "version is required"
		}
		return sandbox.Outcome{}, &Error{Kind: KindUnknownVersion, Message: msg, Hint: catalog.VersionsHint, Err: err}
	}

	outcome, err := s.exec.Execute(ctx, code, image)
	if err != nil {
		if errors.Is(err, sandbox.ErrTimeout) {
			return sandbox.Outcome{}, &Error{
				Kind:    KindExecutionTimeout,
				Message: fmt.Sprintf("Timeout: execution took too long (max %s)", s.timeout),
				Err:     err,
			}
		}
		return sandbox.Outcome{}, &Error{Kind: KindBackendError, Message: err.Error(), Err: err}
	}
	return outcome, nil
}
