package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrTimeout is returned when a unit does not finish before the policy deadline.
var ErrTimeout = errors.New("execution timed out")

// UnitSpec describes one ephemeral execution unit.
type UnitSpec struct {
	Name       string
	Image      string
	Cmd        []string
	Memory     int64 // bytes
	NanoCPUs   int64
	Network    bool
	AutoRemove bool
	Labels     map[string]string
}

// ExitStatus is delivered once when a unit stops running.
type ExitStatus struct {
	Code int64
	Err  error
}

// Backend is the isolation backend that runs execution units.
type Backend interface {
	// ImageTags lists the image references present locally.
	ImageTags(ctx context.Context) ([]string, error)

	// Create creates a unit and returns its id. The unit is not started.
	Create(ctx context.Context, spec UnitSpec) (string, error)

	// Attach returns the unit's multiplexed stdout/stderr stream.
	Attach(ctx context.Context, id string) (io.ReadCloser, error)

	// Wait reports the unit's next exit. Call it before Start.
	Wait(ctx context.Context, id string) <-chan ExitStatus

	// Start starts a created unit.
	Start(ctx context.Context, id string) error

	// Stop stops a running unit without waiting for a graceful exit.
	Stop(ctx context.Context, id string) error

	// Remove force-removes a unit. Removing a unit that is already gone is not an error.
	Remove(ctx context.Context, id string) error
}

// BackendError wraps a failure reported by the isolation backend.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s unit: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
