package sandbox

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// drainGrace bounds how long a finished unit's stream may take to reach EOF.
	drainGrace = 2 * time.Second
	// releaseTimeout bounds stop and remove calls made after the caller is done.
	releaseTimeout = 10 * time.Second
)

// Outcome is what a unit produced when it finished before its deadline.
type Outcome struct {
	ExecutionID string
	Chunks      [][]byte // raw multiplexed stream
	ExitCode    int64
	Truncated   bool
}

// Orchestrator runs code in single-use units and always removes them.
type Orchestrator struct {
	backend Backend
	policy  Policy
	log     *zap.Logger
}

// NewOrchestrator creates an Orchestrator. A nil logger disables logging.
func NewOrchestrator(backend Backend, policy Policy, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{backend: backend, policy: policy, log: log}
}

// Policy returns the limits applied to every unit.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Execute runs code on image and returns its raw output. It returns
// ErrTimeout if the unit outlives the policy deadline and *BackendError if
// the backend fails. Once a unit has been created it is removed on every
// return path, panics included. A create interrupted by ctx is followed by a
// removal by name.
func (o *Orchestrator) Execute(ctx context.Context, code, image string) (Outcome, error) {
	executionID := uuid.NewString()
	log := o.log.With(zap.String("execution_id", executionID), zap.String("image", image))

	spec := o.policy.Spec(executionID, image, code)
	unitID, err := o.backend.Create(ctx, spec)
	if err != nil {
		// A cancelled request may abandon a create the daemon still completes.
		if ctx.Err() != nil {
			o.release(log, spec.Name)
		}
		return Outcome{}, &BackendError{Op: "create", Err: err}
	}
	defer o.release(log, unitID)

	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()

	stream, err := o.backend.Attach(ctx, unitID)
	if err != nil {
		return Outcome{}, &BackendError{Op: "attach", Err: err}
	}
	defer stream.Close()

	exited := o.backend.Wait(waitCtx, unitID)

	if err := o.backend.Start(ctx, unitID); err != nil {
		return Outcome{}, &BackendError{Op: "start", Err: err}
	}
	log.Debug("unit started")

	collector := NewCollector(o.policy.MaxOutputBytes)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		// Read errors end the drain; the exit status decides the outcome.
		_, _ = io.Copy(collector, stream)
	}()

	deadline := time.NewTimer(o.policy.Timeout)
	defer deadline.Stop()

	select {
	case st := <-exited:
		if st.Err != nil {
			return Outcome{}, &BackendError{Op: "wait", Err: st.Err}
		}
		select {
		case <-drained:
		case <-time.After(drainGrace):
			log.Warn("output stream still open after exit")
		}
		return Outcome{
			ExecutionID: executionID,
			Chunks:      collector.Chunks(),
			ExitCode:    st.Code,
			Truncated:   collector.Truncated(),
		}, nil

	case <-deadline.C:
		log.Info("deadline exceeded, stopping unit", zap.Duration("timeout", o.policy.Timeout))
		o.stop(log, unitID)
		return Outcome{}, ErrTimeout

	case <-ctx.Done():
		log.Info("execution cancelled, stopping unit")
		o.stop(log, unitID)
		return Outcome{}, &BackendError{Op: "run", Err: ctx.Err()}
	}
}

// stop is best-effort; the unit may already be gone.
func (o *Orchestrator) stop(log *zap.Logger, unitID string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := o.backend.Stop(ctx, unitID); err != nil {
		log.Debug("stop failed", zap.Error(err))
	}
}

// release issues the single teardown for a unit. It runs on a detached
// context so a cancelled request still cleans up.
func (o *Orchestrator) release(log *zap.Logger, unitID string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := o.backend.Remove(ctx, unitID); err != nil {
		log.Warn("remove failed", zap.String("unit", unitID), zap.Error(err))
		return
	}
	log.Debug("unit removed")
}
