package sandbox

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// frame builds one multiplexed stream frame.
func frame(stream byte, payload string) []byte {
	b := make([]byte, frameHeaderLen+len(payload))
	b[0] = stream
	binary.BigEndian.PutUint32(b[4:frameHeaderLen], uint32(len(payload)))
	copy(b[frameHeaderLen:], payload)
	return b
}

// fakeBackend records lifecycle calls. The unit "runs" until exit is sent
// on or the stream is closed by the orchestrator.
type fakeBackend struct {
	mu sync.Mutex

	createErr error
	attachErr error
	startErr  error
	waitErr   error
	removeErr error
	stopErr   error

	output   [][]byte // written to the stream after Start
	exitCode int64
	hang     bool // never exit on its own

	creates, attaches, starts, stops, removes int
	specs                                     []UnitSpec
	removed                                   []string
	startedBeforeAttach                       bool

	pr   *io.PipeReader
	pw   *io.PipeWriter
	exit chan ExitStatus
}

func (f *fakeBackend) ImageTags(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeBackend) Create(ctx context.Context, spec UnitSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.specs = append(f.specs, spec)
	if f.createErr != nil {
		return "", f.createErr
	}
	f.pr, f.pw = io.Pipe()
	f.exit = make(chan ExitStatus, 1)
	return "unit-1", nil
}

func (f *fakeBackend) Attach(ctx context.Context, id string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attaches++
	if f.starts > 0 {
		f.startedBeforeAttach = true
	}
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	return f.pr, nil
}

func (f *fakeBackend) Wait(ctx context.Context, id string) <-chan ExitStatus {
	out := make(chan ExitStatus, 1)
	f.mu.Lock()
	exit := f.exit
	f.mu.Unlock()
	go func() {
		select {
		case st := <-exit:
			out <- st
		case <-ctx.Done():
			out <- ExitStatus{Code: -1, Err: ctx.Err()}
		}
	}()
	return out
}

func (f *fakeBackend) Start(ctx context.Context, id string) error {
	f.mu.Lock()
	f.starts++
	if f.startErr != nil {
		f.mu.Unlock()
		return f.startErr
	}
	output, pw, exit := f.output, f.pw, f.exit
	hang, code, waitErr := f.hang, f.exitCode, f.waitErr
	f.mu.Unlock()

	go func() {
		for _, chunk := range output {
			if _, err := pw.Write(chunk); err != nil {
				return
			}
		}
		if hang {
			return
		}
		pw.Close()
		exit <- ExitStatus{Code: code, Err: waitErr}
	}()
	return nil
}

func (f *fakeBackend) Stop(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

func (f *fakeBackend) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	f.removed = append(f.removed, id)
	return f.removeErr
}

func (f *fakeBackend) counts() (creates, stops, removes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.stops, f.removes
}

var errDaemon = errors.New("daemon unreachable")
