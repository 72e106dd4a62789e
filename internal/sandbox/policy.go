package sandbox

import (
	"fmt"
	"time"
)

// Policy defines resource limits for sandbox execution.
type Policy struct {
	Memory         int64         // memory ceiling in bytes
	NanoCPUs       int64         // CPU quota in units of 1e-9 CPUs
	Timeout        time.Duration // wall-clock deadline after start
	Network        bool          // whether network access is allowed
	MaxOutputBytes int           // output bytes kept per execution, frame headers excluded
	Command        []string      // entry point; the code is appended as the last argument
}

// DefaultPolicy returns safe defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		Memory:         256 * 1024 * 1024,
		NanoCPUs:       500_000_000,
		Timeout:        15 * time.Second,
		Network:        false,
		MaxOutputBytes: 1 << 20,
		Command:        []string{"ruby", "-e"},
	}
}

// Spec builds the unit spec that runs code on image.
func (p Policy) Spec(executionID, image, code string) UnitSpec {
	cmd := make([]string, 0, len(p.Command)+1)
	cmd = append(cmd, p.Command...)
	cmd = append(cmd, code)

	return UnitSpec{
		Name:       "rubybox-" + executionID,
		Image:      image,
		Cmd:        cmd,
		Memory:     p.Memory,
		NanoCPUs:   p.NanoCPUs,
		Network:    p.Network,
		AutoRemove: true,
		Labels: map[string]string{
			"rubybox.execution": executionID,
		},
	}
}

// Validate reports policies that cannot produce a working unit.
func (p Policy) Validate() error {
	switch {
	case p.Memory <= 0:
		return fmt.Errorf("memory limit must be positive, got %d", p.Memory)
	case p.NanoCPUs <= 0:
		return fmt.Errorf("cpu quota must be positive, got %d", p.NanoCPUs)
	case p.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", p.Timeout)
	case p.MaxOutputBytes <= 0:
		return fmt.Errorf("max output must be positive, got %d", p.MaxOutputBytes)
	case len(p.Command) == 0:
		return fmt.Errorf("command is required")
	}
	return nil
}
