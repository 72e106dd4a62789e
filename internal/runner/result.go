package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/michaelbrown/rubybox/internal/sandbox"
)

// NoOutputPlaceholder replaces empty output from a successful run.
const NoOutputPlaceholder = "Code executed successfully (no output)"

const truncatedNotice = "\n[output truncated]"

// Result is the response envelope for one execution request.
type Result struct {
	Success       bool   `json:"success"`
	Output        string `json:"output,omitempty"`
	Error         string `json:"error,omitempty"`
	Hint          string `json:"hint,omitempty"`
	ExecutionTime string `json:"executionTime"`
	Version       string `json:"version"`

	ExecutionID string `json:"-"`
	ExitCode    int64  `json:"-"`
	Kind        Kind   `json:"-"`
}

// Assemble builds the envelope for a finished request. A non-nil err
// produces a failure result and the outcome is ignored.
func Assemble(outcome sandbox.Outcome, elapsed time.Duration, versionID string, err error) Result {
	if err != nil {
		res := Result{
			Success:       false,
			Error:         err.Error(),
			ExecutionTime: fmt.Sprintf("%.3fs", elapsed.Seconds()),
			Version:       versionID,
			Kind:          KindBackendError,
		}
		var re *Error
		if errors.As(err, &re) {
			res.Kind = re.Kind
			res.Hint = re.Hint
		}
		return res
	}

	output := sandbox.Decode(outcome.Chunks)
	if outcome.Truncated {
		output += truncatedNotice
	}
	if output == "" {
		output = NoOutputPlaceholder
	}

	return Result{
		Success:       true,
		Output:        output,
		ExecutionTime: fmt.Sprintf("%.4fs", elapsed.Seconds()),
		Version:       versionID,
		ExecutionID:   outcome.ExecutionID,
		ExitCode:      outcome.ExitCode,
	}
}
