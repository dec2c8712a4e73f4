package pilot

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/medipilot/internal/perception"
)

// ErrNoFindings is returned by Extract when every attempt came back empty.
var ErrNoFindings = errors.New("no findings extracted")

// PerceptionFault means no usable frame could be produced this cycle. It is
// recoverable: the loop backs off and tries again.
type PerceptionFault struct {
	Stage perception.Stage
	Err   error
}

func (f *PerceptionFault) Error() string {
	return fmt.Sprintf("perception fault (%s): %v", f.Stage, f.Err)
}

func (f *PerceptionFault) Unwrap() error { return f.Err }

func newPerceptionFault(err error) *PerceptionFault {
	var se *perception.StageError
	if errors.As(err, &se) {
		return &PerceptionFault{Stage: se.Stage, Err: se.Err}
	}
	return &PerceptionFault{Stage: perception.StageCapture, Err: err}
}
