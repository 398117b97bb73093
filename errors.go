package ahkdump

import (
	"context"
	"fmt"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/targodan/go-errors"
)

// ErrorKind classifies failures by how the caller is expected to recover.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTransientIO is a partial read or a handle closed mid-scan.
	KindTransientIO
	// KindProcessLifecycle is a vanished or inaccessible process.
	KindProcessLifecycle
	// KindMalformedInput is a corrupt PE file or undecodable data.
	KindMalformedInput
	// KindTimeout is an expired unpack or child-discovery wait.
	KindTimeout
	// KindUnrecoverable ends the whole run.
	KindUnrecoverable
)

var errorKindNames = map[ErrorKind]string{
	KindUnknown:          "unknown",
	KindTransientIO:      "transient_io",
	KindProcessLifecycle: "process_lifecycle",
	KindMalformedInput:   "malformed_input",
	KindTimeout:          "timeout",
	KindUnrecoverable:    "unrecoverable",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ErrPrimaryGone is the cause of the unrecoverable run failure.
var ErrPrimaryGone = errors.New("primary process exited without spawning any child process")

// Error carries the context of a recovered or fatal failure.
type Error struct {
	Kind  ErrorKind
	PID   int
	Phase string
	// Offset is a memory address or file offset, negative if not applicable.
	Offset int64
	Err    error
}

func newError(kind ErrorKind, pid int, phase string, err error) *Error {
	return &Error{
		Kind:   kind,
		PID:    pid,
		Phase:  phase,
		Offset: -1,
		Err:    err,
	}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed (%s", e.Phase, e.Kind)
	if e.PID > 0 {
		msg += fmt.Sprintf(", pid %d", e.PID)
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(", offset 0x%X", e.Offset)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err. Errors not created by this package
// are classified by their cause where possible.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrPrimaryGone):
		return KindUnrecoverable
	case errors.Is(err, procio.ErrProcessGone):
		return KindProcessLifecycle
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}
