// Package apperror classifies faults raised by the capture and upload core.
package apperror

import "errors"

type kind int

const (
	kindConfiguration kind = iota + 1
	kindInvariant
	kindRemote
)

// Apperror is a classified error. Compare kinds with errors.Is against the
// exported sentinels; the message and wrapped cause do not take part.
type Apperror struct {
	kind    kind
	message string
	err     error
}

var (
	// Configuration faults are recoverable and leave the prior stable state untouched.
	Configuration = Apperror{kind: kindConfiguration, message: "configuration fault"}
	// Invariant faults indicate a logic defect and are never retried.
	Invariant = Apperror{kind: kindInvariant, message: "invariant violated"}
	// Remote faults end an attempt in a terminal lifecycle state.
	Remote = Apperror{kind: kindRemote, message: "remote fault"}
)

func (e Apperror) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

// SetMessage returns a copy of e carrying message.
func (e Apperror) SetMessage(message string) Apperror {
	e.message = message
	return e
}

// Wrap returns a copy of e carrying err as its cause.
func (e Apperror) Wrap(err error) Apperror {
	e.err = err
	return e
}

func (e Apperror) Unwrap() error {
	return e.err
}

func (e Apperror) Is(target error) bool {
	t, ok := target.(Apperror)
	if !ok {
		return false
	}
	return t.kind == e.kind
}

// IsInvariant reports whether err carries an invariant violation.
func IsInvariant(err error) bool {
	return errors.Is(err, Invariant)
}
