package snapshot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTypeNotFound            = errors.New("snapshot: type not found")
	ErrNoSerializer            = errors.New("snapshot: no serializer for type")
	ErrNameCollision           = errors.New("snapshot: name collision")
	ErrMissingService          = errors.New("snapshot: missing required service")
	ErrInvalidArrayRank        = errors.New("snapshot: invalid array rank")
	ErrSerializationMismatch   = errors.New("snapshot: serialization/deserialization mismatch")
	ErrNonSerializableResource = errors.New("snapshot: resource value is not serializable")
	ErrSessionOpen             = errors.New("snapshot: a session is already open")
	ErrNoSession               = errors.New("snapshot: no open session")
	ErrStoreClosed             = errors.New("snapshot: store is closed")
	ErrUnresolvedName          = errors.New("snapshot: name could not be resolved")
	ErrNotReference            = errors.New("snapshot: value has no identity")
	ErrNoEvaluator             = errors.New("snapshot: evaluator not configured")
)

// Error ties a taxonomy code to the name being processed.
type Error struct {
	Code error
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Code != nil {
		b.WriteString(e.Code.Error())
	} else {
		b.WriteString("snapshot: error")
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " name=%q", e.Name)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Code != nil {
		out = append(out, e.Code)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func newError(code error, name string, err error) *Error {
	return &Error{Code: code, Name: name, Err: err}
}

func errorf(code error, name, format string, args ...any) *Error {
	return &Error{Code: code, Name: name, Err: fmt.Errorf(format, args...)}
}

// ErrorList accumulates recoverable errors so one bad object does not stop
// the rest of the graph from being processed.
type ErrorList []error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "snapshot: no errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	return l
}

// Err returns nil when the list is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Has reports whether any accumulated error matches target.
func (l ErrorList) Has(target error) bool {
	for _, err := range l {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (l *ErrorList) add(err error) {
	if err == nil {
		return
	}
	var list ErrorList
	if errors.As(err, &list) {
		*l = append(*l, list...)
		return
	}
	*l = append(*l, err)
}

// withName attaches name to err. Errors without a taxonomy code are
// classified as mismatches between the statements and the live type.
func withName(err error, name string) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Name == "" {
			coded.Name = name
		}
		return err
	}
	return newError(ErrSerializationMismatch, name, err)
}
