// Package catalogerr defines the closed set of error kinds surfaced by the
// catalog core, in the Upspin style: a Kind classifies what went wrong, Op
// names the operation that failed, and Err wraps the underlying cause.
//
// Mutating catalog operations roll back on any failure and re-raise through
// E; read operations propagate directly. Only contract violations are
// Internal — user errors are never Internal.
package catalogerr

import (
	"errors"
	"fmt"
)

// Kind classifies the semantic category of a catalog error.
type Kind uint8

const (
	Other Kind = iota
	InputData
	NotFound
	AlreadyExists
	AlreadyLocked
	Configuration
	Usage
	Internal
	MigrationRequired
)

func (k Kind) String() string {
	switch k {
	case InputData:
		return "input data"
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case AlreadyLocked:
		return "already locked"
	case Configuration:
		return "configuration"
	case Usage:
		return "usage"
	case Internal:
		return "internal"
	case MigrationRequired:
		return "migration required"
	default:
		return "unspecified"
	}
}

// Op identifies the operation that produced an error, e.g. "catalog.GetVersion".
type Op string

// Error is the concrete error type returned by this module. Use errors.Is
// with a Kind-only Error (via Is) to test for a particular kind, and
// errors.As to recover the wrapped Op/Err.
type Error struct {
	Op   Op
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind; a target whose
// Kind is Other matches any *Error. This lets callers write
// errors.Is(err, catalogerr.E(catalogerr.NotFound)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == Other {
		return true
	}
	return e.Kind == t.Kind
}

// E builds an *Error from the given arguments. Accepted argument types:
// Op, Kind, error (wrapped as the cause), and string (wrapped as an
// ad-hoc error via errors.New).
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case string:
			e.Err = errors.New(a)
		}
	}
	return e
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Is reports whether KindOf(err) equals kind, i.e. whether the first *Error
// in err's chain has that Kind; kinds of *Errors nested further down are not
// considered (errors.Is with a Kind-only target checks the whole chain).
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
