// Package errs defines the error taxonomy shared by the reader core.
//
// Every fallible operation returns a plain error; failures that the UI
// needs to classify are wrapped in *Error carrying a Kind. KindOf walks
// a wrap chain and recovers the Kind for display or recovery decisions.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a failure class. The set is closed; the Error state
// renders Kind.String() directly to the user.
type Kind uint8

const (
	None Kind = iota
	SdCardNotFound
	FileNotFound
	FileCorrupted
	CacheFull
	InvalidFormat
	UnsupportedVersion
	ParseFailed
	DisplayFailed
	NetworkFailed
	OutOfMemory
	InvalidState
	InvalidOperation
	IOError
	Timeout
)

var kindNames = map[Kind]string{
	None:               "OK",
	SdCardNotFound:     "SD card not found",
	FileNotFound:       "File not found",
	FileCorrupted:      "File corrupted",
	CacheFull:          "Cache full",
	InvalidFormat:      "Invalid format",
	UnsupportedVersion: "Unsupported version",
	ParseFailed:        "Parse failed",
	DisplayFailed:      "Display error",
	NetworkFailed:      "Network error",
	OutOfMemory:        "Out of memory",
	InvalidState:       "Invalid state",
	InvalidOperation:   "Invalid operation",
	IOError:            "Storage error",
	Timeout:            "Timed out",
}

// String returns the user-visible message for the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Error %d", uint8(k))
}

// Error pairs a Kind with the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error. err may be nil.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind carried by err, or IOError for plain non-nil
// errors, or None for nil.
func KindOf(err error) Kind {
	if err == nil {
		return None
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return IOError
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
