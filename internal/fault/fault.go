// Package fault defines the error taxonomy shared by every savekit package.
//
// Errors carry a Code so callers can branch on the failure class with
// errors.Is against the exported sentinels, independent of which package
// produced them:
//
//	if errors.Is(err, fault.ErrNotAuthenticated) { ... }
//
// Per-field failures (Conversion) are normally recovered and logged by
// the stores; whole-operation failures are returned to the caller.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes persistence errors.
type Code string

const (
	// CodeDiscovery indicates no participating instances were found, or a
	// live-object index was visited off the primary context.
	CodeDiscovery Code = "DISCOVERY"

	// CodeConversion indicates a wire value did not match its target type,
	// or field access failed.
	CodeConversion Code = "CONVERSION"

	// CodeNotAuthenticated indicates a remote operation without a signed-in identity.
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"

	// CodeNoData indicates the remote namespace was empty on load.
	CodeNoData Code = "NO_DATA"

	// CodeCrypto indicates missing or invalid key material, or undecryptable input.
	CodeCrypto Code = "CRYPTO"

	// CodeIO indicates a file or network failure.
	CodeIO Code = "IO"
)

// Sentinels for errors.Is matching. A *Error matches the sentinel of its Code.
var (
	ErrDiscovery        = errors.New("discovery failed")
	ErrConversion       = errors.New("conversion failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoData           = errors.New("no data")
	ErrCrypto           = errors.New("crypto failure")
	ErrIO               = errors.New("i/o failure")
)

var sentinels = map[Code]error{
	CodeDiscovery:        ErrDiscovery,
	CodeConversion:       ErrConversion,
	CodeNotAuthenticated: ErrNotAuthenticated,
	CodeNoData:           ErrNoData,
	CodeCrypto:           ErrCrypto,
	CodeIO:               ErrIO,
}

// Error is a classified persistence failure.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed (e.g. "local.SaveAuto").
	Op string

	// Type and Field locate per-field failures. Both may be empty.
	Type  string
	Field string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Type != "" && e.Field != "" {
		msg += fmt.Sprintf(" (type=%s, field=%s)", e.Type, e.Field)
	} else if e.Type != "" {
		msg += fmt.Sprintf(" (type=%s)", e.Type)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Code.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// New creates an Error with a message.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Conversion creates a per-field conversion error.
func Conversion(typ, field string, err error) *Error {
	return &Error{Code: CodeConversion, Type: typ, Field: field, Err: err}
}

// CodeOf extracts the Code of the first *Error in err's chain.
// Returns "" if err carries no classification.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsNotAuthenticated returns true if err is a NotAuthenticated failure.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsNoData returns true if err is a NoData failure.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
