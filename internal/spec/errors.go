package spec

import "errors"

// ErrorCode categorizes spec errors for clearer handling and messaging.
type ErrorCode string

const (
	// MalformedInput: the document could not be decoded or its root is not an object.
	MalformedInput ErrorCode = "MalformedInput"
	// UnsupportedVersion: neither (or both) of the swagger/openapi markers were found.
	UnsupportedVersion ErrorCode = "UnsupportedVersion"

	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ValidationError ErrorCode = "ValidationError"
)

// ErrParse matches any SpecError raised by Parse.
var ErrParse = errors.New("spec parse error")

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

func (e *SpecError) Is(target error) bool {
	return target == ErrParse && (e.Code == MalformedInput || e.Code == UnsupportedVersion)
}

// IsCode reports whether err carries a SpecError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *SpecError
	return errors.As(err, &se) && se.Code == code
}
