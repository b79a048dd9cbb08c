package cli

import "errors"

// ErrUsage marks failures caused by how the command was invoked or by the
// input it was given. The binary exits with status 2 for these.
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// detailedError carries a rendered message while keeping the cause
// reachable through errors.Is and errors.As.
type detailedError struct {
	msg string
	err error
}

func (e detailedError) Error() string {
	return e.msg
}

func (e detailedError) Unwrap() error {
	return e.err
}
