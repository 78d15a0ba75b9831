package orgkb

import (
	"errors"
	"fmt"
)

// Application error codes.
//
// These are broad categories mapped to behavior at the pipeline level:
// EINVALID inputs are skipped, ENOTBUILT aborts a run, EINTERNAL aborts a
// single page, EUNAVAILABLE is retried and then surfaced as unresolved,
// and ECONFLICT is a reportable state rather than a failure.
const (
	ECONFLICT    = "conflict"    // conflicting stored value, manual resolution required
	EINVALID     = "invalid"     // malformed input
	EINTERNAL    = "internal"    // invariant violation, bug
	ENOTBUILT    = "not_built"   // index queried before it was built
	ENOTFOUND    = "not_found"   // entity or record does not exist
	EUNAVAILABLE = "unavailable" // external call failed or timed out
)

// Error represents an application error with a machine-readable code
// and a human-readable message.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("orgkb error: code=%s message=%s", e.Code, e.Message)
}

// Errorf returns an Error with the given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors return EINTERNAL; nil returns the empty string.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors return a generic message; nil returns "".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}
