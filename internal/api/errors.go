package api

import (
	"errors"
	"regexp"
)

// ErrMalformedResponse is returned when a backend response cannot be decoded
// or lacks required fields.
var ErrMalformedResponse = errors.New("malformed response")

// BackendError carries an error message reported by the backend itself. The
// message is meant to be shown to the user verbatim.
type BackendError struct {
	Op      string
	Message string
}

func (e *BackendError) Error() string {
	return e.Op + ": " + e.Message
}

var errorCodePattern = regexp.MustCompile(`^\[(ERROR_[A-Z]\d+)\]`)

// ErrorCode extracts the leading "[ERROR_xx]" code of a backend message, or
// returns "" if there is none.
func ErrorCode(msg string) string {
	m := errorCodePattern.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	return m[1]
}
