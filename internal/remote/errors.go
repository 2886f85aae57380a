package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a classified remote backend failure. Permanent errors describe
// payloads the backend will never accept (malformed row, constraint
// violation); retrying them cannot succeed. Everything else — network
// failures, expired auth, server errors, timeouts — is transient and will
// be retried on the next drain.
type Error struct {
	Status    int
	Message   string
	Permanent bool
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("remote error (%s, status %d): %s", kind, e.Status, e.Message)
}

// IsPermanent reports whether err is a permanent remote rejection.
func IsPermanent(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Permanent
}

func classify(status int, message string) *Error {
	permanent := false
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		// Structurally invalid payload or uniqueness/integrity violation.
		permanent = true
	}
	return &Error{Status: status, Message: message, Permanent: permanent}
}
