// Package errors holds the sentinel error taxonomy shared by the
// services and the transport edges. Transport code maps categories to
// status codes with HTTPStatus; business code wraps the specific
// sentinels with fmt.Errorf("%w: ...") context.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Categories. Every specific sentinel wraps exactly one of these.
var (
	ErrValidation     = errors.New("invalid input")
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
)

var (
	ErrEmptyMessage   = fmt.Errorf("%w: message is empty", ErrValidation)
	ErrMessageTooLong = fmt.Errorf("%w: message exceeds maximum length", ErrValidation)
	ErrSelfRequest    = fmt.Errorf("%w: cannot send a contact request to yourself", ErrValidation)
	ErrWeakPassword   = fmt.Errorf("%w: password does not meet complexity requirements", ErrValidation)

	ErrInvalidToken       = fmt.Errorf("%w: invalid or missing token", ErrAuthentication)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)

	ErrUserNotFound     = fmt.Errorf("%w: user", ErrNotFound)
	ErrSenderNotFound   = fmt.Errorf("%w: sender", ErrNotFound)
	ErrReceiverNotFound = fmt.Errorf("%w: receiver", ErrNotFound)
	// ErrMessageNotFound also covers ownership mismatches on edit and
	// delete: a foreign message must be indistinguishable from an
	// absent one.
	ErrMessageNotFound = fmt.Errorf("%w: message", ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("%w: contact request", ErrNotFound)

	ErrNotContacts    = fmt.Errorf("%w: users are not contacts", ErrForbidden)
	ErrNotParticipant = fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)

	ErrAlreadyContacts = fmt.Errorf("%w: already contacts", ErrConflict)
	ErrRequestPending  = fmt.Errorf("%w: request already sent", ErrConflict)
	ErrUsernameTaken   = fmt.Errorf("%w: username already registered", ErrConflict)
	ErrEmailTaken      = fmt.Errorf("%w: email already registered", ErrConflict)
)

// HTTPStatus maps an error to the response status of the synchronous
// surface. Unknown errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Is re-exports the stdlib matcher so callers of this package do not
// need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }
