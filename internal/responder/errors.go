package responder

import "errors"

var (
	// ErrResponderNotFound is returned when no row exists for a UID.
	ErrResponderNotFound = errors.New("responder: not found")

	// ErrInvalidUID is returned for broadcast UIDs and unparsable stored UIDs.
	ErrInvalidUID = errors.New("responder: invalid uid")
)
