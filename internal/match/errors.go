package match

import "errors"

var (
	// ErrAlreadyPaired is returned when a user with an active pairing issues
	// another match request. The session must be torn down via Next or Leave
	// first; silently re-queuing here would leave the partner believing it is
	// still paired.
	ErrAlreadyPaired = errors.New("already paired")

	// ErrNotRegistered is returned for operations on a user id with no
	// presence record (register was never received on this connection).
	ErrNotRegistered = errors.New("user not registered")
)
