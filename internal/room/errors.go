package room

import "errors"

// Error taxonomy for the coordinator. Validation and permission errors are
// never retried; ErrRoomClosed is the distinct not-found condition clients
// must render instead of loading forever.
var (
	ErrRoomClosed     = errors.New("room closed or expired")
	ErrInvalidCode    = errors.New("room code must be six digits")
	ErrInvalidConfig  = errors.New("room configuration out of range")
	ErrInvalidGuess   = errors.New("guess not in word list")
	ErrNotHost        = errors.New("only the host may do this")
	ErrNotPlayer      = errors.New("player is not in this room")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyStarted = errors.New("room has already started")
	ErrNotAllReady    = errors.New("not all players are ready")
	ErrBadTransition  = errors.New("invalid room status transition")
	ErrCodeExhausted  = errors.New("could not allocate an unused room code")
)

// IsPermission reports whether err is a permission failure, which callers
// must surface immediately rather than queue for retry.
func IsPermission(err error) bool {
	return errors.Is(err, ErrNotHost) || errors.Is(err, ErrNotPlayer)
}

// IsValidation reports whether err was rejected before any store write.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidGuess)
}
