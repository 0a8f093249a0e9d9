package acquire

import (
	"errors"
	"fmt"
)

// The run-level error taxonomy. Login and captcha failures are noise (a
// misread challenge, a stale session) and are retried by the wrapper; a block
// is fatal for the order; everything else is structural and must surface.
var (
	// ErrLoginAuth marks a rejected or broken login. Retryable.
	ErrLoginAuth = errors.New("login rejected")

	// ErrCaptchaUnsolved marks a challenge the recognizer could not read
	// within its attempt budget. Retryable.
	ErrCaptchaUnsolved = errors.New("captcha unsolved")

	// ErrAttemptsExhausted is returned when the retry budget runs out without
	// either a success or a fatal error.
	ErrAttemptsExhausted = errors.New("all attempts exhausted")
)

// BlockedError reports that the portal has permanently refused the order.
// Never retried; the caller is expected to delete the order.
type BlockedError struct {
	OrderNumber int64
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("order %d blocked by portal", e.OrderNumber)
}

// IsBlocked reports whether err carries a permanent block.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

func retryable(err error) bool {
	return errors.Is(err, ErrLoginAuth) || errors.Is(err, ErrCaptchaUnsolved)
}
