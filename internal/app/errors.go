package app

import "errors"

var (
	// ErrInvalidCredentials covers both unknown-username and wrong-password so
	// login responses cannot be used to probe for registered usernames.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrCardNotActive is returned when a card-initiated operation names a
	// card that is blocked or expired.
	ErrCardNotActive = errors.New("card is not active")

	// ErrCardGenerationExhausted is returned when card number generation
	// fails to produce an unused number within the retry budget.
	ErrCardGenerationExhausted = errors.New("card number generation exhausted")

	// ErrRateLimited is returned when the caller has exceeded the transfer
	// rate limit for the current window.
	ErrRateLimited = errors.New("too many transfer attempts")

	// ErrTransferFailed wraps an unexpected lower-layer failure during a
	// transfer. By the time it surfaces the store has already rolled back.
	ErrTransferFailed = errors.New("transfer failed")
)
