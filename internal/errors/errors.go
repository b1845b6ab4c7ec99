package errors

import (
	"errors"
)

// UserError represents an error with both technical and user-friendly messages
type UserError struct {
	Err       error
	UserMsg   string
	Retryable bool
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Predefined errors
var (
	ErrNotYourChallenge = &UserError{
		Err:       errors.New("answer from a user other than the challenge subject"),
		UserMsg:   "This verification is not for you.",
		Retryable: false,
	}

	ErrWrongAnswer = &UserError{
		Err:       errors.New("wrong challenge answer"),
		UserMsg:   "Wrong answer. You have been removed from the group.",
		Retryable: false,
	}

	ErrChallengeInactive = &UserError{
		Err:       errors.New("challenge already resolved, expired or replaced"),
		UserMsg:   "",
		Retryable: false,
	}

	ErrUnauthorized = &UserError{
		Err:       errors.New("unauthorized user"),
		UserMsg:   "Sorry, you are not authorized to use this command.",
		Retryable: false,
	}
)

// ErrStoreInvariant is raised when the challenge store hands back a challenge
// for a subject other than the one requested.
var ErrStoreInvariant = errors.New("challenge store returned a mismatched subject")

// Wrap wraps a technical error with a user message
func Wrap(err error, userMsg string, retryable bool) *UserError {
	return &UserError{
		Err:       err,
		UserMsg:   userMsg,
		Retryable: retryable,
	}
}

// GetUserMessage extracts user-friendly message from error
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMsg
	}
	// Default message for unexpected errors
	return "An unexpected error occurred. Please try again later."
}

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Retryable
	}
	return false
}
