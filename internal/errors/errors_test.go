package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestGetUserMessageUnwrapsChain(t *testing.T) {
	err := fmt.Errorf("handle answer: %w", ErrWrongAnswer)

	if got := GetUserMessage(err); got != ErrWrongAnswer.UserMsg {
		t.Fatalf("GetUserMessage = %q, want %q", got, ErrWrongAnswer.UserMsg)
	}
	if !errors.Is(err, ErrWrongAnswer) {
		t.Fatal("wrapped error should match ErrWrongAnswer")
	}
}

func TestGetUserMessageFallback(t *testing.T) {
	if got := GetUserMessage(errors.New("boom")); got == "" {
		t.Fatal("expected fallback message for plain errors")
	}
}

func TestWrapAndRetryable(t *testing.T) {
	base := errors.New("telegram: Too Many Requests")
	err := Wrap(base, "Try again shortly.", true)

	if !IsRetryable(err) {
		t.Fatal("wrapped error should be retryable")
	}
	if !errors.Is(err, base) {
		t.Fatal("Wrap should keep the technical error in the chain")
	}
	if IsRetryable(ErrNotYourChallenge) {
		t.Fatal("ErrNotYourChallenge should not be retryable")
	}
	if IsRetryable(base) {
		t.Fatal("plain errors are never retryable")
	}
}
