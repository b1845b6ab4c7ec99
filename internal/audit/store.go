package audit

import (
	"context"
	"time"
)

// Outcome is the terminal state a challenge ended in.
type Outcome string

const (
	OutcomeVerified  Outcome = "verified"
	OutcomeRejected  Outcome = "rejected"
	OutcomeExpired   Outcome = "expired"
	OutcomeWithdrawn Outcome = "withdrawn"
)

// Verdict records how a single challenge was resolved
type Verdict struct {
	ChallengeID string
	Subject     int64
	SubjectName string
	ChatID      int64
	Outcome     Outcome
	IssuedAt    time.Time
	ResolvedAt  time.Time
}

// Store defines the interface for verdict persistence
type Store interface {
	// Record appends a verdict
	Record(ctx context.Context, v Verdict) error

	// Recent returns up to limit verdicts, newest first
	Recent(ctx context.Context, limit int) ([]Verdict, error)

	// Counts returns the number of verdicts per outcome
	Counts(ctx context.Context) (map[Outcome]int, error)

	// Close releases resources
	Close() error
}
