package services

import "context"

// AttemptFailure is raised when a learner fails the last permitted attempt.
type AttemptFailure struct {
	TestID    uint `json:"test_id"`
	UserID    uint `json:"user_id"`
	AttemptID uint `json:"attempt_id"`
}

// Notifier receives fire-and-forget signals. Implementations own their
// error handling.
type Notifier interface {
	AttemptFailedByUser(ctx context.Context, f AttemptFailure)
}

type nopNotifier struct{}

func (nopNotifier) AttemptFailedByUser(context.Context, AttemptFailure) {}
