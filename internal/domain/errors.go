package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates an unknown quiz id.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUserNotFound indicates an unknown wallet address or nickname.
	ErrUserNotFound = errors.New("user not found")
	// ErrNicknameTaken is returned when a nickname belongs to another wallet.
	ErrNicknameTaken = errors.New("nickname already taken")

	// ErrQuizNotStarted rejects a submission before the quiz window opens
	// (or, for manual-start quizzes, before the creator starts it).
	ErrQuizNotStarted = errors.New("quiz has not started")
	// ErrQuizExpired rejects a submission after the quiz window closes.
	ErrQuizExpired = errors.New("quiz has ended")
	// ErrNotRegistered rejects a submission to a registration-mode quiz
	// from a wallet that never registered.
	ErrNotRegistered = errors.New("user not registered for quiz")
	// ErrAlreadySubmitted enforces the one-attempt-per-user rule.
	ErrAlreadySubmitted = errors.New("user already attempted quiz")

	// ErrAlreadyRegistered is returned on duplicate registration.
	ErrAlreadyRegistered = errors.New("user already registered for quiz")
	// ErrNotRegistrable is returned when registering for a public quiz.
	ErrNotRegistrable = errors.New("quiz does not take registrations")
	// ErrNotCreator guards creator-only operations.
	ErrNotCreator = errors.New("only the quiz creator may do this")
	// ErrNotManualStart is returned when starting an auto-start quiz.
	ErrNotManualStart = errors.New("quiz is not manually started")
	// ErrAlreadyStarted is returned on a second manual start.
	ErrAlreadyStarted = errors.New("quiz already started")
)

// ValidationError reports the first constraint a quiz or question definition
// violates. It is always returned before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsRejection reports whether err is one of the attempt-rejection reasons,
// as opposed to a malformed definition or an unknown id.
func IsRejection(err error) bool {
	return errors.Is(err, ErrQuizNotStarted) ||
		errors.Is(err, ErrQuizExpired) ||
		errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrAlreadySubmitted)
}
