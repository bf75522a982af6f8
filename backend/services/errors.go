package services

import "errors"

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindAccess
	KindLimit
	KindNotFound
	KindDegenerate
)

// Error is a coded domain error. Compare with errors.Is against the
// package sentinels.
type Error struct {
	Code string
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(code string, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, msg: msg}
}

var (
	ErrLessonAccessRevoked     = newError("LESSON_ACCESS_REVOKED", KindAccess, "lesson access revoked")
	ErrPrerequisitesIncomplete = newError("PREREQUISITES_INCOMPLETE", KindAccess, "previous lessons are not completed")
	ErrPrerequisiteTestsFailed = newError("PREREQUISITE_TESTS_NOT_PASSED", KindAccess, "previous tests are not passed")
	ErrAttemptLimitReached     = newError("ATTEMPT_LIMIT_REACHED", KindLimit, "attempt limit reached")
	ErrCannotDecreaseExhausted = newError("CANNOT_DECREASE_EXHAUSTED", KindLimit, "attempt limit cannot go below used attempts")
	ErrAttemptClosed           = newError("ATTEMPT_CLOSED", KindLimit, "attempt is already closed")
	ErrAttemptConflict         = newError("ATTEMPT_CONFLICT", KindLimit, "another attempt was created concurrently")
	ErrAttemptNotFound         = newError("ATTEMPT_NOT_FOUND", KindNotFound, "attempt not found")
	ErrNoAttemptFound          = newError("NO_ATTEMPT_FOUND", KindNotFound, "no attempt found for this test")
	ErrTestNotFound            = newError("TEST_NOT_FOUND", KindNotFound, "test not found")
	ErrLessonNotFound          = newError("LESSON_NOT_FOUND", KindNotFound, "lesson not found")
	ErrCourseNotFound          = newError("COURSE_NOT_FOUND", KindNotFound, "course not found")
	ErrQuestionNotFound        = newError("QUESTION_NOT_FOUND", KindNotFound, "question not found")
	ErrAnswerNotFound          = newError("ANSWER_NOT_FOUND", KindNotFound, "answer not found")
	ErrUnscorableTest          = newError("UNSCORABLE_TEST", KindDegenerate, "test has no questions and cannot be scored")
	ErrMalformedQuestion       = newError("MALFORMED_QUESTION", KindDegenerate, "question cannot be scored")
)

// KindOf reports the kind of a domain error, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the domain error code, or an empty string.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
