package services

import (
	"errors"
	"fmt"

	"github.com/learnsphere/exam-service/internal/models"
)

// ===== SENTINEL ERRORS =====

var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrSubmissionNotFound = errors.New("submission not found")

	ErrExamNotYetOpen     = errors.New("exam window has not opened yet")
	ErrExamWindowClosed   = errors.New("exam window has closed")
	ErrAttemptsExhausted  = errors.New("maximum number of attempts reached")
	ErrEnrollmentRequired = errors.New("student is not actively enrolled in the course")

	ErrSubmissionSealed           = errors.New("submission is sealed and no longer accepts answers")
	ErrSubmissionAlreadySubmitted = errors.New("submission has already been submitted")
	ErrSubmissionNotSubmitted     = errors.New("submission has not been submitted yet")

	ErrExamHasNoQuestions = errors.New("exam has no questions")
)

// ===== PERMISSION ERRORS =====

// PermissionError is returned when a user attempts an operation on a
// resource they do not own or lack the role for.
type PermissionError struct {
	UserID       string
	ResourceID   string
	ResourceType string
	Action       string
	Reason       string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s",
		e.UserID, e.Action, e.ResourceType, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID, resourceType, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:       userID,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Action:       action,
		Reason:       reason,
	}
}

func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// ===== BUSINESS RULE ERRORS =====

// BusinessRuleError is returned when an operation would violate a
// domain rule that is not a simple validation failure.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

func IsBusinessRuleError(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// ===== GENERATION ERRORS =====

// InsufficientPoolError is returned by paper generation when a draw
// cannot supply the requested number of questions. Difficulty is empty
// for a whole-pool draw. Generation fails as a whole; no partial paper
// is written.
type InsufficientPoolError struct {
	Difficulty models.DifficultyLevel
	Requested  int
	Available  int
}

func (e *InsufficientPoolError) Error() string {
	if e.Difficulty == "" {
		return fmt.Sprintf("insufficient question pool: requested %d, available %d",
			e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient question pool for difficulty %s: requested %d, available %d",
		e.Difficulty, e.Requested, e.Available)
}

func IsInsufficientPoolError(err error) bool {
	var ipe *InsufficientPoolError
	return errors.As(err, &ipe)
}
