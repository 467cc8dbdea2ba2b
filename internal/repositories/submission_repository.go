package repositories

import (
	"context"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
	"gorm.io/gorm"
)

// SubmissionRepository interface for attempt rows
type SubmissionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Submission, error)
	GetByIDWithExam(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Submission, error)
	Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error

	// Open-attempt lookup. GetOpenForUpdate takes a row lock and must
	// run inside a transaction; it returns gorm.ErrRecordNotFound when
	// no open submission exists.
	GetOpen(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (*models.Submission, error)
	GetOpenForUpdate(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (*models.Submission, error)

	// Attempt accounting
	CountByStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (int64, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters SubmissionFilters) ([]*models.Submission, int64, error)
	GetByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string, filters SubmissionFilters) ([]*models.Submission, int64, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, studentID string, filters SubmissionFilters) ([]*models.Submission, int64, error)

	// Partial updates
	UpdateAnswers(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, answers []byte, timeRemaining *int) error
	Seal(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, completedAt time.Time) error
	UpdateGrade(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, updates map[string]interface{}) error

	// Proctoring counters, incremented atomically in SQL
	IncrementCounter(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, column string, delta int) error
	SetIdentityVerified(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, verified bool) error
	UpdateProctoringStatus(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, status models.ProctoringStatus) error
}

// ProctoringEventRepository interface for the append-only event log
type ProctoringEventRepository interface {
	Create(ctx context.Context, tx *gorm.DB, event *models.ProctoringEvent) error
	GetBySubmission(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string, filters ProctoringEventFilters) ([]*models.ProctoringEvent, int64, error)
	CountBySeverity(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string) (map[models.Severity]int64, error)
	CountByType(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string, eventType models.ProctorEventType) (int64, error)
}

// EnrollmentRepository interface for course membership checks
type EnrollmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error
	GetByCourseAndStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID, studentID string) (*models.Enrollment, error)
	IsActivelyEnrolled(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID, studentID string) (bool, error)
}
