package repositories

import (
	"context"

	"github.com/learnsphere/exam-service/internal/models"
	"gorm.io/gorm"
)

// ExamRepository interface for exam-specific operations
type ExamRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters ExamFilters) ([]*models.Exam, int64, error)
	GetByCourse(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID string, filters ExamFilters) ([]*models.Exam, int64, error)

	// Statistics
	GetExamStats(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*ExamStats, error)
}

// ExamQuestionRepository interface for the exam paper rows
type ExamQuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.ExamQuestion) error
	Update(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error
	Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string) error
	DeleteByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) error

	// Query operations
	GetByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) ([]*models.ExamQuestion, error)
	GetByExamAndQuestion(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string) (*models.ExamQuestion, error)
	GetQuestionIDs(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) ([]string, error)

	// Sequence management
	Count(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error)
	MaxSequence(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error)
	Resequence(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string, orders []SequenceAssignment) error
	CompactSequences(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) error

	// Points
	UpdatePoints(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string, points *int) error
	TotalPoints(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error)
}
