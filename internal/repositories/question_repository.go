package repositories

import (
	"context"

	"github.com/learnsphere/exam-service/internal/models"
	"gorm.io/gorm"
)

// QuestionBankRepository interface for question bank operations
type QuestionBankRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, entry *models.QuestionBankEntry) error
	GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.QuestionBankEntry, error)
	Update(ctx context.Context, tx *gorm.DB, entry *models.QuestionBankEntry) error
	Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) error

	// Bulk operations
	GetByIDs(ctx context.Context, tx *gorm.DB, scope models.Scope, ids []string) ([]*models.QuestionBankEntry, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters QuestionBankFilters) ([]*models.QuestionBankEntry, int64, error)
	Search(ctx context.Context, tx *gorm.DB, scope models.Scope, query string, filters QuestionBankFilters) ([]*models.QuestionBankEntry, int64, error)

	// Generation pool queries. CountPool reports how many entries the
	// criteria could draw; DrawPool returns at most criteria.Count of
	// them, randomly when Randomize is set, otherwise in stable
	// (created_at, id) order.
	CountPool(ctx context.Context, tx *gorm.DB, scope models.Scope, criteria PoolCriteria) (int64, error)
	DrawPool(ctx context.Context, tx *gorm.DB, scope models.Scope, criteria PoolCriteria) ([]*models.QuestionBankEntry, error)

	// Statistics
	GetPoolStats(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID string) (*PoolStats, error)

	// Validation
	IsUsedInExams(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (bool, error)
}
