package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionPostgreSQL implements SubmissionRepository. Submission
// rows are deliberately not cached: answer saves are last-write-wins
// and a stale cached read would resurrect overwritten answers.
type SubmissionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Omit("Exam").Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := s.helpers.Scoped(db.WithContext(ctx), scope).
		First(&submission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByIDWithExam(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := s.helpers.Scoped(db.WithContext(ctx), scope).
		Preload("Exam").
		First(&submission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get submission with exam: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Omit("Exam").Save(submission).Error; err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	return nil
}

func (s *SubmissionPostgreSQL) GetOpen(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := s.helpers.Scoped(db.WithContext(ctx), scope).
		Where("exam_id = ? AND student_id = ? AND completed_at IS NULL", examID, studentID).
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetOpenForUpdate locks the open submission row for the rest of the
// surrounding transaction. Concurrent starts serialize here; the
// partial unique index catches whoever got past the empty read.
func (s *SubmissionPostgreSQL) GetOpenForUpdate(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := s.helpers.Scoped(db.WithContext(ctx), scope).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("exam_id = ? AND student_id = ? AND completed_at IS NULL", examID, studentID).
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) CountByStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, studentID string) (int64, error) {
	db := s.getDB(tx)
	var count int64
	err := s.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error
	return count, err
}

func (s *SubmissionPostgreSQL) List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	db := s.getDB(tx)
	var submissions []*models.Submission
	var total int64

	query := s.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope)
	query = s.helpers.ApplySubmissionFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = s.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Exam").Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (s *SubmissionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.ExamID = &examID
	return s.List(ctx, tx, scope, filters)
}

func (s *SubmissionPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, studentID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.StudentID = &studentID
	return s.List(ctx, tx, scope, filters)
}

func (s *SubmissionPostgreSQL) UpdateAnswers(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, answers []byte, timeRemaining *int) error {
	db := s.getDB(tx)
	updates := map[string]interface{}{
		"answers": answers,
	}
	if timeRemaining != nil {
		updates["time_remaining_seconds"] = *timeRemaining
	}

	result := s.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update answers: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Seal marks the submission completed. A second seal matches zero rows
// and reports not found.
func (s *SubmissionPostgreSQL) Seal(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, completedAt time.Time) error {
	db := s.getDB(tx)
	result := s.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"completed_at": completedAt,
			"submitted_at": completedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to seal submission: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SubmissionPostgreSQL) UpdateGrade(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, updates map[string]interface{}) error {
	db := s.getDB(tx)
	result := s.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update grade: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementCounter bumps a proctoring counter in SQL so concurrent
// events never lose increments. The column name is whitelisted.
func (s *SubmissionPostgreSQL) IncrementCounter(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, column string, delta int) error {
	allowed := map[string]bool{
		"tab_switch_count":   true,
		"copy_attempt_count": true,
	}
	if !allowed[column] {
		return fmt.Errorf("counter column %q is not incrementable", column)
	}

	db := s.getDB(tx)
	result := s.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope).
		Where("id = ?", id).
		Update(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to increment %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SubmissionPostgreSQL) SetIdentityVerified(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, verified bool) error {
	db := s.getDB(tx)
	result := s.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope).
		Where("id = ?", id).
		Update("identity_verified", verified)
	if result.Error != nil {
		return fmt.Errorf("failed to set identity verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SubmissionPostgreSQL) UpdateProctoringStatus(ctx context.Context, tx *gorm.DB, scope models.Scope, id string, status models.ProctoringStatus) error {
	db := s.getDB(tx)
	result := s.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope).
		Where("id = ?", id).
		Update("proctoring_status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update proctoring status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (s *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
