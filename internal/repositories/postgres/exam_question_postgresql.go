package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type ExamQuestionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewExamQuestionPostgreSQL(db *gorm.DB) repositories.ExamQuestionRepository {
	return &ExamQuestionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (eq *ExamQuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error {
	db := eq.getDB(tx)
	if err := db.WithContext(ctx).Omit("Question").Create(question).Error; err != nil {
		return fmt.Errorf("failed to create exam question: %w", err)
	}
	return nil
}

func (eq *ExamQuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.ExamQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	db := eq.getDB(tx)
	if err := db.WithContext(ctx).Omit("Question").CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create exam questions batch: %w", err)
	}
	return nil
}

func (eq *ExamQuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error {
	db := eq.getDB(tx)
	if err := db.WithContext(ctx).Omit("Question").Save(question).Error; err != nil {
		return fmt.Errorf("failed to update exam question: %w", err)
	}
	return nil
}

func (eq *ExamQuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string) error {
	db := eq.getDB(tx)
	result := eq.helpers.Scoped(db.WithContext(ctx), scope).
		Where("exam_id = ? AND question_id = ?", examID, questionID).
		Delete(&models.ExamQuestion{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete exam question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (eq *ExamQuestionPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) error {
	db := eq.getDB(tx)
	if err := eq.helpers.Scoped(db.WithContext(ctx), scope).
		Where("exam_id = ?", examID).
		Delete(&models.ExamQuestion{}).Error; err != nil {
		return fmt.Errorf("failed to clear exam questions: %w", err)
	}
	return nil
}

func (eq *ExamQuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) ([]*models.ExamQuestion, error) {
	db := eq.getDB(tx)
	var questions []*models.ExamQuestion
	if err := eq.helpers.Scoped(db.WithContext(ctx), scope).
		Where("exam_id = ?", examID).
		Order("sequence ASC").
		Preload("Question").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}
	return questions, nil
}

func (eq *ExamQuestionPostgreSQL) GetByExamAndQuestion(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string) (*models.ExamQuestion, error) {
	db := eq.getDB(tx)
	var question models.ExamQuestion
	if err := eq.helpers.Scoped(db.WithContext(ctx), scope).
		Where("exam_id = ? AND question_id = ?", examID, questionID).
		First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get exam question: %w", err)
	}
	return &question, nil
}

func (eq *ExamQuestionPostgreSQL) GetQuestionIDs(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) ([]string, error) {
	db := eq.getDB(tx)
	var ids []string
	if err := eq.helpers.Scoped(db.WithContext(ctx).Model(&models.ExamQuestion{}), scope).
		Where("exam_id = ?", examID).
		Order("sequence ASC").
		Pluck("question_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get question ids: %w", err)
	}
	return ids, nil
}

func (eq *ExamQuestionPostgreSQL) Count(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error) {
	db := eq.getDB(tx)
	var count int64
	if err := eq.helpers.Scoped(db.WithContext(ctx).Model(&models.ExamQuestion{}), scope).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (eq *ExamQuestionPostgreSQL) MaxSequence(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error) {
	db := eq.getDB(tx)
	var maxSeq int
	if err := eq.helpers.Scoped(db.WithContext(ctx).Model(&models.ExamQuestion{}), scope).
		Where("exam_id = ?", examID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error; err != nil {
		return 0, err
	}
	return maxSeq, nil
}

// Resequence rewrites every row's sequence in one transaction. Rows are
// parked at a negative offset first so the unique (exam_id, sequence)
// index never sees a duplicate mid-update.
func (eq *ExamQuestionPostgreSQL) Resequence(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string, orders []repositories.SequenceAssignment) error {
	if len(orders) == 0 {
		return nil
	}
	db := eq.getDB(tx)
	return db.WithContext(ctx).Transaction(func(txInner *gorm.DB) error {
		if err := eq.helpers.Scoped(txInner.Model(&models.ExamQuestion{}), scope).
			Where("exam_id = ?", examID).
			Update("sequence", gorm.Expr("-sequence")).Error; err != nil {
			return fmt.Errorf("failed to park sequences: %w", err)
		}

		for _, order := range orders {
			result := eq.helpers.Scoped(txInner.Model(&models.ExamQuestion{}), scope).
				Where("exam_id = ? AND question_id = ?", examID, order.QuestionID).
				Update("sequence", order.Sequence)
			if result.Error != nil {
				return fmt.Errorf("failed to resequence question %s: %w", order.QuestionID, result.Error)
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

// CompactSequences closes gaps after a removal so sequences stay
// contiguous from 1.
func (eq *ExamQuestionPostgreSQL) CompactSequences(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) error {
	questions, err := eq.GetByExam(ctx, tx, scope, examID)
	if err != nil {
		return err
	}

	orders := make([]repositories.SequenceAssignment, 0, len(questions))
	needsCompact := false
	for i, q := range questions {
		want := i + 1
		if q.Sequence != want {
			needsCompact = true
		}
		orders = append(orders, repositories.SequenceAssignment{QuestionID: q.QuestionID, Sequence: want})
	}
	if !needsCompact {
		return nil
	}
	return eq.Resequence(ctx, tx, scope, examID, orders)
}

func (eq *ExamQuestionPostgreSQL) UpdatePoints(ctx context.Context, tx *gorm.DB, scope models.Scope, examID, questionID string, points *int) error {
	db := eq.getDB(tx)
	result := eq.helpers.Scoped(db.WithContext(ctx).Model(&models.ExamQuestion{}), scope).
		Where("exam_id = ? AND question_id = ?", examID, questionID).
		Update("points_override", points)
	if result.Error != nil {
		return fmt.Errorf("failed to update points: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (eq *ExamQuestionPostgreSQL) TotalPoints(ctx context.Context, tx *gorm.DB, scope models.Scope, examID string) (int, error) {
	db := eq.getDB(tx)
	var total int64
	if err := db.WithContext(ctx).Model(&models.ExamQuestion{}).
		Where("exam_questions.client_id = ? AND exam_questions.exam_id = ?", scope.ClientID, examID).
		Joins("JOIN question_bank_entries q ON q.id = exam_questions.question_id").
		Select("COALESCE(SUM(COALESCE(exam_questions.points_override, q.points)), 0)").
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return int(total), nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (eq *ExamQuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return eq.db
}
