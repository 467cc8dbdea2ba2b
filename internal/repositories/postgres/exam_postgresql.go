package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnsphere/exam-service/internal/cache"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Omit("Questions").Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	return nil
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Exam, error) {
	db := e.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%s:%s", scope.ClientID, id)
	var exam models.Exam

	err := e.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &exam, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := e.helpers.Scoped(db.WithContext(ctx), scope).
			First(&dbExam, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get exam: %w", err)
		}
		return &dbExam, nil
	})
	if err != nil {
		return nil, err
	}

	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := e.helpers.Scoped(db.WithContext(ctx), scope).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Questions.Question").
		First(&exam, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get exam with questions: %w", err)
	}

	exam.QuestionCount = len(exam.Questions)
	for _, q := range exam.Questions {
		if q.PointsOverride != nil {
			exam.TotalPoints += *q.PointsOverride
		} else {
			exam.TotalPoints += q.Question.Points
		}
	}

	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Omit("Questions").Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ClientID, exam.ID)
	return nil
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) error {
	db := e.getDB(tx)
	result := e.helpers.Scoped(db.WithContext(ctx), scope).Delete(&models.Exam{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, scope.ClientID, id)
	return nil
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := e.getDB(tx)
	var exams []*models.Exam
	var total int64

	query := e.helpers.Scoped(db.WithContext(ctx).Model(&models.Exam{}), scope)
	query = e.helpers.ApplyExamFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, err
	}

	return exams, total, nil
}

func (e *ExamPostgreSQL) GetByCourse(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.CourseID = &courseID
	return e.List(ctx, tx, scope, filters)
}

func (e *ExamPostgreSQL) GetExamStats(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*repositories.ExamStats, error) {
	db := e.getDB(tx)
	stats := &repositories.ExamStats{}

	total, err := e.helpers.CountSubmissions(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	stats.TotalSubmissions = int(total)

	var avgScore float64
	var completedCount, passedCount int64
	row := e.helpers.Scoped(db.WithContext(ctx).Model(&models.Submission{}), scope).
		Where("exam_id = ? AND completed_at IS NOT NULL", id).
		Select("COALESCE(AVG(percentage), 0), COUNT(*), SUM(CASE WHEN is_passed = true THEN 1 ELSE 0 END)").
		Row()
	if err := row.Scan(&avgScore, &completedCount, &passedCount); err != nil {
		return nil, fmt.Errorf("failed to aggregate submission stats: %w", err)
	}

	stats.CompletedSubmissions = int(completedCount)
	stats.AverageScore = avgScore
	if completedCount > 0 {
		stats.PassRate = float64(passedCount) / float64(completedCount) * 100
	}

	var questionCount int64
	if err := e.helpers.Scoped(db.WithContext(ctx).Model(&models.ExamQuestion{}), scope).
		Where("exam_id = ?", id).
		Count(&questionCount).Error; err != nil {
		return nil, err
	}
	stats.QuestionCount = int(questionCount)

	var totalPoints int64
	if err := db.WithContext(ctx).Model(&models.ExamQuestion{}).
		Where("exam_questions.client_id = ? AND exam_questions.exam_id = ?", scope.ClientID, id).
		Joins("JOIN question_bank_entries q ON q.id = exam_questions.question_id").
		Select("COALESCE(SUM(COALESCE(exam_questions.points_override, q.points)), 0)").
		Scan(&totalPoints).Error; err != nil {
		return nil, err
	}
	stats.TotalPoints = int(totalPoints)

	return stats, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}
