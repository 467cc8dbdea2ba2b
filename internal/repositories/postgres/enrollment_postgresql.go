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

type EnrollmentPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewEnrollmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *EnrollmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Create(enrollment).Error; err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	e.cacheManager.Exists.Delete(ctx, e.enrollmentKey(enrollment.ClientID, enrollment.CourseID, enrollment.StudentID))
	return nil
}

func (e *EnrollmentPostgreSQL) GetByCourseAndStudent(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID, studentID string) (*models.Enrollment, error) {
	db := e.getDB(tx)
	var enrollment models.Enrollment
	if err := e.helpers.Scoped(db.WithContext(ctx), scope).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &enrollment, nil
}

// IsActivelyEnrolled answers the attempt-start gate. Results are
// cached briefly; enrollment churn during an exam window is rare.
func (e *EnrollmentPostgreSQL) IsActivelyEnrolled(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID, studentID string) (bool, error) {
	db := e.getDB(tx)
	cacheKey := e.enrollmentKey(scope.ClientID, courseID, studentID)

	cached, err := e.cacheManager.Exists.GetString(ctx, cacheKey)
	if err == nil {
		return cached == "true", nil
	}

	var count int64
	if err := e.helpers.Scoped(db.WithContext(ctx).Model(&models.Enrollment{}), scope).
		Where("course_id = ? AND student_id = ? AND status = ?", courseID, studentID, models.EnrollmentActive).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}

	enrolled := count > 0
	e.cacheManager.Exists.SetString(ctx, cacheKey, fmt.Sprintf("%t", enrolled), cache.ExistsCacheConfig.TTL)

	return enrolled, nil
}

func (e *EnrollmentPostgreSQL) enrollmentKey(clientID, courseID, studentID string) string {
	return fmt.Sprintf("enrolled:%s:%s:%s", clientID, courseID, studentID)
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (e *EnrollmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}
