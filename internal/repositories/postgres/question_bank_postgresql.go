package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/learnsphere/exam-service/internal/cache"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type QuestionBankPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionBankPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionBankRepository {
	return &QuestionBankPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (qb *QuestionBankPostgreSQL) Create(ctx context.Context, tx *gorm.DB, entry *models.QuestionBankEntry) error {
	db := qb.getDB(tx)
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create question bank entry: %w", err)
	}
	return nil
}

func (qb *QuestionBankPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (*models.QuestionBankEntry, error) {
	db := qb.getDB(tx)
	cacheKey := fmt.Sprintf("question:%s:%s", scope.ClientID, id)
	var entry models.QuestionBankEntry

	err := qb.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &entry, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbEntry models.QuestionBankEntry
		if err := qb.helpers.Scoped(db.WithContext(ctx), scope).
			First(&dbEntry, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get question bank entry: %w", err)
		}
		return &dbEntry, nil
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (qb *QuestionBankPostgreSQL) Update(ctx context.Context, tx *gorm.DB, entry *models.QuestionBankEntry) error {
	db := qb.getDB(tx)
	if err := db.WithContext(ctx).Save(entry).Error; err != nil {
		return fmt.Errorf("failed to update question bank entry: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, qb.cacheManager, entry.ClientID, entry.ID)
	return nil
}

func (qb *QuestionBankPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) error {
	db := qb.getDB(tx)
	result := qb.helpers.Scoped(db.WithContext(ctx), scope).Delete(&models.QuestionBankEntry{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete question bank entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.InvalidateQuestionCache(ctx, qb.cacheManager, scope.ClientID, id)
	return nil
}

func (qb *QuestionBankPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, scope models.Scope, ids []string) ([]*models.QuestionBankEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := qb.getDB(tx)
	var entries []*models.QuestionBankEntry
	if err := qb.helpers.Scoped(db.WithContext(ctx), scope).
		Where("id IN ?", ids).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get question bank entries: %w", err)
	}
	return entries, nil
}

func (qb *QuestionBankPostgreSQL) List(ctx context.Context, tx *gorm.DB, scope models.Scope, filters repositories.QuestionBankFilters) ([]*models.QuestionBankEntry, int64, error) {
	db := qb.getDB(tx)
	var entries []*models.QuestionBankEntry
	var total int64

	query := qb.helpers.Scoped(db.WithContext(ctx).Model(&models.QuestionBankEntry{}), scope)
	query = qb.helpers.ApplyBankFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = qb.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (qb *QuestionBankPostgreSQL) Search(ctx context.Context, tx *gorm.DB, scope models.Scope, query string, filters repositories.QuestionBankFilters) ([]*models.QuestionBankEntry, int64, error) {
	filters.Search = query
	return qb.List(ctx, tx, scope, filters)
}

func (qb *QuestionBankPostgreSQL) CountPool(ctx context.Context, tx *gorm.DB, scope models.Scope, criteria repositories.PoolCriteria) (int64, error) {
	db := qb.getDB(tx)
	var count int64
	if err := qb.poolQuery(db.WithContext(ctx), scope, criteria).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count pool: %w", err)
	}
	return count, nil
}

func (qb *QuestionBankPostgreSQL) DrawPool(ctx context.Context, tx *gorm.DB, scope models.Scope, criteria repositories.PoolCriteria) ([]*models.QuestionBankEntry, error) {
	db := qb.getDB(tx)
	query := qb.poolQuery(db.WithContext(ctx), scope, criteria)

	if criteria.Randomize {
		query = query.Order("RANDOM()")
	} else {
		// Stable order keeps non-randomized generation repeatable.
		query = query.Order("created_at ASC, id ASC")
	}
	if criteria.Count > 0 {
		query = query.Limit(criteria.Count)
	}

	var entries []*models.QuestionBankEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to draw pool: %w", err)
	}
	return entries, nil
}

func (qb *QuestionBankPostgreSQL) poolQuery(db *gorm.DB, scope models.Scope, criteria repositories.PoolCriteria) *gorm.DB {
	query := qb.helpers.Scoped(db.Model(&models.QuestionBankEntry{}), scope).
		Where("course_id = ? AND is_active = true", criteria.CourseID)

	if criteria.Difficulty != "" {
		query = query.Where("difficulty = ?", criteria.Difficulty)
	}
	if len(criteria.QuestionTypes) > 0 {
		query = query.Where("type IN ?", criteria.QuestionTypes)
	}
	if len(criteria.ModuleIDs) > 0 {
		// Overlap with any requested module via jsonb containment.
		cond := qb.db.Where("module_ids @> ?", singletonJSONArray(criteria.ModuleIDs[0]))
		for _, moduleID := range criteria.ModuleIDs[1:] {
			cond = cond.Or("module_ids @> ?", singletonJSONArray(moduleID))
		}
		query = query.Where(cond)
	}
	if len(criteria.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", criteria.ExcludeIDs)
	}
	return query
}

func (qb *QuestionBankPostgreSQL) GetPoolStats(ctx context.Context, tx *gorm.DB, scope models.Scope, courseID string) (*repositories.PoolStats, error) {
	db := qb.getDB(tx)
	stats := &repositories.PoolStats{
		EntriesByType: make(map[models.QuestionType]int),
		EntriesByDiff: make(map[models.DifficultyLevel]int),
	}

	base := func() *gorm.DB {
		return qb.helpers.Scoped(db.WithContext(ctx).Model(&models.QuestionBankEntry{}), scope).
			Where("course_id = ?", courseID)
	}

	var total, active int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_active = true").Count(&active).Error; err != nil {
		return nil, err
	}
	stats.TotalEntries = int(total)
	stats.ActiveEntries = int(active)
	stats.InactiveEntries = int(total - active)

	var byType []struct {
		Type  models.QuestionType
		Count int
	}
	if err := base().Select("type, COUNT(*) as count").Group("type").Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, row := range byType {
		stats.EntriesByType[row.Type] = row.Count
	}

	var byDiff []struct {
		Difficulty models.DifficultyLevel
		Count      int
	}
	if err := base().Select("difficulty, COUNT(*) as count").Group("difficulty").Scan(&byDiff).Error; err != nil {
		return nil, err
	}
	for _, row := range byDiff {
		stats.EntriesByDiff[row.Difficulty] = row.Count
	}

	return stats, nil
}

func (qb *QuestionBankPostgreSQL) IsUsedInExams(ctx context.Context, tx *gorm.DB, scope models.Scope, id string) (bool, error) {
	db := qb.getDB(tx)
	var count int64
	if err := qb.helpers.Scoped(db.WithContext(ctx).Model(&models.ExamQuestion{}), scope).
		Where("question_id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check question usage: %w", err)
	}
	return count > 0, nil
}

func singletonJSONArray(id string) string {
	raw, _ := json.Marshal([]string{id})
	return string(raw)
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (qb *QuestionBankPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return qb.db
}
