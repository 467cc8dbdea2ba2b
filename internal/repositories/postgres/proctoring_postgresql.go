package postgres

import (
	"context"
	"fmt"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type ProctoringEventPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewProctoringEventPostgreSQL(db *gorm.DB) repositories.ProctoringEventRepository {
	return &ProctoringEventPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (p *ProctoringEventPostgreSQL) Create(ctx context.Context, tx *gorm.DB, event *models.ProctoringEvent) error {
	db := p.getDB(tx)
	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create proctoring event: %w", err)
	}
	return nil
}

func (p *ProctoringEventPostgreSQL) GetBySubmission(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string, filters repositories.ProctoringEventFilters) ([]*models.ProctoringEvent, int64, error) {
	db := p.getDB(tx)
	var events []*models.ProctoringEvent
	var total int64

	query := p.helpers.Scoped(db.WithContext(ctx).Model(&models.ProctoringEvent{}), scope).
		Where("submission_id = ?", submissionID)
	query = p.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Recording order, not occurred_at: the client supplies occurred_at
	// and must not be able to reorder the report.
	query = query.Order("created_at ASC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

func (p *ProctoringEventPostgreSQL) CountBySeverity(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string) (map[models.Severity]int64, error) {
	db := p.getDB(tx)
	var rows []struct {
		Severity models.Severity
		Count    int64
	}

	if err := p.helpers.Scoped(db.WithContext(ctx).Model(&models.ProctoringEvent{}), scope).
		Where("submission_id = ?", submissionID).
		Select("severity, COUNT(*) as count").
		Group("severity").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count events by severity: %w", err)
	}

	counts := make(map[models.Severity]int64, len(rows))
	for _, row := range rows {
		counts[row.Severity] = row.Count
	}
	return counts, nil
}

func (p *ProctoringEventPostgreSQL) CountByType(ctx context.Context, tx *gorm.DB, scope models.Scope, submissionID string, eventType models.ProctorEventType) (int64, error) {
	db := p.getDB(tx)
	var count int64
	err := p.helpers.Scoped(db.WithContext(ctx).Model(&models.ProctoringEvent{}), scope).
		Where("submission_id = ? AND type = ?", submissionID, eventType).
		Count(&count).Error
	return count, err
}

func (p *ProctoringEventPostgreSQL) applyFilters(query *gorm.DB, filters repositories.ProctoringEventFilters) *gorm.DB {
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.Severity != nil {
		query = query.Where("severity = ?", *filters.Severity)
	}
	if filters.DateFrom != nil {
		query = query.Where("occurred_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("occurred_at <= ?", *filters.DateTo)
	}
	return query
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (p *ProctoringEventPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}
