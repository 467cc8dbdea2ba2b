package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Warning thresholds for the derived proctoring status.
const (
	suspiciousWarningCount = 3
)

type proctoringService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewProctoringService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) ProctoringService {
	return &proctoringService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== EVENT RECORDING =====

// RecordEvent appends one proctoring event and updates the aggregated
// counters on the submission row. Counter increments run as SQL
// expressions so concurrent events never lose updates.
func (s *proctoringService) RecordEvent(ctx context.Context, scope models.Scope, submissionID string, req *RecordProctorEventRequest) (*models.ProctoringEvent, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByID(ctx, s.db, scope, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if submission.StudentID != scope.UserID {
		return nil, NewPermissionError(scope.UserID, submissionID, "submission", "record_event", "not the attempt owner")
	}
	if submission.IsSealed() {
		return nil, ErrSubmissionSealed
	}

	severity := models.DefaultSeverity(req.Type)
	if req.Severity != nil {
		severity = *req.Severity
	}
	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	event := &models.ProctoringEvent{
		ClientID:     scope.ClientID,
		SubmissionID: submissionID,
		Type:         req.Type,
		Severity:     severity,
		OccurredAt:   occurredAt,
		PhotoURL:     req.PhotoURL,
	}
	if req.Details != nil {
		raw, err := json.Marshal(req.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event details: %w", err)
		}
		event.Details = raw
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.ProctoringEvent().Create(ctx, nil, event); err != nil {
			return fmt.Errorf("failed to record event: %w", err)
		}

		switch req.Type {
		case models.EventTabSwitch:
			if err := txRepo.Submission().IncrementCounter(ctx, nil, scope, submissionID, "tab_switch_count", 1); err != nil {
				return fmt.Errorf("failed to increment tab switches: %w", err)
			}
		case models.EventCopyAttempt, models.EventPasteAttempt:
			if err := txRepo.Submission().IncrementCounter(ctx, nil, scope, submissionID, "copy_attempt_count", 1); err != nil {
				return fmt.Errorf("failed to increment copy attempts: %w", err)
			}
		case models.EventIdentityVerified:
			if err := txRepo.Submission().SetIdentityVerified(ctx, nil, scope, submissionID, true); err != nil {
				return fmt.Errorf("failed to mark identity verified: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Analyze(ctx, scope, submissionID); err != nil {
		s.logger.Warn("Failed to refresh proctoring status",
			"submission_id", submissionID,
			"error", err)
	}

	if severity == models.SeverityViolation {
		s.publishViolation(ctx, scope, submission, event)
	}

	s.logger.Debug("Proctoring event recorded",
		"submission_id", submissionID,
		"type", req.Type,
		"severity", severity)

	return event, nil
}

// ===== ANALYSIS =====

// Analyze derives the submission's proctoring status from the recorded
// events. Any violation wins outright; otherwise three or more
// warnings read as suspicious and one or two as flagged.
func (s *proctoringService) Analyze(ctx context.Context, scope models.Scope, submissionID string) (models.ProctoringStatus, error) {
	counts, err := s.repo.ProctoringEvent().CountBySeverity(ctx, s.db, scope, submissionID)
	if err != nil {
		return "", fmt.Errorf("failed to count events: %w", err)
	}

	status := models.ProctoringClear
	switch {
	case counts[models.SeverityViolation] > 0:
		status = models.ProctoringViolation
	case counts[models.SeverityWarning] >= suspiciousWarningCount:
		status = models.ProctoringSuspicious
	case counts[models.SeverityWarning] > 0:
		status = models.ProctoringFlagged
	}

	if err := s.repo.Submission().UpdateProctoringStatus(ctx, s.db, scope, submissionID, status); err != nil {
		return "", fmt.Errorf("failed to update proctoring status: %w", err)
	}
	return status, nil
}

// ===== REPORTING =====

func (s *proctoringService) GetReport(ctx context.Context, scope models.Scope, submissionID string) (*models.ProctoringReport, error) {
	submission, err := s.getVisibleSubmission(ctx, scope, submissionID)
	if err != nil {
		return nil, err
	}

	eventRows, total, err := s.repo.ProctoringEvent().GetBySubmission(ctx, s.db, scope, submissionID, repositories.ProctoringEventFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	counts, err := s.repo.ProctoringEvent().CountBySeverity(ctx, s.db, scope, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	report := &models.ProctoringReport{
		SubmissionID:     submission.ID,
		ExamID:           submission.ExamID,
		StudentID:        submission.StudentID,
		Status:           submission.ProctoringStatus,
		TabSwitchCount:   submission.TabSwitchCount,
		CopyAttemptCount: submission.CopyAttemptCount,
		IdentityVerified: submission.IdentityVerified,
		TotalEvents:      total,
		SeverityCounts:   counts,
		GeneratedAt:      time.Now().UTC(),
	}
	for _, e := range eventRows {
		report.Events = append(report.Events, *e)
	}
	return report, nil
}

func (s *proctoringService) VerifyIdentity(ctx context.Context, scope models.Scope, submissionID string, photoURL *string) error {
	s.logger.Info("Verifying attempt identity", "submission_id", submissionID, "student_id", scope.UserID)

	_, err := s.RecordEvent(ctx, scope, submissionID, &RecordProctorEventRequest{
		Type:     models.EventIdentityVerified,
		PhotoURL: photoURL,
	})
	return err
}

// ExportExamReport writes an xlsx workbook with one row per submission
// of the exam, for offline review by the proctoring team.
func (s *proctoringService) ExportExamReport(ctx context.Context, scope models.Scope, examID string) ([]byte, error) {
	s.logger.Info("Exporting proctoring report", "exam_id", examID, "user_id", scope.UserID)

	exam, err := s.repo.Exam().GetByID(ctx, s.db, scope, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != scope.UserID {
		return nil, NewPermissionError(scope.UserID, examID, "exam", "export_report", "not the exam owner")
	}

	submissions, _, err := s.repo.Submission().GetByExam(ctx, s.db, scope, examID, repositories.SubmissionFilters{
		Limit:     1000,
		SortBy:    "started_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Proctoring"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Submission ID", "Student ID", "Attempt", "Started At", "Submitted At",
		"Proctoring Status", "Tab Switches", "Copy Attempts", "Identity Verified", "Total Events",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, sub := range submissions {
		_, totalEvents, err := s.repo.ProctoringEvent().GetBySubmission(ctx, s.db, scope, sub.ID, repositories.ProctoringEventFilters{Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("failed to count events for %s: %w", sub.ID, err)
		}

		submittedAt := ""
		if sub.SubmittedAt != nil {
			submittedAt = sub.SubmittedAt.Format(time.RFC3339)
		}
		values := []interface{}{
			sub.ID, sub.StudentID, sub.AttemptNumber,
			sub.StartedAt.Format(time.RFC3339), submittedAt,
			string(sub.ProctoringStatus), sub.TabSwitchCount, sub.CopyAttemptCount,
			sub.IdentityVerified, totalEvents,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ===== HELPERS =====

// getVisibleSubmission allows the attempt owner and the exam owner.
func (s *proctoringService) getVisibleSubmission(ctx context.Context, scope models.Scope, submissionID string) (*models.Submission, error) {
	submission, err := s.repo.Submission().GetByIDWithExam(ctx, s.db, scope, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if submission.StudentID != scope.UserID && submission.Exam.CreatedBy != scope.UserID {
		return nil, NewPermissionError(scope.UserID, submissionID, "submission", "view_report", "not the attempt or exam owner")
	}
	return submission, nil
}

func (s *proctoringService) publishViolation(ctx context.Context, scope models.Scope, submission *models.Submission, event *models.ProctoringEvent) {
	if s.eventPublisher == nil {
		return
	}
	err := s.eventPublisher.Publish(ctx, events.EventProctoringViolation, map[string]interface{}{
		"client_id":     scope.ClientID,
		"submission_id": submission.ID,
		"exam_id":       submission.ExamID,
		"student_id":    submission.StudentID,
		"event_type":    event.Type,
		"occurred_at":   event.OccurredAt,
	})
	if err != nil {
		s.logger.Warn("Failed to publish proctoring violation event",
			"submission_id", submission.ID,
			"error", err)
	}
}
