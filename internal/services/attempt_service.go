package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"gorm.io/gorm"
)

type attemptService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	reviewGateway  ReviewGateway

	// flexibleStartEndCap caps FLEXIBLE_START attempts at the exam's
	// end time when one is set.
	flexibleStartEndCap bool
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher, reviewGateway ReviewGateway, flexibleStartEndCap bool) AttemptService {
	return &attemptService{
		repo:                repo,
		db:                  db,
		logger:              logger,
		validator:           validator,
		eventPublisher:      eventPublisher,
		reviewGateway:       reviewGateway,
		flexibleStartEndCap: flexibleStartEndCap,
	}
}

// ===== START / RESUME =====

// Start opens an attempt on an exam, or resumes the student's open
// attempt if one exists. The question order and any option orders are
// frozen atomically with the row insert, so every later read replays
// exactly what the student first saw.
func (s *attemptService) Start(ctx context.Context, scope models.Scope, req *StartAttemptRequest) (*AttemptStartResponse, error) {
	s.logger.Info("Starting exam attempt",
		"exam_id", req.ExamID,
		"student_id", scope.UserID,
		"client_id", scope.ClientID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, scope, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if len(exam.Questions) == 0 {
		return nil, ErrExamHasNoQuestions
	}

	enrolled, err := s.repo.Enrollment().IsActivelyEnrolled(ctx, s.db, scope, exam.CourseID, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrEnrollmentRequired
	}

	var submission *models.Submission
	resumed := false

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		open, err := txRepo.Submission().GetOpenForUpdate(ctx, nil, scope, req.ExamID, scope.UserID)
		if err == nil {
			submission = open
			resumed = true
			return nil
		}
		if !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to look up open attempt: %w", err)
		}

		count, err := txRepo.Submission().CountByStudent(ctx, nil, scope, req.ExamID, scope.UserID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if exam.MaxAttempts != nil && count >= int64(*exam.MaxAttempts) {
			return ErrAttemptsExhausted
		}

		now := time.Now().UTC()
		if err := s.checkWindow(exam, now); err != nil {
			return err
		}

		fresh, err := s.buildSubmission(exam, scope, int(count)+1, now)
		if err != nil {
			return err
		}

		if err := txRepo.Submission().Create(ctx, nil, fresh); err != nil {
			if isUniqueViolation(err) {
				return err
			}
			return fmt.Errorf("failed to create submission: %w", err)
		}

		submission = fresh
		return nil
	})
	// The partial unique index on open submissions catches a concurrent
	// start that slipped past the empty read. The violation aborts the
	// transaction, so the winner's row is re-read outside it.
	if err != nil && isUniqueViolation(err) {
		open, getErr := s.repo.Submission().GetOpen(ctx, s.db, scope, req.ExamID, scope.UserID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to resume after concurrent start: %w", getErr)
		}
		submission = open
		resumed = true
	} else if err != nil {
		return nil, err
	}

	display, err := s.buildDisplay(ctx, scope, exam, submission)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam attempt started",
		"submission_id", submission.ID,
		"exam_id", req.ExamID,
		"attempt_number", submission.AttemptNumber,
		"resumed", resumed)

	return &AttemptStartResponse{SubmissionDisplay: *display, Resumed: resumed}, nil
}

// ===== PROGRESS =====

// SaveProgress overwrites the stored answers. Saves are last write
// wins; clients send the full answer set every time.
func (s *attemptService) SaveProgress(ctx context.Context, scope models.Scope, submissionID string, req *SaveProgressRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	submission, err := s.getOwnSubmission(ctx, scope, submissionID, "save")
	if err != nil {
		return err
	}
	if submission.IsSealed() {
		return ErrSubmissionSealed
	}

	exam, err := s.repo.Exam().GetByID(ctx, s.db, scope, submission.ExamID)
	if err != nil {
		return fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.TimingMode == models.TimingFixedWindow && exam.EndTime != nil && time.Now().UTC().After(*exam.EndTime) {
		return ErrExamWindowClosed
	}

	answers, err := json.Marshal(req.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	if err := s.repo.Submission().UpdateAnswers(ctx, s.db, scope, submissionID, answers, req.TimeRemainingSeconds); err != nil {
		if repositories.IsNotFoundError(err) {
			// Sealed between our read and the guarded update.
			return ErrSubmissionSealed
		}
		return fmt.Errorf("failed to save answers: %w", err)
	}

	s.logger.Debug("Attempt progress saved",
		"submission_id", submissionID,
		"answer_count", len(req.Answers))
	return nil
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, scope models.Scope, submissionID string, req *SubmitAttemptRequest) (*models.Submission, error) {
	s.logger.Info("Submitting exam attempt",
		"submission_id", submissionID,
		"student_id", scope.UserID)

	submission, err := s.getOwnSubmission(ctx, scope, submissionID, "submit")
	if err != nil {
		return nil, err
	}
	if submission.IsSealed() {
		return nil, ErrSubmissionAlreadySubmitted
	}

	now := time.Now().UTC()
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if req != nil && req.Answers != nil {
			answers, err := json.Marshal(req.Answers)
			if err != nil {
				return fmt.Errorf("failed to encode answers: %w", err)
			}
			if err := txRepo.Submission().UpdateAnswers(ctx, nil, scope, submissionID, answers, nil); err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrSubmissionAlreadySubmitted
				}
				return fmt.Errorf("failed to save final answers: %w", err)
			}
		}

		if err := txRepo.Submission().Seal(ctx, nil, scope, submissionID, now); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSubmissionAlreadySubmitted
			}
			return fmt.Errorf("failed to seal submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	submission, err = s.repo.Submission().GetByIDWithExam(ctx, s.db, scope, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload submission: %w", err)
	}

	s.publishSubmissionCompleted(ctx, scope, submission)

	// Review hand-off is best effort: the submission is already sealed
	// and a failed trigger must not fail the submit.
	if submission.Exam.ReviewMethod != models.ReviewMethodInstructor && s.reviewGateway != nil {
		if err := s.reviewGateway.TriggerReview(ctx, submission); err != nil {
			s.logger.Error("Failed to trigger review",
				"submission_id", submissionID,
				"error", err)
		}
	}

	s.logger.Info("Exam attempt submitted",
		"submission_id", submissionID,
		"attempt_number", submission.AttemptNumber)

	return submission, nil
}

// ===== DISPLAY =====

func (s *attemptService) GetForDisplay(ctx context.Context, scope models.Scope, submissionID string) (*models.SubmissionDisplay, error) {
	submission, err := s.getOwnSubmission(ctx, scope, submissionID, "view")
	if err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, scope, submission.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return s.buildDisplay(ctx, scope, exam, submission)
}

func (s *attemptService) ListMine(ctx context.Context, scope models.Scope, params models.ListSubmissionsParams) (*models.PaginatedResponse, error) {
	filters := submissionFilters(params)
	submissions, total, err := s.repo.Submission().GetByStudent(ctx, s.db, scope, scope.UserID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return buildPaginatedResponse(submissions, total, params.Page, filters.Limit), nil
}

// ===== INSTRUCTOR OPERATIONS =====

func (s *attemptService) GetByID(ctx context.Context, scope models.Scope, submissionID string) (*SubmissionResponse, error) {
	submission, err := s.repo.Submission().GetByIDWithExam(ctx, s.db, scope, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &SubmissionResponse{
		Submission: submission,
		CanResume:  !submission.IsSealed(),
		CanSubmit:  !submission.IsSealed(),
	}, nil
}

func (s *attemptService) ListByExam(ctx context.Context, scope models.Scope, examID string, params models.ListSubmissionsParams) (*models.PaginatedResponse, error) {
	if _, err := s.repo.Exam().GetByID(ctx, s.db, scope, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	filters := submissionFilters(params)
	submissions, total, err := s.repo.Submission().GetByExam(ctx, s.db, scope, examID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return buildPaginatedResponse(submissions, total, params.Page, filters.Limit), nil
}

// ManualGrade records an instructor score for a submitted attempt and
// derives the percentage and pass flag from the exam's paper.
func (s *attemptService) ManualGrade(ctx context.Context, scope models.Scope, submissionID string, req *ManualGradeRequest) (*models.Submission, error) {
	s.logger.Info("Manually grading submission",
		"submission_id", submissionID,
		"grader_id", scope.UserID,
		"score", req.Score)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByIDWithExam(ctx, s.db, scope, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if !submission.IsSealed() {
		return nil, ErrSubmissionNotSubmitted
	}
	if submission.Exam.CreatedBy != scope.UserID {
		return nil, NewPermissionError(scope.UserID, submissionID, "submission", "grade", "not the exam owner")
	}

	maxScore, err := s.repo.ExamQuestion().TotalPoints(ctx, s.db, scope, submission.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to total paper points: %w", err)
	}
	if maxScore <= 0 {
		return nil, NewBusinessRuleError("manual_grade", "exam paper has no points to grade against")
	}
	if req.Score > float64(maxScore) {
		return nil, NewBusinessRuleError("manual_grade", fmt.Sprintf("score %.1f exceeds the paper maximum of %d", req.Score, maxScore))
	}

	now := time.Now().UTC()
	percentage := req.Score / float64(maxScore) * 100
	passed := percentage >= submission.Exam.PassingScore

	updates := map[string]interface{}{
		"score":      req.Score,
		"max_score":  float64(maxScore),
		"percentage": percentage,
		"is_passed":  passed,
		"graded_at":  now,
		"graded_by":  scope.UserID,
		"status":     models.ReviewStatusInstructorReviewed,
	}
	if req.Feedback != nil {
		updates["feedback"] = *req.Feedback
	}
	if req.AiFeedback != nil {
		updates["ai_review_feedback"] = *req.AiFeedback
	}

	if err := s.repo.Submission().UpdateGrade(ctx, s.db, scope, submissionID, updates); err != nil {
		return nil, fmt.Errorf("failed to record grade: %w", err)
	}

	submission, err = s.repo.Submission().GetByIDWithExam(ctx, s.db, scope, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload submission: %w", err)
	}

	s.publishSubmissionGraded(ctx, scope, submission)

	s.logger.Info("Submission graded",
		"submission_id", submissionID,
		"percentage", percentage,
		"passed", passed)

	return submission, nil
}

// ===== HELPERS =====

func (s *attemptService) getOwnSubmission(ctx context.Context, scope models.Scope, submissionID, action string) (*models.Submission, error) {
	submission, err := s.repo.Submission().GetByID(ctx, s.db, scope, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if submission.StudentID != scope.UserID {
		return nil, NewPermissionError(scope.UserID, submissionID, "submission", action, "not the attempt owner")
	}
	return submission, nil
}

// checkWindow rejects starts before the exam opens in either timing
// mode; the hard end bound applies to FIXED_WINDOW only.
func (s *attemptService) checkWindow(exam *models.Exam, now time.Time) error {
	if exam.StartTime != nil && now.Before(*exam.StartTime) {
		return ErrExamNotYetOpen
	}
	if exam.TimingMode == models.TimingFixedWindow &&
		exam.EndTime != nil && !now.Before(*exam.EndTime) {
		return ErrExamWindowClosed
	}
	return nil
}

// effectiveLimit computes the attempt's time budget in seconds.
// FIXED_WINDOW attempts are clipped to the remaining window; a
// FLEXIBLE_START attempt gets the full limit unless the end cap is
// configured and an end time is set.
func (s *attemptService) effectiveLimit(exam *models.Exam, now time.Time) int {
	limit := exam.TimeLimitSeconds
	switch exam.TimingMode {
	case models.TimingFixedWindow:
		if exam.EndTime != nil {
			remaining := int(exam.EndTime.Sub(now).Seconds())
			if remaining < limit {
				limit = remaining
			}
		}
	case models.TimingFlexibleStart:
		if s.flexibleStartEndCap && exam.EndTime != nil {
			remaining := int(exam.EndTime.Sub(now).Seconds())
			if remaining < limit {
				limit = remaining
			}
		}
	}
	if limit < 0 {
		limit = 0
	}
	return limit
}

// displayRemaining returns the countdown shown to the student. The
// heartbeat value is advisory only: it is clipped to the server-side
// bound derived from the attempt start and the exam window, so a
// stale or oversized value can never extend the attempt.
func (s *attemptService) displayRemaining(exam *models.Exam, submission *models.Submission, now time.Time) int {
	if submission.IsSealed() {
		return 0
	}

	bound := exam.TimeLimitSeconds - int(now.Sub(submission.StartedAt).Seconds())
	if capped := s.effectiveLimit(exam, now); capped < bound {
		bound = capped
	}
	if bound < 0 {
		bound = 0
	}

	remaining := bound
	if submission.TimeRemainingSeconds != nil && *submission.TimeRemainingSeconds < remaining {
		remaining = *submission.TimeRemainingSeconds
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// buildSubmission freezes the randomization for a fresh attempt.
func (s *attemptService) buildSubmission(exam *models.Exam, scope models.Scope, attemptNumber int, now time.Time) (*models.Submission, error) {
	seed := now.UnixNano()

	ids := make([]string, len(exam.Questions))
	for i, q := range exam.Questions {
		ids[i] = q.QuestionID
	}
	if exam.RandomizeQuestions {
		ids = PermuteIDs(ids, seed)
	}
	questionOrder, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode question order: %w", err)
	}

	limit := s.effectiveLimit(exam, now)
	submission := &models.Submission{
		ClientID:             scope.ClientID,
		ExamID:               exam.ID,
		StudentID:            scope.UserID,
		AttemptNumber:        attemptNumber,
		StartedAt:            now,
		TimeRemainingSeconds: &limit,
		RandomSeed:           seed,
		QuestionOrder:        questionOrder,
		Status:               models.ReviewStatusPending,
		ProctoringStatus:     models.ProctoringClear,
	}

	if exam.RandomizeMcqOptions {
		optionOrders := make(map[string][]string)
		for _, q := range exam.Questions {
			if !q.Question.HasOptions() {
				continue
			}
			opts, err := q.Question.DecodedOptions()
			if err != nil {
				return nil, fmt.Errorf("failed to decode options for question %s: %w", q.QuestionID, err)
			}
			optIDs := make([]string, len(opts))
			for i, opt := range opts {
				optIDs[i] = opt.ID
			}
			optionOrders[q.QuestionID] = PermuteIDs(optIDs, OptionSeed(seed, q.QuestionID))
		}
		raw, err := json.Marshal(optionOrders)
		if err != nil {
			return nil, fmt.Errorf("failed to encode option orders: %w", err)
		}
		submission.McqOptionOrders = raw
	}

	return submission, nil
}

// buildDisplay replays the frozen orders against the current paper.
func (s *attemptService) buildDisplay(ctx context.Context, scope models.Scope, exam *models.Exam, submission *models.Submission) (*models.SubmissionDisplay, error) {
	byID := make(map[string]*models.ExamQuestion, len(exam.Questions))
	existing := make(map[string]struct{}, len(exam.Questions))
	for i := range exam.Questions {
		q := &exam.Questions[i]
		byID[q.QuestionID] = q
		existing[q.QuestionID] = struct{}{}
	}

	var persisted []string
	if len(submission.QuestionOrder) > 0 {
		if err := json.Unmarshal(submission.QuestionOrder, &persisted); err != nil {
			return nil, fmt.Errorf("failed to decode question order: %w", err)
		}
	}
	ordered := replayOrder(persisted, existing, s.logger, submission.ID)

	var optionOrders map[string][]string
	if len(submission.McqOptionOrders) > 0 {
		if err := json.Unmarshal(submission.McqOptionOrders, &optionOrders); err != nil {
			return nil, fmt.Errorf("failed to decode option orders: %w", err)
		}
	}

	var answers map[string]json.RawMessage
	if len(submission.Answers) > 0 {
		if err := json.Unmarshal(submission.Answers, &answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
	}

	questions := make([]models.DisplayQuestion, 0, len(ordered))
	for i, id := range ordered {
		q := byID[id]
		points := q.Question.Points
		if q.PointsOverride != nil {
			points = *q.PointsOverride
		}

		dq := models.DisplayQuestion{
			QuestionID: id,
			Sequence:   i + 1,
			Type:       q.Question.Type,
			Text:       q.Question.Text,
			Points:     points,
			Answer:     answers[id],
		}

		if q.Question.HasOptions() {
			opts, err := q.Question.DecodedOptions()
			if err != nil {
				return nil, fmt.Errorf("failed to decode options for question %s: %w", id, err)
			}
			dq.Options = displayOptions(opts, optionOrders[id], s.logger, submission.ID)
		}

		questions = append(questions, dq)
	}

	remaining := s.displayRemaining(exam, submission, time.Now().UTC())

	return &models.SubmissionDisplay{
		SubmissionID:         submission.ID,
		ExamID:               exam.ID,
		ExamTitle:            exam.Title,
		AttemptNumber:        submission.AttemptNumber,
		StartedAt:            submission.StartedAt,
		TimeRemainingSeconds: remaining,
		Sealed:               submission.IsSealed(),
		Questions:            questions,
	}, nil
}

// displayOptions renders options in the frozen order, stripping the
// grading fields. Without a frozen order the authored order is used.
func displayOptions(opts []models.Option, frozen []string, logger *slog.Logger, submissionID string) []models.DisplayOption {
	byID := make(map[string]models.Option, len(opts))
	existing := make(map[string]struct{}, len(opts))
	for _, opt := range opts {
		byID[opt.ID] = opt
		existing[opt.ID] = struct{}{}
	}

	order := frozen
	if order == nil {
		order = make([]string, len(opts))
		for i, opt := range opts {
			order[i] = opt.ID
		}
	} else {
		order = replayOrder(order, existing, logger, submissionID)
	}

	out := make([]models.DisplayOption, 0, len(order))
	for _, id := range order {
		opt := byID[id]
		out = append(out, models.DisplayOption{ID: opt.ID, Text: opt.Text})
	}
	return out
}

func submissionFilters(params models.ListSubmissionsParams) repositories.SubmissionFilters {
	size := pageSize(params.Size)
	return repositories.SubmissionFilters{
		ExamID:    params.ExamID,
		StudentID: params.StudentID,
		Status:    params.Status,
		OpenOnly:  params.OpenOnly,
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		Limit:     size,
		Offset:    params.Page * size,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
}

// isUniqueViolation matches the postgres duplicate-key error without
// binding to a specific driver error type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}

func (s *attemptService) publishSubmissionCompleted(ctx context.Context, scope models.Scope, submission *models.Submission) {
	if s.eventPublisher == nil {
		return
	}
	err := s.eventPublisher.Publish(ctx, events.EventSubmissionCompleted, map[string]interface{}{
		"client_id":      scope.ClientID,
		"submission_id":  submission.ID,
		"exam_id":        submission.ExamID,
		"student_id":     submission.StudentID,
		"attempt_number": submission.AttemptNumber,
		"submitted_at":   submission.SubmittedAt,
	})
	if err != nil {
		s.logger.Warn("Failed to publish submission completed event",
			"submission_id", submission.ID,
			"error", err)
	}
}

func (s *attemptService) publishSubmissionGraded(ctx context.Context, scope models.Scope, submission *models.Submission) {
	if s.eventPublisher == nil {
		return
	}
	err := s.eventPublisher.Publish(ctx, events.EventSubmissionGraded, map[string]interface{}{
		"client_id":     scope.ClientID,
		"submission_id": submission.ID,
		"exam_id":       submission.ExamID,
		"student_id":    submission.StudentID,
		"percentage":    submission.Percentage,
		"is_passed":     submission.IsPassed,
	})
	if err != nil {
		s.logger.Warn("Failed to publish submission graded event",
			"submission_id", submission.ID,
			"error", err)
	}
}
