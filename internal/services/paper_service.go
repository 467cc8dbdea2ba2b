package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"gorm.io/gorm"
)

type paperService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewPaperService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) PaperService {
	return &paperService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== GENERATION =====

// GeneratePaper draws questions from the course pool and appends them
// to the exam paper, either per difficulty count or as a whole-pool
// draw of NumberOfQuestions. Every draw is filled exactly or the whole
// generation fails; a rolled back transaction leaves the paper
// untouched.
func (s *paperService) GeneratePaper(ctx context.Context, scope models.Scope, examID string, req *GeneratePaperRequest) (*models.GenerationResult, error) {
	s.logger.Info("Generating exam paper",
		"exam_id", examID,
		"user_id", scope.UserID,
		"easy", req.EasyCount,
		"medium", req.MediumCount,
		"hard", req.HardCount,
		"total", req.NumberOfQuestions,
		"clear_existing", req.ClearExisting)

	if errs := s.validator.ValidatePaperGenerate(req); len(errs) > 0 {
		return nil, errs
	}

	exam, err := s.getOwnedExam(ctx, scope, examID, "generate_paper")
	if err != nil {
		return nil, err
	}

	moduleIDs := req.ModuleIDs
	if len(moduleIDs) == 0 {
		moduleIDs, err = decodeStringSlice(exam.ModuleIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to decode exam module ids: %w", err)
		}
	}

	type drawBucket struct {
		difficulty models.DifficultyLevel
		count      int
	}
	var buckets []drawBucket
	if req.NumberOfQuestions > 0 {
		// Whole-pool draw: the empty difficulty matches every level.
		buckets = []drawBucket{{"", req.NumberOfQuestions}}
	} else {
		buckets = []drawBucket{
			{models.DifficultyEasy, req.EasyCount},
			{models.DifficultyMedium, req.MediumCount},
			{models.DifficultyHard, req.HardCount},
		}
	}

	randomize := exam.RandomizeQuestions
	if req.Randomize != nil {
		randomize = *req.Randomize
	}

	result := &models.GenerationResult{
		ExamID: examID,
		Drawn:  make(map[models.DifficultyLevel]int),
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		startSeq := 0
		excludeIDs := []string{}

		if req.ClearExisting {
			if err := txRepo.ExamQuestion().DeleteByExam(ctx, nil, scope, examID); err != nil {
				return fmt.Errorf("failed to clear existing paper: %w", err)
			}
		} else {
			maxSeq, err := txRepo.ExamQuestion().MaxSequence(ctx, nil, scope, examID)
			if err != nil {
				return fmt.Errorf("failed to read paper sequence: %w", err)
			}
			startSeq = maxSeq

			existing, err := txRepo.ExamQuestion().GetQuestionIDs(ctx, nil, scope, examID)
			if err != nil {
				return fmt.Errorf("failed to read existing paper questions: %w", err)
			}
			excludeIDs = existing
		}

		var drawn []*models.QuestionBankEntry
		for _, bucket := range buckets {
			if bucket.count == 0 {
				continue
			}

			criteria := repositories.PoolCriteria{
				CourseID:      exam.CourseID,
				ModuleIDs:     moduleIDs,
				Difficulty:    bucket.difficulty,
				QuestionTypes: req.QuestionTypes,
				ExcludeIDs:    excludeIDs,
				Count:         bucket.count,
				Randomize:     randomize,
			}

			label := string(bucket.difficulty)
			if label == "" {
				label = "question"
			}

			available, err := txRepo.QuestionBank().CountPool(ctx, nil, scope, criteria)
			if err != nil {
				return fmt.Errorf("failed to count %s pool: %w", label, err)
			}
			if available < int64(bucket.count) {
				return &InsufficientPoolError{
					Difficulty: bucket.difficulty,
					Requested:  bucket.count,
					Available:  int(available),
				}
			}

			entries, err := txRepo.QuestionBank().DrawPool(ctx, nil, scope, criteria)
			if err != nil {
				return fmt.Errorf("failed to draw %s pool: %w", label, err)
			}

			// Accounted per entry so a whole-pool draw still reports
			// how many of each difficulty landed on the paper.
			for _, entry := range entries {
				drawn = append(drawn, entry)
				excludeIDs = append(excludeIDs, entry.ID)
				result.Drawn[entry.Difficulty]++
			}
		}

		rows := make([]*models.ExamQuestion, len(drawn))
		for i, entry := range drawn {
			rows[i] = &models.ExamQuestion{
				ClientID:   scope.ClientID,
				ExamID:     examID,
				QuestionID: entry.ID,
				Sequence:   startSeq + i + 1,
			}
			rows[i].Question = *entry
		}
		if err := txRepo.ExamQuestion().CreateBatch(ctx, nil, rows); err != nil {
			return fmt.Errorf("failed to write generated paper: %w", err)
		}

		count, err := txRepo.ExamQuestion().Count(ctx, nil, scope, examID)
		if err != nil {
			return fmt.Errorf("failed to count paper: %w", err)
		}
		totalPoints, err := txRepo.ExamQuestion().TotalPoints(ctx, nil, scope, examID)
		if err != nil {
			return fmt.Errorf("failed to total paper points: %w", err)
		}

		result.QuestionCount = count
		result.TotalPoints = totalPoints
		for _, row := range rows {
			result.Questions = append(result.Questions, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishPaperGenerated(ctx, scope, result)

	s.logger.Info("Exam paper generated successfully",
		"exam_id", examID,
		"question_count", result.QuestionCount,
		"total_points", result.TotalPoints)

	return result, nil
}

// ===== MANUAL COMPOSITION =====

func (s *paperService) AddQuestions(ctx context.Context, scope models.Scope, examID string, req *AddQuestionsRequest) ([]models.ExamQuestion, error) {
	s.logger.Info("Adding questions to paper",
		"exam_id", examID,
		"question_count", len(req.QuestionIDs),
		"user_id", scope.UserID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.getOwnedExam(ctx, scope, examID, "add_questions")
	if err != nil {
		return nil, err
	}

	var added []models.ExamQuestion
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		entries, err := txRepo.QuestionBank().GetByIDs(ctx, nil, scope, req.QuestionIDs)
		if err != nil {
			return fmt.Errorf("failed to load bank entries: %w", err)
		}
		byID := make(map[string]*models.QuestionBankEntry, len(entries))
		for _, entry := range entries {
			byID[entry.ID] = entry
		}
		for _, id := range req.QuestionIDs {
			entry, ok := byID[id]
			if !ok {
				return ErrQuestionNotFound
			}
			if entry.CourseID != exam.CourseID {
				return NewBusinessRuleError("paper_composition", "question belongs to a different course")
			}
		}

		existing, err := txRepo.ExamQuestion().GetQuestionIDs(ctx, nil, scope, examID)
		if err != nil {
			return fmt.Errorf("failed to read existing paper questions: %w", err)
		}
		onPaper := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			onPaper[id] = struct{}{}
		}

		maxSeq, err := txRepo.ExamQuestion().MaxSequence(ctx, nil, scope, examID)
		if err != nil {
			return fmt.Errorf("failed to read paper sequence: %w", err)
		}

		var rows []*models.ExamQuestion
		for _, id := range req.QuestionIDs {
			if _, dup := onPaper[id]; dup {
				continue
			}
			onPaper[id] = struct{}{}
			maxSeq++
			row := &models.ExamQuestion{
				ClientID:   scope.ClientID,
				ExamID:     examID,
				QuestionID: id,
				Sequence:   maxSeq,
			}
			row.Question = *byID[id]
			rows = append(rows, row)
		}

		if err := txRepo.ExamQuestion().CreateBatch(ctx, nil, rows); err != nil {
			return fmt.Errorf("failed to add questions: %w", err)
		}
		for _, row := range rows {
			added = append(added, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Questions added to paper successfully",
		"exam_id", examID,
		"added", len(added),
		"skipped", len(req.QuestionIDs)-len(added))

	return added, nil
}

func (s *paperService) AddQuestion(ctx context.Context, scope models.Scope, examID, questionID string) (*models.ExamQuestion, error) {
	added, err := s.AddQuestions(ctx, scope, examID, &AddQuestionsRequest{QuestionIDs: []string{questionID}})
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		// Already on the paper; hand back the existing row.
		return s.repo.ExamQuestion().GetByExamAndQuestion(ctx, s.db, scope, examID, questionID)
	}
	return &added[0], nil
}

func (s *paperService) RemoveQuestion(ctx context.Context, scope models.Scope, examID, questionID string) error {
	s.logger.Info("Removing question from paper",
		"exam_id", examID,
		"question_id", questionID,
		"user_id", scope.UserID)

	if _, err := s.getOwnedExam(ctx, scope, examID, "remove_question"); err != nil {
		return err
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.ExamQuestion().Delete(ctx, nil, scope, examID, questionID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("failed to remove question: %w", err)
		}
		// Sequences stay contiguous 1..N after a removal.
		if err := txRepo.ExamQuestion().CompactSequences(ctx, nil, scope, examID); err != nil {
			return fmt.Errorf("failed to compact sequences: %w", err)
		}
		return nil
	})
}

// Reorder replaces the paper order. The request must be an exact
// permutation of the current question set; partial orders are rejected.
func (s *paperService) Reorder(ctx context.Context, scope models.Scope, examID string, req *ReorderRequest) error {
	s.logger.Info("Reordering paper",
		"exam_id", examID,
		"question_count", len(req.QuestionIDs),
		"user_id", scope.UserID)

	if err := s.validator.Validate(req); err != nil {
		return err
	}

	if _, err := s.getOwnedExam(ctx, scope, examID, "reorder"); err != nil {
		return err
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		current, err := txRepo.ExamQuestion().GetQuestionIDs(ctx, nil, scope, examID)
		if err != nil {
			return fmt.Errorf("failed to read paper questions: %w", err)
		}

		if len(current) != len(req.QuestionIDs) {
			return NewBusinessRuleError("paper_reorder", "order must list every question on the paper exactly once")
		}
		onPaper := make(map[string]struct{}, len(current))
		for _, id := range current {
			onPaper[id] = struct{}{}
		}
		seen := make(map[string]struct{}, len(req.QuestionIDs))
		for _, id := range req.QuestionIDs {
			if _, ok := onPaper[id]; !ok {
				return NewBusinessRuleError("paper_reorder", fmt.Sprintf("question %s is not on the paper", id))
			}
			if _, dup := seen[id]; dup {
				return NewBusinessRuleError("paper_reorder", fmt.Sprintf("question %s appears more than once", id))
			}
			seen[id] = struct{}{}
		}

		orders := make([]repositories.SequenceAssignment, len(req.QuestionIDs))
		for i, id := range req.QuestionIDs {
			orders[i] = repositories.SequenceAssignment{QuestionID: id, Sequence: i + 1}
		}
		if err := txRepo.ExamQuestion().Resequence(ctx, nil, scope, examID, orders); err != nil {
			return fmt.Errorf("failed to reorder paper: %w", err)
		}
		return nil
	})
}

func (s *paperService) UpdatePoints(ctx context.Context, scope models.Scope, examID, questionID string, req *UpdatePointsRequest) (*models.ExamQuestion, error) {
	s.logger.Info("Updating paper question points",
		"exam_id", examID,
		"question_id", questionID,
		"points", req.Points,
		"user_id", scope.UserID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.getOwnedExam(ctx, scope, examID, "update_points"); err != nil {
		return nil, err
	}

	points := req.Points
	if err := s.repo.ExamQuestion().UpdatePoints(ctx, s.db, scope, examID, questionID, &points); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to update points: %w", err)
	}

	return s.repo.ExamQuestion().GetByExamAndQuestion(ctx, s.db, scope, examID, questionID)
}

func (s *paperService) Clear(ctx context.Context, scope models.Scope, examID string) error {
	s.logger.Info("Clearing paper", "exam_id", examID, "user_id", scope.UserID)

	if _, err := s.getOwnedExam(ctx, scope, examID, "clear"); err != nil {
		return err
	}

	if err := s.repo.ExamQuestion().DeleteByExam(ctx, s.db, scope, examID); err != nil {
		return fmt.Errorf("failed to clear paper: %w", err)
	}
	return nil
}

// ===== INSPECTION =====

func (s *paperService) GetPaper(ctx context.Context, scope models.Scope, examID string) ([]models.ExamQuestion, error) {
	if _, err := s.getExam(ctx, scope, examID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ExamQuestion().GetByExam(ctx, s.db, scope, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	paper := make([]models.ExamQuestion, len(rows))
	for i, row := range rows {
		paper[i] = *row
	}
	return paper, nil
}

func (s *paperService) Count(ctx context.Context, scope models.Scope, examID string) (int64, error) {
	count, err := s.repo.ExamQuestion().Count(ctx, s.db, scope, examID)
	if err != nil {
		return 0, fmt.Errorf("failed to count paper: %w", err)
	}
	return int64(count), nil
}

func (s *paperService) TotalPoints(ctx context.Context, scope models.Scope, examID string) (int, error) {
	points, err := s.repo.ExamQuestion().TotalPoints(ctx, s.db, scope, examID)
	if err != nil {
		return 0, fmt.Errorf("failed to total paper points: %w", err)
	}
	return points, nil
}

// ===== HELPERS =====

func (s *paperService) getExam(ctx context.Context, scope models.Scope, examID string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, scope, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

func (s *paperService) getOwnedExam(ctx context.Context, scope models.Scope, examID, action string) (*models.Exam, error) {
	exam, err := s.getExam(ctx, scope, examID)
	if err != nil {
		return nil, err
	}
	if exam.CreatedBy != scope.UserID {
		return nil, NewPermissionError(scope.UserID, examID, "exam", action, "not the exam owner")
	}
	return exam, nil
}

func (s *paperService) publishPaperGenerated(ctx context.Context, scope models.Scope, result *models.GenerationResult) {
	if s.eventPublisher == nil {
		return
	}
	err := s.eventPublisher.Publish(ctx, events.EventPaperGenerated, map[string]interface{}{
		"client_id":      scope.ClientID,
		"exam_id":        result.ExamID,
		"question_count": result.QuestionCount,
		"total_points":   result.TotalPoints,
	})
	if err != nil {
		s.logger.Warn("Failed to publish paper generated event",
			"exam_id", result.ExamID,
			"error", err)
	}
}

func decodeStringSlice(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
