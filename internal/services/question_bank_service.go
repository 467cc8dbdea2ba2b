package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"gorm.io/gorm"
)

type questionBankService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionBankService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) QuestionBankService {
	return &questionBankService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *questionBankService) Create(ctx context.Context, scope models.Scope, req *CreateQuestionRequest) (*models.QuestionBankEntry, error) {
	s.logger.Info("Creating bank question",
		"course_id", req.CourseID,
		"type", req.Type,
		"creator_id", scope.UserID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := validateOptions(req.Type, req.Options); err != nil {
		return nil, err
	}

	entry := &models.QuestionBankEntry{
		ClientID:      scope.ClientID,
		CourseID:      req.CourseID,
		Type:          req.Type,
		Text:          req.Text,
		Points:        req.Points,
		Difficulty:    req.Difficulty,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
		IsActive:      true,
		CreatedBy:     scope.UserID,
	}

	if len(req.Options) > 0 {
		raw, err := json.Marshal(req.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		entry.Options = raw
	}
	if len(req.ModuleIDs) > 0 {
		moduleIDs, err := toJSONSlice(req.ModuleIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode module ids: %w", err)
		}
		entry.ModuleIDs = moduleIDs
	}
	if len(req.Tags) > 0 {
		tags, err := toJSONSlice(req.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags: %w", err)
		}
		entry.Tags = tags
	}

	if err := s.repo.QuestionBank().Create(ctx, s.db, entry); err != nil {
		return nil, fmt.Errorf("failed to create bank question: %w", err)
	}

	s.logger.Info("Bank question created successfully", "question_id", entry.ID)
	return entry, nil
}

func (s *questionBankService) GetByID(ctx context.Context, scope models.Scope, id string) (*models.QuestionBankEntry, error) {
	entry, err := s.repo.QuestionBank().GetByID(ctx, s.db, scope, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get bank question: %w", err)
	}
	return entry, nil
}

func (s *questionBankService) Update(ctx context.Context, scope models.Scope, id string, req *UpdateQuestionRequest) (*models.QuestionBankEntry, error) {
	s.logger.Info("Updating bank question", "question_id", id, "user_id", scope.UserID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	entry, err := s.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if entry.CreatedBy != scope.UserID {
		return nil, NewPermissionError(scope.UserID, id, "question", "update", "not the question owner")
	}

	if err := s.applyQuestionUpdates(entry, req); err != nil {
		return nil, err
	}
	if err := validateOptionsJSON(entry); err != nil {
		return nil, err
	}

	if err := s.repo.QuestionBank().Update(ctx, s.db, entry); err != nil {
		return nil, fmt.Errorf("failed to update bank question: %w", err)
	}

	s.logger.Info("Bank question updated successfully", "question_id", id)
	return entry, nil
}

func (s *questionBankService) Delete(ctx context.Context, scope models.Scope, id string) error {
	s.logger.Info("Deleting bank question", "question_id", id, "user_id", scope.UserID)

	entry, err := s.GetByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if entry.CreatedBy != scope.UserID {
		return NewPermissionError(scope.UserID, id, "question", "delete", "not the question owner")
	}

	used, err := s.repo.QuestionBank().IsUsedInExams(ctx, s.db, scope, id)
	if err != nil {
		return fmt.Errorf("failed to check question usage: %w", err)
	}
	if used {
		return NewBusinessRuleError("question_delete", "question is referenced by an exam paper")
	}

	if err := s.repo.QuestionBank().Delete(ctx, s.db, scope, id); err != nil {
		return fmt.Errorf("failed to delete bank question: %w", err)
	}

	s.logger.Info("Bank question deleted successfully", "question_id", id)
	return nil
}

// ===== LIST AND SEARCH =====

func (s *questionBankService) List(ctx context.Context, scope models.Scope, params models.ListQuestionBankParams) (*models.PaginatedResponse, error) {
	size := pageSize(params.Size)
	filters := repositories.QuestionBankFilters{
		CourseID:   params.CourseID,
		ModuleID:   params.ModuleID,
		Search:     params.Search,
		ActiveOnly: params.ActiveOnly,
		Limit:      size,
		Offset:     params.Page * size,
		SortBy:     params.SortBy,
		SortOrder:  params.SortDir,
	}
	if params.Type != "" {
		t := params.Type
		filters.Type = &t
	}
	if params.Difficulty != "" {
		d := params.Difficulty
		filters.Difficulty = &d
	}

	entries, total, err := s.repo.QuestionBank().List(ctx, s.db, scope, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank questions: %w", err)
	}
	return buildPaginatedResponse(entries, total, params.Page, size), nil
}

// ===== STATISTICS =====

func (s *questionBankService) GetPoolStats(ctx context.Context, scope models.Scope, courseID string) (*repositories.PoolStats, error) {
	stats, err := s.repo.QuestionBank().GetPoolStats(ctx, s.db, scope, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

func (s *questionBankService) applyQuestionUpdates(entry *models.QuestionBankEntry, req *UpdateQuestionRequest) error {
	if req.Type != nil {
		entry.Type = *req.Type
	}
	if req.Text != nil {
		entry.Text = *req.Text
	}
	if req.Points != nil {
		entry.Points = *req.Points
	}
	if req.Difficulty != nil {
		entry.Difficulty = *req.Difficulty
	}
	if req.Options != nil {
		raw, err := json.Marshal(req.Options)
		if err != nil {
			return fmt.Errorf("failed to encode options: %w", err)
		}
		entry.Options = raw
	}
	if req.ModuleIDs != nil {
		moduleIDs, err := toJSONSlice(req.ModuleIDs)
		if err != nil {
			return fmt.Errorf("failed to encode module ids: %w", err)
		}
		entry.ModuleIDs = moduleIDs
	}
	if req.Tags != nil {
		tags, err := toJSONSlice(req.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags: %w", err)
		}
		entry.Tags = tags
	}
	if req.CorrectAnswer != nil {
		entry.CorrectAnswer = req.CorrectAnswer
	}
	if req.Explanation != nil {
		entry.Explanation = req.Explanation
	}
	if req.IsActive != nil {
		entry.IsActive = *req.IsActive
	}
	return nil
}

// validateOptions enforces the per-type option rules: choice questions
// need options with exactly one correct answer, the rest carry none.
func validateOptions(qType models.QuestionType, options []models.Option) error {
	switch qType {
	case models.QuestionTypeMultipleChoice:
		if len(options) < 2 {
			return NewBusinessRuleError("question_options", "multiple choice questions need at least two options")
		}
	case models.QuestionTypeTrueFalse:
		if len(options) != 2 {
			return NewBusinessRuleError("question_options", "true/false questions need exactly two options")
		}
	default:
		if len(options) > 0 {
			return NewBusinessRuleError("question_options", fmt.Sprintf("%s questions do not carry options", qType))
		}
		return nil
	}

	correct := 0
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		if opt.ID == "" {
			return NewBusinessRuleError("question_options", "every option needs a stable id")
		}
		if _, dup := seen[opt.ID]; dup {
			return NewBusinessRuleError("question_options", fmt.Sprintf("duplicate option id %s", opt.ID))
		}
		seen[opt.ID] = struct{}{}
		if opt.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return NewBusinessRuleError("question_options", "exactly one option must be marked correct")
	}
	return nil
}

func validateOptionsJSON(entry *models.QuestionBankEntry) error {
	opts, err := entry.DecodedOptions()
	if err != nil {
		return fmt.Errorf("failed to decode options: %w", err)
	}
	return validateOptions(entry.Type, opts)
}
