package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) ExamService {
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *examService) Create(ctx context.Context, scope models.Scope, req *CreateExamRequest) (*models.Exam, error) {
	s.logger.Info("Creating exam", "client_id", scope.ClientID, "creator_id", scope.UserID, "title", req.Title)

	if errs := s.validator.ValidateExamCreate(req); len(errs) > 0 {
		return nil, errs
	}

	exam := &models.Exam{
		ClientID:            scope.ClientID,
		CourseID:            req.CourseID,
		Title:               req.Title,
		Description:         req.Description,
		TimeLimitSeconds:    req.TimeLimitSeconds,
		TimingMode:          req.TimingMode,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		MaxAttempts:         req.MaxAttempts,
		ReviewMethod:        req.ReviewMethod,
		PassingScore:        50,
		RandomizeQuestions:  req.RandomizeQuestions,
		RandomizeMcqOptions: req.RandomizeMcqOptions,
		CreatedBy:           scope.UserID,
	}
	if req.PassingScore != nil {
		exam.PassingScore = *req.PassingScore
	}
	if len(req.ModuleIDs) > 0 {
		moduleIDs, err := toJSONSlice(req.ModuleIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode module ids: %w", err)
		}
		exam.ModuleIDs = moduleIDs
	}

	if err := s.repo.Exam().Create(ctx, s.db, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created successfully", "exam_id", exam.ID)
	return exam, nil
}

func (s *examService) GetByID(ctx context.Context, scope models.Scope, id string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, scope, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

func (s *examService) Update(ctx context.Context, scope models.Scope, id string, req *UpdateExamRequest) (*models.Exam, error) {
	s.logger.Info("Updating exam", "exam_id", id, "user_id", scope.UserID)

	exam, err := s.repo.Exam().GetByID(ctx, s.db, scope, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if errs := s.validator.ValidateExamUpdate(req, exam); len(errs) > 0 {
		return nil, errs
	}

	if exam.CreatedBy != scope.UserID {
		return nil, NewPermissionError(scope.UserID, id, "exam", "update", "not the exam owner")
	}

	if err := s.applyExamUpdates(exam, req); err != nil {
		return nil, err
	}

	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	s.logger.Info("Exam updated successfully", "exam_id", id)
	return s.GetByID(ctx, scope, id)
}

func (s *examService) Delete(ctx context.Context, scope models.Scope, id string) error {
	s.logger.Info("Deleting exam", "exam_id", id, "user_id", scope.UserID)

	exam, err := s.repo.Exam().GetByID(ctx, s.db, scope, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != scope.UserID {
		return NewPermissionError(scope.UserID, id, "exam", "delete", "not the exam owner")
	}

	stats, err := s.repo.Exam().GetExamStats(ctx, s.db, scope, id)
	if err != nil {
		return fmt.Errorf("failed to check exam submissions: %w", err)
	}
	if stats.TotalSubmissions > 0 {
		return NewBusinessRuleError("exam_delete", "cannot delete an exam with existing submissions")
	}

	if err := s.repo.Exam().Delete(ctx, s.db, scope, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted successfully", "exam_id", id)
	return nil
}

// ===== LIST AND SEARCH OPERATIONS =====

func (s *examService) List(ctx context.Context, scope models.Scope, params models.ListExamsParams) (*models.PaginatedResponse, error) {
	filters := repositories.ExamFilters{
		CourseID:  params.CourseID,
		CreatedBy: params.CreatedBy,
		Search:    params.Search,
		Limit:     pageSize(params.Size),
		Offset:    params.Page * pageSize(params.Size),
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}

	exams, total, err := s.repo.Exam().List(ctx, s.db, scope, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	return buildPaginatedResponse(exams, total, params.Page, filters.Limit), nil
}

// ===== STATISTICS =====

func (s *examService) GetStats(ctx context.Context, scope models.Scope, id string) (*repositories.ExamStats, error) {
	if _, err := s.GetByID(ctx, scope, id); err != nil {
		return nil, err
	}

	stats, err := s.repo.Exam().GetExamStats(ctx, s.db, scope, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

func (s *examService) applyExamUpdates(exam *models.Exam, req *UpdateExamRequest) error {
	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.TimeLimitSeconds != nil {
		exam.TimeLimitSeconds = *req.TimeLimitSeconds
	}
	if req.TimingMode != nil {
		exam.TimingMode = *req.TimingMode
	}
	if req.StartTime != nil {
		exam.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = req.EndTime
	}
	if req.MaxAttempts != nil {
		exam.MaxAttempts = req.MaxAttempts
	}
	if req.ReviewMethod != nil {
		exam.ReviewMethod = *req.ReviewMethod
	}
	if req.PassingScore != nil {
		exam.PassingScore = *req.PassingScore
	}
	if req.RandomizeQuestions != nil {
		exam.RandomizeQuestions = *req.RandomizeQuestions
	}
	if req.RandomizeMcqOptions != nil {
		exam.RandomizeMcqOptions = *req.RandomizeMcqOptions
	}
	if req.ModuleIDs != nil {
		moduleIDs, err := toJSONSlice(req.ModuleIDs)
		if err != nil {
			return fmt.Errorf("failed to encode module ids: %w", err)
		}
		exam.ModuleIDs = moduleIDs
	}
	return nil
}

func toJSONSlice(values []string) (datatypes.JSON, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func pageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}

func buildPaginatedResponse(content interface{}, total int64, page, size int) *models.PaginatedResponse {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	count := 0
	switch v := content.(type) {
	case []*models.Exam:
		count = len(v)
	case []*models.QuestionBankEntry:
		count = len(v)
	case []*models.Submission:
		count = len(v)
	case []*SubmissionResponse:
		count = len(v)
	}
	return &models.PaginatedResponse{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             size,
		Page:             page,
		First:            page == 0,
		Last:             page >= totalPages-1,
		NumberOfElements: count,
		Empty:            count == 0,
	}
}
