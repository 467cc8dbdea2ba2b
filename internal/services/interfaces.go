package services

import (
	"context"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
)

// ===== REQUEST TYPES =====
// Request DTOs live in the validator package so validation rules stay
// next to the fields they constrain; services re-export them.

type CreateExamRequest = validator.ExamCreateRequest
type UpdateExamRequest = validator.ExamUpdateRequest

type GeneratePaperRequest = validator.PaperGenerateRequest
type AddQuestionsRequest = validator.PaperAddQuestionsRequest
type ReorderRequest = validator.PaperReorderRequest
type UpdatePointsRequest = validator.PaperUpdatePointsRequest

type CreateQuestionRequest = validator.QuestionCreateRequest
type UpdateQuestionRequest = validator.QuestionUpdateRequest

type StartAttemptRequest = validator.AttemptStartRequest
type SaveProgressRequest = validator.AttemptSaveRequest
type SubmitAttemptRequest = validator.AttemptSubmitRequest
type ManualGradeRequest = validator.ManualGradeRequest

type RecordProctorEventRequest = validator.ProctorEventRequest

// ===== RESPONSE TYPES =====

// AttemptStartResponse is returned by Start for both fresh attempts and
// resumed ones.
type AttemptStartResponse struct {
	models.SubmissionDisplay
	Resumed bool `json:"resumed"`
}

// SubmissionResponse wraps a submission with what the caller may do next.
type SubmissionResponse struct {
	*models.Submission
	CanResume bool `json:"can_resume"`
	CanSubmit bool `json:"can_submit"`
}

// ===== EXAM SERVICE =====

// ExamService manages exam definitions
type ExamService interface {
	Create(ctx context.Context, scope models.Scope, req *CreateExamRequest) (*models.Exam, error)
	GetByID(ctx context.Context, scope models.Scope, id string) (*models.Exam, error)
	Update(ctx context.Context, scope models.Scope, id string, req *UpdateExamRequest) (*models.Exam, error)
	Delete(ctx context.Context, scope models.Scope, id string) error
	List(ctx context.Context, scope models.Scope, params models.ListExamsParams) (*models.PaginatedResponse, error)
	GetStats(ctx context.Context, scope models.Scope, id string) (*repositories.ExamStats, error)
}

// ===== PAPER SERVICE =====

// PaperService manages the question paper of an exam: difficulty
// distributed generation from the bank plus manual composition.
type PaperService interface {
	// Generation
	GeneratePaper(ctx context.Context, scope models.Scope, examID string, req *GeneratePaperRequest) (*models.GenerationResult, error)

	// Manual composition
	AddQuestions(ctx context.Context, scope models.Scope, examID string, req *AddQuestionsRequest) ([]models.ExamQuestion, error)
	AddQuestion(ctx context.Context, scope models.Scope, examID, questionID string) (*models.ExamQuestion, error)
	RemoveQuestion(ctx context.Context, scope models.Scope, examID, questionID string) error
	Reorder(ctx context.Context, scope models.Scope, examID string, req *ReorderRequest) error
	UpdatePoints(ctx context.Context, scope models.Scope, examID, questionID string, req *UpdatePointsRequest) (*models.ExamQuestion, error)
	Clear(ctx context.Context, scope models.Scope, examID string) error

	// Inspection
	GetPaper(ctx context.Context, scope models.Scope, examID string) ([]models.ExamQuestion, error)
	Count(ctx context.Context, scope models.Scope, examID string) (int64, error)
	TotalPoints(ctx context.Context, scope models.Scope, examID string) (int, error)
}

// ===== QUESTION BANK SERVICE =====

// QuestionBankService manages the per-course question pool
type QuestionBankService interface {
	Create(ctx context.Context, scope models.Scope, req *CreateQuestionRequest) (*models.QuestionBankEntry, error)
	GetByID(ctx context.Context, scope models.Scope, id string) (*models.QuestionBankEntry, error)
	Update(ctx context.Context, scope models.Scope, id string, req *UpdateQuestionRequest) (*models.QuestionBankEntry, error)
	Delete(ctx context.Context, scope models.Scope, id string) error
	List(ctx context.Context, scope models.Scope, params models.ListQuestionBankParams) (*models.PaginatedResponse, error)
	GetPoolStats(ctx context.Context, scope models.Scope, courseID string) (*repositories.PoolStats, error)
}

// ===== ATTEMPT SERVICE =====

// AttemptService coordinates the student attempt lifecycle: start or
// resume, periodic saves, submission, and grading.
type AttemptService interface {
	// Student operations
	Start(ctx context.Context, scope models.Scope, req *StartAttemptRequest) (*AttemptStartResponse, error)
	SaveProgress(ctx context.Context, scope models.Scope, submissionID string, req *SaveProgressRequest) error
	Submit(ctx context.Context, scope models.Scope, submissionID string, req *SubmitAttemptRequest) (*models.Submission, error)
	GetForDisplay(ctx context.Context, scope models.Scope, submissionID string) (*models.SubmissionDisplay, error)
	ListMine(ctx context.Context, scope models.Scope, params models.ListSubmissionsParams) (*models.PaginatedResponse, error)

	// Instructor operations
	GetByID(ctx context.Context, scope models.Scope, submissionID string) (*SubmissionResponse, error)
	ListByExam(ctx context.Context, scope models.Scope, examID string, params models.ListSubmissionsParams) (*models.PaginatedResponse, error)
	ManualGrade(ctx context.Context, scope models.Scope, submissionID string, req *ManualGradeRequest) (*models.Submission, error)
}

// ===== PROCTORING SERVICE =====

// ProctoringService records browser proctoring events and derives a
// per-submission status from them.
type ProctoringService interface {
	RecordEvent(ctx context.Context, scope models.Scope, submissionID string, req *RecordProctorEventRequest) (*models.ProctoringEvent, error)
	Analyze(ctx context.Context, scope models.Scope, submissionID string) (models.ProctoringStatus, error)
	GetReport(ctx context.Context, scope models.Scope, submissionID string) (*models.ProctoringReport, error)
	VerifyIdentity(ctx context.Context, scope models.Scope, submissionID string, photoURL *string) error
	ExportExamReport(ctx context.Context, scope models.Scope, examID string) ([]byte, error)
}

// ===== REVIEW GATEWAY =====

// ReviewGateway hands a submitted attempt to the AI review service.
// Calls are best effort; the submission is already sealed when they run.
type ReviewGateway interface {
	TriggerReview(ctx context.Context, submission *models.Submission) error
}

// ===== SERVICE MANAGER =====

// ServiceManager provides access to all services
type ServiceManager interface {
	Exam() ExamService
	Paper() PaperService
	QuestionBank() QuestionBankService
	Attempt() AttemptService
	Proctoring() ProctoringService

	// Lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
