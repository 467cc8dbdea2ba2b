package validator

import (
	"encoding/json"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
)

// ===== EXAM REQUESTS =====

// ExamCreateRequest represents the request structure for creating exams
type ExamCreateRequest struct {
	CourseID            string              `json:"course_id" validate:"required"`
	Title               string              `json:"title" validate:"required,exam_title"`
	Description         *string             `json:"description" validate:"omitempty,exam_description"`
	TimeLimitSeconds    int                 `json:"time_limit_seconds" validate:"required,time_limit"`
	TimingMode          models.TimingMode   `json:"timing_mode" validate:"required,timing_mode"`
	StartTime           *time.Time          `json:"start_time"`
	EndTime             *time.Time          `json:"end_time" validate:"omitempty,gtfield=StartTime"`
	MaxAttempts         *int                `json:"max_attempts" validate:"omitempty,max_attempts"`
	ReviewMethod        models.ReviewMethod `json:"review_method" validate:"required,review_method"`
	PassingScore        *float64            `json:"passing_score" validate:"omitempty,passing_score"`
	RandomizeQuestions  bool                `json:"randomize_questions"`
	RandomizeMcqOptions bool                `json:"randomize_mcq_options"`
	ModuleIDs           []string            `json:"module_ids" validate:"omitempty,dive,required"`
}

// ExamUpdateRequest represents the request structure for updating exams
type ExamUpdateRequest struct {
	Title               *string              `json:"title" validate:"omitempty,exam_title"`
	Description         *string              `json:"description" validate:"omitempty,exam_description"`
	TimeLimitSeconds    *int                 `json:"time_limit_seconds" validate:"omitempty,time_limit"`
	TimingMode          *models.TimingMode   `json:"timing_mode" validate:"omitempty,timing_mode"`
	StartTime           *time.Time           `json:"start_time"`
	EndTime             *time.Time           `json:"end_time"`
	MaxAttempts         *int                 `json:"max_attempts" validate:"omitempty,max_attempts"`
	ReviewMethod        *models.ReviewMethod `json:"review_method" validate:"omitempty,review_method"`
	PassingScore        *float64             `json:"passing_score" validate:"omitempty,passing_score"`
	RandomizeQuestions  *bool                `json:"randomize_questions"`
	RandomizeMcqOptions *bool                `json:"randomize_mcq_options"`
	ModuleIDs           []string             `json:"module_ids" validate:"omitempty,dive,required"`
}

// ===== PAPER REQUESTS =====

// PaperGenerateRequest describes a draw from the question pool. Either
// the difficulty counts or NumberOfQuestions is set, never both; each
// count is drawn exactly and a short pool fails the whole generation.
// QuestionTypes narrows the pool, and Randomize overrides the exam's
// randomization flag for the draw order.
type PaperGenerateRequest struct {
	ModuleIDs         []string              `json:"module_ids" validate:"omitempty,dive,required"`
	QuestionTypes     []models.QuestionType `json:"question_types" validate:"omitempty,dive,question_type"`
	EasyCount         int                   `json:"easy_count" validate:"min=0"`
	MediumCount       int                   `json:"medium_count" validate:"min=0"`
	HardCount         int                   `json:"hard_count" validate:"min=0"`
	NumberOfQuestions int                   `json:"number_of_questions" validate:"min=0"`
	Randomize         *bool                 `json:"randomize"`
	ClearExisting     bool                  `json:"clear_existing"`
}

// PaperAddQuestionsRequest adds bank questions to the end of a paper.
type PaperAddQuestionsRequest struct {
	QuestionIDs []string `json:"question_ids" validate:"required,min=1,dive,required"`
}

// PaperReorderRequest replaces the paper order with an exact permutation
// of the current question set.
type PaperReorderRequest struct {
	QuestionIDs []string `json:"question_ids" validate:"required,min=1,dive,required"`
}

// PaperUpdatePointsRequest overrides the points of one question on a paper.
type PaperUpdatePointsRequest struct {
	Points int `json:"points" validate:"required,points_range"`
}

// ===== QUESTION BANK REQUESTS =====

// QuestionCreateRequest represents the request structure for creating bank questions
type QuestionCreateRequest struct {
	CourseID      string                 `json:"course_id" validate:"required"`
	Type          models.QuestionType    `json:"type" validate:"required,question_type"`
	Text          string                 `json:"text" validate:"required,min=1,max=2000"`
	Points        int                    `json:"points" validate:"required,points_range"`
	Difficulty    models.DifficultyLevel `json:"difficulty" validate:"required,difficulty_level"`
	Options       []models.Option        `json:"options" validate:"omitempty,max=10"`
	ModuleIDs     []string               `json:"module_ids" validate:"omitempty,dive,required"`
	Tags          []string               `json:"tags" validate:"omitempty,max=10,dive,max=50"`
	CorrectAnswer *string                `json:"correct_answer" validate:"omitempty,max=2000"`
	Explanation   *string                `json:"explanation" validate:"omitempty,max=1000"`
}

// QuestionUpdateRequest represents the request structure for updating bank questions
type QuestionUpdateRequest struct {
	Type          *models.QuestionType    `json:"type" validate:"omitempty,question_type"`
	Text          *string                 `json:"text" validate:"omitempty,min=1,max=2000"`
	Points        *int                    `json:"points" validate:"omitempty,points_range"`
	Difficulty    *models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	Options       []models.Option         `json:"options" validate:"omitempty,max=10"`
	ModuleIDs     []string                `json:"module_ids" validate:"omitempty,dive,required"`
	Tags          []string                `json:"tags" validate:"omitempty,max=10,dive,max=50"`
	CorrectAnswer *string                 `json:"correct_answer" validate:"omitempty,max=2000"`
	Explanation   *string                 `json:"explanation" validate:"omitempty,max=1000"`
	IsActive      *bool                   `json:"is_active"`
}

// ===== ATTEMPT REQUESTS =====

// AttemptStartRequest starts or resumes an attempt on an exam.
type AttemptStartRequest struct {
	ExamID string `json:"exam_id" validate:"required"`
}

// AttemptSaveRequest overwrites the stored answers of an open attempt.
// Saves are last write wins; the client sends the full answer set.
type AttemptSaveRequest struct {
	Answers              map[string]json.RawMessage `json:"answers" validate:"required"`
	TimeRemainingSeconds *int                       `json:"time_remaining_seconds" validate:"omitempty,min=0"`
}

// AttemptSubmitRequest submits an attempt, optionally carrying a final
// answer set saved in the same call.
type AttemptSubmitRequest struct {
	Answers map[string]json.RawMessage `json:"answers"`
}

// ManualGradeRequest records an instructor grade for a submitted attempt.
type ManualGradeRequest struct {
	Score      float64 `json:"score" validate:"min=0"`
	Feedback   *string `json:"feedback" validate:"omitempty,max=5000"`
	AiFeedback *string `json:"ai_feedback" validate:"omitempty,max=5000"`
}

// ===== PROCTORING REQUESTS =====

// ProctorEventRequest records one proctoring event against an open attempt.
type ProctorEventRequest struct {
	Type       models.ProctorEventType `json:"type" validate:"required,proctor_event_type"`
	Severity   *models.Severity        `json:"severity" validate:"omitempty,proctor_severity"`
	OccurredAt *time.Time              `json:"occurred_at"`
	Details    map[string]any          `json:"details"`
	PhotoURL   *string                 `json:"photo_url" validate:"omitempty,url,max=2048"`
}
