package models

import (
	"encoding/json"
	"time"
)

// ===== PAGINATION & FILTERING =====

type ListExamsParams struct {
	Page      int     `json:"page" validate:"min=0"`
	Size      int     `json:"size" validate:"min=1,max=100"`
	CourseID  *string `json:"course_id"`
	Search    string  `json:"search"`
	CreatedBy *string `json:"created_by"`
	SortBy    string  `json:"sort_by"`
	SortDir   string  `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type ListQuestionBankParams struct {
	Page       int             `json:"page" validate:"min=0"`
	Size       int             `json:"size" validate:"min=1,max=100"`
	CourseID   *string         `json:"course_id"`
	ModuleID   *string         `json:"module_id"`
	Type       QuestionType    `json:"type"`
	Difficulty DifficultyLevel `json:"difficulty"`
	Search     string          `json:"search"`
	ActiveOnly bool            `json:"active_only"`
	SortBy     string          `json:"sort_by"`
	SortDir    string          `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type ListSubmissionsParams struct {
	Page      int        `json:"page" validate:"min=0"`
	Size      int        `json:"size" validate:"min=1,max=100"`
	ExamID    *string    `json:"exam_id"`
	StudentID *string    `json:"student_id"`
	Status    *string    `json:"status"`
	OpenOnly  bool       `json:"open_only"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	SortBy    string     `json:"sort_by"`
	SortDir   string     `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

// ===== ATTEMPT DISPLAY DTOs =====

// DisplayOption is an option rendered in the student's frozen order,
// with grading fields stripped.
type DisplayOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DisplayQuestion is one question of an open attempt, in the
// submission's frozen order.
type DisplayQuestion struct {
	QuestionID string          `json:"question_id"`
	Sequence   int             `json:"sequence"`
	Type       QuestionType    `json:"type"`
	Text       string          `json:"text"`
	Points     int             `json:"points"`
	Options    []DisplayOption `json:"options,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
}

// SubmissionDisplay is what a student sees when resuming an attempt:
// exam metadata, remaining time, and the replayed question order.
type SubmissionDisplay struct {
	SubmissionID         string            `json:"submission_id"`
	ExamID               string            `json:"exam_id"`
	ExamTitle            string            `json:"exam_title"`
	AttemptNumber        int               `json:"attempt_number"`
	StartedAt            time.Time         `json:"started_at"`
	TimeRemainingSeconds int               `json:"time_remaining_seconds"`
	Sealed               bool              `json:"sealed"`
	Questions            []DisplayQuestion `json:"questions"`
}

// ===== PROCTORING REPORT DTOs =====

type ProctoringReport struct {
	SubmissionID     string             `json:"submission_id"`
	ExamID           string             `json:"exam_id"`
	StudentID        string             `json:"student_id"`
	Status           ProctoringStatus   `json:"status"`
	TabSwitchCount   int                `json:"tab_switch_count"`
	CopyAttemptCount int                `json:"copy_attempt_count"`
	IdentityVerified bool               `json:"identity_verified"`
	TotalEvents      int64              `json:"total_events"`
	SeverityCounts   map[Severity]int64 `json:"severity_counts"`
	Events           []ProctoringEvent  `json:"events"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// ===== PAPER GENERATION DTOs =====

// GenerationResult reports what GeneratePaper drew per difficulty.
type GenerationResult struct {
	ExamID        string                  `json:"exam_id"`
	QuestionCount int                     `json:"question_count"`
	TotalPoints   int                     `json:"total_points"`
	Drawn         map[DifficultyLevel]int `json:"drawn"`
	Questions     []ExamQuestion          `json:"questions"`
}
