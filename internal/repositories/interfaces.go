package repositories

import (
	"time"

	"github.com/learnsphere/exam-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	CourseID  *string    `json:"course_id"`
	CreatedBy *string    `json:"created_by"`
	Search    string     `json:"search"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "title", "start_time"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type QuestionBankFilters struct {
	CourseID   *string                 `json:"course_id"`
	ModuleID   *string                 `json:"module_id"`
	Type       *models.QuestionType    `json:"type"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	Search     string                  `json:"search"`
	ActiveOnly bool                    `json:"active_only"`
	ExcludeIDs []string                `json:"exclude_ids"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	SortBy     string                  `json:"sort_by"`
	SortOrder  string                  `json:"sort_order"`
}

// PoolCriteria selects bank entries for paper generation. An empty
// Difficulty draws across all difficulties. Draws are deterministic
// when Randomize is false (created_at, id ascending).
type PoolCriteria struct {
	CourseID      string                 `json:"course_id"`
	ModuleIDs     []string               `json:"module_ids"`
	Difficulty    models.DifficultyLevel `json:"difficulty"`
	QuestionTypes []models.QuestionType  `json:"question_types"`
	ExcludeIDs    []string               `json:"exclude_ids"`
	Count         int                    `json:"count"`
	Randomize     bool                   `json:"randomize"`
}

type SubmissionFilters struct {
	ExamID    *string    `json:"exam_id"`
	StudentID *string    `json:"student_id"`
	Status    *string    `json:"status"`
	OpenOnly  bool       `json:"open_only"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

type ProctoringEventFilters struct {
	Type     *models.ProctorEventType `json:"type"`
	Severity *models.Severity         `json:"severity"`
	DateFrom *time.Time               `json:"date_from"`
	DateTo   *time.Time               `json:"date_to"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

// SequenceAssignment maps an exam question row to its new 1-based
// position in the paper.
type SequenceAssignment struct {
	QuestionID string `json:"question_id"`
	Sequence   int    `json:"sequence"`
}

// ===== SHARED STATISTICS STRUCTS =====

type ExamStats struct {
	TotalSubmissions     int     `json:"total_submissions"`
	CompletedSubmissions int     `json:"completed_submissions"`
	AverageScore         float64 `json:"average_score"`
	PassRate             float64 `json:"pass_rate"`
	QuestionCount        int     `json:"question_count"`
	TotalPoints          int     `json:"total_points"`
}

type PoolStats struct {
	TotalEntries    int                            `json:"total_entries"`
	EntriesByType   map[models.QuestionType]int    `json:"entries_by_type"`
	EntriesByDiff   map[models.DifficultyLevel]int `json:"entries_by_difficulty"`
	ActiveEntries   int                            `json:"active_entries"`
	InactiveEntries int                            `json:"inactive_entries"`
}
