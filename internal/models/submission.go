package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReviewStatus string

const (
	ReviewStatusPending            ReviewStatus = "PENDING"
	ReviewStatusAIReviewed         ReviewStatus = "AI_REVIEWED"
	ReviewStatusInstructorReviewed ReviewStatus = "INSTRUCTOR_REVIEWED"
	ReviewStatusCompleted          ReviewStatus = "COMPLETED"
)

type ProctoringStatus string

const (
	ProctoringClear      ProctoringStatus = "CLEAR"
	ProctoringFlagged    ProctoringStatus = "FLAGGED"
	ProctoringSuspicious ProctoringStatus = "SUSPICIOUS"
	ProctoringViolation  ProctoringStatus = "VIOLATION"
)

// Submission is one student attempt at an exam. At most one open
// submission (completed_at IS NULL) exists per student and exam; the
// partial unique index backs the resume-instead-of-duplicate behavior
// under concurrent starts.
type Submission struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	ClientID  string `json:"client_id" gorm:"not null;size:64;index:idx_submissions_open,unique,where:completed_at IS NULL"`
	ExamID    string `json:"exam_id" gorm:"not null;type:uuid;index:idx_submissions_open,unique,where:completed_at IS NULL"`
	StudentID string `json:"student_id" gorm:"not null;size:255;index:idx_submissions_open,unique,where:completed_at IS NULL"`

	AttemptNumber int `json:"attempt_number" gorm:"not null;default:1"`

	// Timing
	StartedAt            time.Time  `json:"started_at" gorm:"not null"`
	CompletedAt          *time.Time `json:"completed_at"`
	SubmittedAt          *time.Time `json:"submitted_at"`
	TimeRemainingSeconds *int       `json:"time_remaining_seconds"`

	// Answers keyed by question id; map[string]any serialized as jsonb.
	Answers datatypes.JSON `json:"answers,omitempty" gorm:"type:jsonb"`

	// Randomization frozen at start: the presented question id order,
	// and per-question option id orders for choice questions.
	RandomSeed      int64          `json:"-" gorm:"not null;default:0"`
	QuestionOrder   datatypes.JSON `json:"question_order,omitempty" gorm:"type:jsonb"`    // []string
	McqOptionOrders datatypes.JSON `json:"mcq_option_orders,omitempty" gorm:"type:jsonb"` // map[string][]string

	// Grading
	Score      *float64     `json:"score"`
	MaxScore   *float64     `json:"max_score"`
	Percentage *float64     `json:"percentage"`
	IsPassed   *bool        `json:"is_passed"`
	GradedAt   *time.Time   `json:"graded_at"`
	GradedBy   *string      `json:"graded_by" gorm:"size:255"`
	Feedback   *string      `json:"feedback" gorm:"type:text"`
	Status     ReviewStatus `json:"status" gorm:"not null;default:PENDING;size:30"`

	// Proctoring counters, incremented atomically as events arrive.
	TabSwitchCount   int              `json:"tab_switch_count" gorm:"not null;default:0"`
	CopyAttemptCount int              `json:"copy_attempt_count" gorm:"not null;default:0"`
	IdentityVerified bool             `json:"identity_verified" gorm:"not null;default:false"`
	ProctoringStatus ProctoringStatus `json:"proctoring_status" gorm:"not null;default:CLEAR;size:20"`
	ProctoringData   datatypes.JSON   `json:"proctoring_data,omitempty" gorm:"type:jsonb"`

	AiReviewFeedback *string `json:"ai_review_feedback,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam Exam `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsSealed reports whether the submission no longer accepts answer
// writes. Sealing happens exactly once, at submit.
func (s *Submission) IsSealed() bool {
	return s.CompletedAt != nil
}
