package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TimingMode string

const (
	TimingFixedWindow   TimingMode = "FIXED_WINDOW"
	TimingFlexibleStart TimingMode = "FLEXIBLE_START"
)

type ReviewMethod string

const (
	ReviewMethodAI         ReviewMethod = "AI"
	ReviewMethodInstructor ReviewMethod = "INSTRUCTOR"
)

type Exam struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	ClientID string `json:"client_id" gorm:"not null;size:64;index:idx_exams_client_course"`
	CourseID string `json:"course_id" gorm:"not null;type:uuid;index:idx_exams_client_course"`

	Title       string  `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=2000"`

	// Timing
	TimeLimitSeconds int        `json:"time_limit_seconds" gorm:"not null" validate:"required,min=60,max=28800"`
	TimingMode       TimingMode `json:"timing_mode" gorm:"not null;default:FLEXIBLE_START" validate:"omitempty,timing_mode"`
	StartTime        *time.Time `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`

	// Attempt policy; nil means unlimited
	MaxAttempts *int `json:"max_attempts" validate:"omitempty,min=1,max=10"`

	// Review
	ReviewMethod ReviewMethod `json:"review_method" gorm:"not null;default:AI" validate:"omitempty,review_method"`
	PassingScore float64      `json:"passing_score" gorm:"not null;default:50" validate:"min=0,max=100"` // percent

	// Randomization
	RandomizeQuestions  bool `json:"randomize_questions" gorm:"not null;default:false"`
	RandomizeMcqOptions bool `json:"randomize_mcq_options" gorm:"not null;default:false"`

	// Module scope used as default generation criteria
	ModuleIDs datatypes.JSON `json:"module_ids" gorm:"type:jsonb"` // []string

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`

	// Computed (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
	TotalPoints   int `json:"total_points" gorm:"-"`
}

// ExamQuestion links a bank entry into an exam paper at a contiguous
// 1-based sequence. Points override the bank entry's default when set.
type ExamQuestion struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	ClientID   string `json:"client_id" gorm:"not null;size:64;index"`
	ExamID     string `json:"exam_id" gorm:"not null;type:uuid;uniqueIndex:idx_exam_question;uniqueIndex:idx_exam_sequence"`
	QuestionID string `json:"question_id" gorm:"not null;type:uuid;uniqueIndex:idx_exam_question"`

	Sequence       int  `json:"sequence" gorm:"not null;uniqueIndex:idx_exam_sequence" validate:"min=1"`
	PointsOverride *int `json:"points_override" validate:"omitempty,min=0,max=100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Question QuestionBankEntry `json:"question" gorm:"foreignKey:QuestionID"`
}

func (Exam) TableName() string {
	return "exams"
}

func (e *Exam) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

func (q *ExamQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
