package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "EASY"
	DifficultyMedium DifficultyLevel = "MEDIUM"
	DifficultyHard   DifficultyLevel = "HARD"
)

// Option is one selectable choice of a multiple-choice or true/false
// question. IDs are stable per question so frozen option orders stay
// valid across edits to option text.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct,omitempty"`
}

// QuestionBankEntry is a reusable question owned by a course. Exams
// reference entries through ExamQuestion rather than embedding copies.
type QuestionBankEntry struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	ClientID string `json:"client_id" gorm:"not null;size:64;index:idx_bank_client_course"`
	CourseID string `json:"course_id" gorm:"not null;type:uuid;index:idx_bank_client_course"`

	Type       QuestionType    `json:"type" gorm:"not null;size:50" validate:"required,question_type"`
	Text       string          `json:"text" gorm:"not null;type:text" validate:"required,min=1"`
	Points     int             `json:"points" gorm:"not null;default:1" validate:"min=0,max=100"`
	Difficulty DifficultyLevel `json:"difficulty" gorm:"not null;default:MEDIUM;size:20" validate:"omitempty,difficulty_level"`

	// Options holds []Option for MULTIPLE_CHOICE and TRUE_FALSE entries.
	Options datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`

	// ModuleIDs restricts which modules the entry belongs to ([]string).
	ModuleIDs datatypes.JSON `json:"module_ids" gorm:"type:jsonb"`
	Tags      datatypes.JSON `json:"tags,omitempty" gorm:"type:jsonb"` // []string

	// Grading hints for non-choice types
	CorrectAnswer *string `json:"correct_answer,omitempty" gorm:"type:text"`
	Explanation   *string `json:"explanation,omitempty" gorm:"type:text"`

	IsActive bool `json:"is_active" gorm:"not null;default:true"`

	CreatedBy string         `json:"created_by" gorm:"not null;size:255"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (QuestionBankEntry) TableName() string {
	return "question_bank_entries"
}

func (q *QuestionBankEntry) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// HasOptions reports whether the entry's type carries an option list
// subject to option-order randomization.
func (q *QuestionBankEntry) HasOptions() bool {
	return q.Type == QuestionTypeMultipleChoice || q.Type == QuestionTypeTrueFalse
}

// DecodedOptions unmarshals the entry's option list. Entries without
// options return an empty slice.
func (q *QuestionBankEntry) DecodedOptions() ([]Option, error) {
	if len(q.Options) == 0 {
		return nil, nil
	}
	var opts []Option
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}
