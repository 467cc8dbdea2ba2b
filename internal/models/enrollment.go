package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentDropped   EnrollmentStatus = "DROPPED"
)

// Enrollment records a student's membership in a course. Attempt
// starts require an ACTIVE enrollment in the exam's course.
type Enrollment struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	ClientID  string `json:"client_id" gorm:"not null;size:64;uniqueIndex:idx_enrollment"`
	CourseID  string `json:"course_id" gorm:"not null;type:uuid;uniqueIndex:idx_enrollment"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_enrollment"`

	Status     EnrollmentStatus `json:"status" gorm:"not null;default:ACTIVE;size:20"`
	EnrolledAt time.Time        `json:"enrolled_at" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
