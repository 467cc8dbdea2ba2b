package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProctorEventType string

const (
	EventTabSwitch               ProctorEventType = "TAB_SWITCH"
	EventWindowBlur              ProctorEventType = "WINDOW_BLUR"
	EventWindowFocus             ProctorEventType = "WINDOW_FOCUS"
	EventCopyAttempt             ProctorEventType = "COPY_ATTEMPT"
	EventPasteAttempt            ProctorEventType = "PASTE_ATTEMPT"
	EventPhotoCaptured           ProctorEventType = "PHOTO_CAPTURED"
	EventIdentityVerified        ProctorEventType = "IDENTITY_VERIFIED"
	EventFullscreenExit          ProctorEventType = "FULLSCREEN_EXIT"
	EventFullscreenEnter         ProctorEventType = "FULLSCREEN_ENTER"
	EventProctoringViolation     ProctorEventType = "PROCTORING_VIOLATION"
	EventNoFaceDetected          ProctorEventType = "NO_FACE_DETECTED"
	EventMultipleFacesDetected   ProctorEventType = "MULTIPLE_FACES_DETECTED"
	EventRightClickBlocked       ProctorEventType = "RIGHT_CLICK_BLOCKED"
	EventKeyboardShortcutBlocked ProctorEventType = "KEYBOARD_SHORTCUT_BLOCKED"
)

type Severity string

const (
	SeverityInfo      Severity = "INFO"
	SeverityWarning   Severity = "WARNING"
	SeverityViolation Severity = "VIOLATION"
)

// ProctorEventTypes lists every accepted event type, for boundary
// validation.
var ProctorEventTypes = []ProctorEventType{
	EventTabSwitch, EventWindowBlur, EventWindowFocus,
	EventCopyAttempt, EventPasteAttempt,
	EventPhotoCaptured, EventIdentityVerified,
	EventFullscreenExit, EventFullscreenEnter,
	EventProctoringViolation,
	EventNoFaceDetected, EventMultipleFacesDetected,
	EventRightClickBlocked, EventKeyboardShortcutBlocked,
}

// ProctoringEvent is one recorded incident during an open submission.
// Events are append-only; the submission row carries the aggregated
// counters.
type ProctoringEvent struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	ClientID     string `json:"client_id" gorm:"not null;size:64;index"`
	SubmissionID string `json:"submission_id" gorm:"not null;type:uuid;index:idx_proctoring_submission"`

	Type     ProctorEventType `json:"type" gorm:"not null;size:40" validate:"required,proctor_event_type"`
	Severity Severity         `json:"severity" gorm:"not null;default:INFO;size:20" validate:"omitempty,proctor_severity"`

	OccurredAt time.Time      `json:"occurred_at" gorm:"not null;index:idx_proctoring_submission"`
	Details    datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`

	// PhotoURL is set for PHOTO_CAPTURED and IDENTITY_VERIFIED events.
	PhotoURL *string `json:"photo_url,omitempty" gorm:"size:2048"`

	CreatedAt time.Time `json:"created_at"`
}

func (ProctoringEvent) TableName() string {
	return "proctoring_events"
}

func (e *ProctoringEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// DefaultSeverity maps an event type to the severity recorded when the
// client does not supply one.
func DefaultSeverity(t ProctorEventType) Severity {
	switch t {
	case EventProctoringViolation:
		return SeverityViolation
	case EventTabSwitch, EventCopyAttempt, EventPasteAttempt,
		EventFullscreenExit, EventNoFaceDetected, EventMultipleFacesDetected:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
