package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/learnsphere/exam-service/internal/models"
)

// Validator wraps go-playground/validator with the domain enum rules.
// Closed enums (question type, difficulty, timing mode, review method,
// proctor event type and severity) are rejected here at the boundary so
// services and repositories never see an unknown value.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// New creates a validator with all domain rules registered
func New() *Validator {
	v := &Validator{validate: validator.New()}
	v.registerDomainRules()
	return v
}

// Validate validates a struct and returns ValidationErrors (nil when valid)
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateExamCreate validates exam creation including the window rules
// that struct tags cannot express.
func (v *Validator) ValidateExamCreate(req *ExamCreateRequest) ValidationErrors {
	var errs ValidationErrors

	if err := v.validate.Struct(req); err != nil {
		errs = append(errs, ToValidationErrors(err)...)
	}
	errs = append(errs, validateExamWindow(req.TimingMode, req.StartTime, req.EndTime)...)

	return errs
}

// ValidateExamUpdate validates exam updates against the existing exam.
func (v *Validator) ValidateExamUpdate(req *ExamUpdateRequest, existing *models.Exam) ValidationErrors {
	var errs ValidationErrors

	if err := v.validate.Struct(req); err != nil {
		errs = append(errs, ToValidationErrors(err)...)
	}

	mode := existing.TimingMode
	if req.TimingMode != nil {
		mode = *req.TimingMode
	}
	start := existing.StartTime
	if req.StartTime != nil {
		start = req.StartTime
	}
	end := existing.EndTime
	if req.EndTime != nil {
		end = req.EndTime
	}
	errs = append(errs, validateExamWindow(mode, start, end)...)

	return errs
}

// ValidatePaperGenerate checks that a generation request draws at least
// one question and does not mix the two draw modes.
func (v *Validator) ValidatePaperGenerate(req *PaperGenerateRequest) ValidationErrors {
	var errs ValidationErrors

	if err := v.validate.Struct(req); err != nil {
		errs = append(errs, ToValidationErrors(err)...)
	}

	bucketTotal := req.EasyCount + req.MediumCount + req.HardCount
	if bucketTotal == 0 && req.NumberOfQuestions == 0 {
		errs = append(errs, ValidationError{
			Field:   "easy_count",
			Message: "at least one question must be requested via the difficulty counts or number_of_questions",
			Rule:    "business_logic",
		})
	}
	if bucketTotal > 0 && req.NumberOfQuestions > 0 {
		errs = append(errs, ValidationError{
			Field:   "number_of_questions",
			Message: "number_of_questions cannot be combined with the difficulty counts",
			Rule:    "business_logic",
		})
	}

	return errs
}

// validateExamWindow enforces the FIXED_WINDOW timing invariants: both
// bounds present and ordered.
func validateExamWindow(mode models.TimingMode, start, end *time.Time) ValidationErrors {
	var errs ValidationErrors

	if mode == models.TimingFixedWindow {
		if start == nil || end == nil {
			errs = append(errs, ValidationError{
				Field:   "start_time",
				Message: "fixed window exams require both start_time and end_time",
				Rule:    "business_logic",
			})
		} else if !end.After(*start) {
			errs = append(errs, ValidationError{
				Field:   "end_time",
				Message: "must be after start_time",
				Value:   end,
				Rule:    "business_logic",
			})
		}
	}

	return errs
}

// ToValidationErrors converts go-playground errors to the API shape
func ToValidationErrors(err error) ValidationErrors {
	var errs ValidationErrors

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{{Field: "request", Message: err.Error(), Rule: "struct"}}
	}

	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   toSnakeCase(fe.Field()),
			Message: errorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}

	return errs
}

// registerDomainRules registers the custom enum and range validators
func (v *Validator) registerDomainRules() {
	// Title validation (1-200 characters)
	v.validate.RegisterValidation("exam_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Description validation (max 2000 characters)
	v.validate.RegisterValidation("exam_description", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= 2000
	})

	// Time limit validation (1 minute to 8 hours, in seconds)
	v.validate.RegisterValidation("time_limit", func(fl validator.FieldLevel) bool {
		limit := fl.Field().Int()
		return limit >= 60 && limit <= 28800
	})

	// Max attempts validation (1-10)
	v.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 1 && attempts <= 10
	})

	// Passing score validation (0-100 percent)
	v.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Float()
		return score >= 0 && score <= 100
	})

	// Points range validation (1-100)
	v.validate.RegisterValidation("points_range", func(fl validator.FieldLevel) bool {
		points := fl.Field().Int()
		return points >= 1 && points <= 100
	})

	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		switch models.QuestionType(fl.Field().String()) {
		case models.QuestionTypeMultipleChoice, models.QuestionTypeTrueFalse,
			models.QuestionTypeShortAnswer, models.QuestionTypeEssay:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		switch models.DifficultyLevel(fl.Field().String()) {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("timing_mode", func(fl validator.FieldLevel) bool {
		switch models.TimingMode(fl.Field().String()) {
		case models.TimingFixedWindow, models.TimingFlexibleStart:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("review_method", func(fl validator.FieldLevel) bool {
		switch models.ReviewMethod(fl.Field().String()) {
		case models.ReviewMethodAI, models.ReviewMethodInstructor:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("proctor_event_type", func(fl validator.FieldLevel) bool {
		t := models.ProctorEventType(fl.Field().String())
		for _, known := range models.ProctorEventTypes {
			if t == known {
				return true
			}
		}
		return false
	})

	v.validate.RegisterValidation("proctor_severity", func(fl validator.FieldLevel) bool {
		switch models.Severity(fl.Field().String()) {
		case models.SeverityInfo, models.SeverityWarning, models.SeverityViolation:
			return true
		}
		return false
	})
}

// errorMessage returns user-friendly error messages
func errorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "url":
		return "must be a valid URL"
	case "gtfield":
		return fmt.Sprintf("must be after %s", toSnakeCase(err.Param()))
	case "exam_title":
		return "must be between 1 and 200 characters"
	case "exam_description":
		return "must not exceed 2000 characters"
	case "time_limit":
		return "must be between 60 and 28800 seconds"
	case "max_attempts":
		return "must be between 1 and 10"
	case "passing_score":
		return "must be between 0 and 100"
	case "points_range":
		return "must be between 1 and 100"
	case "question_type":
		return "must be a valid question type"
	case "difficulty_level":
		return "must be EASY, MEDIUM, or HARD"
	case "timing_mode":
		return "must be FIXED_WINDOW or FLEXIBLE_START"
	case "review_method":
		return "must be AI or INSTRUCTOR"
	case "proctor_event_type":
		return "must be a known proctoring event type"
	case "proctor_severity":
		return "must be INFO, WARNING, or VIOLATION"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}

func toSnakeCase(field string) string {
	var b strings.Builder
	prevUpper := false
	for i, r := range field {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if i > 0 && !prevUpper {
				b.WriteByte('_')
			}
			r = r - 'A' + 'a'
		}
		b.WriteRune(r)
		prevUpper = upper
	}
	return b.String()
}
