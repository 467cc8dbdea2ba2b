package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

// ErrorResponse is the error body returned by all handlers
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse is the success envelope for operations without a
// dedicated response type
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler provides logging and error translation shared by all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs the start of a handler with request context
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	logger := utils.LoggerFromContext(c, h.logger)
	args = append(args, "method", c.Request.Method, "path", c.Request.URL.Path)
	logger.Info(msg, args...)
}

// LogError logs an unexpected error with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	logger := utils.LoggerFromContext(c, h.logger)
	args = append(args, "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
	logger.Error(msg, args...)
}

// requireScope extracts the authenticated scope, writing a 401 when the
// auth middleware did not run.
func (h *BaseHandler) requireScope(c *gin.Context) (models.Scope, bool) {
	scope, err := GetScopeFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return models.Scope{}, false
	}
	return scope, true
}

// ParseStringIDParam returns the named path parameter, writing a 400
// when it is empty.
func ParseStringIDParam(c *gin.Context, param string) string {
	id := c.Param(param)
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing " + param,
		})
	}
	return id
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// handleServiceError maps service errors onto HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var poolError *services.InsufficientPoolError
	if errors.As(err, &poolError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Insufficient question pool",
			Details: map[string]interface{}{
				"difficulty": poolError.Difficulty,
				"requested":  poolError.Requested,
				"available":  poolError.Available,
			},
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule": businessRuleError.Rule,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource_type": permissionError.ResourceType,
				"resource_id":   permissionError.ResourceID,
				"action":        permissionError.Action,
				"reason":        permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	case errors.Is(err, services.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Submission not found",
		})
	case errors.Is(err, services.ErrExamNotYetOpen):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Exam window has not opened yet",
		})
	case errors.Is(err, services.ErrExamWindowClosed):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Exam window has closed",
		})
	case errors.Is(err, services.ErrAttemptsExhausted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Maximum attempts reached",
		})
	case errors.Is(err, services.ErrEnrollmentRequired):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Active enrollment required",
		})
	case errors.Is(err, services.ErrSubmissionSealed):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Submission is sealed",
		})
	case errors.Is(err, services.ErrSubmissionAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Submission already submitted",
		})
	case errors.Is(err, services.ErrSubmissionNotSubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Submission has not been submitted yet",
		})
	case errors.Is(err, services.ErrExamHasNoQuestions):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam has no questions",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
