package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts or resumes an exam attempt
// @Summary Start exam attempt
// @Description Starts a new attempt or resumes the open one
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.AttemptStartResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting exam attempt")

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), scope, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// SaveProgress saves answers for an open attempt
// @Summary Save attempt progress
// @Description Saves the current answer map; last write wins
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param progress body services.SaveProgressRequest true "Answer map"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/progress [put]
func (h *AttemptHandler) SaveProgress(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Saving attempt progress", "submission_id", id)

	var req services.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	if err := h.attemptService.SaveProgress(c.Request.Context(), scope, id, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Progress saved successfully",
	})
}

// SubmitAttempt submits an attempt
// @Summary Submit exam attempt
// @Description Seals the attempt and hands it to review
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param attempt body services.SubmitAttemptRequest true "Final answers"
// @Success 200 {object} models.Submission
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Submitting exam attempt", "submission_id", id)

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	submission, err := h.attemptService.Submit(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// GetAttemptForDisplay retrieves an attempt in its frozen display order
// @Summary Get attempt for display
// @Description Retrieves the attempt's questions in the frozen randomized order
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} models.SubmissionDisplay
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/display [get]
func (h *AttemptHandler) GetAttemptForDisplay(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Getting attempt for display", "submission_id", id)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	display, err := h.attemptService.GetForDisplay(c.Request.Context(), scope, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, display)
}

// ListMyAttempts lists the caller's attempts
// @Summary List own attempts
// @Description Lists the authenticated student's attempts
// @Tags attempts
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(0)
// @Param size query int false "Page size" default(20)
// @Param exam_id query string false "Exam ID"
// @Success 200 {object} models.PaginatedResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/mine [get]
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	h.LogRequest(c, "Listing own attempts")

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	params := h.parseListParams(c)
	result, err := h.attemptService.ListMine(c.Request.Context(), scope, params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttempt retrieves an attempt by ID
// @Summary Get attempt
// @Description Retrieves an attempt with resume and submit hints
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} services.SubmissionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Getting attempt", "submission_id", id)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), scope, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListAttemptsByExam lists attempts for an exam
// @Summary List attempts by exam
// @Description Lists all attempts for an exam owned by the caller
// @Tags attempts
// @Accept json
// @Produce json
// @Param exam_id path string true "Exam ID"
// @Param page query int false "Page number" default(0)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} models.PaginatedResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/exam/{exam_id} [get]
func (h *AttemptHandler) ListAttemptsByExam(c *gin.Context) {
	examID := ParseStringIDParam(c, "exam_id")
	if examID == "" {
		return
	}

	h.LogRequest(c, "Listing attempts by exam", "exam_id", examID)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	params := h.parseListParams(c)
	result, err := h.attemptService.ListByExam(c.Request.Context(), scope, examID, params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ManualGrade applies an instructor grade to a submitted attempt
// @Summary Grade attempt manually
// @Description Applies an instructor score and feedback to a submitted attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param grade body services.ManualGradeRequest true "Grade data"
// @Success 200 {object} models.Submission
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/grade [post]
func (h *AttemptHandler) ManualGrade(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Grading attempt manually", "submission_id", id)

	var req services.ManualGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	submission, err := h.attemptService.ManualGrade(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

func (h *AttemptHandler) parseListParams(c *gin.Context) models.ListSubmissionsParams {
	params := models.ListSubmissionsParams{
		Page:    h.parseIntQuery(c, "page", 0),
		Size:    h.parseIntQuery(c, "size", 20),
		SortBy:  c.Query("sort_by"),
		SortDir: c.Query("sort_dir"),
	}

	if examID := strings.TrimSpace(c.Query("exam_id")); examID != "" {
		params.ExamID = &examID
	}
	if studentID := strings.TrimSpace(c.Query("student_id")); studentID != "" {
		params.StudentID = &studentID
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		params.Status = &status
	}
	if c.Query("open_only") == "true" {
		params.OpenOnly = true
	}
	if from := c.Query("date_from"); from != "" {
		if parsed, err := time.Parse(time.RFC3339, from); err == nil {
			params.DateFrom = &parsed
		}
	}
	if to := c.Query("date_to"); to != "" {
		if parsed, err := time.Parse(time.RFC3339, to); err == nil {
			params.DateTo = &parsed
		}
	}

	return params
}
