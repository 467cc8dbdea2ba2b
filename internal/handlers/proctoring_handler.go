package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

type ProctoringHandler struct {
	BaseHandler
	proctoringService services.ProctoringService
	validator         *validator.Validator
}

func NewProctoringHandler(
	proctoringService services.ProctoringService,
	validator *validator.Validator,
	logger utils.Logger,
) *ProctoringHandler {
	return &ProctoringHandler{
		BaseHandler:       NewBaseHandler(logger),
		proctoringService: proctoringService,
		validator:         validator,
	}
}

// RecordEvent records a proctoring event for an open attempt
// @Summary Record proctoring event
// @Description Records a browser proctoring event and updates the attempt's status
// @Tags proctoring
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param event body services.RecordProctorEventRequest true "Event data"
// @Success 201 {object} models.ProctoringEvent
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/proctoring/events [post]
func (h *ProctoringHandler) RecordEvent(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Recording proctoring event", "submission_id", id)

	var req services.RecordProctorEventRequest
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

	event, err := h.proctoringService.RecordEvent(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// GetReport retrieves the proctoring report for an attempt
// @Summary Get proctoring report
// @Description Retrieves the attempt's proctoring status, counters and events
// @Tags proctoring
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} models.ProctoringReport
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/proctoring/report [get]
func (h *ProctoringHandler) GetReport(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Getting proctoring report", "submission_id", id)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	report, err := h.proctoringService.GetReport(c.Request.Context(), scope, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

type verifyIdentityRequest struct {
	PhotoURL *string `json:"photo_url" validate:"omitempty,url,max=2048"`
}

// VerifyIdentity marks the attempt's identity check as passed
// @Summary Verify identity
// @Description Records an identity verification event for the attempt
// @Tags proctoring
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param verification body verifyIdentityRequest true "Verification data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/proctoring/verify-identity [post]
func (h *ProctoringHandler) VerifyIdentity(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Verifying identity", "submission_id", id)

	var req verifyIdentityRequest
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

	if err := h.proctoringService.VerifyIdentity(c.Request.Context(), scope, id, req.PhotoURL); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Identity verified successfully",
	})
}

// ExportExamReport exports a proctoring report for all attempts of an exam
// @Summary Export proctoring report
// @Description Exports the exam's proctoring summary as an Excel file
// @Tags proctoring
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Exam ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/proctoring/export [get]
func (h *ProctoringHandler) ExportExamReport(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	h.LogRequest(c, "Exporting proctoring report", "exam_id", examID)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	report, err := h.proctoringService.ExportExamReport(c.Request.Context(), scope, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("proctoring-%s-%s.xlsx", examID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", report)
}
