package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

type PaperHandler struct {
	BaseHandler
	paperService services.PaperService
	validator    *validator.Validator
}

func NewPaperHandler(
	paperService services.PaperService,
	validator *validator.Validator,
	logger utils.Logger,
) *PaperHandler {
	return &PaperHandler{
		BaseHandler:  NewBaseHandler(logger),
		paperService: paperService,
		validator:    validator,
	}
}

// GeneratePaper generates a question paper from the bank
// @Summary Generate question paper
// @Description Draws questions from the course bank by difficulty distribution
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param distribution body services.GeneratePaperRequest true "Difficulty distribution"
// @Success 200 {object} models.GenerationResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper/generate [post]
func (h *PaperHandler) GeneratePaper(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	h.LogRequest(c, "Generating question paper", "exam_id", examID)

	var req services.GeneratePaperRequest
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

	result, err := h.paperService.GeneratePaper(c.Request.Context(), scope, examID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddQuestions adds questions to the paper
// @Summary Add questions to paper
// @Description Appends bank questions to the end of the paper
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param questions body services.AddQuestionsRequest true "Question IDs"
// @Success 200 {object} SuccessResponse{data=[]models.ExamQuestion}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper/questions [post]
func (h *PaperHandler) AddQuestions(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	h.LogRequest(c, "Adding questions to paper", "exam_id", examID)

	var req services.AddQuestionsRequest
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

	added, err := h.paperService.AddQuestions(c.Request.Context(), scope, examID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Questions added successfully",
		Data:    added,
	})
}

// AddQuestion adds a single question to the paper
// @Summary Add question to paper
// @Description Appends one bank question to the end of the paper
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param question_id path string true "Question ID"
// @Success 200 {object} models.ExamQuestion
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper/questions/{question_id} [post]
func (h *PaperHandler) AddQuestion(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	h.LogRequest(c, "Adding question to paper", "exam_id", examID, "question_id", questionID)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	row, err := h.paperService.AddQuestion(c.Request.Context(), scope, examID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, row)
}

// RemoveQuestion removes a question from the paper
// @Summary Remove question from paper
// @Description Removes a question and closes the sequence gap
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param question_id path string true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper/questions/{question_id} [delete]
func (h *PaperHandler) RemoveQuestion(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	h.LogRequest(c, "Removing question from paper", "exam_id", examID, "question_id", questionID)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	if err := h.paperService.RemoveQuestion(c.Request.Context(), scope, examID, questionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Question removed successfully",
	})
}

// ReorderPaper reorders the paper
// @Summary Reorder paper
// @Description Applies a full permutation of the paper's question IDs
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param order body services.ReorderRequest true "Question IDs in new order"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper/reorder [put]
func (h *PaperHandler) ReorderPaper(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	h.LogRequest(c, "Reordering paper", "exam_id", examID)

	var req services.ReorderRequest
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

	if err := h.paperService.Reorder(c.Request.Context(), scope, examID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Paper reordered successfully",
	})
}

// UpdatePoints overrides the points of a paper question
// @Summary Update question points
// @Description Overrides the points a question is worth in this exam
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param question_id path string true "Question ID"
// @Param points body services.UpdatePointsRequest true "New points value"
// @Success 200 {object} models.ExamQuestion
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper/questions/{question_id}/points [put]
func (h *PaperHandler) UpdatePoints(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	h.LogRequest(c, "Updating question points", "exam_id", examID, "question_id", questionID)

	var req services.UpdatePointsRequest
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

	row, err := h.paperService.UpdatePoints(c.Request.Context(), scope, examID, questionID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, row)
}

// ClearPaper removes all questions from the paper
// @Summary Clear paper
// @Description Removes every question from the exam's paper
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper [delete]
func (h *PaperHandler) ClearPaper(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	h.LogRequest(c, "Clearing paper", "exam_id", examID)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	if err := h.paperService.Clear(c.Request.Context(), scope, examID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Paper cleared successfully",
	})
}

// GetPaper retrieves the paper in sequence order
// @Summary Get paper
// @Description Retrieves the exam's question paper in sequence order
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} SuccessResponse{data=[]models.ExamQuestion}
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper [get]
func (h *PaperHandler) GetPaper(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	h.LogRequest(c, "Getting paper", "exam_id", examID)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	paper, err := h.paperService.GetPaper(c.Request.Context(), scope, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Paper retrieved successfully",
		Data:    paper,
	})
}

// GetPaperSummary retrieves question count and total points
// @Summary Get paper summary
// @Description Retrieves the paper's question count and total points
// @Tags papers
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/paper/summary [get]
func (h *PaperHandler) GetPaperSummary(c *gin.Context) {
	examID := ParseStringIDParam(c, "id")
	if examID == "" {
		return
	}

	h.LogRequest(c, "Getting paper summary", "exam_id", examID)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	count, err := h.paperService.Count(c.Request.Context(), scope, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	totalPoints, err := h.paperService.TotalPoints(c.Request.Context(), scope, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Paper summary retrieved successfully",
		Data: map[string]interface{}{
			"question_count": count,
			"total_points":   totalPoints,
		},
	})
}
