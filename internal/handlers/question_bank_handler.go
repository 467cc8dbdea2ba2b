package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

type QuestionBankHandler struct {
	BaseHandler
	questionBankService services.QuestionBankService
	validator           *validator.Validator
}

func NewQuestionBankHandler(
	questionBankService services.QuestionBankService,
	validator *validator.Validator,
	logger utils.Logger,
) *QuestionBankHandler {
	return &QuestionBankHandler{
		BaseHandler:         NewBaseHandler(logger),
		questionBankService: questionBankService,
		validator:           validator,
	}
}

// CreateQuestion creates a new bank question
// @Summary Create question
// @Description Creates a new question in the course bank
// @Tags questions
// @Accept json
// @Produce json
// @Param question body services.CreateQuestionRequest true "Question data"
// @Success 201 {object} models.QuestionBankEntry
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /questions [post]
func (h *QuestionBankHandler) CreateQuestion(c *gin.Context) {
	h.LogRequest(c, "Creating question")

	var req services.CreateQuestionRequest
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

	question, err := h.questionBankService.Create(c.Request.Context(), scope, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// GetQuestion retrieves a question by ID
// @Summary Get question
// @Description Retrieves a bank question by its ID
// @Tags questions
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} models.QuestionBankEntry
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /questions/{id} [get]
func (h *QuestionBankHandler) GetQuestion(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Getting question", "question_id", id)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	question, err := h.questionBankService.GetByID(c.Request.Context(), scope, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// UpdateQuestion updates a question
// @Summary Update question
// @Description Updates a bank question owned by the caller
// @Tags questions
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param question body services.UpdateQuestionRequest true "Question update data"
// @Success 200 {object} models.QuestionBankEntry
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /questions/{id} [put]
func (h *QuestionBankHandler) UpdateQuestion(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Updating question", "question_id", id)

	var req services.UpdateQuestionRequest
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

	question, err := h.questionBankService.Update(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// DeleteQuestion deletes a question
// @Summary Delete question
// @Description Deletes a bank question not used in any exam
// @Tags questions
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /questions/{id} [delete]
func (h *QuestionBankHandler) DeleteQuestion(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Deleting question", "question_id", id)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	if err := h.questionBankService.Delete(c.Request.Context(), scope, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Question deleted successfully",
	})
}

// ListQuestions lists bank questions with filters
// @Summary List questions
// @Description Lists bank questions with optional filtering and pagination
// @Tags questions
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(0)
// @Param size query int false "Page size" default(20)
// @Param course_id query string false "Course ID"
// @Param module_id query string false "Module ID"
// @Param type query string false "Question type"
// @Param difficulty query string false "Difficulty level"
// @Param search query string false "Text search"
// @Success 200 {object} models.PaginatedResponse
// @Failure 500 {object} ErrorResponse
// @Router /questions [get]
func (h *QuestionBankHandler) ListQuestions(c *gin.Context) {
	h.LogRequest(c, "Listing questions")

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	params := h.parseListParams(c)
	result, err := h.questionBankService.List(c.Request.Context(), scope, params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPoolStats retrieves per-difficulty pool counts for a course
// @Summary Get pool statistics
// @Description Retrieves per-difficulty question counts for a course bank
// @Tags questions
// @Accept json
// @Produce json
// @Param course_id path string true "Course ID"
// @Success 200 {object} SuccessResponse{data=repositories.PoolStats}
// @Failure 500 {object} ErrorResponse
// @Router /questions/pool-stats/{course_id} [get]
func (h *QuestionBankHandler) GetPoolStats(c *gin.Context) {
	courseID := ParseStringIDParam(c, "course_id")
	if courseID == "" {
		return
	}

	h.LogRequest(c, "Getting pool stats", "course_id", courseID)

	scope, ok := h.requireScope(c)
	if !ok {
		return
	}

	stats, err := h.questionBankService.GetPoolStats(c.Request.Context(), scope, courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Pool stats retrieved successfully",
		Data:    stats,
	})
}

func (h *QuestionBankHandler) parseListParams(c *gin.Context) models.ListQuestionBankParams {
	params := models.ListQuestionBankParams{
		Page:       h.parseIntQuery(c, "page", 0),
		Size:       h.parseIntQuery(c, "size", 20),
		Type:       models.QuestionType(c.Query("type")),
		Difficulty: models.DifficultyLevel(c.Query("difficulty")),
		Search:     strings.TrimSpace(c.Query("search")),
		ActiveOnly: c.Query("active_only") == "true",
		SortBy:     c.Query("sort_by"),
		SortDir:    c.Query("sort_dir"),
	}

	if courseID := strings.TrimSpace(c.Query("course_id")); courseID != "" {
		params.CourseID = &courseID
	}
	if moduleID := strings.TrimSpace(c.Query("module_id")); moduleID != "" {
		params.ModuleID = &moduleID
	}

	return params
}
