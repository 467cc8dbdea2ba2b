package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/learnsphere/exam-service/internal/config"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

type HandlerManager struct {
	examHandler         *ExamHandler
	paperHandler        *PaperHandler
	questionBankHandler *QuestionBankHandler
	attemptHandler      *AttemptHandler
	proctoringHandler   *ProctoringHandler
	authMiddleware      *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig)

	return &HandlerManager{
		examHandler:         NewExamHandler(serviceManager.Exam(), validator, logger),
		paperHandler:        NewPaperHandler(serviceManager.Paper(), validator, logger),
		questionBankHandler: NewQuestionBankHandler(serviceManager.QuestionBank(), validator, logger),
		attemptHandler:      NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		proctoringHandler:   NewProctoringHandler(serviceManager.Proctoring(), validator, logger),
		authMiddleware:      authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	instructorOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor)
	proctorOrInstructor := hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor, models.RoleProctor)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Exam routes
		exams := v1.Group("/exams")
		{
			// Create/modify exams - instructors only
			exams.POST("", instructorOnly, hm.examHandler.CreateExam)
			exams.PUT("/:id", instructorOnly, hm.examHandler.UpdateExam)
			exams.DELETE("/:id", instructorOnly, hm.examHandler.DeleteExam)

			// View exams - all authenticated users
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)

			// Stats - instructors only
			exams.GET("/:id/stats", instructorOnly, hm.examHandler.GetExamStats)

			// Paper composition - instructors only
			exams.POST("/:id/paper/generate", instructorOnly, hm.paperHandler.GeneratePaper)
			exams.GET("/:id/paper", instructorOnly, hm.paperHandler.GetPaper)
			exams.DELETE("/:id/paper", instructorOnly, hm.paperHandler.ClearPaper)
			exams.GET("/:id/paper/summary", instructorOnly, hm.paperHandler.GetPaperSummary)
			exams.PUT("/:id/paper/reorder", instructorOnly, hm.paperHandler.ReorderPaper)
			exams.POST("/:id/paper/questions", instructorOnly, hm.paperHandler.AddQuestions)
			exams.POST("/:id/paper/questions/:question_id", instructorOnly, hm.paperHandler.AddQuestion)
			exams.DELETE("/:id/paper/questions/:question_id", instructorOnly, hm.paperHandler.RemoveQuestion)
			exams.PUT("/:id/paper/questions/:question_id/points", instructorOnly, hm.paperHandler.UpdatePoints)

			// Proctoring export - instructors and proctors
			exams.GET("/:id/proctoring/export", proctorOrInstructor, hm.proctoringHandler.ExportExamReport)
		}

		// Question bank routes - instructors only
		questions := v1.Group("/questions")
		questions.Use(instructorOnly)
		{
			questions.POST("", hm.questionBankHandler.CreateQuestion)
			questions.GET("", hm.questionBankHandler.ListQuestions)
			questions.GET("/:id", hm.questionBankHandler.GetQuestion)
			questions.PUT("/:id", hm.questionBankHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionBankHandler.DeleteQuestion)
			questions.GET("/pool-stats/:course_id", hm.questionBankHandler.GetPoolStats)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			// Student lifecycle
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.PUT("/:id/progress", hm.attemptHandler.SaveProgress)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/display", hm.attemptHandler.GetAttemptForDisplay)
			attempts.GET("/mine", hm.attemptHandler.ListMyAttempts)

			// Proctoring during the attempt
			attempts.POST("/:id/proctoring/events", hm.proctoringHandler.RecordEvent)
			attempts.POST("/:id/proctoring/verify-identity", hm.proctoringHandler.VerifyIdentity)
			attempts.GET("/:id/proctoring/report", hm.proctoringHandler.GetReport)

			// Instructor operations
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/exam/:exam_id", instructorOnly, hm.attemptHandler.ListAttemptsByExam)
			attempts.POST("/:id/grade", instructorOnly, hm.attemptHandler.ManualGrade)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
