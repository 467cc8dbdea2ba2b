package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"gorm.io/gorm"
)

// ServiceManagerConfig carries the cross-cutting collaborators the
// services share.
type ServiceManagerConfig struct {
	EventPublisher events.EventPublisher
	ReviewGateway  ReviewGateway

	// FlexibleStartEndCap caps FLEXIBLE_START attempts at the exam end
	// time when one is set.
	FlexibleStartEndCap bool
}

type serviceManager struct {
	mu sync.RWMutex

	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	exam         ExamService
	paper        PaperService
	questionBank QuestionBankService
	attempt      AttemptService
	proctoring   ProctoringService

	initialized bool
}

func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// NewDefaultServiceManager wires a manager with an in-memory event
// publisher and no review gateway, for tests and local runs.
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	return NewServiceManager(db, repo, logger, validator, ServiceManagerConfig{
		EventPublisher: events.NewMockEventPublisher(logger),
		ReviewGateway:  NewNoopReviewGateway(logger),
	})
}

// ===== LIFECYCLE =====

func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing services")

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository not reachable: %w", err)
	}

	sm.exam = NewExamService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.paper = NewPaperService(sm.repo, sm.db, sm.logger, sm.validator, sm.config.EventPublisher)
	sm.questionBank = NewQuestionBankService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.attempt = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator,
		sm.config.EventPublisher, sm.config.ReviewGateway, sm.config.FlexibleStartEndCap)
	sm.proctoring = NewProctoringService(sm.repo, sm.db, sm.logger, sm.validator, sm.config.EventPublisher)

	sm.initialized = true
	sm.logger.Info("Services initialized successfully")
	return nil
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	return sm.repo.Ping(ctx)
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.logger.Info("Shutting down services")

	if sm.config.EventPublisher != nil {
		if err := sm.config.EventPublisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.initialized = false
	return sm.repo.Close()
}

// ===== SERVICE ACCESSORS =====

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized: call Initialize first")
	}
	return sm.exam
}

func (sm *serviceManager) Paper() PaperService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized: call Initialize first")
	}
	return sm.paper
}

func (sm *serviceManager) QuestionBank() QuestionBankService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized: call Initialize first")
	}
	return sm.questionBank
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized: call Initialize first")
	}
	return sm.attempt
}

func (sm *serviceManager) Proctoring() ProctoringService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.initialized {
		panic("service manager not initialized: call Initialize first")
	}
	return sm.proctoring
}

// ===== FACTORY HELPERS =====

// CreateProductionServiceManager wires Kafka publishing and the HTTP
// review gateway from runtime settings.
func CreateProductionServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, kafkaBrokers []string, kafkaTopic, reviewServiceURL string, flexibleStartEndCap bool) (ServiceManager, error) {
	publisher, err := events.NewKafkaEventPublisher(kafkaBrokers, kafkaTopic, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	var gateway ReviewGateway
	if reviewServiceURL != "" {
		gateway = NewHTTPReviewGateway(nil, reviewServiceURL, logger)
	} else {
		gateway = NewNoopReviewGateway(logger)
	}

	return NewServiceManager(db, repo, logger, validator, ServiceManagerConfig{
		EventPublisher:      publisher,
		ReviewGateway:       gateway,
		FlexibleStartEndCap: flexibleStartEndCap,
	}), nil
}

// CreateDevelopmentServiceManager logs events instead of publishing
// them and skips the review hand-off.
func CreateDevelopmentServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	return NewDefaultServiceManager(db, repo, logger, validator)
}
