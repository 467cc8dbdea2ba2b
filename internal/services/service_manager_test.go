package services

import (
	"context"
	"testing"

	"github.com/learnsphere/exam-service/internal/validator"
)

func TestServiceManagerLifecycle(t *testing.T) {
	manager := NewDefaultServiceManager(nil, newFakeRepository(), testLogger(), validator.New())
	ctx := context.Background()

	if err := manager.HealthCheck(ctx); err == nil {
		t.Error("health check should fail before Initialize")
	}

	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	// Second Initialize is a no-op.
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("repeat Initialize failed: %v", err)
	}

	if err := manager.HealthCheck(ctx); err != nil {
		t.Errorf("health check failed after Initialize: %v", err)
	}

	if manager.Exam() == nil {
		t.Error("Exam service not wired")
	}
	if manager.Paper() == nil {
		t.Error("Paper service not wired")
	}
	if manager.QuestionBank() == nil {
		t.Error("QuestionBank service not wired")
	}
	if manager.Attempt() == nil {
		t.Error("Attempt service not wired")
	}
	if manager.Proctoring() == nil {
		t.Error("Proctoring service not wired")
	}

	if err := manager.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := manager.HealthCheck(ctx); err == nil {
		t.Error("health check should fail after Shutdown")
	}
}

func TestServiceManagerAccessorPanicsBeforeInitialize(t *testing.T) {
	manager := NewDefaultServiceManager(nil, newFakeRepository(), testLogger(), validator.New())

	defer func() {
		if recover() == nil {
			t.Error("expected a panic when accessing services before Initialize")
		}
	}()
	manager.Exam()
}
