package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
)

// httpReviewGateway posts sealed submissions to the AI review service.
// The HTTP client is injected so tests and callers control timeouts and
// transports.
type httpReviewGateway struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

func NewHTTPReviewGateway(client *http.Client, baseURL string, logger *slog.Logger) ReviewGateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &httpReviewGateway{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

type reviewTriggerPayload struct {
	SubmissionID string    `json:"submission_id"`
	ExamID       string    `json:"exam_id"`
	StudentID    string    `json:"student_id"`
	ClientID     string    `json:"client_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

func (g *httpReviewGateway) TriggerReview(ctx context.Context, submission *models.Submission) error {
	payload := reviewTriggerPayload{
		SubmissionID: submission.ID,
		ExamID:       submission.ExamID,
		StudentID:    submission.StudentID,
		ClientID:     submission.ClientID,
	}
	if submission.SubmittedAt != nil {
		payload.SubmittedAt = *submission.SubmittedAt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode review request: %w", err)
	}

	url := g.baseURL + "/api/v1/reviews"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("review request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("review service returned %d: %s", resp.StatusCode, snippet)
	}

	g.logger.Debug("Review triggered", "submission_id", submission.ID, "status", resp.StatusCode)
	return nil
}

// noopReviewGateway is used when no review service is configured.
type noopReviewGateway struct {
	logger *slog.Logger
}

func NewNoopReviewGateway(logger *slog.Logger) ReviewGateway {
	return &noopReviewGateway{logger: logger}
}

func (g *noopReviewGateway) TriggerReview(ctx context.Context, submission *models.Submission) error {
	g.logger.Debug("Review gateway disabled, skipping trigger", "submission_id", submission.ID)
	return nil
}
