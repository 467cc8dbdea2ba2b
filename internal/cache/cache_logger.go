package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateExamCache invalidates all exam-related caches
func InvalidateExamCache(ctx context.Context, cm *CacheManager, clientID, examID string) {
	SafeDelete(ctx, cm.Fast, fmt.Sprintf("exam:%s:%s", clientID, examID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%s:%s:*", clientID, examID))
}

// InvalidateQuestionCache invalidates all question-related caches
func InvalidateQuestionCache(ctx context.Context, cm *CacheManager, clientID, questionID string) {
	SafeDelete(ctx, cm.Fast, fmt.Sprintf("question:%s:%s", clientID, questionID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("question:%s:%s:*", clientID, questionID))
}
