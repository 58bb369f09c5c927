package services

import (
	"context"
	"errors"
	"time"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/repository"

	"go.uber.org/zap"
)

// translateRepoError maps repository sentinels onto the error kinds the HTTP
// layer renders.
func translateRepoError(err error, what, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("%s %s not found", what, id)
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.InvalidTransition("%s %s was modified concurrently", what, id)
	default:
		return apperrors.Storage("failed to access "+what, err)
	}
}

// MetricsRecorder is satisfied by *aws.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// recordAsync sends a counter without holding up the caller.
func recordAsync(metrics MetricsRecorder, logger *zap.Logger, name string, dims map[string]string) {
	if metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.RecordCount(ctx, name, dims); err != nil {
			logger.Warn("Failed to record metric", zap.String("metric", name), zap.Error(err))
		}
	}()
}
