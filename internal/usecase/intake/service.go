package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
	dombatch "github.com/kailas-cloud/cardex/internal/domain/batch"
	"github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/metrics"
)

// Batch outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeNoop      = "noop"
	OutcomeFailed    = "failed"
)

// Service moves batch artifacts from a source through the enrichment pipeline.
type Service struct {
	source   Source
	enricher Enricher
	logger   *zap.Logger
}

// New creates an intake service.
func New(source Source, enricher Enricher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, enricher: enricher, logger: logger}
}

// Process consumes one batch artifact.
//
// Undecodable and empty batches are acknowledged as no-ops. When the
// pipeline fails as a whole the artifact stays in place for a later run.
func (s *Service) Process(ctx context.Context, name string) (dombatch.Summary, error) {
	runID := uuid.NewString()
	ctx, log := logger.With(ctx, s.logger, zap.String("run_id", runID), zap.String("batch", name))

	payload, err := s.source.Fetch(ctx, name)
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(OutcomeFailed).Inc()
		return dombatch.Summary{}, fmt.Errorf("fetch batch %s: %w", name, err)
	}

	items, err := Decode(payload)
	if err != nil || len(items) == 0 {
		if err != nil {
			log.Warn("batch payload ignored", zap.Error(err))
		} else {
			log.Warn("batch payload is empty")
		}
		metrics.BatchesTotal.WithLabelValues(OutcomeNoop).Inc()
		if ackErr := s.source.Ack(ctx, name); ackErr != nil {
			return dombatch.Summary{}, fmt.Errorf("ack batch %s: %w", name, ackErr)
		}
		return dombatch.Summary{}, nil
	}

	started := time.Now()
	summary, err := s.enricher.Enrich(ctx, items)
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(OutcomeFailed).Inc()
		return summary, fmt.Errorf("enrich batch %s: %w", name, err)
	}

	if err := s.source.Ack(ctx, name); err != nil {
		return summary, fmt.Errorf("ack batch %s: %w", name, err)
	}
	metrics.BatchesTotal.WithLabelValues(OutcomeProcessed).Inc()

	log.Info("batch processed",
		zap.Int("items", summary.Total()),
		zap.Int("ok", summary.Count(dombatch.StatusOK)),
		zap.Int("skipped", summary.Count(dombatch.StatusSkipped)),
		zap.Int("rejected", summary.Count(dombatch.StatusRejected)),
		zap.Int("errors", summary.Count(dombatch.StatusError)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}

// Drain processes every pending batch once, in source order.
// It stops at the first store failure; other batch failures are logged and skipped.
func (s *Service) Drain(ctx context.Context) (int, error) {
	names, err := s.source.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list batches: %w", err)
	}

	processed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return processed, err //nolint:wrapcheck // context error
		}
		if _, err := s.Process(ctx, name); err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return processed, err
			}
			s.logger.Error("batch failed", zap.String("batch", name), zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}

// Watch drains the source immediately and then on every tick until ctx is done.
func (s *Service) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrValidation)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := s.Drain(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("drain failed", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("drained batches", zap.Int("count", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
