package enrich

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cardex/internal/domain"
	dombatch "github.com/kailas-cloud/cardex/internal/domain/batch"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
	"github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/metrics"
)

// Skip reasons reported for valid items that are not persisted.
const (
	ReasonNoSearchText = "no search text"
	ReasonNoImage      = "no image"
)

// errNoInput marks a stage with nothing to work on. It is not logged as a failure.
var errNoInput = errors.New("stage input missing")

// stage fills one derived slot of a record. A failing stage leaves its slot
// empty and the remaining stages still run.
type stage struct {
	field string
	run   func(ctx context.Context, rec *domcard.Record) error
}

// job is a validated record ready for the external stages.
type job struct {
	pos    int // position in the input slice
	index  int // item index reported in results
	record domcard.Record
}

// Service enriches batches of card records and persists them.
type Service struct {
	store       RecordStore
	stages      []stage
	concurrency int
	logger      *zap.Logger
}

// New creates an enrichment service.
func New(
	store RecordStore,
	images domain.ImageEmbedder,
	texts domain.TextEmbedder,
	captions domain.Captioner,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		stages:      buildStages(images, texts, captions),
		concurrency: 1,
		logger:      logger,
	}
}

// WithConcurrency sets how many records are enriched in parallel.
// n <= 1 processes records one at a time in input order.
func (s *Service) WithConcurrency(n int) *Service {
	if n < 1 {
		n = 1
	}
	s.concurrency = n
	return s
}

func buildStages(images domain.ImageEmbedder, texts domain.TextEmbedder, captions domain.Captioner) []stage {
	return []stage{
		{
			field: domcard.FieldImageVector,
			run: func(ctx context.Context, rec *domcard.Record) error {
				vec, err := images.VectorizeImageURL(ctx, rec.Image)
				if err != nil {
					return fmt.Errorf("vectorize image: %w", err)
				}
				rec.ImageVector = vec
				return nil
			},
		},
		{
			field: domcard.FieldCaption,
			run: func(ctx context.Context, rec *domcard.Record) error {
				text, err := captions.Caption(ctx, rec.Image)
				if err != nil {
					return fmt.Errorf("caption image: %w", err)
				}
				rec.SetCaption(text, nil)
				return nil
			},
		},
		{
			field: domcard.FieldCaptionVector,
			run: func(ctx context.Context, rec *domcard.Record) error {
				if rec.Caption == "" {
					return errNoInput
				}
				vec, err := texts.VectorizeText(ctx, rec.Caption)
				if err != nil {
					return fmt.Errorf("vectorize caption: %w", err)
				}
				rec.SetCaption(rec.Caption, vec)
				return nil
			},
		},
	}
}

// Enrich validates, enriches and upserts every item of a batch.
//
// Per-item failures are recorded in the summary and never stop the batch.
// The only fatal error is an unreachable store, checked once before the
// first record; a batch without eligible records never contacts the store.
func (s *Service) Enrich(ctx context.Context, items []domcard.Parsed) (dombatch.Summary, error) {
	log := logger.FromContextOr(ctx, s.logger)

	results := make([]dombatch.Result, len(items))
	jobs := s.plan(log, items, results)

	if len(jobs) > 0 {
		if err := s.store.Ping(ctx); err != nil {
			log.Error("record store unavailable, batch aborted", zap.Error(err))
			return dombatch.Summary{}, fmt.Errorf("store init: %w: %w", domain.ErrStoreUnavailable, err)
		}
		s.run(ctx, jobs, results)
	}

	summary := dombatch.Summarize(results)
	for _, r := range summary.Results {
		metrics.EnrichmentItemsTotal.WithLabelValues(string(r.Status())).Inc()
	}
	log.Info("batch enriched",
		zap.Int("total", summary.Total()),
		zap.Int("ok", summary.Count(dombatch.StatusOK)),
		zap.Int("skipped", summary.Count(dombatch.StatusSkipped)),
		zap.Int("rejected", summary.Count(dombatch.StatusRejected)),
		zap.Int("error", summary.Count(dombatch.StatusError)),
	)
	return summary, nil
}

// plan resolves everything that needs no external call: validation,
// search text and image presence. Items that go no further get their
// result here.
func (s *Service) plan(log *zap.Logger, items []domcard.Parsed, results []dombatch.Result) []job {
	jobs := make([]job, 0, len(items))
	for i := range items {
		it := &items[i]
		if !it.OK() {
			log.Warn("batch item rejected", zap.Int("index", it.Index), zap.String("reason", it.Rejection))
			results[i] = dombatch.NewRejected(it.Index, it.Rejection)
			continue
		}

		rec := it.Record
		rec.ClearDerived()
		rec.SearchText = domcard.DeriveSearchText(&rec)
		if rec.SearchText == "" {
			log.Info("batch item skipped", zap.String("id", rec.ID), zap.String("reason", ReasonNoSearchText))
			results[i] = dombatch.NewSkipped(it.Index, rec.ID, ReasonNoSearchText)
			continue
		}
		if !rec.HasImage() {
			log.Info("batch item skipped", zap.String("id", rec.ID), zap.String("reason", ReasonNoImage))
			results[i] = dombatch.NewSkipped(it.Index, rec.ID, ReasonNoImage)
			continue
		}
		jobs = append(jobs, job{pos: i, index: it.Index, record: rec})
	}
	return jobs
}

func (s *Service) run(ctx context.Context, jobs []job, results []dombatch.Result) {
	if s.concurrency <= 1 {
		for i := range jobs {
			results[jobs[i].pos] = s.process(ctx, &jobs[i])
		}
		return
	}

	// Records sharing an id run in one worker, in input order.
	groups := make([][]int, 0, len(jobs))
	byID := make(map[string]int, len(jobs))
	for i := range jobs {
		id := jobs[i].record.ID
		g, ok := byID[id]
		if !ok {
			g = len(groups)
			byID[id] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}

	// Workers never return errors, so one item cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, group := range groups {
		g.Go(func() error {
			for _, i := range group {
				results[jobs[i].pos] = s.process(ctx, &jobs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
}

// process runs the enrichment stages for one record and upserts it.
func (s *Service) process(ctx context.Context, j *job) (res dombatch.Result) {
	rec := &j.record
	ctx, log := logger.With(ctx, s.logger, zap.String("id", rec.ID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("batch item panicked", zap.Any("panic", p))
			res = dombatch.NewError(j.index, rec.ID, fmt.Errorf("panic: %v", p))
		}
	}()

	if err := ctx.Err(); err != nil {
		return dombatch.NewError(j.index, rec.ID, fmt.Errorf("batch cancelled: %w", err))
	}

	for _, st := range s.stages {
		if err := st.run(ctx, rec); err != nil {
			logStageFailure(log, st.field, err)
		}
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		log.Error("upsert failed", zap.Error(err))
		return dombatch.NewError(j.index, rec.ID, fmt.Errorf("upsert: %w", err))
	}

	fields := attachedFields(rec)
	for _, f := range fields {
		metrics.EnrichmentFieldsTotal.WithLabelValues(f).Inc()
	}
	log.Debug("record enriched", zap.Strings("fields", fields))
	return dombatch.NewOK(j.index, rec.ID, fields)
}

func logStageFailure(log *zap.Logger, field string, err error) {
	switch {
	case errors.Is(err, errNoInput):
	case errors.Is(err, domain.ErrNotApplicable):
		log.Info("stage not applicable", zap.String("field", field))
	default:
		log.Warn("stage failed, field left empty", zap.String("field", field), zap.Error(err))
	}
}

func attachedFields(rec *domcard.Record) []string {
	fields := []string{domcard.FieldSearchText}
	if len(rec.ImageVector) > 0 {
		fields = append(fields, domcard.FieldImageVector)
	}
	if rec.Caption != "" {
		fields = append(fields, domcard.FieldCaption)
	}
	if len(rec.CaptionVector) > 0 {
		fields = append(fields, domcard.FieldCaptionVector)
	}
	return fields
}
