package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cenfotec-cedula5/energy-monitor/internal/analyzer"
	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
	"github.com/cenfotec-cedula5/energy-monitor/internal/metrics"
	"github.com/cenfotec-cedula5/energy-monitor/internal/prompt"
	"github.com/cenfotec-cedula5/energy-monitor/internal/store"
)

// AnalysisService runs one analyzer call per reading and publishes the outcome.
// Concurrent Ingest calls are not serialized; the store keeps whichever
// result lands last.
type AnalysisService struct {
	analyzer analyzer.Analyzer
	store    *store.ResultStore
	journal  Journal
	notifier FailureNotifier
	log      zerolog.Logger
	now      func() time.Time

	// sideEffectTimeout bounds each journal insert and failure notification.
	sideEffectTimeout time.Duration
}

// Ingest analyzes rd and stores the result. A provider failure stores
// domain.FailureText and is returned to the caller; the stored text never
// carries the error detail.
func (s *AnalysisService) Ingest(ctx context.Context, rd domain.Reading) error {
	start := s.now()
	s.record(ctx, rd)

	text, err := s.analyzer.Analyze(ctx, prompt.Build(rd))
	at := s.now()
	if err != nil {
		s.store.Set(domain.Result{Text: domain.FailureText, State: domain.StateFailed, UpdatedAt: at})
		metrics.IncProviderError(string(analyzer.KindOf(err)))
		metrics.ObserveIngest(rd.Source, metrics.ResultError, at.Sub(start), at)
		s.log.Error().Err(err).Str("source", rd.Source).Dur("took", at.Sub(start)).Msg("analysis failed")
		s.notifyFailure(ctx, rd, err)
		return err
	}

	s.store.Set(domain.Result{Text: text, State: domain.StateOK, UpdatedAt: at})
	metrics.ObserveIngest(rd.Source, metrics.ResultSuccess, at.Sub(start), at)
	s.log.Info().Str("source", rd.Source).Dur("took", at.Sub(start)).Int("chars", len(text)).Msg("analysis stored")
	return nil
}

// Latest returns the published analysis without waiting on in-flight ingests.
func (s *AnalysisService) Latest() domain.Result {
	return s.store.Get()
}

func (s *AnalysisService) record(ctx context.Context, rd domain.Reading) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.sideEffectTimeout)
	defer cancel()
	if err := s.journal.InsertReading(ctx, rd); err != nil {
		metrics.IncSideEffectFailure("journal")
		s.log.Warn().Err(err).Msg("journal insert failed")
	}
}

func (s *AnalysisService) notifyFailure(ctx context.Context, rd domain.Reading, cause error) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.sideEffectTimeout)
	defer cancel()
	if err := s.notifier.NotifyFailure(ctx, rd, cause); err != nil {
		metrics.IncSideEffectFailure("notifier")
		s.log.Warn().Err(err).Msg("failure notification not sent")
	}
}
