package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cenfotec-cedula5/energy-monitor/internal/analyzer"
	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
	"github.com/cenfotec-cedula5/energy-monitor/internal/store"
)

// Journal records raw readings. Optional.
type Journal interface {
	InsertReading(ctx context.Context, rd domain.Reading) error
}

// FailureNotifier is told about every failed analysis cycle. Optional.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, rd domain.Reading, cause error) error
}

// DefaultSideEffectTimeout bounds journal writes and failure notifications.
const DefaultSideEffectTimeout = 2 * time.Second

type Deps struct {
	Analyzer analyzer.Analyzer
	Store    *store.ResultStore
	Journal  Journal
	Notifier FailureNotifier
	Logger   zerolog.Logger
}

type Services struct {
	Analysis *AnalysisService
	Readings *ReadingService
}

func New(d Deps) *Services {
	if d.Store == nil {
		d.Store = store.New()
	}
	analysis := &AnalysisService{
		analyzer: d.Analyzer,
		store:    d.Store,
		journal:  d.Journal,
		notifier: d.Notifier,
		log:      d.Logger.With().Str("component", "analysis").Logger(),
		now:      time.Now,

		sideEffectTimeout: DefaultSideEffectTimeout,
	}
	return &Services{
		Analysis: analysis,
		Readings: &ReadingService{analysis: analysis, log: d.Logger.With().Str("component", "readings").Logger(), now: time.Now},
	}
}
