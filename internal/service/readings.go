package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
	"github.com/cenfotec-cedula5/energy-monitor/internal/metrics"
)

// ReadingService accepts raw device payloads from transports that have no
// caller to answer, such as the MQTT subscription.
type ReadingService struct {
	analysis *AnalysisService
	log      zerolog.Logger
	now      func() time.Time
}

func (s *ReadingService) FromMQTT(ctx context.Context, topic string, payload []byte) error {
	rd, err := domain.ParseReading(payload, domain.SourceMQTT, s.now().UTC())
	if err != nil {
		metrics.IncRejected(domain.SourceMQTT)
		s.log.Warn().Err(err).Str("topic", topic).Int("size", len(payload)).Msg("dropping reading")
		return err
	}
	return s.analysis.Ingest(ctx, rd)
}
