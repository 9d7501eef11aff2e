package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cenfotec-cedula5/energy-monitor/internal/analyzer"
	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
	"github.com/cenfotec-cedula5/energy-monitor/internal/store"
)

type stubAnalyzer struct {
	text    string
	err     error
	calls   atomic.Int32
	prompts chan string
}

func (s *stubAnalyzer) Analyze(_ context.Context, p string) (string, error) {
	s.calls.Add(1)
	if s.prompts != nil {
		s.prompts <- p
	}
	return s.text, s.err
}

// gatedAnalyzer holds each call until the gate registered for a marker found
// in the prompt is closed.
type gatedAnalyzer struct {
	gates   map[string]chan struct{}
	entered chan string
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, p string) (string, error) {
	for marker, gate := range g.gates {
		if strings.Contains(p, marker) {
			g.entered <- marker
			select {
			case <-gate:
				return "analysis " + marker, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", errors.New("unexpected prompt")
}

type stubJournal struct {
	mu   sync.Mutex
	rows []domain.Reading
	err  error
}

func (j *stubJournal) InsertReading(_ context.Context, rd domain.Reading) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rows = append(j.rows, rd)
	return j.err
}

type stubNotifier struct {
	causes []error
	err    error
}

func (n *stubNotifier) NotifyFailure(_ context.Context, _ domain.Reading, cause error) error {
	n.causes = append(n.causes, cause)
	return n.err
}

func mustReading(t *testing.T, payload string) domain.Reading {
	t.Helper()
	rd, err := domain.ParseReading([]byte(payload), domain.SourceHTTP, time.Now().UTC())
	if err != nil {
		t.Fatalf("parse reading: %v", err)
	}
	return rd
}

func newServices(a analyzer.Analyzer, j Journal, n FailureNotifier) *Services {
	return New(Deps{Analyzer: a, Store: store.New(), Journal: j, Notifier: n, Logger: zerolog.Nop()})
}

func TestLatestBeforeIngest(t *testing.T) {
	svcs := newServices(&stubAnalyzer{}, nil, nil)
	if got := svcs.Analysis.Latest().Text; got != domain.PendingText {
		t.Fatalf("Latest() = %q, want pending text", got)
	}
}

func TestIngestSuccessStoresTextVerbatim(t *testing.T) {
	const answer = "Consumo total: 200W. El factor de potencia de 0.92 es bueno."
	a := &stubAnalyzer{text: answer, prompts: make(chan string, 1)}
	svcs := newServices(a, nil, nil)

	payload := `{"ch1_power": 120, "ch2_power": 80, "pf": 0.92}`
	if err := svcs.Analysis.Ingest(context.Background(), mustReading(t, payload)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := svcs.Analysis.Latest()
	if got.Text != answer || got.State != domain.StateOK || got.UpdatedAt.IsZero() {
		t.Fatalf("unexpected stored result: %+v", got)
	}
	if a.calls.Load() != 1 {
		t.Fatalf("analyzer called %d times, want 1", a.calls.Load())
	}
	if p := <-a.prompts; !strings.Contains(p, payload) {
		t.Fatalf("prompt does not embed reading:\n%s", p)
	}
}

func TestIngestFailureStoresPlaceholder(t *testing.T) {
	cause := &analyzer.ProviderError{Provider: "gemini", Kind: analyzer.KindTimeout, Err: context.DeadlineExceeded}
	n := &stubNotifier{}
	svcs := newServices(&stubAnalyzer{err: cause}, nil, n)

	err := svcs.Analysis.Ingest(context.Background(), mustReading(t, `{"ch1_power": 1}`))
	if err == nil || err.Error() == "" {
		t.Fatalf("expected a descriptive error, got %v", err)
	}
	if analyzer.KindOf(err) != analyzer.KindTimeout {
		t.Fatalf("kind = %q, want timeout", analyzer.KindOf(err))
	}

	got := svcs.Analysis.Latest()
	if got.Text != domain.FailureText || got.State != domain.StateFailed {
		t.Fatalf("unexpected stored result: %+v", got)
	}
	if strings.Contains(got.Text, "deadline") {
		t.Fatal("stored placeholder must not carry error detail")
	}
	if len(n.causes) != 1 || !errors.Is(n.causes[0], context.DeadlineExceeded) {
		t.Fatalf("notifier causes = %v", n.causes)
	}
}

func TestIngestRecoversAfterFailure(t *testing.T) {
	a := &stubAnalyzer{err: errors.New("quota")}
	svcs := newServices(a, nil, nil)
	ctx := context.Background()

	_ = svcs.Analysis.Ingest(ctx, mustReading(t, `{}`))
	a.err, a.text = nil, "ok again"
	if err := svcs.Analysis.Ingest(ctx, mustReading(t, `{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svcs.Analysis.Latest().Text; got != "ok again" {
		t.Fatalf("Latest() = %q", got)
	}
}

func TestJournalAndNotifierAreBestEffort(t *testing.T) {
	j := &stubJournal{err: errors.New("db down")}
	n := &stubNotifier{err: errors.New("sns down")}

	t.Run("success ignores journal error", func(t *testing.T) {
		svcs := newServices(&stubAnalyzer{text: "fine"}, j, n)
		if err := svcs.Analysis.Ingest(context.Background(), mustReading(t, `{"a":1}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(n.causes) != 0 {
			t.Fatal("notifier must not run on success")
		}
	})

	t.Run("failure reports provider error not notifier error", func(t *testing.T) {
		svcs := newServices(&stubAnalyzer{err: errors.New("auth")}, j, n)
		err := svcs.Analysis.Ingest(context.Background(), mustReading(t, `{"a":2}`))
		if err == nil || err.Error() != "auth" {
			t.Fatalf("err = %v, want provider error", err)
		}
	})

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.rows) != 2 || string(j.rows[1].Payload) != `{"a":2}` {
		t.Fatalf("journal rows = %+v", j.rows)
	}
}

func TestLastResolvedWins(t *testing.T) {
	g := &gatedAnalyzer{
		gates:   map[string]chan struct{}{`"id":"A"`: make(chan struct{}), `"id":"B"`: make(chan struct{})},
		entered: make(chan string, 2),
	}
	svcs := newServices(g, nil, nil)
	ctx := context.Background()

	readingA, readingB := mustReading(t, `{"id":"A"}`), mustReading(t, `{"id":"B"}`)

	doneB := make(chan error, 1)
	go func() { doneB <- svcs.Analysis.Ingest(ctx, readingB) }()
	if m := <-g.entered; m != `"id":"B"` {
		t.Fatalf("expected B to start first, got %s", m)
	}

	doneA := make(chan error, 1)
	go func() { doneA <- svcs.Analysis.Ingest(ctx, readingA) }()
	<-g.entered

	close(g.gates[`"id":"A"`])
	if err := <-doneA; err != nil {
		t.Fatalf("ingest A: %v", err)
	}
	if got := svcs.Analysis.Latest().Text; got != `analysis "id":"A"` {
		t.Fatalf("after A resolved, Latest() = %q", got)
	}

	close(g.gates[`"id":"B"`])
	if err := <-doneB; err != nil {
		t.Fatalf("ingest B: %v", err)
	}
	if got := svcs.Analysis.Latest().Text; got != `analysis "id":"B"` {
		t.Fatalf("final Latest() = %q, want B's result", got)
	}
}

func TestLatestDoesNotBlockDuringIngest(t *testing.T) {
	g := &gatedAnalyzer{
		gates:   map[string]chan struct{}{"slow": make(chan struct{})},
		entered: make(chan string, 1),
	}
	svcs := newServices(g, nil, nil)

	rd := mustReading(t, `{"slow":true}`)
	done := make(chan error, 1)
	go func() { done <- svcs.Analysis.Ingest(context.Background(), rd) }()
	<-g.entered

	read := make(chan domain.Result, 1)
	go func() { read <- svcs.Analysis.Latest() }()
	select {
	case r := <-read:
		if r.Text != domain.PendingText {
			t.Fatalf("Latest() = %q, want pending text while ingest is in flight", r.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("Latest() blocked on an in-flight ingest")
	}

	close(g.gates["slow"])
	if err := <-done; err != nil {
		t.Fatalf("ingest: %v", err)
	}
}

// stalledJournal never completes an insert on its own, like a database that
// accepts the connection and then stops answering.
type stalledJournal struct{ waited chan error }

func (j *stalledJournal) InsertReading(ctx context.Context, _ domain.Reading) error {
	<-ctx.Done()
	j.waited <- ctx.Err()
	return ctx.Err()
}

type stalledNotifier struct{}

func (stalledNotifier) NotifyFailure(ctx context.Context, _ domain.Reading, _ error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestIngestNotHeldByStalledSideEffects(t *testing.T) {
	t.Run("journal", func(t *testing.T) {
		j := &stalledJournal{waited: make(chan error, 1)}
		svcs := newServices(&stubAnalyzer{text: "still analyzed"}, j, nil)
		svcs.Analysis.sideEffectTimeout = 20 * time.Millisecond

		rd := mustReading(t, `{"ch1_power": 3}`)
		done := make(chan error, 1)
		go func() { done <- svcs.Analysis.Ingest(context.Background(), rd) }()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Ingest blocked on a stalled journal")
		}
		if got := svcs.Analysis.Latest().Text; got != "still analyzed" {
			t.Fatalf("Latest() = %q", got)
		}
		if err := <-j.waited; !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("journal ctx err = %v, want deadline exceeded", err)
		}
	})

	t.Run("notifier", func(t *testing.T) {
		svcs := newServices(&stubAnalyzer{err: errors.New("quota")}, nil, stalledNotifier{})
		svcs.Analysis.sideEffectTimeout = 20 * time.Millisecond

		rd := mustReading(t, `{"ch1_power": 4}`)
		done := make(chan error, 1)
		go func() { done <- svcs.Analysis.Ingest(context.Background(), rd) }()

		select {
		case err := <-done:
			if err == nil || err.Error() != "quota" {
				t.Fatalf("err = %v, want provider error", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Ingest blocked on a stalled notifier")
		}
		if got := svcs.Analysis.Latest().Text; got != domain.FailureText {
			t.Fatalf("Latest() = %q", got)
		}
	})
}

func TestNewSetsSideEffectTimeout(t *testing.T) {
	svcs := newServices(&stubAnalyzer{}, nil, nil)
	if svcs.Analysis.sideEffectTimeout != DefaultSideEffectTimeout {
		t.Fatalf("sideEffectTimeout = %v", svcs.Analysis.sideEffectTimeout)
	}
}
