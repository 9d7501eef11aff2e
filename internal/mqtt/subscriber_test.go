package mqtt

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestHandleMessagePassesPayload(t *testing.T) {
	var gotTopic string
	var gotPayload []byte
	s := NewSubscriber(Options{Broker: "tcp://127.0.0.1:1", Topic: "energy/readings"}, func(ctx context.Context, topic string, payload []byte) error {
		if ctx.Err() != nil {
			t.Errorf("handler context already done: %v", ctx.Err())
		}
		gotTopic, gotPayload = topic, payload
		return nil
	}, zerolog.Nop())

	s.handleMessage("energy/readings", []byte(`{"ch1_power":1}`))
	if gotTopic != "energy/readings" || string(gotPayload) != `{"ch1_power":1}` {
		t.Fatalf("handler got %q %q", gotTopic, gotPayload)
	}
}

func TestHandleMessageSwallowsHandlerError(t *testing.T) {
	calls := 0
	s := NewSubscriber(Options{Broker: "tcp://127.0.0.1:1", Topic: "t"}, func(context.Context, string, []byte) error {
		calls++
		return errors.New("analysis failed")
	}, zerolog.Nop())

	s.handleMessage("t", []byte(`{}`))
	s.handleMessage("t", []byte(`{}`))
	if calls != 2 {
		t.Fatalf("handler called %d times, want 2", calls)
	}
}

func TestConnectHonoursContext(t *testing.T) {
	s := NewSubscriber(Options{Broker: "tcp://127.0.0.1:1", ClientID: "test", Topic: "t"}, func(context.Context, string, []byte) error { return nil }, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect = %v, want context.Canceled", err)
	}
	if s.IsConnected() {
		t.Fatal("subscriber reports connected")
	}
}

func TestDisconnectCancelsHandlerContext(t *testing.T) {
	var seen context.Context
	s := NewSubscriber(Options{Broker: "tcp://127.0.0.1:1", Topic: "t"}, func(ctx context.Context, _ string, _ []byte) error {
		seen = ctx
		return nil
	}, zerolog.Nop())

	s.handleMessage("t", []byte(`{}`))
	s.Disconnect()
	if seen == nil || seen.Err() == nil {
		t.Fatal("handler context should be cancelled after Disconnect")
	}
}
