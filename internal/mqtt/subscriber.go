package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// HandlerFunc receives one raw payload. It runs on a paho callback goroutine.
type HandlerFunc func(ctx context.Context, topic string, payload []byte) error

type Options struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// Subscriber feeds device readings published on a broker topic into handler.
type Subscriber struct {
	client  paho.Client
	opts    Options
	handler HandlerFunc
	log     zerolog.Logger

	// ctx bounds the handler calls; cancelled by Disconnect.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	connected bool
}

func NewSubscriber(opts Options, handler HandlerFunc, log zerolog.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscriber{
		opts:    opts,
		handler: handler,
		log:     log.With().Str("component", "mqtt").Str("topic", opts.Topic).Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}

	co := paho.NewClientOptions().AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)
	co.SetOrderMatters(false)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)
	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	co.SetOnConnectHandler(func(c paho.Client) {
		s.setConnected(true)
		s.log.Info().Str("broker", opts.Broker).Msg("mqtt connected")
		// Clean sessions drop subscriptions, so every (re)connect subscribes again.
		if err := s.subscribe(c); err != nil {
			s.log.Error().Err(err).Msg("subscribe failed")
		}
	})
	co.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.setConnected(false)
		s.log.Warn().Err(err).Msg("mqtt connection lost")
	})

	s.client = paho.NewClient(co)
	return s
}

// Connect starts the connection and waits until it is up or ctx ends.
func (s *Subscriber) Connect(ctx context.Context) error {
	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (s *Subscriber) subscribe(c paho.Client) error {
	token := c.Subscribe(s.opts.Topic, s.opts.QoS, func(_ paho.Client, msg paho.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.opts.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.opts.Topic, err)
	}
	s.log.Info().Uint8("qos", s.opts.QoS).Msg("subscribed")
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.log.Debug().Int("size", len(payload)).Msg("received message")
	if err := s.handler(s.ctx, topic, payload); err != nil {
		s.log.Error().Err(err).Msg("ingest failed")
	}
}

func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && s.client.IsConnected()
}

// Disconnect unsubscribes and closes the connection. In-flight handlers see
// their context cancelled.
func (s *Subscriber) Disconnect() {
	s.cancel()
	if s.IsConnected() {
		s.client.Unsubscribe(s.opts.Topic).WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)
	s.setConnected(false)
	s.log.Info().Msg("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
