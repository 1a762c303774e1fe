// Package mqtt adapts an MQTT topic into a ports.MeasurementSource.
// Analytical instruments (NMR, spectrometer pipelines) publish one
// reading per message; the controller consumes them one Sample at a
// time.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"context"
	"log/slog"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/openfluidics/syrinx/internal/logging"
	"github.com/openfluidics/syrinx/pkg/domain"
)

// Source implements ports.MeasurementSource over a broker subscription.
type Source struct {
	client  paho.Client
	topic   string
	qos     byte
	quiesce uint
	logger  *slog.Logger
	in      chan domain.Measurement
	now     func() time.Time
}

// Option configures the Source.
type Option func(*Source)

// WithQoS sets the subscription quality of service.
func WithQoS(qos byte) Option {
	return func(s *Source) { s.qos = qos }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// WithBuffer sets how many unread measurements are held before the
// broker handler starts dropping the oldest.
func WithBuffer(n int) Option {
	return func(s *Source) { s.in = make(chan domain.Measurement, n) }
}

// New creates a Source for one broker and topic. Connect must be called
// before the first Sample.
func New(broker, clientID, topic string, opts ...Option) *Source {
	s := &Source{
		topic:   topic,
		qos:     1,
		quiesce: 100,
		logger:  logging.NewNop(),
		in:      make(chan domain.Measurement, 16),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	clientOpts := paho.NewClientOptions()
	clientOpts.AddBroker(broker)
	clientOpts.SetClientID(clientID)
	clientOpts.SetKeepAlive(10 * time.Second)
	clientOpts.AutoReconnect = true
	clientOpts.OnConnectionLost = func(client paho.Client, err error) {
		s.logger.Warn("broker connection lost", "err", err)
	}
	s.client = paho.NewClient(clientOpts)
	return s
}

// Connect dials the broker and subscribes to the measurement topic.
func (s *Source) Connect() error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to broker: %w", token.Error())
	}
	handler := func(client paho.Client, msg paho.Message) {
		s.handle(msg.Topic(), msg.Payload())
	}
	if token := s.client.Subscribe(s.topic, s.qos, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, token.Error())
	}
	s.logger.Info("subscribed", "topic", s.topic, "qos", s.qos)
	return nil
}

// handle parses one published payload and queues it. The payload is
// either a JSON object {"value": n, "unit": "...", "label": "..."} or a
// bare numeric string. Unparseable payloads are logged and dropped; a
// bad message must not wedge the subscription.
func (s *Source) handle(topic string, payload []byte) {
	m, err := parsePayload(payload)
	if err != nil {
		s.logger.Warn("discarding unparseable measurement",
			"topic", topic, "payload", string(payload), "err", err)
		return
	}
	if m.TakenAt.IsZero() {
		m.TakenAt = s.now()
	}

	select {
	case s.in <- m:
	default:
		// Queue full: shed the oldest reading so Sample always sees the
		// freshest signal.
		select {
		case <-s.in:
		default:
		}
		select {
		case s.in <- m:
		default:
		}
	}
}

// Sample implements ports.MeasurementSource.
func (s *Source) Sample(ctx context.Context) (domain.Measurement, error) {
	select {
	case m := <-s.in:
		return m, nil
	case <-ctx.Done():
		return domain.Measurement{}, ctx.Err()
	}
}

// Close disconnects from the broker.
func (s *Source) Close() error {
	s.client.Disconnect(s.quiesce)
	return nil
}

type wirePayload struct {
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Label   string  `json:"label"`
	TakenAt string  `json:"taken_at"`
}

func parsePayload(payload []byte) (domain.Measurement, error) {
	text := strings.TrimSpace(string(payload))
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return domain.Measurement{Value: v}, nil
	}

	var wire wirePayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return domain.Measurement{}, fmt.Errorf("payload is neither a number nor a JSON object: %w", err)
	}
	m := domain.Measurement{
		Value: wire.Value,
		Unit:  wire.Unit,
		Label: wire.Label,
	}
	if wire.TakenAt != "" {
		ts, err := time.Parse(time.RFC3339, wire.TakenAt)
		if err != nil {
			return domain.Measurement{}, fmt.Errorf("bad taken_at timestamp: %w", err)
		}
		m.TakenAt = ts
	}
	return m, nil
}
