// Package kafka publishes probe change events to a Kafka topic keyed by
// dataset handle.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/dsroute/internal/notify"
	"github.com/alexanderjulianmartinez/dsroute/internal/router"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	w   messageWriter
	now func() time.Time
}

var _ router.Observer = (*Publisher)(nil)

// New returns a publisher with an asynchronous writer, so probes never
// wait on the brokers. Delivery failures are logged through log.
func New(brokers []string, topic string, log *zap.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers provided")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("publish probe events failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return newPublisher(w), nil
}

func newPublisher(w messageWriter) *Publisher {
	return &Publisher{w: w, now: time.Now}
}

func (p *Publisher) ProbeChanged(ctx context.Context, ev router.Event) error {
	value, err := notify.Encode(ev, p.now())
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.Handle),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(notify.EventType)},
			{Key: "severity", Value: []byte(ev.Report.MaxSeverity())},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish probe event for %s: %w", ev.Handle, err)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}
