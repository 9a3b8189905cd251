package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderjulianmartinez/dsroute/internal/drift"
	"github.com/alexanderjulianmartinez/dsroute/internal/notify"
	"github.com/alexanderjulianmartinez/dsroute/internal/router"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (c *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func modalityEvent() router.Event {
	prev := &types.ProbeResult{Handle: "h9", Modality: types.ModalityTabular}
	cur := &types.ProbeResult{Handle: "h9", Modality: types.ModalityEmpty}
	return router.Event{Handle: "h9", Previous: prev, Current: cur, Report: drift.Compare(prev, cur)}
}

func TestPublisherWritesKeyedMessage(t *testing.T) {
	w := &captureWriter{}
	p := newPublisher(w)
	p.now = func() time.Time { return time.Unix(0, 0) }

	require.NoError(t, p.ProbeChanged(context.Background(), modalityEvent()))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "h9", string(msg.Key))

	var env notify.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, types.ModalityEmpty, env.Current.Modality)
	assert.Equal(t, drift.SeverityBlock, env.Severity)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, notify.EventType, headers["type"])
	assert.Equal(t, drift.SeverityBlock, headers["severity"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisherPropagatesWriteError(t *testing.T) {
	p := newPublisher(&captureWriter{err: errors.New("broker down")})
	err := p.ProbeChanged(context.Background(), modalityEvent())
	assert.ErrorContains(t, err, "broker down")
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, "topic", nil)
	assert.Error(t, err)
	_, err = New([]string{"localhost:9092"}, "", nil)
	assert.Error(t, err)

	p, err := New([]string{"localhost:9092"}, "dsroute.drift", nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
