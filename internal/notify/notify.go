// Package notify turns probe change events into messages for downstream
// consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alexanderjulianmartinez/dsroute/internal/drift"
	"github.com/alexanderjulianmartinez/dsroute/internal/router"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

const EventType = "dataset.probe_changed"

// Envelope is the wire form of a probe change event.
type Envelope struct {
	Type      string             `json:"type"`
	Handle    string             `json:"handle"`
	Severity  string             `json:"severity"`
	Previous  *types.ProbeResult `json:"previous"`
	Current   *types.ProbeResult `json:"current"`
	Issues    []drift.Issue      `json:"issues"`
	EmittedAt time.Time          `json:"emitted_at"`
}

func NewEnvelope(ev router.Event, now time.Time) Envelope {
	env := Envelope{
		Type:      EventType,
		Handle:    ev.Handle,
		Previous:  ev.Previous,
		Current:   ev.Current,
		EmittedAt: now.UTC(),
	}
	if ev.Report != nil {
		env.Severity = ev.Report.MaxSeverity()
		env.Issues = ev.Report.Issues
	}
	return env
}

func Encode(ev router.Event, now time.Time) ([]byte, error) {
	data, err := json.Marshal(NewEnvelope(ev, now))
	if err != nil {
		return nil, fmt.Errorf("encode probe event: %w", err)
	}
	return data, nil
}

// JSONLines writes one envelope per line to w.
type JSONLines struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

var _ router.Observer = (*JSONLines)(nil)

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w, now: time.Now}
}

func (j *JSONLines) ProbeChanged(ctx context.Context, ev router.Event) error {
	data, err := Encode(ev, j.now())
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.w.Write(append(data, '\n'))
	return err
}
