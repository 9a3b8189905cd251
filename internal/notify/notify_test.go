package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderjulianmartinez/dsroute/internal/drift"
	"github.com/alexanderjulianmartinez/dsroute/internal/router"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

func sampleEvent() router.Event {
	n2, n3 := 2, 3
	prev := &types.ProbeResult{Handle: "h1", Modality: types.ModalityFileBased, FileCount: &n2}
	cur := &types.ProbeResult{Handle: "h1", Modality: types.ModalityFileBased, FileCount: &n3}
	return router.Event{Handle: "h1", Previous: prev, Current: cur, Report: drift.Compare(prev, cur)}
}

func TestEncode(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := Encode(sampleEvent(), now)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, EventType, got["type"])
	assert.Equal(t, "h1", got["handle"])
	assert.Equal(t, drift.SeverityInfo, got["severity"])
	assert.Equal(t, "2024-05-01T12:00:00Z", got["emitted_at"])
	cur := got["current"].(map[string]any)
	assert.Equal(t, "file_based", cur["modality"])
	issues := got["issues"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, drift.KindFileCountChanged, issues[0].(map[string]any)["kind"])
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	obs := NewJSONLines(&buf)
	require.NoError(t, obs.ProbeChanged(context.Background(), sampleEvent()))
	require.NoError(t, obs.ProbeChanged(context.Background(), sampleEvent()))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, json.Valid(l))
	}
}
