package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastRoundTrip(t *testing.T) {
	src := Source{AgentID: "weather-1", Language: "go", Runtime: "go1.23"}
	env := NewBroadcast("weather_update", src, map[string]any{"temperature_f": 72.5}, PriorityNormal)

	line, err := env.Encode()
	require.NoError(t, err)

	decoded, err := Decode(line)
	require.NoError(t, err)

	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, "weather_update", decoded.Type)
	assert.Equal(t, src, decoded.Source)
	assert.True(t, decoded.Destination.Broadcast)
	assert.Empty(t, decoded.Destination.AgentID)
	assert.Equal(t, PriorityNormal, decoded.Metadata.Priority)
	assert.Equal(t, 5000, decoded.Metadata.TimeoutMs)
}

func TestResponseCorrelation(t *testing.T) {
	requester := Source{AgentID: "coordinator", Language: "python", Runtime: "cpython"}
	req := NewBroadcast("ping", requester, nil, PriorityNormal)

	src := Source{AgentID: "weather-1", Language: "go", Runtime: "go1.23"}
	resp := NewResponse(req, "pong", src, map[string]any{"original_message_id": req.ID})

	assert.NotEqual(t, req.ID, resp.ID)
	assert.Equal(t, req.ID, resp.Metadata.CorrelationID)
	assert.Equal(t, "coordinator", resp.Destination.AgentID)
	assert.False(t, resp.Destination.Broadcast)
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		line string
		err  error
	}{
		{name: "not json", line: "not json at all"},
		{name: "missing id", line: `{"type":"ping"}`, err: ErrEmptyID},
		{name: "missing type", line: `{"id":"abc-123"}`, err: ErrEmptyType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.line))
			require.Error(t, err)
			assert.Nil(t, env)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	line := []byte(`{"id":"abc","type":"start_monitoring","payload":{"duration_hours":48}}`)
	env, err := Decode(line)
	require.NoError(t, err)

	var params struct {
		DurationHours int `json:"duration_hours"`
	}
	require.NoError(t, env.DecodePayload(&params))
	assert.Equal(t, 48, params.DurationHours)
}

func TestDecodePayloadNil(t *testing.T) {
	env := &Envelope{ID: "abc", Type: "ping"}

	var params struct {
		HoursBack int `json:"hours_back"`
	}
	require.NoError(t, env.DecodePayload(&params))
	assert.Zero(t, params.HoursBack)
}
