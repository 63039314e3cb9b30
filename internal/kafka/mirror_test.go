package kafka

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/config"
	"skywatch/internal/protocol"
)

func TestNewMirrorValidation(t *testing.T) {
	_, err := NewMirror(config.KafkaConfig{Topic: "broadcasts"})
	assert.Error(t, err)

	_, err = NewMirror(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

func TestMirrorCloseIdempotent(t *testing.T) {
	m, err := NewMirror(config.KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "broadcasts",
		WriteTimeout: config.Duration(time.Second),
	})
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	published, failed := m.Stats()
	assert.Zero(t, published)
	assert.Zero(t, failed)
}

func TestEnqueueConcurrentWithClose(t *testing.T) {
	m, err := NewMirror(config.KafkaConfig{
		Brokers:      []string{"localhost:1"},
		Topic:        "broadcasts",
		BufferSize:   4,
		WriteTimeout: config.Duration(100 * time.Millisecond),
	})
	require.NoError(t, err)

	env := protocol.NewBroadcast("weather_update", protocol.Source{AgentID: "a"}, nil, protocol.PriorityNormal)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Enqueue(env)
			}
		}()
	}

	require.NoError(t, m.Close())
	wg.Wait()
}

func TestEnqueueAfterCloseDoesNotBlock(t *testing.T) {
	m, err := NewMirror(config.KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "broadcasts",
	})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	env := protocol.NewBroadcast("weather_update", protocol.Source{AgentID: "a"}, nil, protocol.PriorityNormal)

	done := make(chan struct{})
	go func() {
		m.Enqueue(env)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked after Close")
	}
}
