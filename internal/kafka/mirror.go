// Package kafka implements the optional broadcast mirror: every broadcast
// envelope the agent writes to the host channel is also published to a
// Kafka topic for bus consumers. Mirroring is best-effort; the host channel
// remains the authoritative delivery path.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"skywatch/internal/config"
	"skywatch/internal/logger"
	"skywatch/internal/metrics"
	"skywatch/internal/protocol"
)

// Mirror errors
var (
	ErrMirrorClosed    = errors.New("mirror is closed")
	ErrSerializeFailed = errors.New("failed to serialize envelope")
)

// Mirror publishes broadcast envelopes to Kafka from a buffered queue
// drained by a single background pump, so the transport and monitoring
// loops never block on the broker.
type Mirror struct {
	cfg    config.KafkaConfig
	writer *kafka.Writer
	queue  chan *protocol.Envelope

	// closeMu serializes enqueues against closing the queue so a
	// concurrent Enqueue/Close can never send on a closed channel.
	closeMu sync.Mutex
	closed  atomic.Bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewMirror creates a mirror for the given Kafka configuration.
func NewMirror(cfg config.KafkaConfig) (*Mirror, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = config.Duration(100 * time.Millisecond)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.Duration(10 * time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Mirror{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: cfg.WriteTimeout.Std(),
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  1, // retries are handled here, bounded
			Async:        false,
		},
		queue:  make(chan *protocol.Envelope, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	m.wg.Add(1)
	go m.pump()

	return m, nil
}

// Enqueue offers an envelope to the mirror without blocking. When the queue
// is full the mirror copy is dropped; stdout delivery already happened.
func (m *Mirror) Enqueue(e *protocol.Envelope) {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Load() {
		return
	}
	select {
	case m.queue <- e:
	default:
		metrics.MirrorPublished.WithLabelValues("dropped").Inc()
	}
}

// Close drains the queue and shuts the writer down.
func (m *Mirror) Close() error {
	m.closeMu.Lock()
	already := m.closed.Swap(true)
	if !already {
		close(m.queue)
	}
	m.closeMu.Unlock()

	if already {
		return nil
	}
	m.wg.Wait()
	m.cancel()
	return m.writer.Close()
}

// Stats returns publish counters.
func (m *Mirror) Stats() (published, failed uint64) {
	return m.published.Load(), m.failed.Load()
}

// pump drains the queue until it is closed, flushing what remains.
func (m *Mirror) pump() {
	defer m.wg.Done()

	log := logger.WithComponent("kafka_mirror")

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("mirror pump panic recovered")
			metrics.PanicsRecovered.WithLabelValues("kafka_mirror").Inc()
		}
	}()

	log.Info().
		Strs("brokers", m.cfg.Brokers).
		Str("topic", m.cfg.Topic).
		Msg("broadcast mirror started")
	defer log.Info().Msg("broadcast mirror stopped")

	for envelope := range m.queue {
		if err := m.publish(envelope); err != nil {
			m.failed.Add(1)
			metrics.MirrorPublished.WithLabelValues("failed").Inc()
			log.Error().
				Err(err).
				Str("envelope_id", envelope.ID).
				Str("type", envelope.Type).
				Msg("failed to mirror envelope")
			continue
		}
		m.published.Add(1)
		metrics.MirrorPublished.WithLabelValues("success").Inc()
	}
}

// publish writes one envelope with bounded exponential-backoff retries.
func (m *Mirror) publish(envelope *protocol.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(envelope.Source.AgentID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "envelope_id", Value: []byte(envelope.ID)},
			{Key: "type", Value: []byte(envelope.Type)},
			{Key: "agent_id", Value: []byte(envelope.Source.AgentID)},
		},
		Time: envelope.Timestamp,
	}

	log := logger.WithComponent("kafka_mirror")
	backoff := m.cfg.RetryBackoff.Std()
	var lastErr error

	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.MirrorPublishRetries.Inc()
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying mirror publish")

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-m.ctx.Done():
				return m.ctx.Err()
			}
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.WriteTimeout.Std())
		err := m.writer.WriteMessages(ctx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", m.cfg.MaxRetries+1, lastErr)
}
