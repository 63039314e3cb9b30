// Package agent implements the concurrency core of the weather monitoring
// agent: a transport loop dispatching host envelopes to handlers, and a
// monitoring loop collecting readings, evaluating alerts, and mirroring
// upstream advisories. The two loops share state under a single mutex; the
// monitoring loop is the sole writer of readings and alerts, the transport
// loop the sole writer of thresholds and start/stop transitions.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"skywatch/internal/advisory"
	"skywatch/internal/alert"
	"skywatch/internal/config"
	"skywatch/internal/kafka"
	"skywatch/internal/logger"
	"skywatch/internal/metrics"
	"skywatch/internal/noaa"
	"skywatch/internal/protocol"
	"skywatch/internal/weather"
)

// Agent identity reported in the ready handshake.
const (
	Name    = "Weather Monitoring Agent"
	Version = "1.0.0"
)

const maxLineBytes = 1 << 20 // 1MB per envelope line

type handlerFunc func(ctx context.Context, req *protocol.Envelope) (*protocol.Envelope, error)

// Agent is one worker process in the multi-language agent runtime.
type Agent struct {
	cfg       *config.Config
	startedAt time.Time

	reader io.Reader

	writeMu sync.Mutex
	writer  io.Writer

	// Resolved once at construction into a closed mapping.
	handlers     map[string]handlerFunc
	capabilities []string

	engine    *alert.Engine
	simulator *weather.Simulator
	mirror    *kafka.Mirror // optional broadcast mirror, may be nil

	runCancel context.CancelFunc

	// mu guards all shared mutable state below.
	mu           sync.Mutex
	live         *noaa.Source // nil once downgraded to simulation
	lastActivity time.Time
	messageCount uint64
	errorCount   uint64
	running      bool
	history      []weather.Reading
	activeAlerts []alert.Alert
	advisories   *advisory.Mirror
	thresholds   alert.Thresholds
	monitor      *monitorTask // nil when idle
}

// New constructs an agent reading envelopes from r and writing them to w.
// mirror may be nil when the Kafka broadcast mirror is not configured.
func New(cfg *config.Config, r io.Reader, w io.Writer, mirror *kafka.Mirror) *Agent {
	a := &Agent{
		cfg:        cfg,
		startedAt:  time.Now().UTC(),
		reader:     r,
		writer:     w,
		engine:     alert.NewEngine(cfg.AlertRetention.Std()),
		simulator:  weather.NewSimulator(70.0),
		mirror:     mirror,
		advisories: advisory.NewMirror(),
		thresholds: alert.DefaultThresholds(),
	}
	a.lastActivity = a.startedAt
	a.registerHandlers()
	return a
}

// Run initializes the agent, performs the ready handshake, and processes
// envelopes until ctx is cancelled, the host closes the channel, or a
// shutdown request arrives. A failure before the ready handshake is fatal.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.runCancel = cancel

	log := logger.WithAgent(a.cfg.AgentID)
	log.Info().Str("location", a.cfg.Location).Msg("starting weather monitoring agent")

	a.initialize(ctx)

	if err := a.sendReady(); err != nil {
		return fmt.Errorf("ready handshake: %w", err)
	}

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	a.transportLoop(ctx)

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	// Stop accepting input happened above; release the monitoring task,
	// then say goodbye with final counters.
	a.StopMonitoring()
	if err := a.sendGoodbye(); err != nil {
		log.Error().Err(err).Msg("failed to send goodbye")
	}
	log.Info().Msg("agent stopped")
	return nil
}

// initialize applies the one-shot downgrade policy: any failure resolving
// the location or grid reference permanently switches the agent to
// simulation for its remaining lifetime. It always produces exactly one
// reading so the agent never starts with an empty history.
func (a *Agent) initialize(ctx context.Context) {
	log := logger.WithComponent("agent")

	if a.cfg.UseRealWeather {
		lat, lon, ok := noaa.Geocode(a.cfg.Location)
		if !ok {
			log.Warn().
				Str("location", a.cfg.Location).
				Msg("could not geocode location, falling back to simulation")
		} else {
			client := noaa.NewClient(a.cfg.NOAAUserAgent)
			loc, err := client.ResolveLocation(ctx, lat, lon)
			if err != nil {
				log.Warn().Err(err).Msg("failed to resolve grid reference, falling back to simulation")
			} else {
				a.mu.Lock()
				a.live = noaa.NewSource(client, loc)
				a.mu.Unlock()
			}
		}
	}

	reading := a.acquireReading(ctx)
	a.appendReading(reading)
	log.Info().
		Str("conditions", reading.Conditions).
		Float64("temperature_f", reading.TemperatureF).
		Str("source", string(reading.Source)).
		Msg("initial reading")

	if live := a.liveSource(); live != nil {
		advisories, err := live.Advisories(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to fetch initial advisories")
			return
		}
		a.mu.Lock()
		a.advisories.Seed(advisories)
		a.mu.Unlock()
		log.Info().Int("count", len(advisories)).Msg("seeded advisory mirror")
	}
}

// transportLoop reads envelopes one line at a time and dispatches them in
// receipt order. Parse failures, unknown types, and handler failures are
// all non-fatal; only channel closure or cancellation ends the loop.
func (a *Agent) transportLoop(ctx context.Context) {
	log := logger.WithComponent("transport")
	log.Info().Msg("entering transport loop")

	lines := make(chan []byte)
	go a.readLines(ctx, lines)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				log.Info().Msg("host channel closed")
				return
			}
			a.dispatch(ctx, line)
		}
	}
}

// readLines feeds non-blank input lines to the dispatcher, preserving
// receipt order.
func (a *Agent) readLines(ctx context.Context, lines chan<- []byte) {
	defer close(lines)

	scanner := bufio.NewScanner(a.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			// Nothing usable on this wakeup; back off rather than spin.
			time.Sleep(100 * time.Millisecond)
			continue
		}
		buf := make([]byte, len(line))
		copy(buf, line)
		select {
		case lines <- buf:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log := logger.WithComponent("transport")
		log.Error().Err(err).Msg("host channel read error")
	}
}

// dispatch parses one line and routes it through the handler registry. Any
// failure inside a handler is caught here, counted, and answered to the
// sender correlated to the request; it never terminates the loop.
func (a *Agent) dispatch(ctx context.Context, line []byte) {
	log := logger.WithComponent("transport")

	env, err := protocol.Decode(line)
	if err != nil {
		a.countError()
		metrics.ParseErrors.Inc()
		log.Error().Err(err).Str("line", truncate(string(line), 120)).Msg("invalid envelope")
		return
	}

	a.mu.Lock()
	a.messageCount++
	a.lastActivity = time.Now().UTC()
	a.mu.Unlock()
	metrics.MessagesReceived.WithLabelValues(env.Type).Inc()

	handler, ok := a.handlers[env.Type]
	if !ok {
		a.countError()
		metrics.UnknownMessageTypes.Inc()
		log.Warn().Str("type", env.Type).Msg("no handler for message type")
		a.sendError(fmt.Sprintf("Unknown message type: %s", env.Type), nil)
		return
	}

	start := time.Now()
	resp, err := a.invoke(ctx, handler, env)
	metrics.HandlerDuration.WithLabelValues(env.Type).Observe(time.Since(start).Seconds())

	if err != nil {
		a.countError()
		metrics.HandlerErrors.WithLabelValues(env.Type).Inc()
		log.Error().
			Err(err).
			Str("envelope_id", env.ID).
			Str("type", env.Type).
			Msg("handler failed")
		a.sendError(err.Error(), env)
		return
	}
	if resp != nil {
		a.send(resp)
	}
}

// invoke runs a handler with panic recovery at the dispatch boundary.
func (a *Agent) invoke(ctx context.Context, handler handlerFunc, env *protocol.Envelope) (resp *protocol.Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("handler").Inc()
			log := logger.WithComponent("transport")
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("type", env.Type).
				Msg("handler panic recovered")
			resp = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, env)
}

// send serializes one envelope as a line on the host channel. Broadcast
// envelopes are additionally offered to the Kafka mirror.
func (a *Agent) send(env *protocol.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		a.countError()
		return err
	}

	a.writeMu.Lock()
	_, err = a.writer.Write(append(data, '\n'))
	a.writeMu.Unlock()
	if err != nil {
		a.countError()
		return err
	}

	metrics.MessagesSent.WithLabelValues(env.Type).Inc()
	if env.Destination.Broadcast && a.mirror != nil {
		a.mirror.Enqueue(env)
	}
	return nil
}

// source is the identity block stamped on every outbound envelope.
func (a *Agent) source() protocol.Source {
	return protocol.Source{
		AgentID:  a.cfg.AgentID,
		Language: "go",
		Runtime:  runtime.Version(),
	}
}

func (a *Agent) sendReady() error {
	payload := map[string]any{
		"name":         Name,
		"version":      Version,
		"capabilities": a.capabilities,
	}
	return a.send(protocol.NewBroadcast("agent_ready", a.source(), payload, protocol.PriorityNormal))
}

func (a *Agent) sendGoodbye() error {
	payload := map[string]any{
		"reason":     "normal_shutdown",
		"statistics": a.status(),
	}
	return a.send(protocol.NewBroadcast("agent_goodbye", a.source(), payload, protocol.PriorityNormal))
}

func (a *Agent) sendHeartbeat() error {
	a.mu.Lock()
	messages, errs := a.messageCount, a.errorCount
	a.mu.Unlock()

	payload := map[string]any{
		"status":        "healthy",
		"uptime":        time.Since(a.startedAt).Seconds(),
		"message_count": messages,
		"error_count":   errs,
	}
	env := protocol.NewBroadcast("heartbeat", a.source(), payload, protocol.PriorityLow)
	env.Metadata.TimeoutMs = 1000
	return a.send(env)
}

// sendError emits an error envelope. With a request it answers the sender
// correlated to the request id; without one it broadcasts.
func (a *Agent) sendError(text string, req *protocol.Envelope) {
	payload := map[string]any{
		"error":     text,
		"timestamp": time.Now().UTC(),
		"agent_info": map[string]string{
			"name":    Name,
			"version": Version,
		},
	}

	var env *protocol.Envelope
	if req != nil {
		env = protocol.NewResponse(req, "error", a.source(), payload)
	} else {
		env = protocol.NewBroadcast("error", a.source(), payload, protocol.PriorityHigh)
	}
	env.Metadata.Priority = protocol.PriorityHigh
	a.send(env)
}

// status reports the agent's runtime state, shared by the status handler
// and the goodbye broadcast.
func (a *Agent) status() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := "stopped"
	if a.running {
		state = "running"
	}
	return map[string]any{
		"agent_id":          a.cfg.AgentID,
		"name":              Name,
		"version":           Version,
		"status":            state,
		"uptime_seconds":    time.Since(a.startedAt).Seconds(),
		"message_count":     a.messageCount,
		"error_count":       a.errorCount,
		"last_activity":     a.lastActivity,
		"started_at":        a.startedAt,
		"monitoring_active": a.monitor != nil,
	}
}

func (a *Agent) countError() {
	a.mu.Lock()
	a.errorCount++
	a.mu.Unlock()
}

func (a *Agent) liveSource() *noaa.Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

func (a *Agent) appendReading(r *weather.Reading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, *r)
	if len(a.history) > a.cfg.HistorySize {
		a.history = a.history[len(a.history)-a.cfg.HistorySize:]
	}
	metrics.HistorySize.Set(float64(len(a.history)))
	metrics.ReadingsCollected.WithLabelValues(string(r.Source)).Inc()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
