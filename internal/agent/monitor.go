package agent

import (
	"context"
	"runtime/debug"
	"time"

	"skywatch/internal/logger"
	"skywatch/internal/metrics"
	"skywatch/internal/protocol"
	"skywatch/internal/weather"
)

// monitorTask is the handle for one Active monitoring period.
type monitorTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartMonitoring transitions Idle→Active and spawns the periodic task,
// bounded by a wall-clock deadline of now + duration. It returns false
// without any state change when monitoring is already active.
func (a *Agent) StartMonitoring(ctx context.Context, duration time.Duration) bool {
	log := logger.WithComponent("monitor")

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.monitor != nil {
		log.Warn().Msg("monitoring already active")
		return false
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &monitorTask{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	a.monitor = task

	go a.monitorLoop(taskCtx, task, duration)

	log.Info().
		Dur("duration", duration).
		Msg("started weather monitoring")
	return true
}

// StopMonitoring transitions Active→Idle. It cancels the task and waits for
// its termination before returning, guaranteeing no reading is appended
// afterwards. Returns false when already Idle.
func (a *Agent) StopMonitoring() bool {
	a.mu.Lock()
	task := a.monitor
	a.mu.Unlock()

	if task == nil {
		return false
	}

	task.cancel()
	<-task.done
	log := logger.WithComponent("monitor")
	log.Info().Msg("stopped weather monitoring")
	return true
}

// MonitoringActive reports whether the monitoring loop is running.
func (a *Agent) MonitoringActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.monitor != nil
}

// monitorLoop runs one cycle per poll interval until cancelled or the
// wall-clock deadline passes.
func (a *Agent) monitorLoop(ctx context.Context, task *monitorTask, duration time.Duration) {
	defer close(task.done)
	defer func() {
		a.mu.Lock()
		if a.monitor == task {
			a.monitor = nil
		}
		a.mu.Unlock()
	}()

	log := logger.WithComponent("monitor")
	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(a.pollInterval())
	defer ticker.Stop()

	for {
		a.runCycle(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("monitoring loop cancelled")
			return
		case <-ticker.C:
			if time.Now().After(deadline) {
				log.Info().Msg("monitoring period elapsed")
				return
			}
		}
	}
}

// pollInterval is the monitoring cadence: the live provider is polled more
// slowly than the simulator, which treats one tick as one simulated hour.
func (a *Agent) pollInterval() time.Duration {
	if a.liveSource() != nil {
		return a.cfg.LivePollInterval.Std()
	}
	return a.cfg.SimPollInterval.Std()
}

// runCycle performs one monitoring cycle: acquire a reading, append it to
// the bounded history, evaluate and purge alerts, poll advisories, and
// broadcast the state update. Unexpected failures are caught and logged so
// a bad cycle never stops the loop.
func (a *Agent) runCycle(ctx context.Context) {
	log := logger.WithComponent("monitor")

	defer func() {
		if r := recover(); r != nil {
			metrics.MonitorCycleErrors.Inc()
			metrics.PanicsRecovered.WithLabelValues("monitor").Inc()
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("monitoring cycle panic recovered")
		}
	}()

	reading := a.acquireReading(ctx)

	// The acquisition may have suspended on a fetch; re-validate before
	// touching shared state so nothing lands after a stop completed.
	if ctx.Err() != nil {
		return
	}

	a.appendReading(reading)

	log.Info().
		Str("conditions", reading.Conditions).
		Float64("temperature_f", reading.TemperatureF).
		Float64("humidity_percent", reading.HumidityPercent).
		Float64("wind_speed_mph", reading.WindSpeedMph).
		Str("source", string(reading.Source)).
		Msg("weather reading")

	a.evaluateAlerts(reading)
	a.pollAdvisories(ctx)
	a.broadcastUpdate(reading)
}

// acquireReading applies the per-cycle fallback: if the live provider is
// configured but this cycle's acquisition fails, this cycle alone uses the
// simulator. The provider stays configured for subsequent cycles.
func (a *Agent) acquireReading(ctx context.Context) *weather.Reading {
	if live := a.liveSource(); live != nil {
		reading, err := live.Current(ctx)
		if err == nil {
			return reading
		}
		log := logger.WithComponent("monitor")
		log.Warn().
			Err(err).
			Msg("live data unavailable, using simulation for this cycle")
	}
	return a.simulator.Generate(0)
}

// evaluateAlerts runs threshold evaluation for one reading, broadcasts
// anything that fired, and purges alerts past the retention window. The
// purge runs every cycle whether or not anything fired.
func (a *Agent) evaluateAlerts(reading *weather.Reading) {
	a.mu.Lock()
	thresholds := a.thresholds
	a.mu.Unlock()

	fired := a.engine.Evaluate(reading, thresholds)

	now := time.Now().UTC()
	a.mu.Lock()
	a.activeAlerts = append(a.activeAlerts, fired...)
	a.activeAlerts = a.engine.Purge(a.activeAlerts, now)
	metrics.ActiveAlerts.Set(float64(len(a.activeAlerts)))
	a.mu.Unlock()

	log := logger.WithComponent("monitor")
	for _, al := range fired {
		log.Warn().
			Str("category", string(al.Category)).
			Str("severity", string(al.Severity)).
			Msg(al.Message)

		payload := map[string]any{
			"location": a.cfg.Location,
			"alert":    al,
		}
		env := protocol.NewBroadcast("weather_alert", a.source(), payload, protocol.PriorityHigh)
		env.Metadata.MaxRetries = 3
		a.send(env)
	}
}

// pollAdvisories mirrors the upstream advisory feed: only identifiers never
// seen before are broadcast, and the cached snapshot is replaced wholesale.
// A fetch failure leaves the cache and seen-set unchanged.
func (a *Agent) pollAdvisories(ctx context.Context) {
	live := a.liveSource()
	if live == nil {
		return
	}

	log := logger.WithComponent("monitor")
	fetched, err := live.Advisories(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("advisory fetch failed")
		return
	}
	if ctx.Err() != nil {
		return
	}

	a.mu.Lock()
	fresh := a.advisories.Observe(fetched)
	a.mu.Unlock()

	for _, adv := range fresh {
		metrics.AdvisoriesMirrored.Inc()
		log.Warn().
			Str("event", adv.Event).
			Str("severity", adv.Severity).
			Msg(adv.Headline)

		priority := protocol.PriorityNormal
		if adv.Severe() {
			priority = protocol.PriorityHigh
		}
		payload := map[string]any{
			"location":      a.cfg.Location,
			"noaa_location": live.Location(),
			"alert":         adv,
		}
		env := protocol.NewBroadcast("noaa_weather_alert", a.source(), payload, priority)
		env.Metadata.MaxRetries = 3
		a.send(env)
	}
}

// broadcastUpdate sends the periodic state update carrying the reading and
// its provenance so consumers can distinguish live from substituted data.
func (a *Agent) broadcastUpdate(reading *weather.Reading) {
	payload := map[string]any{
		"location":     a.cfg.Location,
		"weather_data": reading,
		"data_quality": string(reading.Source),
	}
	a.send(protocol.NewBroadcast("weather_update", a.source(), payload, protocol.PriorityNormal))
}
