package agent

import (
	"context"
	"time"

	"skywatch/internal/alert"
	"skywatch/internal/logger"
	"skywatch/internal/protocol"
	"skywatch/internal/weather"
)

// Default request parameters.
const (
	defaultMonitoringHours = 168 // one week
	defaultWindowHours     = 24
)

// registerHandlers resolves the handler registry once at construction into
// a closed mapping from request type to implementation.
func (a *Agent) registerHandlers() {
	a.handlers = map[string]handlerFunc{
		"ping":                     a.handlePing,
		"get_status":               a.handleGetStatus,
		"heartbeat_request":        a.handleHeartbeatRequest,
		"shutdown":                 a.handleShutdown,
		"start_monitoring":         a.handleStartMonitoring,
		"stop_monitoring":          a.handleStopMonitoring,
		"get_current_weather":      a.handleGetCurrentWeather,
		"get_weather_history":      a.handleGetWeatherHistory,
		"get_weather_forecast":     a.handleGetWeatherForecast,
		"get_weather_alerts":       a.handleGetWeatherAlerts,
		"update_alert_thresholds":  a.handleUpdateAlertThresholds,
		"weather_analysis_request": a.handleWeatherAnalysisRequest,
		"get_noaa_alerts":          a.handleGetNOAAAlerts,
		"refresh_noaa_data":        a.handleRefreshNOAAData,
	}

	a.capabilities = []string{
		"ping", "status", "heartbeat",
		"start_monitoring", "stop_monitoring",
		"get_current_weather", "get_weather_history",
		"get_weather_forecast", "get_weather_alerts",
		"update_alert_thresholds", "weather_analysis_request",
		"get_noaa_alerts", "refresh_noaa_data",
	}
}

func (a *Agent) handlePing(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	payload := map[string]any{
		"original_message_id": req.ID,
		"timestamp":           time.Now().UTC(),
	}
	return protocol.NewResponse(req, "pong", a.source(), payload), nil
}

func (a *Agent) handleGetStatus(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	return protocol.NewResponse(req, "status_response", a.source(), a.status()), nil
}

func (a *Agent) handleHeartbeatRequest(_ context.Context, _ *protocol.Envelope) (*protocol.Envelope, error) {
	return nil, a.sendHeartbeat()
}

func (a *Agent) handleShutdown(_ context.Context, _ *protocol.Envelope) (*protocol.Envelope, error) {
	log := logger.WithComponent("agent")
	log.Info().Msg("received shutdown command")
	a.runCancel()
	return nil, nil
}

func (a *Agent) handleStartMonitoring(ctx context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	var params struct {
		DurationHours int `json:"duration_hours"`
	}
	if err := req.DecodePayload(&params); err != nil {
		return nil, err
	}
	if params.DurationHours <= 0 {
		params.DurationHours = defaultMonitoringHours
	}

	started := a.StartMonitoring(ctx, time.Duration(params.DurationHours)*time.Hour)

	message := "Weather monitoring started"
	if !started {
		message = "Weather monitoring already active"
	}
	payload := map[string]any{
		"success":        started,
		"duration_hours": params.DurationHours,
		"message":        message,
	}
	return protocol.NewResponse(req, "monitoring_response", a.source(), payload), nil
}

func (a *Agent) handleStopMonitoring(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	stopped := a.StopMonitoring()

	message := "Weather monitoring stopped"
	if !stopped {
		message = "Weather monitoring was not active"
	}
	payload := map[string]any{
		"success": stopped,
		"message": message,
	}
	return protocol.NewResponse(req, "monitoring_response", a.source(), payload), nil
}

func (a *Agent) handleGetCurrentWeather(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	a.mu.Lock()
	var current *weather.Reading
	if len(a.history) > 0 {
		r := a.history[len(a.history)-1]
		current = &r
	}
	monitoring := a.monitor != nil
	a.mu.Unlock()

	payload := map[string]any{
		"location":          a.cfg.Location,
		"current_weather":   current,
		"monitoring_active": monitoring,
	}
	return protocol.NewResponse(req, "weather_response", a.source(), payload), nil
}

func (a *Agent) handleGetWeatherHistory(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	var params struct {
		HoursBack int `json:"hours_back"`
	}
	if err := req.DecodePayload(&params); err != nil {
		return nil, err
	}
	if params.HoursBack <= 0 {
		params.HoursBack = defaultWindowHours
	}

	cutoff := time.Now().UTC().Add(-time.Duration(params.HoursBack) * time.Hour)

	a.mu.Lock()
	history := make([]weather.Reading, 0, len(a.history))
	for _, r := range a.history {
		if r.Timestamp.After(cutoff) {
			history = append(history, r)
		}
	}
	a.mu.Unlock()

	payload := map[string]any{
		"location":        a.cfg.Location,
		"hours_requested": params.HoursBack,
		"data_points":     len(history),
		"weather_history": history,
	}
	return protocol.NewResponse(req, "weather_history_response", a.source(), payload), nil
}

func (a *Agent) handleGetWeatherForecast(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	var params struct {
		HoursAhead int `json:"hours_ahead"`
	}
	if err := req.DecodePayload(&params); err != nil {
		return nil, err
	}
	if params.HoursAhead <= 0 {
		params.HoursAhead = defaultWindowHours
	}

	forecast := make([]*weather.Reading, 0, params.HoursAhead)
	for i := 1; i <= params.HoursAhead; i++ {
		forecast = append(forecast, a.simulator.Generate(i))
	}

	payload := map[string]any{
		"location":     a.cfg.Location,
		"hours_ahead":  params.HoursAhead,
		"forecast":     forecast,
		"data_quality": string(weather.SourceSimulated),
	}
	return protocol.NewResponse(req, "weather_forecast_response", a.source(), payload), nil
}

func (a *Agent) handleGetWeatherAlerts(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	a.mu.Lock()
	active := make([]alert.Alert, len(a.activeAlerts))
	copy(active, a.activeAlerts)
	a.mu.Unlock()

	payload := map[string]any{
		"location":      a.cfg.Location,
		"active_alerts": active,
		"alert_count":   len(active),
	}
	return protocol.NewResponse(req, "weather_alerts_response", a.source(), payload), nil
}

func (a *Agent) handleUpdateAlertThresholds(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	var params struct {
		Thresholds map[string]float64 `json:"thresholds"`
	}
	if err := req.DecodePayload(&params); err != nil {
		return nil, err
	}

	a.mu.Lock()
	applied := a.thresholds.Apply(params.Thresholds)
	updated := a.thresholds
	a.mu.Unlock()

	log := logger.WithComponent("agent")
	log.Info().
		Strs("applied", applied).
		Msg("alert thresholds updated")

	payload := map[string]any{
		"success":            true,
		"updated_thresholds": updated,
	}
	return protocol.NewResponse(req, "thresholds_update_response", a.source(), payload), nil
}

func (a *Agent) handleWeatherAnalysisRequest(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	var params struct {
		HoursBack int `json:"hours_back"`
	}
	if err := req.DecodePayload(&params); err != nil {
		return nil, err
	}
	if params.HoursBack <= 0 {
		params.HoursBack = defaultWindowHours
	}

	a.mu.Lock()
	history := make([]weather.Reading, len(a.history))
	copy(history, a.history)
	alertCount := len(a.activeAlerts)
	a.mu.Unlock()

	var result any
	analysis, err := weather.Analyze(history, params.HoursBack, time.Now().UTC(), alertCount)
	if err != nil {
		result = map[string]string{"error": err.Error()}
	} else {
		result = analysis
	}

	payload := map[string]any{
		"location": a.cfg.Location,
		"analysis": result,
	}
	return protocol.NewResponse(req, "weather_analysis_response", a.source(), payload), nil
}

func (a *Agent) handleGetNOAAAlerts(_ context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	live := a.liveSource()

	a.mu.Lock()
	mirrored := a.advisories.Snapshot()
	a.mu.Unlock()

	payload := map[string]any{
		"location":      a.cfg.Location,
		"noaa_enabled":  live != nil,
		"fallback_mode": live == nil,
		"alerts":        mirrored,
		"alert_count":   len(mirrored),
	}
	if live != nil {
		payload["noaa_location"] = live.Location()
	}
	return protocol.NewResponse(req, "noaa_alerts_response", a.source(), payload), nil
}

func (a *Agent) handleRefreshNOAAData(ctx context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	log := logger.WithComponent("agent")
	live := a.liveSource()

	var success bool
	var errMessage string
	if live == nil {
		errMessage = "NOAA service not available or not enabled"
	} else {
		reading, err := live.Current(ctx)
		if err != nil {
			errMessage = err.Error()
		} else {
			a.appendReading(reading)
			a.pollAdvisories(ctx)
			success = true
			log.Info().Msg("NOAA data refreshed")
		}
	}

	payload := map[string]any{
		"success":       success,
		"error":         errMessage,
		"noaa_enabled":  live != nil,
		"fallback_mode": live == nil,
		"timestamp":     time.Now().UTC(),
	}
	return protocol.NewResponse(req, "noaa_data_refreshed", a.source(), payload), nil
}
