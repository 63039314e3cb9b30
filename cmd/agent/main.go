package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skywatch/internal/agent"
	"skywatch/internal/config"
	"skywatch/internal/kafka"
	"skywatch/internal/logger"
)

func main() {
	var (
		agentID       = flag.String("agent-id", "", "unique agent identifier assigned by the host runtime (required)")
		location      = flag.String("location", "", "monitored location as \"City, ST\"")
		useSimulation = flag.Bool("use-simulation", false, "force the simulator even when live data is available")
		logLevel      = flag.String("log-level", "", "zerolog level (trace, debug, info, warn, error)")
		configPath    = flag.String("config", "", "path to YAML config file")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags override the file.
	if *agentID != "" {
		cfg.AgentID = *agentID
	}
	if *location != "" {
		cfg.Location = *location
	}
	if *useSimulation {
		cfg.UseRealWeather = false
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if cfg.AgentID == "" {
		fmt.Fprintln(os.Stderr, "--agent-id is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)
	log := logger.WithAgent(cfg.AgentID)

	var mirror *kafka.Mirror
	if cfg.MirrorEnabled() {
		m, err := kafka.NewMirror(cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start broadcast mirror")
		}
		mirror = m
		defer mirror.Close()
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	// stdin and stdout belong to the host channel; all logging goes to
	// stderr via the logger.
	a := agent.New(cfg, os.Stdin, os.Stdout, mirror)
	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("agent exited with error")
		os.Exit(1)
	}
}
