// Command labsyncd runs the server engine: it binds the listening socket,
// accepts GRABBER/ACTUATOR peers, mirrors their settings trees, and
// serves /metrics until terminated.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ianremillard/labsync/internal/config"
	"github.com/ianremillard/labsync/internal/server"
	"github.com/ianremillard/labsync/internal/statuslog"
	"github.com/ianremillard/labsync/internal/telemetry"
	"github.com/spf13/pflag"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a server config YAML overlay")
		debug      = pflag.BoolP("debug", "d", false, "enable debug logging")
	)
	pflag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sink := statuslog.New(os.Stderr, *debug)
	metrics := telemetry.New()

	go func() {
		if err := telemetry.ListenAndServe(cfg.MetricsAddr, metrics); err != nil {
			sink.Log(fmt.Sprintf("metrics server: %v", err), statuslog.LevelError)
		}
	}()

	srv := server.New(cfg, server.WithSink(sink), server.WithMetrics(metrics))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		sink.Log("shutting down", statuslog.LevelLog)
		_ = srv.Close()
	}()

	if err := srv.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
