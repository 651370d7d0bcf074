// Command labsyncctl drives the client engine: it connects to a labsyncd
// instance under a given role, uploads an empty settings tree, and prints
// every inbound command and status event it receives until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ianremillard/labsync/internal/client"
	"github.com/ianremillard/labsync/internal/config"
	"github.com/ianremillard/labsync/internal/settings"
	"github.com/ianremillard/labsync/internal/statuslog"
	"github.com/spf13/pflag"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a client config YAML overlay")
		role       = pflag.StringP("role", "r", "", "override the configured role")
		debug      = pflag.BoolP("debug", "d", false, "enable debug logging")
	)
	pflag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *role != "" {
		cfg.Role = *role
	}

	sink := statuslog.New(os.Stderr, *debug)
	tree := settings.NewTree("Settings")

	eng := client.New(cfg, tree, sink, 0)
	go eng.Run()
	eng.Enqueue(client.Command{Name: "ini_connection"})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case ev := <-eng.Events():
			switch ev.Kind {
			case client.EventConnected:
				sink.Log(fmt.Sprintf("connected as %s", cfg.Role), statuslog.LevelLog)
			case client.EventDisconnected:
				sink.Log("disconnected", statuslog.LevelLog)
				return
			case client.EventInbound:
				sink.Log(fmt.Sprintf("received %s", ev.Command), statuslog.LevelLog)
			}
		case <-sigCh:
			eng.Enqueue(client.Command{Name: "quit"})
			return
		}
	}
}
