// Package config loads the YAML configuration surface: socket_ip,
// port_id, the accepted role set, tick period, and maximum frame
// length. A local override file layers on top of the built-in defaults,
// the same registration-plus-overlay pattern used elsewhere in the repo.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds the server engine's configuration surface.
type Server struct {
	SocketIP      string        `yaml:"socket_ip"`
	PortID        int           `yaml:"port_id"`
	Roles         []string      `yaml:"roles"`
	TickPeriod    time.Duration `yaml:"-"`
	TickMS        int           `yaml:"tick_ms"`
	MaxFrameBytes int           `yaml:"max_frame_bytes"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	LogLevel      string        `yaml:"log_level"`
}

// DefaultServer returns the reference deployment's defaults: roles
// {GRABBER, ACTUATOR}, port 6341, 100ms tick, 64MiB max frame.
func DefaultServer() Server {
	return Server{
		SocketIP:      "127.0.0.1",
		PortID:        6341,
		Roles:         []string{"GRABBER", "ACTUATOR"},
		TickPeriod:    100 * time.Millisecond,
		TickMS:        100,
		MaxFrameBytes: 64 << 20,
		MetricsAddr:   "127.0.0.1:9341",
		LogLevel:      "info",
	}
}

// Addr returns the "ip:port" listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.SocketIP, s.PortID)
}

// LoadServer reads a YAML document at path and overlays it onto the
// defaults; a missing file is not an error (the defaults stand alone).
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.TickMS > 0 {
		cfg.TickPeriod = time.Duration(cfg.TickMS) * time.Millisecond
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = DefaultServer().Roles
	}
	return cfg, nil
}

// Client holds the client engine's configuration surface.
type Client struct {
	SocketIP      string `yaml:"socket_ip"`
	PortID        int    `yaml:"port_id"`
	Role          string `yaml:"role"`
	MaxFrameBytes int    `yaml:"max_frame_bytes"`
}

// DefaultClient returns sensible client defaults for connecting to the
// reference deployment's server.
func DefaultClient() Client {
	return Client{
		SocketIP:      "127.0.0.1",
		PortID:        6341,
		Role:          "GRABBER",
		MaxFrameBytes: 64 << 20,
	}
}

// Addr returns the "ip:port" dial address.
func (c Client) Addr() string {
	return fmt.Sprintf("%s:%d", c.SocketIP, c.PortID)
}

// LoadClient reads a YAML document at path and overlays it onto the
// defaults; a missing file is not an error.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
