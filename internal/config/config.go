// Package config loads the daemon's YAML configuration file with
// goccy/go-yaml, the way fw/cmd/cmd.go's run() reads its config file
// through toolutils.ReadYaml before starting the forwarder, then
// applies the environment-variable overrides spec.md §6 names.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Core holds the scheduler/table tuning knobs.
type Core struct {
	LogLevel           string `yaml:"log_level"`
	ContentStoreSize   int    `yaml:"cs_capacity"`
	InterestLifetimeMs int    `yaml:"interest_lifetime_ms"`
	PollTimeoutMs      int    `yaml:"poll_timeout_ms"`
}

// Faces holds listener addresses and per-face tuning.
type Faces struct {
	UnixSocketPath  string `yaml:"unix_socket_path"`
	TCPListen       string `yaml:"tcp_listen"`
	UDPListen       string `yaml:"udp_listen"`
	WebsocketListen string `yaml:"websocket_listen"`
	MTU             int    `yaml:"mtu"`
	DataPauseMicros int64  `yaml:"data_pause_us"`
	FloodOnNewFace  bool   `yaml:"flood_on_new_face"`
}

// Management holds the internal client's access-control policy.
type Management struct {
	FriendlyOnly bool `yaml:"friendly_only"`
}

// Config is the top-level daemon configuration, loaded from the single
// YAML file named on the command line (spec.md §6 "EXTERNAL
// INTERFACES").
type Config struct {
	Core       Core       `yaml:"core"`
	Faces      Faces      `yaml:"faces"`
	Management Management `yaml:"management"`
}

// Default returns a Config with the same baseline values spec.md's
// defaults imply (4 s Interest lifetime, uncapped CS, etc.).
func Default() *Config {
	return &Config{
		Core: Core{
			LogLevel:           "info",
			ContentStoreSize:   0,
			InterestLifetimeMs: 4000,
			PollTimeoutMs:      1000,
		},
		Faces: Faces{
			UnixSocketPath: os.TempDir() + "/ccnd.sock",
			MTU:            8800,
		},
		Management: Management{FriendlyOnly: true},
	}
}

// Load reads and unmarshals a YAML config file, then applies the
// environment-variable overrides spec.md §6 names ("port suffix, debug
// mask, Content Store capacity, path MTU for interest stuffing,
// per-face data-pause microseconds, and a transitional
// 'flood-on-new-face' switch").
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Environment variable names spec.md §6 enumerates.
const (
	envPortSuffix     = "CCND_PORT_SUFFIX"
	envDebugMask      = "CCND_DEBUG_MASK"
	envCSCapacity     = "CCND_CS_CAPACITY"
	envMTU            = "CCND_MTU"
	envDataPauseUs    = "CCND_DATA_PAUSE_US"
	envFloodOnNewFace = "CCND_FLOOD_ON_NEW_FACE"
)

func (c *Config) applyEnv() {
	if v := os.Getenv(envPortSuffix); v != "" {
		c.Faces.UnixSocketPath = c.Faces.UnixSocketPath + v
	}
	if v := os.Getenv(envDebugMask); v != "" {
		c.Core.LogLevel = v
	}
	if v, ok := envInt(envCSCapacity); ok {
		c.Core.ContentStoreSize = v
	}
	if v, ok := envInt(envMTU); ok {
		c.Faces.MTU = v
	}
	if v, ok := envInt64(envDataPauseUs); ok {
		c.Faces.DataPauseMicros = v
	}
	if v := os.Getenv(envFloodOnNewFace); v != "" {
		c.Faces.FloodOnNewFace = v == "1" || v == "true"
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func envInt64(name string) (int64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}
