// Package config loads the server configuration from yaml.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/observability/log"
)

// Transport kinds.
const (
	TransportNone      = "none"
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

type Config struct {
	Server  Server  `yaml:"server"`
	World   World   `yaml:"world"`
	Session Session `yaml:"session"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
}

type Server struct {
	Role      string `yaml:"role"`
	Transport string `yaml:"transport"`
	Address   string `yaml:"address"`
	// Path is the websocket endpoint.
	Path         string        `yaml:"path"`
	TickRate     int           `yaml:"tick_rate"`
	QueueSize    int           `yaml:"queue_size"`
	InboxSize    int           `yaml:"inbox_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type World struct {
	GridSize    [2]float64 `yaml:"grid_size"`
	Gravity     [2]float64 `yaml:"gravity"`
	Definitions string     `yaml:"definitions"`
	Editor      bool       `yaml:"editor"`
}

type Session struct {
	AllowRewiring bool `yaml:"allow_rewiring"`
	// MaxAttached maps profile -> definition -> limit.
	MaxAttached map[string]map[string]int `yaml:"max_attached"`
}

type Storage struct {
	SQLitePath   string `yaml:"sqlite_path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

type Logging struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Server: Server{
			Role:         authority.RoleAuthoritative.String(),
			Transport:    TransportWebSocket,
			Address:      ":8080",
			Path:         "/ws",
			TickRate:     30,
			QueueSize:    256,
			InboxSize:    1024,
			WriteTimeout: 5 * time.Second,
		},
		World: World{
			GridSize: [2]float64{16, 16},
			Gravity:  [2]float64{0, -9.8},
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads yaml from r over Default and validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	role, err := authority.ParseRole(c.Server.Role)
	if err != nil {
		errs = append(errs, err)
	}
	switch c.Server.Transport {
	case TransportNone:
		if err == nil && role != authority.RoleLocal {
			errs = append(errs, fmt.Errorf("role %s needs a transport", role))
		}
	case TransportWebSocket, TransportQUIC:
		if c.Server.Address == "" {
			errs = append(errs, errors.New("server.address is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Server.Transport))
	}
	if c.Server.TickRate <= 0 {
		errs = append(errs, errors.New("server.tick_rate must be positive"))
	}
	if c.World.GridSize[0] < 0 || c.World.GridSize[1] < 0 {
		errs = append(errs, errors.New("world.grid_size must not be negative"))
	}
	for profile, limits := range c.Session.MaxAttached {
		for def, n := range limits {
			if n < 0 {
				errs = append(errs, fmt.Errorf("session.max_attached.%s.%s must not be negative", profile, def))
			}
		}
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Role returns the parsed authority role. Call after Validate.
func (c Config) Role() authority.Role {
	role, _ := authority.ParseRole(c.Server.Role)
	return role
}

// LogLevel returns the parsed logging level. Call after Validate.
func (c Config) LogLevel() log.Level {
	level, _ := log.ParseLevel(c.Logging.Level)
	return level
}
