// Package config loads the TOML configuration shared by echo-server and
// echo-client. Every field has a default, so a file is optional; command-line
// flags are applied on top by the binaries.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/cyberinferno/go-echo/logger"
	"github.com/cyberinferno/go-echo/protocol"
)

// Duration is a time.Duration that decodes from TOML strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the whole configuration file.
type Config struct {
	Server  Server  `toml:"server"`
	Client  Client  `toml:"client"`
	Logging Logging `toml:"logging"`
	Store   Store   `toml:"store"`
}

// Server describes the [server] block.
type Server struct {
	Port int `toml:"port"`
}

// Client describes the [client] block.
type Client struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	ConnectTimeout Duration `toml:"connect-timeout"`
}

// Logging describes the [logging] block.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Dir    string `toml:"dir"`
}

// Store describes the [store] block, where session summaries are kept.
type Store struct {
	Backend       string   `toml:"backend"`
	TTL           Duration `toml:"ttl"`
	RedisAddr     string   `toml:"redis-addr"`
	RedisPassword string   `toml:"redis-password"`
	RedisDB       int      `toml:"redis-db"`
}

// Store backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Port: protocol.DefaultServerPort},
		Client: Client{
			Host: protocol.DefaultClientHost,
			Port: protocol.DefaultClientPort,
		},
		Logging: Logging{
			Level:  "info",
			Format: string(logger.FormatConsole),
		},
		Store: Store{
			Backend:   BackendMemory,
			TTL:       Duration{24 * time.Hour},
			RedisAddr: "localhost:6379",
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path returns
// the defaults. Unknown keys are rejected so typos do not go unnoticed.
//
// Parameters:
//   - path: Path to a TOML file, or ""
//
// Returns:
//   - The merged configuration, or an error if the file cannot be parsed
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return cfg, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// ValidateServer checks the settings echo-server uses and reports every
// problem at once.
func (c Config) ValidateServer() error {
	var errs error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("server.port %d out of range 0..65535", c.Server.Port))
	}

	errs = c.validateLogging(errs)

	switch c.Store.Backend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			errs = multierror.Append(errs, fmt.Errorf("store.redis-addr is required for the redis backend"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("store.backend %q is not one of none, memory, redis", c.Store.Backend))
	}

	if c.Store.TTL.Duration < 0 {
		errs = multierror.Append(errs, fmt.Errorf("store.ttl must not be negative"))
	}

	return errs
}

// ValidateClient checks the settings echo-client uses and reports every
// problem at once.
func (c Config) ValidateClient() error {
	var errs error
	if strings.TrimSpace(c.Client.Host) == "" {
		errs = multierror.Append(errs, fmt.Errorf("client.host must not be empty"))
	}

	if c.Client.Port < 1 || c.Client.Port > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("client.port %d out of range 1..65535", c.Client.Port))
	}

	if c.Client.ConnectTimeout.Duration < 0 {
		errs = multierror.Append(errs, fmt.Errorf("client.connect-timeout must not be negative"))
	}

	return c.validateLogging(errs)
}

func (c Config) validateLogging(errs error) error {
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("logging.level: %w", err))
	}

	switch logger.Format(c.Logging.Format) {
	case "", logger.FormatConsole, logger.FormatJSON:
	default:
		errs = multierror.Append(errs, fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format))
	}

	return errs
}

// LoggerOptions converts the [logging] block into logger.Options for service.
func (c Config) LoggerOptions(service string) (logger.Options, error) {
	level, err := logger.ParseLevel(c.Logging.Level)
	if err != nil {
		return logger.Options{}, err
	}

	return logger.Options{
		Service: service,
		Level:   level,
		Format:  logger.Format(c.Logging.Format),
		Dir:     c.Logging.Dir,
	}, nil
}
