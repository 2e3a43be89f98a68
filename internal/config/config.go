package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAddr          = "127.0.0.1:6379"
	DefaultReadChunk     = 4096
	DefaultSweepInterval = time.Second
)

type Config struct {
	Addr string
	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration
	// ReadChunk is the size of the per-connection staging buffer handed to
	// conn.Read. Undecoded bytes accumulate separately.
	ReadChunk int
	// SweepInterval is how often expired keys are reclaimed. Zero disables
	// the sweeper; expiry is still enforced on read.
	SweepInterval time.Duration
}

func Default() Config {
	return Config{
		Addr:          DefaultAddr,
		ReadChunk:     DefaultReadChunk,
		SweepInterval: DefaultSweepInterval,
	}
}

// Load builds a Config from defaults, then environment, then flags in
// args. getenv is usually os.Getenv.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.DurationVar(&cfg.IdleTimeout, "idle_timeout", cfg.IdleTimeout, "close idle connections after this long (0 disables)")
	fs.IntVar(&cfg.ReadChunk, "read_chunk", cfg.ReadChunk, "socket read size in bytes")
	fs.DurationVar(&cfg.SweepInterval, "sweep_interval", cfg.SweepInterval, "expired key reclamation interval (0 disables)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := env(getenv, "KV_ADDR"); v != "" {
		c.Addr = v
	}
	if v := env(getenv, "KV_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KV_IDLE_TIMEOUT: %w", err)
		}
		c.IdleTimeout = d
	}
	if v := env(getenv, "KV_READ_CHUNK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KV_READ_CHUNK: %w", err)
		}
		c.ReadChunk = n
	}
	if v := env(getenv, "KV_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KV_SWEEP_INTERVAL: %w", err)
		}
		c.SweepInterval = d
	}
	return nil
}

func env(getenv func(string) string, key string) string {
	if getenv == nil {
		return ""
	}
	return strings.TrimSpace(getenv(key))
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.ReadChunk < 1 {
		return fmt.Errorf("read_chunk must be positive, got %d", c.ReadChunk)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must not be negative, got %s", c.SweepInterval)
	}
	return nil
}
