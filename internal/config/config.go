// Package config loads ringlogd settings from an optional YAML file with
// command-line overrides.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen      string        `yaml:"listen"`
	Depth       int           `yaml:"depth"`
	RecentDepth int           `yaml:"recent_depth"`
	Interface   string        `yaml:"interface"`
	DHCP        bool          `yaml:"dhcp"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	LogLevel    string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Listen:      ":8080",
		Depth:       50,
		RecentDepth: 500,
		Interface:   "eth0",
		DHCP:        true,
		Heartbeat:   15 * time.Second,
		LogLevel:    "info",
	}
}

// AddFlags registers one flag per setting, defaulting to Default().
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("listen", d.Listen, "HTTP listen address")
	fs.Int("depth", d.Depth, "Events kept per key")
	fs.Int("recent-depth", d.RecentDepth, "Events kept across all keys")
	fs.String("interface", d.Interface, "Interface to watch for DHCPv6 traffic")
	fs.Bool("dhcp", d.DHCP, "Record DHCPv6 traffic")
	fs.Duration("heartbeat", d.Heartbeat, "Interval between SSE heartbeats")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
}

// Load reads path (if non-empty) over the defaults, then applies every flag
// that was set explicitly in fs.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "reading config")
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing %s", path)
		}
	}

	if fs != nil {
		var err error
		fs.Visit(func(f *pflag.Flag) {
			if err != nil {
				return
			}
			switch f.Name {
			case "listen":
				cfg.Listen, err = fs.GetString(f.Name)
			case "depth":
				cfg.Depth, err = fs.GetInt(f.Name)
			case "recent-depth":
				cfg.RecentDepth, err = fs.GetInt(f.Name)
			case "interface":
				cfg.Interface, err = fs.GetString(f.Name)
			case "dhcp":
				cfg.DHCP, err = fs.GetBool(f.Name)
			case "heartbeat":
				cfg.Heartbeat, err = fs.GetDuration(f.Name)
			case "log-level":
				cfg.LogLevel, err = fs.GetString(f.Name)
			}
		})
		if err != nil {
			return cfg, errors.Wrap(err, "reading flags")
		}
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address must be set")
	}
	if c.Depth <= 0 {
		return errors.Errorf("depth must be > 0, got %d", c.Depth)
	}
	if c.RecentDepth <= 0 {
		return errors.Errorf("recent_depth must be > 0, got %d", c.RecentDepth)
	}
	if c.DHCP && c.Interface == "" {
		return errors.New("interface must be set when dhcp is enabled")
	}
	if c.Heartbeat <= 0 {
		return errors.Errorf("heartbeat must be > 0, got %s", c.Heartbeat)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}
