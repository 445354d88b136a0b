// Package config loads layered configuration: built-in defaults, an
// optional YAML file, then SMOKER_* environment variables on top.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment layer: SMOKER_SERVER_ADDR maps
// to server.addr, SMOKER_PUSH_VAPID_PUBLIC to push.vapid_public.
const envPrefix = "SMOKER_"

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type DataConfig struct {
	Dir string `koanf:"dir"`
}

type BridgeConfig struct {
	// Decimation is the forwarding threshold: every (n+1)th event frame
	// is persisted and evaluated.
	Decimation int `koanf:"decimation"`
	// Cooldown silences a rule after it fires.
	Cooldown time.Duration `koanf:"cooldown"`
}

type PushConfig struct {
	VapidPublic  string `koanf:"vapid_public"`
	VapidPrivate string `koanf:"vapid_private"`
	Subscriber   string `koanf:"subscriber"`
	Icon         string `koanf:"icon"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Config struct {
	Server ServerConfig `koanf:"server"`
	Data   DataConfig   `koanf:"data"`
	Bridge BridgeConfig `koanf:"bridge"`
	Push   PushConfig   `koanf:"push"`
	Log    LogConfig    `koanf:"log"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8812"},
		Data:   DataConfig{Dir: "data"},
		Bridge: BridgeConfig{
			Decimation: 10,
			Cooldown:   10 * time.Minute,
		},
		Push: PushConfig{
			Subscriber: "mailto:smoker@localhost",
			Icon:       "/icon.png",
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load layers defaults, the YAML file at path (skipped when path is
// empty or missing), and SMOKER_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps SMOKER_SERVER_ADDR to server.addr: the first
// underscore separates the section, the rest stays a flat key.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}
	if c.Bridge.Decimation < 0 {
		return fmt.Errorf("bridge.decimation must not be negative")
	}
	if c.Bridge.Cooldown < 0 {
		return fmt.Errorf("bridge.cooldown must not be negative")
	}
	return nil
}
