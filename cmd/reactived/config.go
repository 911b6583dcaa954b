package main

import (
	"fmt"
	"time"

	"github.com/fxsml/reactive/bridge"
	"github.com/fxsml/reactive/broker"
	"github.com/fxsml/reactive/config"
)

type topicConfig struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
}

type daemonConfig struct {
	Listen             string        `yaml:"listen"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	LogLevel           string        `yaml:"log_level"`
	AutoCreateCapacity int           `yaml:"auto_create_capacity"`
	Broker             broker.Config `yaml:"broker"`
	Bridge             bridge.Config `yaml:"bridge"`
	Topics             []topicConfig `yaml:"topics"`
}

func defaultConfig() daemonConfig {
	return daemonConfig{
		Listen:          ":8080",
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		Topics: []topicConfig{
			{Name: "tasks/status", Capacity: 16},
			{Name: "logs/events", Capacity: 256},
		},
	}
}

// loadConfig reads path, if set, over the defaults and then applies
// REACTIVE_DAEMON_* environment overrides.
func loadConfig(path string, env config.Loader) (daemonConfig, error) {
	cfg := defaultConfig()
	if path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := env.Load("daemon", &cfg); err != nil {
		return cfg, err
	}
	for _, t := range cfg.Topics {
		if t.Name == "" {
			return cfg, fmt.Errorf("config: topic without name")
		}
		if t.Capacity < 0 {
			return cfg, fmt.Errorf("config: topic %q: negative capacity %d", t.Name, t.Capacity)
		}
	}
	return cfg, nil
}
