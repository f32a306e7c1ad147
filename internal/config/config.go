package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config drives the binaries. Values come from an optional yaml file with
// env-var overrides on top.
type Config struct {
	Server struct {
		Listen  string `yaml:"listen"`   // chatd bind address
		HTTPURL string `yaml:"http_url"` // collaborator base URL
		WSURL   string `yaml:"ws_url"`   // channel endpoint
	} `yaml:"server"`
	Identity struct {
		ID          string `yaml:"id"`
		DisplayName string `yaml:"display_name"`
		Token       string `yaml:"token"`
	} `yaml:"identity"`
}

func defaults() Config {
	var c Config
	c.Server.Listen = "127.0.0.1:3001"
	c.Server.HTTPURL = "http://127.0.0.1:3001"
	c.Server.WSURL = "ws://127.0.0.1:3001/ws"
	return c
}

// Load reads the yaml file at path (skipped when empty or missing) and then
// applies env overrides.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Listen, "WETALK_LISTEN")
	set(&c.Server.HTTPURL, "WETALK_HTTP_URL")
	set(&c.Server.WSURL, "WETALK_WS_URL")
	set(&c.Identity.ID, "WETALK_IDENTITY_ID")
	set(&c.Identity.DisplayName, "WETALK_DISPLAY_NAME")
	set(&c.Identity.Token, "WETALK_TOKEN")
}
