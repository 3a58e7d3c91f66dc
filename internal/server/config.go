package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. It can be loaded from a YAML file;
// command-line flags override file values.
type Config struct {
	Bind      string `yaml:"bind"`
	Port      int    `yaml:"port"`
	Identity  string `yaml:"identity"`
	Oplist    string `yaml:"oplist"`
	Whitelist string `yaml:"whitelist"`
	MotdFile  string `yaml:"motd"`
	LogFile   string `yaml:"log"`
	Debug     int    `yaml:"debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Bind: "0.0.0.0",
		Port: 2022,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}
