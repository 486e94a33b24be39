package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mcpskill/mcpskill/internal/logger"
	"github.com/mcpskill/mcpskill/internal/supervisor"
	"github.com/mcpskill/mcpskill/internal/worker"
)

// Transport names accepted in an MCP server config.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// KeepAlive is the keep-alive policy section of an MCP server config.
type KeepAlive struct {
	Enabled       bool `json:"enabled" mapstructure:"enabled"`
	Timeout       int  `json:"timeout" mapstructure:"timeout"`               // seconds
	CheckInterval int  `json:"check_interval" mapstructure:"check_interval"` // seconds
}

// SupervisorConfig bridges the config section to the supervisor policy.
// Non-positive values fall back to supervisor defaults.
func (k KeepAlive) SupervisorConfig() supervisor.Config {
	return supervisor.Config{
		Enabled:       k.Enabled,
		IdleTimeout:   time.Duration(k.Timeout) * time.Second,
		CheckInterval: time.Duration(k.CheckInterval) * time.Second,
	}.Normalized()
}

// MCPConfig describes an MCP server to be converted into a skill.
type MCPConfig struct {
	Name      string            `json:"name" mapstructure:"name"`
	Command   string            `json:"command" mapstructure:"command"`
	Args      []string          `json:"args" mapstructure:"args"`
	Env       map[string]string `json:"env" mapstructure:"env"`
	Transport string            `json:"transport" mapstructure:"transport"`
	KeepAlive KeepAlive         `json:"keep_alive" mapstructure:"keep_alive"`
	Log       logger.Config     `json:"log" mapstructure:"log"`
}

// Load reads and validates an MCP server config from a JSON file.
func Load(path string) (*MCPConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("transport", TransportStdio)
	v.SetDefault("keep_alive.enabled", true)
	v.SetDefault("keep_alive.timeout", 3600)
	v.SetDefault("keep_alive.check_interval", 60)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c MCPConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the fields a usable skill needs.
func (c *MCPConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: name is required")
	}
	if c.Command == "" {
		return fmt.Errorf("config: command is required")
	}
	switch c.Transport {
	case TransportStdio, TransportSSE:
	default:
		return fmt.Errorf("config: unsupported transport %q (supported: stdio, sse)", c.Transport)
	}
	return nil
}

// WorkerSpec builds the spawn spec for this server rooted at skillDir.
func (c *MCPConfig) WorkerSpec(skillDir string) worker.Spec {
	return worker.Spec{
		Name:     c.Name,
		Command:  c.Command,
		Args:     append([]string(nil), c.Args...),
		Env:      c.Env,
		SkillDir: skillDir,
		Log:      c.Log,
	}
}
