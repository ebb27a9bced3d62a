// Package config loads and validates steward's configuration: shell and
// fetch limits, storage paths, logging, and the named approval profiles the
// tool pipeline runs under.
package config

import (
	"fmt"

	"github.com/stewardhq/steward/src/approval"
)

// Config is the complete steward configuration.
type Config struct {
	Version string `json:"version"`

	Shell   ShellConfig   `json:"shell"`
	Web     WebConfig     `json:"web"`
	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`

	// DefaultProfile names the profile used when none is requested.
	DefaultProfile string `json:"default_profile" validate:"required"`

	// Profiles maps profile names to per-tool approval policy.
	Profiles map[string]ProfileConfig `json:"profiles" validate:"required,dive"`

	Debug bool `json:"debug,omitempty"`
}

// ShellConfig controls the run_command tool.
type ShellConfig struct {
	// Shell is the interpreter commands run under.
	Shell string `json:"shell,omitempty"`
	// DefaultTimeoutMs bounds command wall-clock time when the call does not
	// set its own.
	DefaultTimeoutMs int `json:"default_timeout_ms,omitempty" validate:"omitempty,min=100"`
}

// WebConfig controls the web_fetch tool.
type WebConfig struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=120"`
}

// StorageConfig controls conversation persistence.
type StorageConfig struct {
	DatabasePath string `json:"database_path,omitempty"`
}

// LoggingConfig controls the CLI and file loggers.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format,omitempty" validate:"omitempty,oneof=text json"`
	File   string `json:"file,omitempty"`
}

// ProfileConfig is the serialized form of an approval profile.
type ProfileConfig struct {
	// Tools maps "group:tool" to an approval state.
	Tools map[string]string `json:"tools" validate:"dive,oneof=always ask never"`
	// Overrides configures allow/deny regex lists for command tools.
	Overrides map[string]approval.PatternOverride `json:"overrides,omitempty" validate:"omitempty,dive"`
}

// ApprovalProfile converts a named profile into the runtime form consumed
// by the gate and the toolbox builder.
func (c *Config) ApprovalProfile(name string) (*approval.Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	pc, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %s not found", name)
	}

	states := make(map[string]approval.State, len(pc.Tools))
	for toolID, state := range pc.Tools {
		states[toolID] = approval.State(state)
	}
	return &approval.Profile{
		Name:      name,
		States:    states,
		Overrides: pc.Overrides,
	}, nil
}
