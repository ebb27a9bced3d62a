package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Loader loads and merges configuration from the user file and an optional
// per-project file, over the built-in defaults.
type Loader struct {
	// UserConfig and ProjectConfig override the XDG lookup when set;
	// useful for tests and the --config flag.
	UserConfig    string
	ProjectConfig string

	validator *Validator
}

// NewLoader creates a loader with default lookup paths.
func NewLoader() *Loader {
	return &Loader{validator: NewValidator()}
}

// Load merges defaults, the user config, and the project config for
// projectDir, then validates the result. Missing files are not errors.
func (l *Loader) Load(projectDir string) (*Config, error) {
	config := DefaultConfig()

	userPath := l.UserConfig
	if userPath == "" {
		userPath = UserConfigPath()
	}
	projectPath := l.ProjectConfig
	if projectPath == "" && projectDir != "" {
		projectPath = filepath.Join(projectDir, ProjectConfigName)
	}

	for _, path := range []string{userPath, projectPath} {
		if path == "" {
			continue
		}
		override, err := loadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		config = merge(config, override)
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// SaveFile writes a configuration to path after validating it.
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &config, nil
}

// merge overlays override onto base, field by field. Profile maps merge by
// name with the override profile replacing the base one wholesale.
func merge(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.Shell.Shell != "" {
		result.Shell.Shell = override.Shell.Shell
	}
	if override.Shell.DefaultTimeoutMs != 0 {
		result.Shell.DefaultTimeoutMs = override.Shell.DefaultTimeoutMs
	}
	if override.Web.TimeoutSeconds != 0 {
		result.Web.TimeoutSeconds = override.Web.TimeoutSeconds
	}
	if override.Storage.DatabasePath != "" {
		result.Storage.DatabasePath = override.Storage.DatabasePath
	}
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}
	if override.Logging.File != "" {
		result.Logging.File = override.Logging.File
	}
	if override.DefaultProfile != "" {
		result.DefaultProfile = override.DefaultProfile
	}
	if override.Debug {
		result.Debug = true
	}
	if len(override.Profiles) > 0 {
		merged := make(map[string]ProfileConfig, len(base.Profiles)+len(override.Profiles))
		for name, p := range base.Profiles {
			merged[name] = p
		}
		for name, p := range override.Profiles {
			merged[name] = p
		}
		result.Profiles = merged
	}
	return &result
}
