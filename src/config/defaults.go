package config

import (
	"github.com/stewardhq/steward/src/approval"
	"github.com/stewardhq/steward/src/shell"
)

// DefaultConfig returns the built-in configuration. User and project files
// are merged over it.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Shell: ShellConfig{
			Shell:            "/bin/bash",
			DefaultTimeoutMs: shell.DefaultTimeoutMs,
		},
		Web: WebConfig{
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			DatabasePath: DefaultStoragePaths().DatabasePath,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		DefaultProfile: "default",
		Profiles: map[string]ProfileConfig{
			// Reads are free, mutations and commands prompt.
			"default": {
				Tools: map[string]string{
					"file:read_file":    "always",
					"file:search_files": "always",
					"file:grep_files":   "always",
					"file:edit_file":    "ask",
					"file:write_file":   "ask",
					"shell:run_command": "ask",
					"web:web_fetch":     "ask",
				},
				Overrides: map[string]approval.PatternOverride{
					"shell:run_command": {
						AllowedPattern: `^git (status|diff|log)\b;^ls\b;^cat\b`,
						DeniedPattern:  `\brm\s+-rf\s+/\S*;\bsudo\b`,
					},
				},
			},
			// Everything auto-approves; the deny list still binds.
			"trusted": {
				Tools: map[string]string{
					"file:read_file":    "always",
					"file:search_files": "always",
					"file:grep_files":   "always",
					"file:edit_file":    "always",
					"file:write_file":   "always",
					"shell:run_command": "always",
					"web:web_fetch":     "always",
				},
				Overrides: map[string]approval.PatternOverride{
					"shell:run_command": {
						DeniedPattern: `\brm\s+-rf\s+/\S*;\bsudo\b`,
					},
				},
			},
			// Mutating tools are not even registered.
			"readonly": {
				Tools: map[string]string{
					"file:read_file":    "always",
					"file:search_files": "always",
					"file:grep_files":   "always",
					"file:edit_file":    "never",
					"file:write_file":   "never",
					"shell:run_command": "never",
					"web:web_fetch":     "ask",
				},
			},
		},
	}
}
