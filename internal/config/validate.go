package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}

	validProviders := []string{"openai", "mock"}
	if cfg.Model.Provider != "" && !slices.Contains(validProviders, cfg.Model.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "model.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.Model.Provider),
		})
	}
	if cfg.Model.Provider == "openai" && cfg.Model.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "model.apiKey",
			Message: "required when provider is openai",
		})
	}
	if cfg.Model.Temperature != nil && (*cfg.Model.Temperature < 0 || *cfg.Model.Temperature > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "model.temperature",
			Message: fmt.Sprintf("must be 0-2, got %v", *cfg.Model.Temperature),
		})
	}

	if cfg.Session.MaxContextTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.maxContextTokens",
			Message: "must not be negative",
		})
	}
	if cfg.Limits.ChatPerMinute < 0 || cfg.Limits.TaskPerMinute < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "limits",
			Message: "rate limits must not be negative",
		})
	}
	if cfg.Retrieval.TopK < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "retrieval.topK",
			Message: "must not be negative",
		})
	}
	if cfg.Retention.CompletedTaskDays < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "retention.completedTaskDays",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Retention.CompletedTaskDays),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
