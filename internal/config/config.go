package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18890,
			Bind: "loopback",
		},
		Model: ModelConfig{
			Provider:  "openai",
			Name:      "gpt-4o-mini",
			MaxTokens: 1024,
		},
		Session: SessionConfig{
			MaxContextTokens:   4000,
			MaxContextMessages: 50,
			IdleMinutes:        10,
			SystemPrompt:       "You are a helpful personal assistant.",
		},
		Limits: LimitsConfig{
			ChatPerMinute: 10,
			TaskPerMinute: 60,
		},
		Retrieval: RetrievalConfig{
			Enabled: true,
			TopK:    3,
		},
		Retention: RetentionConfig{
			CompletedTaskDays: 30,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
