package config

// Config is the root configuration for Minder.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Model     ModelConfig     `yaml:"model,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Limits    LimitsConfig    `yaml:"limits,omitempty"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Retention RetentionConfig `yaml:"retention,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	Token          string   `yaml:"token,omitempty"` // empty disables auth
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// ModelConfig selects and tunes the completion backend.
type ModelConfig struct {
	Provider    string   `yaml:"provider,omitempty"` // "openai" | "mock"
	Name        string   `yaml:"name,omitempty"`
	BaseURL     string   `yaml:"baseUrl,omitempty"`
	APIKey      string   `yaml:"apiKey,omitempty"`
	MaxTokens   int      `yaml:"maxTokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// SessionConfig defines per-user conversation behavior.
type SessionConfig struct {
	SystemPrompt       string `yaml:"systemPrompt,omitempty"`
	MaxContextTokens   int    `yaml:"maxContextTokens,omitempty"`
	MaxContextMessages int    `yaml:"maxContextMessages,omitempty"`
	IdleMinutes        int    `yaml:"idleMinutes,omitempty"`
}

// LimitsConfig defines per-user sliding-window rate limits.
type LimitsConfig struct {
	ChatPerMinute int `yaml:"chatPerMinute,omitempty"`
	TaskPerMinute int `yaml:"taskPerMinute,omitempty"`
}

// RetrievalConfig configures knowledge retrieval for chat turns.
type RetrievalConfig struct {
	Enabled bool `yaml:"enabled"`
	TopK    int  `yaml:"topK,omitempty"`
}

// RetentionConfig controls background cleanup of old data.
type RetentionConfig struct {
	CompletedTaskDays int `yaml:"completedTaskDays,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}
