package models

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Webhook   WebhookConfig   `json:"webhook"`
	Messenger MessengerConfig `json:"messenger"`
	Database  DatabaseConfig  `json:"database"`
	Pages     []PageConfig    `json:"pages"`
	Retry     RetryConfig     `json:"retry"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"log_level"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port            string   `json:"port"`
	ReadTimeoutSec  int      `json:"readTimeoutSec"`
	WriteTimeoutSec int      `json:"writeTimeoutSec"`
	IdleTimeoutSec  int      `json:"idleTimeoutSec"`
	AllowedOrigins  []string `json:"allowedOrigins"`
}

// WebhookConfig holds the subscription handshake secret
type WebhookConfig struct {
	VerifyToken string `json:"verify_token"`
}

// MessengerConfig holds Graph API settings
type MessengerConfig struct {
	GraphAPIBaseURL   string `json:"graph_api_base_url"`
	GraphAPIVersion   string `json:"graph_api_version"`
	ProfileTimeoutSec int    `json:"profileTimeoutSec"`
	SendTimeoutSec    int    `json:"sendTimeoutSec"`
	UploadTimeoutSec  int    `json:"uploadTimeoutSec"`
	MaxUploadMB       int    `json:"max_upload_mb"`
}

// DatabaseConfig selects and locates the store backend.
// Driver is one of "sqlite", "postgres" or "mongodb".
type DatabaseConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Name   string `json:"name"`
}

// RetryConfig holds store connection retry settings
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
