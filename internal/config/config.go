// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Convert  ConvertConfig
	Sink     SinkConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// UploadConfig holds upload intake settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel conversions (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a conversion slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single conversion (default: 1m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"1m"`
}

// ConvertConfig holds table loading and projection defaults.
type ConvertConfig struct {
	// DefaultPolicy is used when a request names no policy: rows, rows-sparse, columns
	DefaultPolicy string `env:"CONVERT_DEFAULT_POLICY" default:"rows"`

	// CSVCharset decodes delimited files that are not valid UTF-8.
	// "utf-8" disables the fallback and invalid bytes are replaced instead.
	CSVCharset string `env:"CONVERT_CSV_CHARSET" default:"windows-1252"`

	// CSVDelimiter forces a single-character delimiter; empty means auto-detect
	CSVDelimiter string `env:"CONVERT_CSV_DELIMITER"`
}

// SinkConfig holds blob storage settings for the blob conversion endpoint.
type SinkConfig struct {
	// Provider selects the storage backend: azure, s3, gcs or file (default: azure)
	Provider string `env:"SINK_PROVIDER" default:"azure"`

	// FileRoot is the base directory for the file provider (default: ./blobs)
	FileRoot string `env:"SINK_FILE_ROOT" default:"./blobs"`

	// Timeout bounds a single upload (default: 30s)
	Timeout time.Duration `env:"SINK_TIMEOUT" default:"30s"`

	// AzureAccountName overrides the account name derived from the endpoint
	AzureAccountName string `env:"AZURE_STORAGE_ACCOUNT_NAME" envAlt:"AZURE_STORAGE_ACCOUNT"`

	// AzureAccountKey enables shared-key auth; without it the endpoint must carry a SAS token
	AzureAccountKey string `env:"AZURE_STORAGE_ACCOUNT_KEY" envAlt:"AZURE_STORAGE_KEY"`

	// S3Region is the signing region (default: us-east-1)
	S3Region string `env:"S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`

	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID" envAlt:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`

	// GCSProjectID is the project new buckets are created in
	GCSProjectID string `env:"GCS_PROJECT_ID" envAlt:"GOOGLE_CLOUD_PROJECT"`

	// GCSCredentialsFile is a service account key file; empty uses default credentials
	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the sustained rate per IP (default: 60)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60"`

	// Burst is the number of requests allowed above the sustained rate (default: 10)
	Burst int `env:"RATE_LIMIT_BURST" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
