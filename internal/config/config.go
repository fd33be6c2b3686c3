// Package config holds runtime settings for the classboard server.
// Precedence is file > environment > defaults; every loaded configuration
// is validated before any component starts.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Auth gate modes. "password" compares a shared SHA-256 digest; "store"
// checks per-teacher bcrypt hashes in the credential database.
const (
	AuthModePassword = "password"
	AuthModeStore    = "store"
)

type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Auth      *AuthConfig      `json:"auth"`
	Limits    *LimitsConfig    `json:"limits"`
}

type HTTPConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

type WebSocketConfig struct {
	PingInterval    time.Duration `json:"ping_interval"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	BufferSize      int           `json:"buffer_size"`
	MaxMessageBytes int64         `json:"max_message_bytes"`
}

// AuthConfig shapes the credential check for the teacher role.
// PasswordDigest is a hex SHA-256 of the shared teacher password; an
// empty digest in password mode means no credential is configured and
// every authorization is refused. TokenSecret enables JWT issuance at
// login and token-based teacher connects; empty disables tokens.
type AuthConfig struct {
	Mode           string        `json:"mode"`
	PasswordDigest string        `json:"password_digest"`
	DatabasePath   string        `json:"database_path"`
	TokenSecret    string        `json:"token_secret"`
	TokenTTL       time.Duration `json:"token_ttl"`
}

type LimitsConfig struct {
	MessagesPerMinute int `json:"messages_per_minute"`
}

// DefaultConfig returns settings suitable for a single-classroom
// deployment. Teacher login stays locked until a credential is
// configured through the environment or a config file.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		WebSocket: &WebSocketConfig{
			PingInterval:    30 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			BufferSize:      100,
			MaxMessageBytes: 64 * 1024,
		},
		Auth: &AuthConfig{
			Mode:         AuthModePassword,
			DatabasePath: "./classboard.db",
			TokenTTL:     12 * time.Hour,
		},
		Limits: &LimitsConfig{
			MessagesPerMinute: 100,
		},
	}
}

func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed ping interval")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("websocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return fmt.Errorf("websocket max message size must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	switch c.Auth.Mode {
	case AuthModePassword:
		// An empty digest is allowed: it locks the teacher role out
		// until a credential is configured.
	case AuthModeStore:
		if c.Auth.DatabasePath == "" {
			return fmt.Errorf("auth store mode requires a database path")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}

	if c.Limits == nil {
		return fmt.Errorf("limits configuration is required")
	}
	if c.Limits.MessagesPerMinute <= 0 {
		return fmt.Errorf("messages per minute must be positive")
	}

	return nil
}

// LoadFromEnv returns defaults overridden by CLASSBOARD_* variables.
// Unparseable values fall back to the default rather than failing.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("CLASSBOARD_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("CLASSBOARD_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if origins := os.Getenv("CLASSBOARD_HTTP_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.HTTP.AllowedOrigins = parts
	}
	setDuration(&cfg.HTTP.ReadTimeout, "CLASSBOARD_HTTP_READ_TIMEOUT")
	setDuration(&cfg.HTTP.WriteTimeout, "CLASSBOARD_HTTP_WRITE_TIMEOUT")

	setDuration(&cfg.WebSocket.PingInterval, "CLASSBOARD_WS_PING_INTERVAL")
	setDuration(&cfg.WebSocket.ReadTimeout, "CLASSBOARD_WS_READ_TIMEOUT")
	setDuration(&cfg.WebSocket.WriteTimeout, "CLASSBOARD_WS_WRITE_TIMEOUT")
	if size := os.Getenv("CLASSBOARD_WS_BUFFER_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.WebSocket.BufferSize = n
		}
	}
	if max := os.Getenv("CLASSBOARD_WS_MAX_MESSAGE_BYTES"); max != "" {
		if n, err := strconv.ParseInt(max, 10, 64); err == nil {
			cfg.WebSocket.MaxMessageBytes = n
		}
	}

	if mode := os.Getenv("CLASSBOARD_AUTH_MODE"); mode != "" {
		cfg.Auth.Mode = mode
	}
	if digest := os.Getenv("CLASSBOARD_AUTH_PASSWORD_DIGEST"); digest != "" {
		cfg.Auth.PasswordDigest = digest
	}
	if path := os.Getenv("CLASSBOARD_AUTH_DATABASE_PATH"); path != "" {
		cfg.Auth.DatabasePath = path
	}
	if secret := os.Getenv("CLASSBOARD_AUTH_TOKEN_SECRET"); secret != "" {
		cfg.Auth.TokenSecret = secret
	}
	setDuration(&cfg.Auth.TokenTTL, "CLASSBOARD_AUTH_TOKEN_TTL")

	if rate := os.Getenv("CLASSBOARD_LIMIT_MESSAGES_PER_MINUTE"); rate != "" {
		if n, err := strconv.Atoi(rate); err == nil {
			cfg.Limits.MessagesPerMinute = n
		}
	}

	return cfg
}

func setDuration(target *time.Duration, envVar string) {
	if value := os.Getenv(envVar); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			*target = d
		}
	}
}

// configFile mirrors Config with durations as strings so JSON files can
// say "30s" instead of nanosecond counts.
type configFile struct {
	HTTP *struct {
		Host           string   `json:"host"`
		Port           int      `json:"port"`
		ReadTimeout    string   `json:"read_timeout"`
		WriteTimeout   string   `json:"write_timeout"`
		AllowedOrigins []string `json:"allowed_origins"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval    string `json:"ping_interval"`
		ReadTimeout     string `json:"read_timeout"`
		WriteTimeout    string `json:"write_timeout"`
		BufferSize      int    `json:"buffer_size"`
		MaxMessageBytes int64  `json:"max_message_bytes"`
	} `json:"websocket"`
	Auth *struct {
		Mode           string `json:"mode"`
		PasswordDigest string `json:"password_digest"`
		DatabasePath   string `json:"database_path"`
		TokenSecret    string `json:"token_secret"`
		TokenTTL       string `json:"token_ttl"`
	} `json:"auth"`
	Limits *struct {
		MessagesPerMinute int `json:"messages_per_minute"`
	} `json:"limits"`
}

// LoadFromFile reads a JSON config file on top of the defaults and
// validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			cfg.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			cfg.HTTP.Port = file.HTTP.Port
		}
		if len(file.HTTP.AllowedOrigins) > 0 {
			cfg.HTTP.AllowedOrigins = file.HTTP.AllowedOrigins
		}
		parseDuration(&cfg.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		parseDuration(&cfg.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}

	if file.WebSocket != nil {
		if file.WebSocket.BufferSize > 0 {
			cfg.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
		if file.WebSocket.MaxMessageBytes > 0 {
			cfg.WebSocket.MaxMessageBytes = file.WebSocket.MaxMessageBytes
		}
		parseDuration(&cfg.WebSocket.PingInterval, file.WebSocket.PingInterval)
		parseDuration(&cfg.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		parseDuration(&cfg.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
	}

	if file.Auth != nil {
		if file.Auth.Mode != "" {
			cfg.Auth.Mode = file.Auth.Mode
		}
		if file.Auth.PasswordDigest != "" {
			cfg.Auth.PasswordDigest = file.Auth.PasswordDigest
		}
		if file.Auth.DatabasePath != "" {
			cfg.Auth.DatabasePath = file.Auth.DatabasePath
		}
		if file.Auth.TokenSecret != "" {
			cfg.Auth.TokenSecret = file.Auth.TokenSecret
		}
		parseDuration(&cfg.Auth.TokenTTL, file.Auth.TokenTTL)
	}

	if file.Limits != nil && file.Limits.MessagesPerMinute > 0 {
		cfg.Limits.MessagesPerMinute = file.Limits.MessagesPerMinute
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return cfg, nil
}

func parseDuration(target *time.Duration, value string) {
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			*target = d
		}
	}
}

// LoadConfigWithPrecedence resolves the effective configuration:
// file > environment > defaults. File errors fall back silently to the
// environment so a missing optional file does not block startup.
func LoadConfigWithPrecedence(path string) *Config {
	cfg := LoadFromEnv()

	if path != "" {
		if fileCfg, err := LoadFromFile(path); err == nil {
			cfg = fileCfg
		}
	}

	return cfg
}
