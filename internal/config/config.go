package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Backend     BackendConfig
	Session     SessionConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig points at the hosted backend project that serves both the
// auth and the table-query APIs.
type BackendConfig struct {
	URL            string
	APIKey         string
	RequestTimeout time.Duration
	// RedirectURL is the public address of this app's OAuth callback.
	RedirectURL string
}

type SessionConfig struct {
	// StorePath is the bolt file holding the persisted session bundle.
	StorePath string
	// RefreshInterval is how often the refresh job wakes up.
	RefreshInterval time.Duration
	// RefreshThreshold refreshes sessions expiring within this window.
	RefreshThreshold time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the app can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskpane"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "3000"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Backend: BackendConfig{
			URL:            getString("BACKEND_URL", "http://localhost:54321"),
			APIKey:         os.Getenv("BACKEND_API_KEY"),
			RequestTimeout: getDuration("BACKEND_REQUEST_TIMEOUT", 10*time.Second),
			RedirectURL:    getString("OAUTH_REDIRECT_URL", "http://localhost:3000/auth/callback"),
		},
		Session: SessionConfig{
			StorePath:        getString("SESSION_STORE_PATH", "./data/session.db"),
			RefreshInterval:  getDuration("SESSION_REFRESH_INTERVAL", 30*time.Second),
			RefreshThreshold: getDuration("SESSION_REFRESH_THRESHOLD", 5*time.Minute),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 15*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
	}

	if cfg.Backend.APIKey == "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("BACKEND_API_KEY is required outside development")
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
