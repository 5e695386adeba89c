package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportGraphQLWS = "graphql-ws"
	TransportNATS      = "nats"
)

// Config holds the dashboard settings. Values come from an optional YAML file,
// then AUCTION_* environment variables override them.
type Config struct {
	GraphQL struct {
		HTTPURL        string        `yaml:"http_url"`
		WSURL          string        `yaml:"ws_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"graphql"`

	Push struct {
		Transport     string        `yaml:"transport"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
		MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
		NATSURL       string        `yaml:"nats_url"`
		NATSSubject   string        `yaml:"nats_subject"`
	} `yaml:"push"`

	ViewServer struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"view_server"`

	NotificationTTL time.Duration `yaml:"notification_ttl"`
	LogLevel        string        `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	cfg.GraphQL.HTTPURL = "http://localhost:8080"
	cfg.GraphQL.WSURL = "ws://localhost:8080/query"
	cfg.GraphQL.RequestTimeout = 10 * time.Second

	cfg.Push.Transport = TransportGraphQLWS
	cfg.Push.RetryDelay = 2 * time.Second
	cfg.Push.MaxRetryDelay = 60 * time.Second
	cfg.Push.NATSURL = "nats://localhost:4222"
	cfg.Push.NATSSubject = "auction.events"

	cfg.ViewServer.Addr = ":8090"
	cfg.ViewServer.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

	cfg.NotificationTTL = 3 * time.Second
	cfg.LogLevel = "info"
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.GraphQL.HTTPURL = getEnv("AUCTION_GRAPHQL_HTTP_URL", c.GraphQL.HTTPURL)
	c.GraphQL.WSURL = getEnv("AUCTION_GRAPHQL_WS_URL", c.GraphQL.WSURL)
	c.GraphQL.RequestTimeout = getEnvAsDuration("AUCTION_REQUEST_TIMEOUT", c.GraphQL.RequestTimeout)

	c.Push.Transport = getEnv("AUCTION_PUSH_TRANSPORT", c.Push.Transport)
	c.Push.RetryDelay = getEnvAsDuration("AUCTION_PUSH_RETRY_DELAY", c.Push.RetryDelay)
	c.Push.MaxRetryDelay = getEnvAsDuration("AUCTION_PUSH_MAX_RETRY_DELAY", c.Push.MaxRetryDelay)
	c.Push.NATSURL = getEnv("AUCTION_NATS_URL", c.Push.NATSURL)
	c.Push.NATSSubject = getEnv("AUCTION_NATS_SUBJECT", c.Push.NATSSubject)

	c.ViewServer.Addr = getEnv("AUCTION_VIEW_ADDR", c.ViewServer.Addr)
	c.ViewServer.AllowedOrigins = getEnvAsList("AUCTION_ALLOWED_ORIGINS", c.ViewServer.AllowedOrigins)

	if secs := getEnvAsInt("AUCTION_NOTIFICATION_TTL_SECONDS", 0); secs > 0 {
		c.NotificationTTL = time.Duration(secs) * time.Second
	}
	c.LogLevel = getEnv("AUCTION_LOG_LEVEL", c.LogLevel)
}

// Validate rejects settings the dashboard cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.GraphQL.HTTPURL == "" {
		errs = append(errs, errors.New("graphql.http_url is required"))
	}
	switch c.Push.Transport {
	case TransportGraphQLWS:
		if c.GraphQL.WSURL == "" {
			errs = append(errs, errors.New("graphql.ws_url is required for the graphql-ws transport"))
		}
	case TransportNATS:
		if c.Push.NATSURL == "" {
			errs = append(errs, errors.New("push.nats_url is required for the nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown push transport %q", c.Push.Transport))
	}
	if c.NotificationTTL <= 0 {
		errs = append(errs, errors.New("notification_ttl must be positive"))
	}
	if c.Push.RetryDelay <= 0 {
		errs = append(errs, errors.New("push.retry_delay must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
