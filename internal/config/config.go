package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultDialTimeout bounds how long a client waits for the destination to answer
	DefaultDialTimeout = 10 * time.Second

	// DefaultAcceptRetryInterval is the minimum spacing between accept retries
	DefaultAcceptRetryInterval = 100 * time.Millisecond
)

// Config holds process-wide settings for portrelay
type Config struct {
	// ConfigPath is the route file to load; empty means the default location
	ConfigPath string

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// AdminAddr is the listen address of the status endpoint; empty disables it
	AdminAddr string

	// AcceptPolicy decides what a route does when Accept fails
	AcceptPolicy AcceptPolicy

	// DialTimeout bounds each outbound dial
	DialTimeout time.Duration

	// AcceptRetryInterval spaces accept retries when AcceptPolicy is retry
	AcceptRetryInterval time.Duration

	// loadErrs holds environment values Load could not parse
	loadErrs []string
}

// Load creates a Config by reading from environment variables
// and applying defaults where values are not set. Values that fail to parse
// keep their default and are reported by Validate.
func Load() *Config {
	cfg := &Config{
		ConfigPath:          getEnvOrDefault("PORTRELAY_CONFIG", ""),
		LogLevel:            getEnvOrDefault("PORTRELAY_LOG_LEVEL", "info"),
		AdminAddr:           getEnvOrDefault("PORTRELAY_ADMIN_ADDR", ""),
		AcceptPolicy:        AcceptPolicy(getEnvOrDefault("PORTRELAY_ACCEPT_POLICY", string(AcceptStop))),
		AcceptRetryInterval: DefaultAcceptRetryInterval,
	}

	dialTimeout, err := getDurationOrDefault("PORTRELAY_DIAL_TIMEOUT", DefaultDialTimeout)
	if err != nil {
		cfg.loadErrs = append(cfg.loadErrs, fmt.Sprintf("PORTRELAY_DIAL_TIMEOUT: %v", err))
	}
	cfg.DialTimeout = dialTimeout

	return cfg
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	problems := append([]string(nil), c.loadErrs...)

	if !c.AcceptPolicy.IsValid() {
		problems = append(problems, fmt.Sprintf("PORTRELAY_ACCEPT_POLICY: unknown policy %q", c.AcceptPolicy))
	}
	if c.DialTimeout < 0 {
		problems = append(problems, "PORTRELAY_DIAL_TIMEOUT: must not be negative")
	}
	if c.AdminAddr != "" {
		if err := ValidateAddress(c.AdminAddr); err != nil {
			problems = append(problems, fmt.Sprintf("PORTRELAY_ADMIN_ADDR: %v", err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getDurationOrDefault parses a duration environment variable.
// An unparseable value returns the default together with the parse error.
func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid duration %q", val)
	}
	return d, nil
}
