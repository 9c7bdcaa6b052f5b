package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"PORTRELAY_CONFIG",
	"PORTRELAY_LOG_LEVEL",
	"PORTRELAY_ADMIN_ADDR",
	"PORTRELAY_ACCEPT_POLICY",
	"PORTRELAY_DIAL_TIMEOUT",
}

func TestLoad(t *testing.T) {
	// Save original env vars and restore after test
	original := make(map[string]string, len(envKeys))
	for _, key := range envKeys {
		original[key] = os.Getenv(key)
	}
	defer func() {
		for key, val := range original {
			_ = os.Setenv(key, val)
		}
	}()

	// Clear env vars
	for _, key := range envKeys {
		_ = os.Unsetenv(key)
	}

	t.Run("defaults", func(t *testing.T) {
		cfg := Load()

		if cfg.ConfigPath != "" {
			t.Errorf("Expected empty ConfigPath, got: %s", cfg.ConfigPath)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("Expected default LogLevel 'info', got: %s", cfg.LogLevel)
		}
		if cfg.AdminAddr != "" {
			t.Errorf("Expected admin endpoint disabled by default, got: %s", cfg.AdminAddr)
		}
		if cfg.AcceptPolicy != AcceptStop {
			t.Errorf("Expected default AcceptPolicy 'stop', got: %s", cfg.AcceptPolicy)
		}
		if cfg.DialTimeout != DefaultDialTimeout {
			t.Errorf("Expected default DialTimeout %v, got: %v", DefaultDialTimeout, cfg.DialTimeout)
		}
		if cfg.AcceptRetryInterval != DefaultAcceptRetryInterval {
			t.Errorf("Expected default AcceptRetryInterval %v, got: %v", DefaultAcceptRetryInterval, cfg.AcceptRetryInterval)
		}
	})

	t.Run("from environment", func(t *testing.T) {
		_ = os.Setenv("PORTRELAY_CONFIG", "/etc/portrelay/routes")
		_ = os.Setenv("PORTRELAY_LOG_LEVEL", "debug")
		_ = os.Setenv("PORTRELAY_ADMIN_ADDR", "127.0.0.1:9900")
		_ = os.Setenv("PORTRELAY_ACCEPT_POLICY", "retry")
		_ = os.Setenv("PORTRELAY_DIAL_TIMEOUT", "3s")

		cfg := Load()

		if cfg.ConfigPath != "/etc/portrelay/routes" {
			t.Errorf("Expected ConfigPath from env, got: %s", cfg.ConfigPath)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("Expected LogLevel from env, got: %s", cfg.LogLevel)
		}
		if cfg.AdminAddr != "127.0.0.1:9900" {
			t.Errorf("Expected AdminAddr from env, got: %s", cfg.AdminAddr)
		}
		if cfg.AcceptPolicy != AcceptRetry {
			t.Errorf("Expected AcceptPolicy from env, got: %s", cfg.AcceptPolicy)
		}
		if cfg.DialTimeout != 3*time.Second {
			t.Errorf("Expected DialTimeout from env, got: %v", cfg.DialTimeout)
		}
	})

	t.Run("unparseable dial timeout is reported", func(t *testing.T) {
		_ = os.Setenv("PORTRELAY_ACCEPT_POLICY", "stop")
		_ = os.Setenv("PORTRELAY_ADMIN_ADDR", "")
		_ = os.Setenv("PORTRELAY_DIAL_TIMEOUT", "soon")

		cfg := Load()

		if cfg.DialTimeout != DefaultDialTimeout {
			t.Errorf("Expected default DialTimeout, got: %v", cfg.DialTimeout)
		}
		err := cfg.Validate()
		if err == nil {
			t.Fatal("Expected Validate to reject the dial timeout")
		}
		if !strings.Contains(err.Error(), "PORTRELAY_DIAL_TIMEOUT") || !strings.Contains(err.Error(), `"soon"`) {
			t.Errorf("Expected error to name the variable and value, got: %v", err)
		}
	})

	t.Run("valid environment passes validation", func(t *testing.T) {
		_ = os.Setenv("PORTRELAY_DIAL_TIMEOUT", "250ms")

		if err := Load().Validate(); err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name: "valid config",
			cfg: &Config{
				LogLevel:     "info",
				AcceptPolicy: AcceptStop,
				DialTimeout:  time.Second,
			},
		},
		{
			name: "valid config with admin endpoint",
			cfg: &Config{
				AdminAddr:    ":9900",
				AcceptPolicy: AcceptRetry,
			},
		},
		{
			name: "unknown accept policy",
			cfg: &Config{
				AcceptPolicy: AcceptPolicy("sometimes"),
			},
			wantErr: "PORTRELAY_ACCEPT_POLICY",
		},
		{
			name: "negative dial timeout",
			cfg: &Config{
				AcceptPolicy: AcceptStop,
				DialTimeout:  -time.Second,
			},
			wantErr: "PORTRELAY_DIAL_TIMEOUT",
		},
		{
			name: "admin address without port",
			cfg: &Config{
				AcceptPolicy: AcceptStop,
				AdminAddr:    "localhost",
			},
			wantErr: "PORTRELAY_ADMIN_ADDR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error to mention %s, got: %v", tt.wantErr, err)
			}
		})
	}
}
