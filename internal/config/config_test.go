package config

import (
	"testing"
	"time"
)

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "production", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "rooms", SSLMode: ""},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Provider: ProviderConfig{APIKey: "key", APISecret: "secret"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "rooms", SSLMode: ""},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Provider: ProviderConfig{APIKey: "key", APISecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_AppliesRoomTunableDefaults(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "rooms"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Provider: ProviderConfig{APIKey: "key", APISecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Rooms.InactivityThreshold != 5*time.Minute {
		t.Fatalf("expected 5m inactivity default, got %v", c.Rooms.InactivityThreshold)
	}
	if c.Rooms.BanMonitorWindow != 30*time.Second {
		t.Fatalf("expected 30s ban monitor window, got %v", c.Rooms.BanMonitorWindow)
	}
	if c.Provider.RequestTimeout != 10*time.Second {
		t.Fatalf("expected 10s provider timeout default, got %v", c.Provider.RequestTimeout)
	}
}
