package config

import (
	"testing"
	"time"
)

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_LocalDefaultsDriversAndPolicy(t *testing.T) {
	c := Config{
		App: AppConfig{Env: "local", Port: 8080},
		IDP: IDPConfig{BaseURL: "http://localhost:9000"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Store.Driver != DriverMemory || c.Directory.Driver != DriverMemory {
		t.Fatalf("expected memory driver defaults, got %q/%q", c.Store.Driver, c.Directory.Driver)
	}
	if c.Session.StalenessWindow != 24*time.Hour {
		t.Fatalf("expected 24h staleness window default, got %v", c.Session.StalenessWindow)
	}
	if c.Session.PreventiveThreshold <= c.Session.ReactiveMinValidity {
		t.Fatalf("defaults must keep threshold above reactive bound")
	}
}

func TestValidate_ProductionRequiresExplicitDrivers(t *testing.T) {
	c := Config{
		App: AppConfig{Env: "production", Port: 8080},
		IDP: IDPConfig{BaseURL: "https://idp.internal"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without drivers")
	}
}

func TestValidate_RedisDriverRequiresAddr(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		Store: StoreConfig{Driver: DriverRedis},
		IDP:   IDPConfig{BaseURL: "http://localhost:9000"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for redis driver without REDIS_HOST")
	}
}

func TestValidate_RejectsInvertedThresholds(t *testing.T) {
	c := Config{
		App: AppConfig{Env: "local", Port: 8080},
		IDP: IDPConfig{BaseURL: "http://localhost:9000"},
		Session: SessionConfig{
			ReactiveMinValidity: 10 * time.Minute,
			PreventiveThreshold: time.Minute,
		},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when threshold is below reactive bound")
	}
}
