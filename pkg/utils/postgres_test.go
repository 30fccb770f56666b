package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns <= 0 || c.MaxIdleConns <= 0 {
		t.Fatalf("expected positive pool defaults, got %+v", c)
	}
	if c.PingTimeout <= 0 {
		t.Fatalf("expected ping timeout default, got %v", c.PingTimeout)
	}
}

func TestPostgresPoolConfig_ExplicitValuesKept(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}.withDefaults()
	if c.MaxOpenConns != 3 || c.PingTimeout != time.Second {
		t.Fatalf("explicit values must not be overridden, got %+v", c)
	}
}
