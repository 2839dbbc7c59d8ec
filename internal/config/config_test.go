package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SWEEP_INTERVAL_SEC", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.SweepInterval != time.Minute {
		t.Errorf("expected one minute sweep, got %s", cfg.Scheduler.SweepInterval)
	}
	if cfg.Audience.NewCustomerWindow != 30*24*time.Hour {
		t.Errorf("unexpected new customer window %s", cfg.Audience.NewCustomerWindow)
	}
}

func TestProductionRequiresSMTP(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_USER", "")
	t.Setenv("SMTP_PASS", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without SMTP credentials in production")
	}
}

func TestDSNPrefersURL(t *testing.T) {
	d := DatabaseConfig{URL: "postgres://x", Host: "h"}
	if d.DSN() != "postgres://x" {
		t.Errorf("expected URL to win, got %s", d.DSN())
	}
	d.URL = ""
	d.User, d.Password, d.Port, d.DBName, d.SSLMode = "u", "p", "5432", "n", "disable"
	if got := d.DSN(); got != "postgres://u:p@h:5432/n?sslmode=disable" {
		t.Errorf("unexpected dsn %s", got)
	}
}
