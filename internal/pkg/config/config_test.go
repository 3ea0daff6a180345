package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": testSecret,
	}))
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.Port != "8080" || cfg.Env != "development" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.JWT.TTL != 15*time.Minute {
		t.Fatalf("expected 15m token ttl, got %v", cfg.JWT.TTL)
	}
	if cfg.Auth.BcryptCost != 10 || cfg.Auth.LoginMaxAttempts != 5 || cfg.Auth.LoginLockout != 15*time.Minute {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.RoleCache.Size != 16 || cfg.RoleCache.TTL != 5*time.Minute {
		t.Fatalf("unexpected cache defaults: %+v", cfg.RoleCache)
	}
	if cfg.Audit.Workers != 4 {
		t.Fatalf("expected 4 audit workers, got %d", cfg.Audit.Workers)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":     testSecret,
		"JWT_TTL":        "5m",
		"ENV":            "production",
		"MONGO_DB":       "crm",
		"REDIS_DB":       "2",
		"ROLE_CACHE_TTL": "30s",
	}))
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.JWT.TTL != 5*time.Minute || cfg.Mongo.Database != "crm" || cfg.Redis.DB != 2 || cfg.RoleCache.TTL != 30*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.IsDevelopment() {
		t.Fatalf("expected production env")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	if _, err := load(context.Background(), envconfig.MapLookuper(map[string]string{})); err == nil {
		t.Fatalf("expected error when JWT_SECRET is missing")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{"JWT_SECRET": testSecret}))
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	cfg.JWT.Secret = "short"
	cfg.JWT.TTL = 0
	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"JWT_SECRET", "JWT_TTL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in error, got %v", want, err)
		}
	}
}
