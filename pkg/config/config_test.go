package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadParsesWrapperTypes(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/courier-test
security:
  token:
    secret: s3cret
    ttl: 12h
  admin_emails:
    - root@example.com
limits:
  max_message_bytes: 64KB
  max_name_len: 80
reconcile:
  enabled: true
  cron: "0 4 * * *"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
	if cfg.Security.Token.TTL.Duration() != 12*time.Hour {
		t.Fatalf("TTL = %v", cfg.Security.Token.TTL.Duration())
	}
	if cfg.Limits.MaxMessageBytes.Int64() != 64*1024 {
		t.Fatalf("MaxMessageBytes = %d", cfg.Limits.MaxMessageBytes.Int64())
	}
	if len(cfg.Security.AdminEmails) != 1 || cfg.Security.AdminEmails[0] != "root@example.com" {
		t.Fatalf("AdminEmails = %v", cfg.Security.AdminEmails)
	}
	if !cfg.Reconcile.Enabled || cfg.Reconcile.Cron != "0 4 * * *" {
		t.Fatalf("Reconcile = %+v", cfg.Reconcile)
	}
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("Load of absent file succeeded")
	}
}

func TestLoadEffectiveToleratesMissingFile(t *testing.T) {
	eff, err := LoadEffective(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if eff.Config == nil {
		t.Fatalf("Config is nil")
	}
	if eff.Source != "defaults" {
		t.Fatalf("Source = %q, want defaults", eff.Source)
	}
}

func TestLoadEffectiveEnvOverlay(t *testing.T) {
	t.Setenv("COURIER_ADDR", "10.0.0.5:9999")
	t.Setenv("COURIER_TOKEN_SECRET", "env-secret")
	t.Setenv("COURIER_ADMIN_EMAILS", "a@b.c, d@e.f ,")

	path := writeConfig(t, `
server:
  port: 8080
security:
  token:
    secret: file-secret
`)
	eff, err := LoadEffective(path)
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if eff.Source != "env" {
		t.Fatalf("Source = %q, want env", eff.Source)
	}
	if eff.Addr != "10.0.0.5:9999" {
		t.Fatalf("Addr = %q", eff.Addr)
	}
	if eff.Config.Security.Token.Secret != "env-secret" {
		t.Fatalf("Secret = %q", eff.Config.Security.Token.Secret)
	}
	if len(eff.Config.Security.AdminEmails) != 2 {
		t.Fatalf("AdminEmails = %v", eff.Config.Security.AdminEmails)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("COURIER_CONFIG", "/env/config.yaml")
	if got := ResolveConfigPath("/flag/config.yaml", true); got != "/flag/config.yaml" {
		t.Fatalf("flag set: got %q", got)
	}
	if got := ResolveConfigPath("./config.yaml", false); got != "/env/config.yaml" {
		t.Fatalf("env fallback: got %q", got)
	}
	os.Unsetenv("COURIER_CONFIG")
	if got := ResolveConfigPath("./config.yaml", false); got != "./config.yaml" {
		t.Fatalf("default: got %q", got)
	}
}
