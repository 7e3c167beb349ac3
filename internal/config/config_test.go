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
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: 8088
download_dir: ~/Videos
probe_timeout: 45s
job_retention: 1d
player_clients: [web]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8088 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("host default lost: %q", cfg.Host)
	}
	if cfg.ProbeTimeout.Std() != 45*time.Second {
		t.Errorf("probe_timeout = %v", cfg.ProbeTimeout.Std())
	}
	if cfg.JobRetention.Std() != 24*time.Hour {
		t.Errorf("job_retention = %v", cfg.JobRetention.Std())
	}
	if len(cfg.PlayerClients) != 1 || cfg.PlayerClients[0] != "web" {
		t.Errorf("player_clients = %v", cfg.PlayerClients)
	}
	if cfg.AuthTimeout.Std() != 30*time.Second {
		t.Errorf("auth_timeout default lost: %v", cfg.AuthTimeout.Std())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"public host", "host: 0.0.0.0\n"},
		{"remote host", "host: example.com\n"},
		{"bad duration", "probe_timeout: soon\n"},
		{"both cookie sources", "cookies_file: a.txt\ncookies_from_browser: firefox\n"},
		{"port range", "port: 70000\n"},
		{"zero rate", "probe_rate: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing path should fail")
	}
}

func TestLoopbackHosts(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "localhost", "::1", "127.0.0.5"} {
		if !isLoopback(host) {
			t.Errorf("%s should be loopback", host)
		}
	}
	for _, host := range []string{"0.0.0.0", "192.168.1.2", ""} {
		if isLoopback(host) {
			t.Errorf("%s should not be loopback", host)
		}
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("VIDGRAB_PORT", "6123")
	cfg, err := Load(writeConfig(t, "port: 5001\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 6123 {
		t.Errorf("env port not applied: %d", cfg.Port)
	}
	if cfg.Addr() != "127.0.0.1:6123" {
		t.Errorf("Addr = %s", cfg.Addr())
	}
}
