package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
)

var agentEnvKeys = []string{
	"NIGHTGARD_DOMAIN",
	"NIGHTGARD_TOKEN",
	"NIGHTGARD_INTERVAL",
	"NIGHTGARD_DATA_DIR",
	"NIGHTGARD_UPDATE_URL",
	"NIGHTGARD_ENDPOINTS",
}

// clearAgentEnv unsets the agent variables for the test and restores them afterwards.
func clearAgentEnv(t *testing.T) {
	t.Helper()
	for _, k := range agentEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func parse(t *testing.T, args ...string) runtimeConfig {
	t.Helper()
	cfg, err := loadConfig(flag.NewFlagSet("nightgard-agent", flag.ContinueOnError), args)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestLoadConfig_FlagsWinOverEnvAndDotEnv(t *testing.T) {
	clearAgentEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "NIGHTGARD_DOMAIN=dotenv\nNIGHTGARD_TOKEN=dotenv-token\n")
	t.Setenv("NIGHTGARD_DOMAIN", "env")

	cfg := parse(t, "-data-dir", dir, "-domain", "flag.duckdns.org", "-interval", "90")

	if cfg.DDNS.Domain != "flag" {
		t.Fatalf("expected flag domain with suffix stripped, got %q", cfg.DDNS.Domain)
	}
	if cfg.DDNS.Token != "dotenv-token" {
		t.Fatalf("expected token from .env, got %q", cfg.DDNS.Token)
	}
	if cfg.DDNS.Interval != 90*time.Second {
		t.Fatalf("expected 90s interval, got %s", cfg.DDNS.Interval)
	}
}

func TestLoadConfig_EnvWinsOverDotEnv(t *testing.T) {
	clearAgentEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "NIGHTGARD_DOMAIN=dotenv\n")
	t.Setenv("NIGHTGARD_DOMAIN", "env")
	t.Setenv("NIGHTGARD_INTERVAL", "5m")

	cfg := parse(t, "-data-dir", dir)

	if cfg.DDNS.Domain != "env" {
		t.Fatalf("expected env domain, got %q", cfg.DDNS.Domain)
	}
	if cfg.DDNS.Interval != 5*time.Minute {
		t.Fatalf("expected 5m interval, got %s", cfg.DDNS.Interval)
	}
}

func TestLoadConfig_SettingsFileIsFallback(t *testing.T) {
	clearAgentEnv(t)
	dir := t.TempDir()
	store := settings.NewFileStore(filepath.Join(dir, "settings.json"))
	saved := ddns.Config{Domain: "saved", Token: "saved-token", Interval: 10 * time.Minute}
	if err := settings.SaveConfig(store, saved); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NIGHTGARD_DATA_DIR", dir)

	cfg := parse(t, "-token", "override")

	if cfg.DataDir != dir {
		t.Fatalf("expected data dir from env, got %q", cfg.DataDir)
	}
	want := ddns.Config{Domain: "saved", Token: "override", Interval: 10 * time.Minute}
	if cfg.DDNS != want {
		t.Fatalf("expected %+v, got %+v", want, cfg.DDNS)
	}
}

func TestLoadConfig_Endpoints(t *testing.T) {
	clearAgentEnv(t)
	t.Setenv("NIGHTGARD_ENDPOINTS", " https://a.example/ip , ,https://b.example/ip")

	cfg := parse(t, "-data-dir", t.TempDir())

	if len(cfg.Endpoints) != 2 || cfg.Endpoints[0].URL != "https://a.example/ip" || cfg.Endpoints[1].URL != "https://b.example/ip" {
		t.Fatalf("unexpected endpoints: %+v", cfg.Endpoints)
	}
}

func TestLoadConfig_RejectsBadInterval(t *testing.T) {
	clearAgentEnv(t)
	_, err := loadConfig(flag.NewFlagSet("nightgard-agent", flag.ContinueOnError),
		[]string{"-data-dir", t.TempDir(), "-interval", "soon"})
	if err == nil {
		t.Fatal("expected error for malformed interval")
	}
}

func TestHandleEvent_PersistsConfigChanges(t *testing.T) {
	store := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	next := ddns.Config{Domain: "home", Token: "tok", Interval: time.Minute}

	handleEvent(store, ddns.Event{Type: ddns.EventConfigChanged, Config: &next})

	got, err := settings.LoadConfig(store, ddns.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got != next {
		t.Fatalf("expected %+v, got %+v", next, got)
	}
}

func TestParseDotEnvLine(t *testing.T) {
	tests := []struct {
		line string
		key  string
		val  string
		ok   bool
	}{
		{"", "", "", false},
		{"# comment", "", "", false},
		{"NOVALUE", "", "", false},
		{"=x", "", "", false},
		{"A=1", "A", "1", true},
		{"export B = two ", "B", "two", true},
		{`C="quoted # kept"`, "C", "quoted # kept", true},
		{"D='single'", "D", "single", true},
		{"E=value # trailing", "E", "value", true},
	}
	for _, tt := range tests {
		key, val, ok := parseDotEnvLine(tt.line)
		if key != tt.key || val != tt.val || ok != tt.ok {
			t.Errorf("parseDotEnvLine(%q) = %q, %q, %v; want %q, %q, %v", tt.line, key, val, ok, tt.key, tt.val, tt.ok)
		}
	}
}

func TestLoadDotEnvFiles_ExplicitFileWins(t *testing.T) {
	const key = "NIGHTGARD_TEST_DOTENV"
	t.Setenv(key, "")
	os.Unsetenv(key)

	dir := t.TempDir()
	explicit := filepath.Join(dir, "explicit.env")
	writeFile(t, explicit, key+"=explicit\n")
	writeFile(t, filepath.Join(dir, ".env"), key+"=datadir\n")

	if err := loadDotEnvFiles(explicit, dir); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(key); got != "explicit" {
		t.Fatalf("expected explicit file to win, got %q", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
