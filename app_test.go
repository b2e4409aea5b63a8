package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/config"
	"github.com/fluhartyml/NightGardDDNS/internal/database"
	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
	"github.com/fluhartyml/NightGardDDNS/internal/types"
)

func TestVersionFlag(t *testing.T) {
	out, err := exec.Command(nightgardBinary(t), "-version").CombinedOutput()
	if err != nil {
		t.Fatalf("-version failed: %v\n%s", err, out)
	}
	if got := strings.TrimSpace(string(out)); got != "nightgard version "+Version {
		t.Fatalf("unexpected version output %q", got)
	}
}

func TestSetuidRequiresSetgid(t *testing.T) {
	if _, err := os.Stat("/proc"); err != nil {
		t.Skip("setuid flags are unix only")
	}
	cmd := exec.Command(nightgardBinary(t), "-setuid", "1000")
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatal("expected failure without -setgid")
	}
	if !strings.Contains(string(out), "must be used together") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestDaemonServesPing(t *testing.T) {
	dir := t.TempDir()
	p := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := exec.CommandContext(ctx, nightgardBinary(t),
		"-ip", "127.0.0.1",
		"-port", fmt.Sprint(p),
		"-verbose",
		"-config", filepath.Join(dir, "app.yaml"),
		"-users", filepath.Join(dir, "user.yaml"),
	)
	cmd.Dir = dir
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	go func() {
		s := bufio.NewScanner(stderr)
		for s.Scan() {
			t.Log(s.Text())
		}
	}()
	defer func() {
		cancel()
		_ = cmd.Wait()
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/ping", p)
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("unexpected status %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon did not come up: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	for _, name := range []string{"app.yaml", "user.yaml", "nightgard.db"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be created: %v", name, err)
		}
	}
}

func TestApplyAppConfig_OnlyPushesChangedDDNS(t *testing.T) {
	prev := types.NightGardAppConfig
	t.Cleanup(func() { types.NightGardAppConfig = prev })

	base := config.DefaultAppConfig()
	base.DDNS.Domain = "home"
	base.DDNS.Token = "file-token"
	types.NightGardAppConfig = base

	db, err := database.Open(types.DatabaseConfig{Type: "sqlite-pure", Database: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	prevDB := database.DB
	database.DB = db
	database.InitLogService()
	t.Cleanup(func() {
		database.DB = prevDB
		database.InitLogService()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	agent := ddns.New(ddns.Config{Domain: "api-domain", Token: "api-token"})

	unrelated := *base
	unrelated.JWTExpiryDuration = 48
	applyAppConfig(agent, store, &unrelated)
	if agent.Config().Domain != "api-domain" {
		t.Fatalf("unrelated edit overwrote agent config: %+v", agent.Config())
	}

	changed := unrelated
	changed.DDNS.Domain = "cabin"
	changed.DDNS.IntervalSeconds = 120
	applyAppConfig(agent, store, &changed)

	got := agent.Config()
	if got.Domain != "cabin" || got.Token != "file-token" || got.Interval != 2*time.Minute {
		t.Fatalf("unexpected agent config after reload: %+v", got)
	}
	saved, err := settings.LoadConfig(store, ddns.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if saved != got {
		t.Fatalf("expected reloaded config persisted, got %+v", saved)
	}

	acts, total, err := database.GetLogService().GetUserActivities(database.ActivityFilter{
		Action: database.UserActionReloadConfig,
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(acts) != 1 || acts[0].Username != "system" || !acts[0].Success {
		t.Fatalf("expected one reload activity, got total=%d %+v", total, acts)
	}
}
