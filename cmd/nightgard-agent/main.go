package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
)

func main() {
	cfg, err := loadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("nightgard-agent: %v", err)
	}
	if !cfg.DDNS.Ready() {
		log.Fatalf("NIGHTGARD_DOMAIN/NIGHTGARD_TOKEN must be set (or present in %s)", cfg.store.Path())
	}

	agent := newAgent(cfg)
	if err := settings.SaveConfig(cfg.store, agent.Config()); err != nil {
		log.Printf("nightgard-agent: failed to save settings: %v", err)
	}
	agent.Subscribe(func(ev ddns.Event) { handleEvent(cfg.store, ev) })

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Once {
		status := agent.PerformUpdate(ctx)
		if status != ddns.StatusSuccess && status != ddns.StatusNoChange {
			cancel()
			os.Exit(1)
		}
		return
	}

	log.Printf("nightgard-agent started for %s interval=%s dataDir=%s", cfg.DDNS.Domain, agent.Config().Interval, cfg.DataDir)
	agent.Start()
	<-ctx.Done()
	agent.Stop()
	log.Printf("nightgard-agent stopped")
}

type runtimeConfig struct {
	DDNS      ddns.Config
	DataDir   string
	UpdateURL string
	Endpoints []ddns.Endpoint
	Timeout   time.Duration
	Once      bool

	store *settings.FileStore
}

func loadConfig(fs *flag.FlagSet, args []string) (runtimeConfig, error) {
	defaultDir := defaultDataDir()

	var (
		flagDomain    = fs.String("domain", "", "DuckDNS subdomain, with or without .duckdns.org")
		flagToken     = fs.String("token", "", "DuckDNS account token")
		flagInterval  = fs.String("interval", "", "Update interval in seconds or as a duration, e.g. 300 or 5m")
		flagDataDir   = fs.String("data-dir", "", "Directory holding settings.json and .env (default: ~/.nightgard-agent)")
		flagEnvFile   = fs.String("env-file", "", "Load env vars from a .env file (optional)")
		flagUpdateURL = fs.String("update-url", "", "Provider update endpoint (default: "+ddns.DefaultUpdateURL+")")
		flagEndpoints = fs.String("endpoints", "", "Comma-separated echo endpoints tried in order (optional)")
		flagTimeout   = fs.Duration("timeout", 10*time.Second, "Per-request HTTP timeout")
		flagOnce      = fs.Bool("once", false, "Run a single update and exit")
	)
	if err := fs.Parse(args); err != nil {
		return runtimeConfig{}, err
	}

	dataDir := firstNonEmpty(*flagDataDir, os.Getenv("NIGHTGARD_DATA_DIR"))
	if dataDir == "" {
		dataDir = defaultDir
	}
	if err := loadDotEnvFiles(*flagEnvFile, dataDir); err != nil {
		log.Printf("nightgard-agent: failed to load .env: %v", err)
	}

	store := settings.NewFileStore(filepath.Join(dataDir, "settings.json"))
	base, err := settings.LoadConfig(store, ddns.Config{})
	if err != nil {
		log.Printf("nightgard-agent: ignoring unreadable %s: %v", store.Path(), err)
	}

	cfg := base
	if v := firstNonEmpty(*flagDomain, os.Getenv("NIGHTGARD_DOMAIN")); v != "" {
		cfg.Domain = strings.TrimSuffix(strings.TrimSpace(v), ".duckdns.org")
	}
	if v := firstNonEmpty(*flagToken, os.Getenv("NIGHTGARD_TOKEN")); v != "" {
		cfg.Token = v
	}
	if v := firstNonEmpty(*flagInterval, os.Getenv("NIGHTGARD_INTERVAL")); v != "" {
		d, err := settings.ParseInterval(v)
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("invalid interval %q: %w", v, err)
		}
		cfg.Interval = d
	}

	var endpoints []ddns.Endpoint
	if raw := firstNonEmpty(*flagEndpoints, os.Getenv("NIGHTGARD_ENDPOINTS")); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				endpoints = append(endpoints, ddns.Endpoint{URL: u})
			}
		}
	}

	return runtimeConfig{
		DDNS:      cfg,
		DataDir:   dataDir,
		UpdateURL: firstNonEmpty(*flagUpdateURL, os.Getenv("NIGHTGARD_UPDATE_URL")),
		Endpoints: endpoints,
		Timeout:   *flagTimeout,
		Once:      *flagOnce,
		store:     store,
	}, nil
}

func newAgent(cfg runtimeConfig) *ddns.Agent {
	opts := []ddns.Option{
		ddns.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		ddns.WithUpdateURL(cfg.UpdateURL),
	}
	if len(cfg.Endpoints) > 0 {
		opts = append(opts, ddns.WithEndpoints(cfg.Endpoints...))
	}
	return ddns.New(cfg.DDNS, opts...)
}

// handleEvent logs cycle outcomes and persists configuration changes.
func handleEvent(store settings.Store, ev ddns.Event) {
	switch ev.Type {
	case ddns.EventCycleCompleted:
		if ev.Cycle == nil {
			return
		}
		c := ev.Cycle
		if c.Error != "" {
			log.Printf("nightgard-agent: %s for %s (%s): %s", c.Status, c.Domain, c.ErrorCode, c.Error)
			return
		}
		log.Printf("nightgard-agent: %s for %s address=%s took=%s", c.Status, c.Domain, c.Address, c.Duration.Round(time.Millisecond))
	case ddns.EventConfigChanged:
		if ev.Config == nil {
			return
		}
		if err := settings.SaveConfig(store, *ev.Config); err != nil {
			log.Printf("nightgard-agent: failed to save settings: %v", err)
		}
	case ddns.EventStateChanged:
		if ev.State.Status == ddns.StatusStopped {
			log.Printf("nightgard-agent: scheduler stopped")
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".nightgard-agent")
	}
	return "./agent_data"
}
