package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fluhartyml/NightGardDDNS/internal/client"
	"github.com/fluhartyml/NightGardDDNS/internal/config"
	"github.com/fluhartyml/NightGardDDNS/internal/database"
	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/pidfile"
	"github.com/fluhartyml/NightGardDDNS/internal/router"
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
	"github.com/fluhartyml/NightGardDDNS/internal/stream"
	"github.com/fluhartyml/NightGardDDNS/internal/types"
	"github.com/gin-gonic/gin"
)

var (
	ip                 = flag.String("ip", "0.0.0.0", "ip the API should listen on")
	port               = flag.Int("port", 9000, "port the API should listen on (app.yaml wins unless this flag is given)")
	verbose            = flag.Bool("verbose", false, "show verbose output")
	logPath            = flag.String("logfile", "", "send log output to a file; implicitly enables verbose logging")
	debug              = flag.Bool("debug", false, "show debug output")
	ginDebug           = flag.Bool("gin-debug", false, "show gin debug output")
	hotReload          = flag.Bool("hotreload", false, "watch app.yaml for changes and apply them automatically")
	secure             = flag.Bool("secure", false, "use HTTPS instead of HTTP")
	cert               = flag.String("cert", "cert.pem", "path to the HTTPS certificate pem file")
	key                = flag.String("key", "key.pem", "path to the HTTPS certificate private key pem file")
	justDisplayVersion = flag.Bool("version", false, "display nightgard version and quit")
	justListCiphers    = flag.Bool("list-cipher-suites", false, "list available TLS cipher suites")
	tlsMinVersion      = flag.String("tls-min-version", "1.2", "minimum TLS version (1.2, 1.3)")
	tlsCipherSuites    = flag.String("cipher-suites", "", "comma-separated list of supported TLS cipher suites")
	pidPath            = flag.String("pidfile", "", "create PID file at the given path")
	appFile            = flag.String("config", "app.yaml", "path to the app config file")
	usersFile          = flag.String("users", "user.yaml", "path to the user config file")

	setUID = 0
	setGID = 0
	socket = ""
	addr   = ""
)

func main() {
	platformFlags()
	flag.Parse()

	if *justDisplayVersion {
		fmt.Println("nightgard version " + Version)
		os.Exit(0)
	}

	if *justListCiphers {
		if err := writeTLSSupportedCipherStrings(os.Stdout, getTLSMinVersion(*tlsMinVersion)); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if (setUID != 0 || setGID != 0) && (setUID == 0 || setGID == 0) {
		fmt.Println("error: setuid and setgid options must be used together")
		os.Exit(1)
	}

	if *debug || *logPath != "" {
		*verbose = true
	}

	// Messages are queued until privileges are dropped and the log file is open.
	var logQueue []string

	if *ginDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	config.AppFile = *appFile
	client.UsersFile = *usersFile
	if err := config.LoadAppConfig(); err != nil {
		logQueue = append(logQueue, fmt.Sprintf("error loading %s: %v", *appFile, err))
		types.NightGardAppConfig = config.DefaultAppConfig()
	}
	if err := client.LoadUsersConfig(); err != nil {
		logQueue = append(logQueue, fmt.Sprintf("error loading %s: %v", *usersFile, err))
	}
	appConfig := config.GetAppConfig()

	finalPort := appConfig.Port
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "port" {
			finalPort = *port
		}
	})
	addr = fmt.Sprintf("%s:%d", *ip, finalPort)

	ln, err := trySocketListener()
	if err != nil {
		logQueue = append(logQueue, fmt.Sprintf("error listening on socket: %s", err))
	} else if ln == nil {
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			logQueue = append(logQueue, fmt.Sprintf("error listening on port: %s", err))
		}
	}

	if setUID != 0 {
		if err := dropPrivileges(setUID, setGID); err != nil {
			logQueue = append(logQueue, fmt.Sprintf("error dropping privileges: %s", err))
		}
	}

	if *logPath != "" {
		file, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logQueue = append(logQueue, fmt.Sprintf("error opening log file %q: %v", *logPath, err))
		} else {
			log.SetOutput(file)
		}
	}

	log.SetPrefix("[NightGard] ")
	log.SetFlags(log.Ldate | log.Ltime)

	if len(logQueue) != 0 {
		for i := range logQueue {
			log.Println(logQueue[i])
		}
		os.Exit(1)
	}

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	if *pidPath != "" {
		pidFile, err := pidfile.New(*pidPath)
		if err != nil {
			log.SetOutput(os.Stderr)
			log.Fatalf("Error creating pidfile: %v", err)
		}
		defer func() {
			if err := pidFile.Remove(); err != nil {
				log.Print(err)
			}
		}()
	}

	log.Println("version " + Version + " starting")

	ctx, cancel := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer cancel()

	if err := database.InitDatabase(appConfig.Database); err != nil {
		log.Printf("Failed to initialize database: %v", err)
		if err := database.InitDatabase(database.DefaultDatabaseConfig()); err != nil {
			log.SetOutput(os.Stderr)
			log.Fatalf("Failed to initialize database with default config: %v", err)
		}
	}
	defer database.CloseDB()
	if err := database.AutoMigrate(); err != nil {
		log.Printf("Failed to migrate database: %v", err)
	}
	database.InitLogService()
	database.ScheduleLogCleanup(ctx, appConfig.Database.LogRetentionDays)

	store := database.NewSettingsStore(database.GetDB())
	agent := newAgent(appConfig, store)

	agent.Subscribe(func(ev ddns.Event) {
		if ev.Type == ddns.EventCycleCompleted && ev.Cycle != nil {
			database.LogUpdateCycle(*ev.Cycle)
		}
		stream.Global.Publish(ev)
	})

	reload := make(chan os.Signal, 1)
	notifyReload(reload)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reload:
				cfg, err := config.ReadAppConfig(config.AppFile)
				if err != nil {
					log.Printf("reload of %s failed: %v", config.AppFile, err)
					continue
				}
				applyAppConfig(agent, store, cfg)
			}
		}
	}()

	if *hotReload {
		go func() {
			err := config.Watch(ctx, config.AppFile, func(cfg *types.AppConfig) {
				applyAppConfig(agent, store, cfg)
			})
			if err != nil {
				log.Printf("error watching %s: %v", config.AppFile, err)
			}
		}()
	}

	if appConfig.DDNS.AutoStart {
		if agent.Config().Ready() {
			agent.Start()
		} else {
			log.Printf("ddns: autostart skipped, domain and token are not configured")
		}
	}

	r := router.InitRouter(router.Options{
		Agent:    agent,
		Settings: store,
		Logs:     database.GetLogService(),
		Stream:   stream.Global,
		Version:  Version,
	})

	svr := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var serving atomic.Bool
	serveErr := make(chan error, 1)
	go func() {
		serving.Store(true)
		defer serving.Store(false)
		if !*secure {
			log.Printf("serving API on http://%s", addr)
			serveErr <- svr.Serve(ln)
			return
		}
		tc, err := tlsConfig()
		if err != nil {
			serveErr <- err
			return
		}
		svr.TLSConfig = tc
		log.Printf("serving API on https://%s", addr)
		serveErr <- svr.ServeTLS(ln, *cert, *key)
	}()

	sdNotify(daemon.SdNotifyReady)
	go runWatchdog(ctx, serving.Load)

	select {
	case <-ctx.Done():
		log.Println("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	}

	sdNotify(daemon.SdNotifyStopping)
	agent.Stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := svr.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// newAgent builds the agent from the persisted settings, seeding them from
// app.yaml on first run.
func newAgent(appConfig *types.AppConfig, store settings.Store) *ddns.Agent {
	bootstrap := config.AgentConfig(appConfig.DDNS)
	cfg, err := settings.LoadConfig(store, bootstrap)
	if err != nil {
		log.Printf("Failed to load ddns settings, using %s: %v", config.AppFile, err)
	}
	if _, err := store.Load(); errors.Is(err, settings.ErrNotFound) && cfg.Ready() {
		if err := settings.SaveConfig(store, cfg); err != nil {
			log.Printf("Failed to seed ddns settings: %v", err)
		}
	}

	return ddns.New(cfg,
		ddns.WithHTTPClient(&http.Client{Timeout: appConfig.DDNS.Timeout()}),
		ddns.WithEndpoints(config.Endpoints(appConfig.DDNS)...),
		ddns.WithUpdateURL(appConfig.DDNS.UpdateURL),
	)
}

// applyAppConfig installs a reloaded app.yaml. Agent settings are only pushed
// when the file's ddns section itself changed, so API edits are not undone by
// unrelated file edits.
func applyAppConfig(agent *ddns.Agent, store settings.Store, next *types.AppConfig) {
	prev := config.GetAppConfig()
	types.NightGardAppConfig = next

	if prev != nil && config.AgentConfig(prev.DDNS) == config.AgentConfig(next.DDNS) {
		return
	}
	cfg := agent.Config()
	if next.DDNS.Domain != "" {
		cfg.Domain = next.DDNS.Domain
	}
	if next.DDNS.Token != "" {
		cfg.Token = next.DDNS.Token
	}
	if next.DDNS.IntervalSeconds > 0 {
		cfg.Interval = next.DDNS.Interval()
	}
	if err := settings.SaveConfig(store, cfg); err != nil {
		log.Printf("Failed to persist reloaded ddns settings: %v", err)
	}
	agent.SetConfig(cfg)
	database.LogUserAction("system", database.UserActionReloadConfig, "app_config",
		"ddns settings reloaded from "+config.AppFile, "", "", true, nil)
}
