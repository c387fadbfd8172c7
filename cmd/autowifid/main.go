package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/config"
	"github.com/hwaldner/autowifi/pkg/decision"
	"github.com/hwaldner/autowifi/pkg/logx"
	"github.com/hwaldner/autowifi/pkg/metrics"
	"github.com/hwaldner/autowifi/pkg/mqtt"
	"github.com/hwaldner/autowifi/pkg/nmcli"
	"github.com/hwaldner/autowifi/pkg/pidfile"
	"github.com/hwaldner/autowifi/pkg/telem"
)

var (
	configPath = flag.String("config", "/etc/autowifi/config.yaml", "Path to configuration file")
	pidPath    = flag.String("pid-file", "/run/autowifid.pid", "Path to PID file")
	logLevel   = flag.String("log-level", "", "Override log level (trace|debug|info|warn|error)")
	forceAP    = flag.Bool("force-ap", false, "Activate the access point immediately and exit")
	daemon     = flag.Bool("daemon", false, "Run cycles in a loop instead of once")
	interval   = flag.Duration("interval", 2*time.Minute, "Cycle interval in daemon mode")
	dryRun     = flag.Bool("dry-run", false, "Log intended changes without applying them")
	force      = flag.Bool("force", false, "Remove a stale PID file before starting")
	version    = flag.Bool("version", false, "Show version information")

	heartbeatPath = flag.String("heartbeat-file", "/tmp/autowifid.health", "Path to heartbeat file (empty disables)")
)

const (
	AppName    = "autowifid"
	AppVersion = "1.2.0"
)

// HeartbeatData is written after every cycle for external watchdogs.
type HeartbeatData struct {
	Timestamp     string   `json:"ts"`
	Version       string   `json:"version"`
	Decision      string   `json:"decision"`
	Success       bool     `json:"success"`
	ActiveProfile string   `json:"active_profile,omitempty"`
	Mode          pkg.Mode `json:"mode,omitempty"`
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		os.Exit(0)
	}

	effectiveLogLevel := "info"
	if *logLevel != "" {
		effectiveLogLevel = *logLevel
	}
	logger := logx.NewLogger(effectiveLogLevel, AppName)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}
	if *logLevel == "" && cfg.LogLevel != "" {
		logger.SetLevel(cfg.LogLevel)
	}

	if err := nmcli.Available(); err != nil {
		logger.Error("NetworkManager client not available", "error", err)
		os.Exit(1)
	}

	// Nothing else serializes invocations; without this lock two timer
	// firings could race on AP delete/create.
	pidFile := pidfile.New(*pidPath)
	running, existingPID, err := pidFile.CheckRunning()
	if err != nil {
		logger.Error("Failed to check for running instance", "error", err)
		os.Exit(1)
	}
	if running {
		if *force {
			logger.Warn("Another instance is running, force flag overrides", "existing_pid", existingPID)
			if err := pidFile.ForceRemove(); err != nil {
				logger.Error("Failed to remove existing PID file", "error", err)
				os.Exit(1)
			}
		} else {
			// Exit 0 so a timer unit does not record overlapping
			// firings as failures.
			logger.Warn("Another instance is already running, skipping this run",
				"existing_pid", existingPID, "pid_file", *pidPath)
			os.Exit(0)
		}
	}
	if err := pidFile.Create(); err != nil {
		logger.Error("Failed to create PID file", "error", err, "path", *pidPath)
		os.Exit(1)
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Error("Failed to remove PID file", "error", err)
		}
	}()

	logger.Info("Starting", "version", AppVersion, "pid", os.Getpid(),
		"iface", cfg.Interface, "ap_ssid", cfg.APSSID, "dry_run", *dryRun)

	nm := nmcli.New(logger.WithComponent("nmcli"), cfg.ConnectTimeout())
	nm.SetDryRun(*dryRun)

	engine := decision.NewEngine(cfg, nm, logger.WithComponent("decision"))

	if cfg.History.Enabled {
		history, err := telem.NewStore(cfg.History.Path, cfg.History.RetentionHours,
			logger.WithComponent("telem"))
		if err != nil {
			// History is operability sugar, never worth failing a cycle.
			logger.Warn("Cycle history unavailable", "error", err)
		} else {
			defer history.Close()
			engine.SetHistory(history)
		}
	}

	promMetrics := metrics.New()
	engine.SetObserver(promMetrics)
	if cfg.Metrics.Enabled && *daemon {
		server := metrics.NewServer(promMetrics, logger.WithComponent("metrics"))
		if err := server.Start(cfg.Metrics.Port); err != nil {
			logger.Error("Failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer server.Stop()
	}

	if cfg.MQTT.Enabled {
		publisher := mqtt.NewClient(&cfg.MQTT, logger.WithComponent("mqtt"))
		if err := publisher.Connect(); err != nil {
			logger.Warn("MQTT broker unavailable, publishing disabled", "error", err)
		} else {
			defer publisher.Disconnect()
			engine.SetPublisher(publisher)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *forceAP {
		rec, err := engine.ForceAP(ctx)
		writeHeartbeat(logger, rec)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	if !*daemon {
		rec, err := engine.RunCycle(ctx)
		writeHeartbeat(logger, rec)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	runDaemon(ctx, engine, logger)
}

// runDaemon runs cycles on a fixed interval until interrupted. A terminal
// cycle error is logged but the loop keeps going; the next cycle gets a
// fresh look at the system.
func runDaemon(ctx context.Context, engine *decision.Engine, logger *logx.Logger) {
	logger.Info("Running in daemon mode", "interval", interval.String())

	cycle := func() {
		rec, err := engine.RunCycle(ctx)
		writeHeartbeat(logger, rec)
		if err != nil {
			logger.Error("Cycle ended with error", "error", err)
		}
	}
	cycle()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return
		case <-ticker.C:
			cycle()
		}
	}
}

func writeHeartbeat(logger *logx.Logger, rec *pkg.CycleRecord) {
	if *heartbeatPath == "" || rec == nil {
		return
	}
	hb := HeartbeatData{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       AppVersion,
		Decision:      string(rec.Decision),
		Success:       rec.Success,
		ActiveProfile: rec.ActiveProfile,
		Mode:          rec.Mode,
	}
	data, err := json.Marshal(hb)
	if err != nil {
		return
	}
	if err := os.WriteFile(*heartbeatPath, append(data, '\n'), 0o644); err != nil {
		logger.Warn("Failed to write heartbeat file", "path", *heartbeatPath, "error", err)
	}
}
