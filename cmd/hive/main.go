package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prompted365/hive/internal/config"
	"github.com/prompted365/hive/internal/coord"
	"github.com/prompted365/hive/internal/event"
	"github.com/prompted365/hive/internal/natsbus"
	"github.com/prompted365/hive/internal/schedule"
	"github.com/prompted365/hive/internal/store"
	"github.com/prompted365/hive/internal/web"
	"github.com/prompted365/hive/internal/worker"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("hive %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: hive <command>\n\nCommands:\n  serve      Start the hive coordination service\n  version    Print version\n")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting hive", "version", version, "instance_id", cfg.InstanceID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Event bus, optionally bridged over NATS
	bus := event.New(cfg.InstanceID)

	var natsSrv *natsbus.Bus
	var natsClient *natsbus.Client
	switch {
	case cfg.NATS.URL != "":
		natsClient, err = natsbus.NewClientFromURL(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		slog.Info("nats connected", "url", cfg.NATS.URL)
	case cfg.NATS.Enabled:
		natsSrv, err = natsbus.New(cfg.NATS)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer natsSrv.Close()
		natsClient, err = natsbus.NewClient(natsSrv)
		if err != nil {
			return fmt.Errorf("connect embedded nats: %w", err)
		}
		slog.Info("nats started", "port", cfg.NATS.Port)
	}
	if natsClient != nil {
		defer natsClient.Close()
		if err := bus.AttachRemote(natsClient); err != nil {
			return fmt.Errorf("attach event bus to nats: %w", err)
		}
	}

	// Coordination core
	c := coord.New(bus)

	// Relay directed messages and broadcasts onto their scoped NATS
	// topics so external processors can listen without parsing the
	// full event stream.
	if natsClient != nil {
		bus.Subscribe(coord.EventAgentMessage, func(ev event.Event) {
			if to, ok := ev.Data["to"].(string); ok && to != "" {
				if err := natsClient.PublishJSON(natsbus.TopicAgentInbox(to), ev); err != nil {
					slog.Warn("agent inbox relay failed", "agent_id", to, "error", err)
				}
			}
		})
		bus.Subscribe(coord.EventSwarmBroadcast, func(ev event.Event) {
			if id, ok := ev.Data["swarm_id"].(string); ok && id != "" {
				if err := natsClient.PublishJSON(natsbus.TopicSwarm(id), ev); err != nil {
					slog.Warn("swarm topic relay failed", "swarm_id", id, "error", err)
				}
			}
		})
	}

	// Rehydrate state from the last run, then mirror changes back
	if err := db.Seed(c); err != nil {
		return fmt.Errorf("seed coordinator: %w", err)
	}
	mirror := store.NewMirror(db, c)
	mirror.Start(bus)
	defer mirror.Stop()

	// Worker pool
	pool := worker.NewPool(c)
	registerHandlers(pool)
	pool.Start(ctx, bus)
	defer pool.Stop()

	// Schedule runner
	runner := schedule.NewRunner(db, c, cfg.Schedule)
	go runner.Start(ctx)

	// Deadline watcher
	if cfg.Deadline.Enabled {
		watcher := schedule.NewDeadlineWatcher(c, cfg.Deadline)
		go watcher.Start(ctx)
		slog.Info("deadline watcher started", "poll_interval", cfg.Deadline.PollInterval)
	}

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(c, db, bus, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// SIGHUP reloads the config sections that apply live; anything
	// else shuts the instance down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			slog.Info("shutting down", "signal", sig)
			cancel()
			return nil
		}
		reloaded, err := config.Load()
		if err != nil {
			slog.Error("config reload failed", "error", err)
			continue
		}
		diff := config.DiffConfigs(cfg, reloaded)
		if !diff.HasChanges() {
			slog.Info("config reloaded, no changes")
			continue
		}
		if diff.ScheduleChanged {
			runner.UpdateConfig(diff.NewSchedule.PollInterval)
			cfg.Schedule = reloaded.Schedule
			slog.Info("schedule config applied", "poll_interval", diff.NewSchedule.PollInterval)
		}
		if diff.DeadlineChanged {
			cfg.Deadline = reloaded.Deadline
			slog.Warn("deadline config change takes effect on next restart")
		}
		if diff.RestartRequired {
			slog.Warn("config change requires restart to take effect")
		}
	}
	return nil
}
