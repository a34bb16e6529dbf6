package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/NicolasHaas/roomchat/pkg/logging"
	"github.com/NicolasHaas/roomchat/pkg/server"
	"github.com/NicolasHaas/roomchat/pkg/store"
	"github.com/NicolasHaas/roomchat/pkg/version"
)

func main() {
	def := server.DefaultConfig()
	flags := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (values are overridden by CHAT_* env vars and flags)")
	flag.StringVar(&flags.ListenAddr, "listen", def.ListenAddr, "TCP bind address")
	flag.StringVar(&flags.DBPath, "db", def.DBPath, "SQLite database file path")
	flag.IntVar(&flags.MaxClients, "max-clients", def.MaxClients, "Maximum number of concurrent clients")
	flag.IntVar(&flags.BufferSize, "buffer-size", def.BufferSize, "Per-connection receive capacity in bytes")
	flag.StringVar(&flags.RoomsFile, "rooms-file", "", "YAML file defining rooms to create on startup")
	flag.StringVar(&flags.MetricsAddr, "metrics", "", "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.DurationVar(&flags.MetricsInterval, "metrics-interval", def.MetricsInterval, "Interval of the metrics log summary (0 to disable)")
	flag.BoolVar(&flags.ExportUsers, "export-users", false, "Export all users as YAML and exit")
	flag.BoolVar(&flags.ExportRooms, "export-rooms", false, "Export all rooms as YAML and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	// Configure structured logging
	if _, err := logging.Setup(logging.Options{
		Level:     *logLevel,
		Format:    *logFormat,
		Output:    os.Stdout,
		Component: "server",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile, flags)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	// Handle export commands (run and exit)
	if cfg.ExportUsers || cfg.ExportRooms {
		code := export(cfg, st)
		_ = st.Close()
		os.Exit(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting chat server", "version", version.String(), "db", cfg.DBPath)
	srv := server.New(cfg, server.Dependencies{Store: st})
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, .env, CHAT_* variables and
// explicitly set flags, in that order.
func loadConfig(path string, flags server.Config) (server.Config, error) {
	cfg := server.DefaultConfig()
	if path != "" {
		if err := server.LoadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := server.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = flags.ListenAddr
		case "db":
			cfg.DBPath = flags.DBPath
		case "max-clients":
			cfg.MaxClients = flags.MaxClients
		case "buffer-size":
			cfg.BufferSize = flags.BufferSize
		case "rooms-file":
			cfg.RoomsFile = flags.RoomsFile
		case "metrics":
			cfg.MetricsAddr = flags.MetricsAddr
		case "metrics-interval":
			cfg.MetricsInterval = flags.MetricsInterval
		}
	})
	cfg.ExportUsers = flags.ExportUsers
	cfg.ExportRooms = flags.ExportRooms
	return cfg, nil
}

func export(cfg server.Config, st store.Gateway) int {
	if cfg.ExportUsers {
		data, err := server.ExportUsersYAML(st)
		if err != nil {
			slog.Error("export users", "err", err)
			return 1
		}
		fmt.Print(string(data))
	}
	if cfg.ExportRooms {
		data, err := server.ExportRoomsYAML(st)
		if err != nil {
			slog.Error("export rooms", "err", err)
			return 1
		}
		fmt.Print(string(data))
	}
	return 0
}
