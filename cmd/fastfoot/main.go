package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fastfoot/internal/app"
	"fastfoot/internal/config"
	"fastfoot/internal/logger"
)

func main() {
	mode := flag.String("mode", "", "server | kitchen-display")
	configPath := flag.String("config", "", "path to config.yaml (default: search the usual locations)")
	httpAddr := flag.String("http-addr", "", "override server.http_addr")
	terminalAddr := flag.String("terminal-addr", "", "override server.terminal_addr")
	displayName := flag.String("display-name", "kitchen-1", "kitchen-display: consumer name")
	flag.Parse()

	_ = godotenv.Load()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *configPath
	if path == "" {
		found, err := config.FindConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "no config.yaml found; pass --config")
			os.Exit(2)
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}
	if *terminalAddr != "" {
		cfg.Server.TerminalAddr = *terminalAddr
	}

	switch *mode {
	case "server":
		lg.Info("service_started", map[string]any{"service": "server", "config": path})
		if err := app.RunServer(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "kitchen-display":
		lg.Info("service_started", map[string]any{"service": "kitchen-display", "name": *displayName})
		if err := app.RunKitchenDisplay(ctx, cfg, *displayName); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: server | kitchen-display")
		os.Exit(2)
	}
}
