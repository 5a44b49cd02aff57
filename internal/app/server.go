package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"fastfoot/internal/config"
	"fastfoot/internal/connections/database"
	"fastfoot/internal/connections/rabbitmq"
	"fastfoot/internal/connections/redisdb"
	"fastfoot/internal/domain"
	"fastfoot/internal/fanout"
	"fastfoot/internal/gateway"
	"fastfoot/internal/httpapi"
	"fastfoot/internal/kitchen"
	"fastfoot/internal/logger"
	"fastfoot/internal/menu"
	"fastfoot/internal/pos"
	"fastfoot/internal/registry"
	"fastfoot/internal/repository"
	"fastfoot/internal/settle"
	"fastfoot/internal/snapshot"
	"fastfoot/internal/terminal"
	"fastfoot/internal/till"
	"fastfoot/internal/webhook"
)

const version = "1.0.0"

// RunServer wires the whole order-state core and blocks until ctx ends.
func RunServer(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("fastfoot-server")

	db, err := database.Connect(ctx, database.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port,
		User: cfg.Database.User, Password: cfg.Database.Pass, Name: cfg.Database.Name,
	})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	if err := repository.InitSchema(ctx, db); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	mq, err := rabbitmq.Dial(rabbitmq.Config{
		Host: cfg.RabbitMQ.Host, Port: cfg.RabbitMQ.Port,
		User: cfg.RabbitMQ.User, Password: cfg.RabbitMQ.Pass, VHost: cfg.RabbitMQ.VHost,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer mq.Close()
	if err := mq.DeclareAll(); err != nil {
		return fmt.Errorf("rabbitmq topology: %w", err)
	}

	hub := fanout.NewHub(lg)
	reg := registry.New(hub)
	if err := reg.CreateSlots(cfg.SlotNames()); err != nil {
		return fmt.Errorf("floor plan: %w", err)
	}

	menuData := loadMenu(ctx, cfg, db, lg)

	store, err := snapshotStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	if state, err := store.Load(ctx); err != nil {
		lg.Error("snapshot_restore_failed", err, nil)
	} else if state != nil {
		dropped := reg.Restore(state)
		lg.Info("state_restored", map[string]any{"slots": len(state), "dropped": dropped})
	}

	ledger := till.NewLedger(repository.NewShiftsRepository(db), hub)
	if err := ledger.Restore(ctx); err != nil {
		return fmt.Errorf("restore open shifts: %w", err)
	}

	var charger settle.CardCharger
	if cfg.POS.Enabled {
		client, err := pos.NewClient(cfg.POS.Addr, cfg.POS.Protocol, lg)
		if err != nil {
			return fmt.Errorf("pos terminal: %w", err)
		}
		charger = client
	}
	accounts := repository.NewAccountsRepository(db)
	sales := repository.NewSalesRepository(db)
	finalizer := settle.NewFinalizer(
		reg,
		sales,
		accounts,
		ledger,
		charger,
		hub,
		lg,
	)

	tracker := kitchen.NewTracker(reg, hub)

	var forward terminal.Forwarder
	if cfg.Server.KitchenDisplayAddr != "" {
		forward = kitchen.NewForwarder(cfg.Server.KitchenDisplayAddr, lg)
	}
	listener := terminal.NewListener(reg, forward, lg)
	go func() {
		if err := listener.Run(ctx, cfg.Server.TerminalAddr); err != nil {
			lg.Error("terminal_listener_failed", err, nil)
		}
	}()

	bridge := fanout.NewBridge(mq, lg)
	go bridge.Run(ctx, hub.Subscribe("amqp-bridge"))

	runner := snapshot.NewRunner(store, reg, hub, cfg.Snapshot.Interval(), lg)
	go runner.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 15 * time.Second
	httpapi.New(reg, ledger, accounts, sales, menuData, version, lg).Register(e)
	webhook.NewHandler(reg, hub, lg).Register(e)
	gw := gateway.New(reg, hub, tracker, ledger, finalizer, menuData, lg)
	e.GET("/ws", gw.Handle)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Server.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	lg.Info("server_started", map[string]any{
		"http_addr":     cfg.Server.HTTPAddr,
		"terminal_addr": cfg.Server.TerminalAddr,
		"slots":         len(cfg.SlotNames()),
	})

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown_failed", err, nil)
	}
	lg.Info("server_stopped", nil)
	return nil
}

// RunKitchenDisplay consumes the broadcast queue and renders order cards
// to stdout, the modern replacement for the legacy TCP display.
func RunKitchenDisplay(ctx context.Context, cfg *config.Config, name string) error {
	lg := logger.New("kitchen-display")
	mq, err := rabbitmq.Dial(rabbitmq.Config{
		Host: cfg.RabbitMQ.Host, Port: cfg.RabbitMQ.Port,
		User: cfg.RabbitMQ.User, Password: cfg.RabbitMQ.Pass, VHost: cfg.RabbitMQ.VHost,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer mq.Close()
	if err := mq.DeclareAll(); err != nil {
		return fmt.Errorf("rabbitmq topology: %w", err)
	}
	return kitchen.RunDisplay(ctx, mq, name, lg)
}

// loadMenu prefers the database copy, refreshed from the menu file when
// the file is present. A broken database menu falls back to the file so
// the floor can keep selling.
func loadMenu(ctx context.Context, cfg *config.Config, db *database.Conn, lg *logger.Logger) domain.Menu {
	repo := repository.NewMenuRepository(db)
	if n, err := repo.SyncFromFile(ctx, cfg.Server.MenuFile); err != nil {
		lg.Warn("menu_sync_failed", err, map[string]any{"path": cfg.Server.MenuFile})
	} else {
		lg.Info("menu_synced", map[string]any{"items": n})
	}
	if m, err := repo.ByCategory(ctx); err == nil && len(m) > 0 {
		return m
	}
	m, err := menu.LoadFile(cfg.Server.MenuFile)
	if err != nil {
		lg.Warn("menu_load_failed", err, map[string]any{"path": cfg.Server.MenuFile})
	}
	return m
}

func snapshotStore(ctx context.Context, cfg *config.Config) (snapshot.Store, error) {
	switch cfg.Snapshot.Backend {
	case "redis":
		client, err := redisdb.Connect(ctx, redisdb.Config{
			Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return snapshot.NewRedisStore(client, cfg.Snapshot.Key), nil
	default:
		return snapshot.NewFileStore(cfg.Snapshot.Path), nil
	}
}
