package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalifa4y/swppr/internal/address"
	"github.com/kalifa4y/swppr/internal/aggregator"
	"github.com/kalifa4y/swppr/internal/exchange"
	"github.com/kalifa4y/swppr/internal/flow"
	"github.com/kalifa4y/swppr/internal/infra"
	"github.com/kalifa4y/swppr/internal/infra/swapspace"
	"github.com/kalifa4y/swppr/internal/storage"
	"github.com/kalifa4y/swppr/internal/transport/httpapi"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config     *infra.Config
	History    *storage.HistoryStore
	Aggregator aggregator.Client
	Exchange   *exchange.Service
	Flow       *flow.Controller
	Server     *httpapi.Server
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize wires everything: config, logging, storage, the aggregator
// client and the HTTP surface.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping swppr...")

	// 1. Load config. A missing file means default mock-mode settings,
	// not a startup failure.
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = infra.DefaultConfig()
		slog.Info("No config file found, using defaults")
	}
	b.Config = cfg

	// Optional secret file, checked only when neither config nor
	// environment supplied a credential.
	if !cfg.LiveMode() {
		if secret, err := infra.LoadSecretConfig(filepath.Join("secrets", "swapspace.yaml")); err == nil {
			cfg.API.SwapSpace.APIKey = secret.API.SwapSpace.APIKey
		}
	}

	// 2. Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	infra.PrintBanner(cfg)

	// 3. Workspace directories
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data")
	exportDir := filepath.Join(workDir, "exports")
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(exportDir); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	// 4. History store (WAL sqlite)
	dbPath := filepath.Join(dataDir, "history.db")
	history, err := storage.NewHistoryStore(dbPath)
	if err != nil {
		return err
	}
	b.History = history
	slog.Info("✅ History store initialized (WAL-mode)", slog.String("path", dbPath))

	// 5. Aggregator client. No credential ⇒ the remote stays nil and
	// every call serves fallback data.
	var remote aggregator.Remote
	if cfg.LiveMode() {
		remote = swapspace.NewClient(cfg)
		slog.Info("✅ SwapSpace client ready", slog.String("base_url", cfg.API.SwapSpace.BaseURL))
	} else {
		slog.Info("No API credential, running on fallback data")
	}
	b.Aggregator = aggregator.New(remote, cfg)

	// 6. Services
	b.Exchange = exchange.NewService(
		b.Aggregator,
		history,
		address.NewValidator(),
		storage.NewExportManager(exportDir),
	)
	b.Flow = flow.NewController()
	b.Server = httpapi.NewServer(cfg, b.Aggregator, b.Exchange, b.Flow)

	// Default swap pair, so the home screen shows an estimate right away.
	b.Server.SeedInputs("BTC", "ETH", 0.1)

	slog.Info("✅ Services wired", slog.String("listen_addr", cfg.Server.ListenAddr))
	return nil
}

// Shutdown releases everything Initialize acquired.
func (b *Bootstrap) Shutdown() {
	if b.Aggregator != nil {
		b.Aggregator.Close()
	}
	if b.History != nil {
		if err := b.History.Close(); err != nil {
			slog.Warn("History store close failed", slog.Any("error", err))
		}
	}
}
