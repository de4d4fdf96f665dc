package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokensale/config"
	"tokensale/gateway"
	"tokensale/gateway/middleware"
	"tokensale/gateway/routes"
	"tokensale/native/ledger"
	"tokensale/native/sale"
	"tokensale/observability"
	"tokensale/observability/logging"
	"tokensale/observability/metrics"
	"tokensale/storage"
)

func main() {
	configFile := flag.String("config", "./saled.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.SetupWithOptions("saled", cfg.Env, logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("saled exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	kv := storage.NewManager(db)

	assetLedger, err := ledger.NewLedger(kv, cfg.Sale.AssetSymbol)
	if err != nil {
		return err
	}
	bank, err := ledger.NewBank(kv)
	if err != nil {
		return err
	}

	admin, err := cfg.AdministratorAddress()
	if err != nil {
		return err
	}
	treasury, err := cfg.TreasuryAddress()
	if err != nil {
		return err
	}
	engineAccount, err := cfg.EngineAddress()
	if err != nil {
		return err
	}

	engine, err := sale.NewEngine(sale.Config{
		Administrator: admin,
		Treasury:      treasury,
		EngineAccount: engineAccount,
		UnitSize:      cfg.Sale.UnitSize,
		PricePerUnit:  cfg.Sale.PricePerUnit,
	}, assetLedger, bank)
	if err != nil {
		return err
	}
	engine.SetLogger(logger)
	if err := engine.AttachStateStore(sale.NewStateStore(kv)); err != nil {
		return err
	}
	receipts := sale.NewReceiptLedger(kv)
	engine.SetReceipts(receipts)
	engine.SetEmitter(observability.NewEventBridge(logger))
	metrics.Sale().SetPaused(engine.Snapshot().Paused)

	if cfg.Sale.InitialInventory > 0 {
		balance, err := assetLedger.BalanceOf(engineAccount)
		if err != nil {
			return err
		}
		if balance == 0 {
			if err := assetLedger.Mint(engineAccount, cfg.Sale.InitialInventory); err != nil {
				return fmt.Errorf("fund inventory: %w", err)
			}
			logger.Info("sale inventory funded",
				slog.String("account", engineAccount.Hex()),
				slog.Uint64("amount", cfg.Sale.InitialInventory))
		}
	}

	secret, err := cfg.AuthSecret()
	if err != nil {
		return err
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: secret, Issuer: "saled"})
	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})

	api := routes.NewSaleAPI(engine, receipts, nil, logger)
	server := gateway.NewServer(cfg.ListenAddress, api.Router(auth, limiter), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
		return <-errCh
	}
}
