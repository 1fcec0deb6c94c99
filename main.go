package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cryptotrader/config"
	"cryptotrader/internal/audit"
	"cryptotrader/internal/chain"
	"cryptotrader/internal/exchange"
	"cryptotrader/internal/tools"
	"cryptotrader/internal/trade"
	"cryptotrader/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	}).Info("starting cryptotrader")

	logger.InitCloudWatch(cfg.Storage.S3.Region, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := exchange.NewSession(cfg)
	if err := session.SyncClock(ctx); err != nil {
		// The session falls back to a zero offset; signed requests may
		// still succeed within the recv window.
		log.WithError(err).Warn("initial clock sync failed")
	}

	executor := trade.NewExecutor(session, cfg, nil)

	var chainReader tools.ChainReader
	if cfg.Chain.Enabled {
		reader, err := chain.NewStatusReader(cfg.Chain)
		if err != nil {
			log.WithError(err).Error("failed to create chain status reader")
			os.Exit(1)
		}
		chainReader = reader
	} else {
		log.WithComponent("main").Info("chain status surface disabled")
	}

	var auditWriter *audit.Writer
	var recorder tools.Recorder
	if cfg.Storage.S3.Enabled {
		auditWriter, err = audit.NewWriter(cfg.Storage.S3)
		if err != nil {
			log.WithError(err).Error("failed to create audit writer")
			os.Exit(1)
		}
		auditWriter.Start(ctx)
		recorder = auditWriter
	} else {
		log.WithComponent("main").Info("S3 audit storage disabled")
	}

	server := tools.NewServer(cfg.Server, cfg.Trading, cfg.Retry, session, executor, chainReader, recorder, log)
	if server == nil {
		log.WithComponent("main").Error("tool server is disabled; nothing to serve")
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		log.Info("starting graceful shutdown")
		cancel()
		if err := <-serverErr; err != nil {
			log.WithError(err).Error("tool server failed during shutdown")
		}
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("tool server failed")
		}
		cancel()
	}

	if auditWriter != nil {
		log.Info("stopping audit writer")
		auditWriter.Stop()
	}

	log.Info("cryptotrader stopped")
}
