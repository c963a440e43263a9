package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"shoplist/internal/amqp"
	"shoplist/internal/cli"
	"shoplist/internal/config"
	"shoplist/internal/log"
	"shoplist/internal/services"
	gsheet "shoplist/internal/sheets/google"
	"shoplist/internal/storage"
	"shoplist/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), "shoplist-worker")
	cfg := cli.LoadAndValidateConfig(boot, func(c *config.Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		return c.WorkerValidate()
	})
	logger := cli.SetupLogger(cfg.LogLevel, "shoplist-worker")
	logger.Info("Starting shoplist-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	// The worker reads purchased items from the same database the app writes.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	sheetsClient, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		LedgerSheet:   cfg.GoogleLedgerSheetName,
		LabelsSheet:   cfg.GoogleLabelsSheetName,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, string(amqp.ItemPurchased))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Label import failures are logged; the ledger still runs.
	labels := services.NewLabelService(repo, services.NewSynchronizer(repo, nil), nil)
	if res, err := worker.ImportLabels(ctx, sheetsClient, labels); err != nil {
		logger.Error("Failed to import labels from sheet", log.FieldError, err)
	} else {
		logger.Info("Labels imported from sheet",
			"created", res.Created, "existing", res.Existing, "invalid", res.Invalid)
	}

	ledger := worker.NewLedgerWorker(repo, sheetsClient)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return amqpClient.ConsumeEvents(gctx, ledger.HandleEvent) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
