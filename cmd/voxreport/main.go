package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxreport/voxreport/internal/cache"
	"github.com/voxreport/voxreport/internal/config"
	"github.com/voxreport/voxreport/internal/engine"
	"github.com/voxreport/voxreport/internal/logging"
	"github.com/voxreport/voxreport/internal/pdf"
	"github.com/voxreport/voxreport/internal/remote"
	"github.com/voxreport/voxreport/internal/session"
	"github.com/voxreport/voxreport/internal/storage"
	"github.com/voxreport/voxreport/internal/translate"
	"github.com/voxreport/voxreport/internal/watch"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("voxreport starting",
		slog.String("version", Version),
		slog.String("api", cfg.APIBaseURL),
		slog.Bool("pdf_uploads", cfg.PDFUploadsEnabled()),
		slog.Bool("inbox", cfg.InboxDir != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("opening local cache: %w", err)
	}
	defer store.Close()

	client := remote.NewClient(cfg.APIBaseURL, nil)

	sess := session.NewController(client, store, cfg.DeviceName, session.CheckoutConfig{
		PriceID:    cfg.CheckoutPriceID,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	}, logging.Component(logger, "session"))

	user, err := sess.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	logger.Info("session established",
		slog.String("user", user.DisplayName()),
		slog.String("plan", string(user.SubscriptionPlan)),
		slog.Int("devices", len(user.Devices)),
	)

	opts := engine.Options{
		Gateway:     client,
		Cache:       store,
		Session:     sess,
		PDF:         pdf.Generate,
		Notifier:    engine.LogNotifier{Logger: logging.Component(logger, "notify")},
		Logger:      logging.Component(logger, "engine"),
		SyncTimeout: cfg.SyncTimeout,
	}

	if cfg.PDFUploadsEnabled() {
		pdfStore, err := storage.NewPDFStore(ctx, storage.Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			SignedURLTTL: cfg.SignedURLTTL,
		}, logging.Component(logger, "storage"))
		if err != nil {
			return fmt.Errorf("connecting object storage: %w", err)
		}

		opts.Store = pdfStore
	}

	if cfg.TranslateWebhookURL != "" {
		opts.Translator = translate.NewClient(cfg.TranslateWebhookURL, nil)
	}

	eng := engine.New(opts)
	defer eng.Close()

	if _, err := eng.Sync(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return resyncLoop(gctx, eng, cfg.SyncInterval)
	})

	if cfg.InboxDir != "" {
		watcher := watch.NewWatcher(cfg.InboxDir, eng, logging.Component(logger, "watch"))

		g.Go(func() error {
			return watcher.Watch(gctx)
		})
	}

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		logger.Info("shutting down")
		return nil
	}

	return err
}

// openCache opens the bbolt store, honoring the path override.
func openCache(cfg *config.Config) (*cache.Store, error) {
	if cfg.StatePath != "" {
		return cache.LoadAt(cfg.StatePath)
	}

	return cache.Load()
}

// resyncLoop keeps the local snapshot warm. Each pull also closes the
// loss window left by pushes abandoned on a previous shutdown.
func resyncLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := eng.Sync(ctx); err != nil {
				return err
			}
		}
	}
}
