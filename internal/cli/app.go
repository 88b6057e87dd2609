package cli

import (
	"context"
	"fmt"

	"github.com/bher20/stromdeals/internal/alerting"
	"github.com/bher20/stromdeals/internal/catalog"
	"github.com/bher20/stromdeals/internal/config"
	"github.com/bher20/stromdeals/internal/cron"
	"github.com/bher20/stromdeals/internal/logging"
	"github.com/bher20/stromdeals/internal/storage"
	"github.com/bher20/stromdeals/internal/vendorapi"
)

// app holds the long-lived components built from a Config.
type app struct {
	cfg   config.Config
	store storage.Storage
	gate  *catalog.Gate
	svc   *catalog.Service
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	st, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.DB.Driver,
		DSN:         cfg.DB.DSN,
		DataDir:     cfg.DB.DataDir,
		AutoMigrate: cfg.DB.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client := vendorapi.New(vendorapi.Config{
		URL:     cfg.Vendor.URL,
		APIKey:  cfg.Vendor.APIKey,
		Timeout: cfg.Vendor.Timeout,
	}, logging.Log)
	if !client.Configured() {
		logging.For("cli").Info("vendor api url not set, serving stored or bundled offers only")
	}

	gate := catalog.NewGate(st, client, catalog.GateConfig{
		MaxAge:  cfg.Cache.MaxAge,
		Timeout: cfg.Vendor.Timeout,
	}, logging.Log)
	svc := catalog.NewService(gate, st, logging.Log,
		catalog.WithDefaultConsumption(cfg.DefaultConsumption))

	return &app{cfg: cfg, store: st, gate: gate, svc: svc}, nil
}

func (a *app) worker() *cron.Worker {
	alerter := alerting.NewAlerter(alerting.AlertConfig{
		WebhookURL:             a.cfg.Alert.WebhookURL,
		WebhookType:            a.cfg.Alert.WebhookType,
		MinFailuresBeforeAlert: a.cfg.Alert.MinFailures,
	}, logging.Log)
	return cron.NewWorker(a.gate, a.store, alerter, a.cfg.Refresh.Interval, logging.Log)
}

func (a *app) Close() error {
	return a.store.Close()
}
