package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/visit-scheduler/internal/acquire"
	"github.com/example/visit-scheduler/internal/browser/rodriver"
	"github.com/example/visit-scheduler/internal/captcha"
	"github.com/example/visit-scheduler/internal/config"
	"github.com/example/visit-scheduler/internal/countries"
	"github.com/example/visit-scheduler/internal/crypto"
	"github.com/example/visit-scheduler/internal/db"
	"github.com/example/visit-scheduler/internal/migrate"
	"github.com/example/visit-scheduler/internal/orders"
)

// deps bundles what every command needs: config, store and registry.
type deps struct {
	cfg      config.Config
	db       *db.DB
	orders   *orders.Repo
	registry *countries.Registry
	logger   *slog.Logger
}

func openDeps(ctx context.Context, migrateUp bool) (*deps, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}

	aead, err := crypto.New(cfg.CodeEncKey)
	if err != nil {
		d.Close()
		return nil, err
	}
	registry, err := countries.Load()
	if err != nil {
		d.Close()
		return nil, err
	}

	return &deps{
		cfg:      cfg,
		db:       d,
		orders:   orders.NewRepo(d, aead),
		registry: registry,
		logger:   newLogger(),
	}, nil
}

func (d *deps) close() {
	d.db.Close()
}

// acquirer builds the browser-backed state machine from config.
func (d *deps) acquirer() (*acquire.Acquirer, error) {
	if err := d.cfg.RequireCaptchaCreds(); err != nil {
		return nil, err
	}
	resolver := captcha.New(
		d.cfg.CaptchaURL,
		captcha.Credentials{UserID: d.cfg.CaptchaUserID, APIKey: d.cfg.CaptchaAPIKey},
		d.cfg.CaptchaTag,
		d.cfg.CaptchaLength,
	)
	return &acquire.Acquirer{
		NewSession: rodriver.Factory(rodriver.Options{
			Headless: d.cfg.Headless,
			PagesDir: d.cfg.PagesDir,
		}),
		Resolver: resolver,
		Registry: d.registry,
		Logger:   d.logger,
	}, nil
}
