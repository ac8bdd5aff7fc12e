// Package app wires configuration into the services the binaries run.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"preciobot/internal/assist"
	"preciobot/internal/catalog"
	"preciobot/internal/config"
	"preciobot/internal/connectors"
	sheetsconnector "preciobot/internal/connectors/sheets"
	xlsxconnector "preciobot/internal/connectors/xlsx"
	"preciobot/internal/pipeline"
	"preciobot/internal/session"
	"preciobot/internal/storage"
)

type App struct {
	Config   config.Config
	Log      zerolog.Logger
	DB       *storage.DB
	Catalog  *catalog.Service
	Sessions session.Store
	Bot      *pipeline.Service

	closers []func() error
}

// New opens storage, the catalog source, the session store, and the
// assistant when configured. Call Close when done.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	source, err := BuildSource(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	client := catalog.NewClient(cfg, source, log)
	a.Catalog = catalog.NewService(cfg, client, db, log)

	store, closeStore, err := session.Open(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	a.Sessions = store
	a.closers = append(a.closers, closeStore)

	a.Bot = pipeline.NewService(cfg, a.Catalog, store, log).WithLookupLog(db)

	if cfg.AIEnabled() {
		g, err := assist.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("assistant disabled")
		} else {
			a.closers = append(a.closers, g.Close)
			a.Bot.WithAssistant(g, cfg.AIEnhance, cfg.AIFallback)
		}
	}

	return a, nil
}

// BuildSource picks the catalog source named by CATALOG_SOURCE.
func BuildSource(ctx context.Context, cfg config.Config) (connectors.SheetSource, error) {
	switch cfg.CatalogSource {
	case "xlsx":
		if err := cfg.Require("CATALOG_XLSX_PATH", cfg.CatalogXLSXPath); err != nil {
			return nil, err
		}
		return xlsxconnector.NewConnector(cfg.CatalogXLSXPath), nil
	case "sheets":
		return sheetsconnector.NewConnector(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported catalog source: %s", cfg.CatalogSource)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
