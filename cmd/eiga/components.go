package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/features"
	"github.com/hyperjump/eiga/internal/index"
	"github.com/hyperjump/eiga/internal/indexer"
	"github.com/hyperjump/eiga/internal/ingest"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/recommend"
	"github.com/hyperjump/eiga/internal/storage"
	"go.uber.org/zap"
)

// Components holds the wired services shared by the subcommands.
type Components struct {
	Store   *storage.SQLiteStore
	Live    *index.Live
	Indexer *indexer.Indexer
	Engine  *recommend.Engine
}

// Close releases the artifact store.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	analyzer, err := features.NewAnalyzer(cfg.Features.MinTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	builder, err := features.NewBuilder(features.WithAnalyzer(analyzer), features.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize feature builder: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	readerOpts := []ingest.ReaderOption{ingest.WithSheet(cfg.Catalog.Sheet)}
	if debug {
		readerOpts = append(readerOpts, ingest.WithLogger(logger))
	}
	live := index.NewLive(nil)
	idx := indexer.NewIndexer(
		ingest.NewReader(readerOpts...),
		builder,
		store,
		live,
		indexer.WithLogger(logger),
		indexer.WithKeepArtifacts(cfg.Storage.KeepArtifacts),
	)

	engineOpts := []recommend.EngineOption{
		recommend.WithLimits(cfg.Recommend.DefaultK, cfg.Recommend.MaxK),
		recommend.WithSuggestions(cfg.Recommend.Suggestions),
		recommend.WithDiskUsage(func() (int64, error) {
			return storage.DiskUsageBytes(store.Files()...)
		}),
	}
	if debug {
		engineOpts = append(engineOpts, recommend.WithLogger(logger))
	}

	return &Components{
		Store:   store,
		Live:    live,
		Indexer: idx,
		Engine:  recommend.NewEngine(live, engineOpts...),
	}, nil
}

// loadIndex restores the latest artifact, building from the feed when none is stored
// or the stored one is unreadable.
func (c *Components) loadIndex(ctx context.Context, feedPath string, logger *zap.Logger) error {
	_, err := c.Indexer.Restore(ctx)
	if err == nil {
		return nil
	}
	var corrupt *models.CorruptIndexError
	switch {
	case errors.Is(err, storage.ErrNoArtifact):
		logger.Info("no stored index")
	case errors.As(err, &corrupt):
		logger.Warn("stored index is corrupt, rebuilding", zap.Error(err))
	default:
		return err
	}
	if feedPath == "" {
		return errors.New("no stored index and no catalog feed configured (set catalog.path or run eiga build --feed)")
	}
	_, err = c.Indexer.Rebuild(ctx, feedPath, true)
	return err
}
