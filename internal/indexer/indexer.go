// Package indexer rebuilds the similarity index from the movie feed and installs it live.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/eiga/internal/features"
	"github.com/hyperjump/eiga/internal/fileid"
	"github.com/hyperjump/eiga/internal/index"
	"github.com/hyperjump/eiga/internal/ingest"
	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/storage"
	"github.com/hyperjump/eiga/pkg/utils"
	"go.uber.org/zap"
)

// Result describes one Rebuild call.
type Result struct {
	BuildID        string        `json:"build_id"`
	Movies         int           `json:"movies"`
	VocabularySize int           `json:"vocabulary_size"`
	Fingerprint    string        `json:"fingerprint"`
	Skipped        bool          `json:"skipped"`
	Duration       time.Duration `json:"duration"`
}

// Indexer turns the feed into a persisted, live index snapshot.
type Indexer struct {
	reader  *ingest.Reader
	builder *features.Builder
	store   storage.ArtifactStore
	live    *index.Live
	keep    int
	mu      sync.Mutex
	logger  *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeepArtifacts prunes stored artifacts down to n after each successful build.
// Zero disables pruning.
func WithKeepArtifacts(n int) IndexerOption {
	return func(idx *Indexer) { idx.keep = n }
}

// NewIndexer creates an indexer. store may be nil, in which case builds are not persisted.
func NewIndexer(
	reader *ingest.Reader,
	builder *features.Builder,
	store storage.ArtifactStore,
	live *index.Live,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		reader:  reader,
		builder: builder,
		store:   store,
		live:    live,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Live returns the holder rebuilt snapshots are installed into.
func (idx *Indexer) Live() *index.Live {
	return idx.live
}

// Rebuild reads the feed at feedPath, builds a new index, persists it and swaps it live.
// When the feed content matches the live snapshot the build is skipped unless force is set.
// On any error the previous snapshot stays live.
func (idx *Indexer) Rebuild(ctx context.Context, feedPath string, force bool) (*Result, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := time.Now()
	res, err := idx.rebuild(ctx, feedPath, force)
	switch {
	case err != nil:
		metrics.RecordRebuild(metrics.RebuildFailed, time.Since(start))
		idx.logger.Error("index rebuild failed", zap.String("feed", feedPath), zap.Error(err))
		return nil, err
	case res.Skipped:
		metrics.RecordRebuild(metrics.RebuildUnchanged, time.Since(start))
	default:
		res.Duration = time.Since(start)
		metrics.RecordRebuild(metrics.RebuildBuilt, res.Duration)
	}
	return res, nil
}

func (idx *Indexer) rebuild(ctx context.Context, feedPath string, force bool) (*Result, error) {
	if feedPath == "" {
		return nil, errors.New("no feed path configured")
	}
	abs, err := filepath.Abs(feedPath)
	if err != nil {
		return nil, err
	}
	fingerprint, err := fileid.FingerprintFile(abs)
	if err != nil {
		return nil, err
	}
	if idx.builder == nil {
		if idx.builder, err = features.NewBuilder(features.WithLogger(idx.logger)); err != nil {
			return nil, err
		}
	}
	if current := idx.live.Load(); !force && current != nil && idx.current(current, fingerprint) {
		idx.logger.Info("feed unchanged, skipping rebuild",
			zap.String("feed", abs), zap.String("build_id", current.Meta().BuildID))
		return &Result{
			BuildID:        current.Meta().BuildID,
			Movies:         current.Len(),
			VocabularySize: current.Meta().VocabularySize,
			Fingerprint:    fingerprint,
			Skipped:        true,
		}, nil
	}

	corpus, err := idx.reader.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx.logger.Debug("feed ingested", zap.String("feed", abs), zap.Int("movies", len(corpus)))

	ix, err := index.Build(corpus, index.WithFeatureBuilder(idx.builder), index.WithSource(abs, fingerprint))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta := ix.Meta()

	if idx.store != nil {
		if err := idx.store.SaveArtifact(ctx, ix); err != nil {
			return nil, fmt.Errorf("failed to save artifact: %w", err)
		}
		if idx.keep > 0 {
			if n, err := idx.store.Prune(ctx, idx.keep); err != nil {
				idx.logger.Warn("artifact prune failed", zap.Error(err))
			} else if n > 0 {
				idx.logger.Debug("old artifacts pruned", zap.Int("removed", n))
			}
		}
	}

	idx.live.Swap(ix)
	metrics.SetIndexSize(ix.Len(), meta.VocabularySize)
	idx.logger.Info("index rebuilt",
		zap.String("build_id", meta.BuildID),
		zap.Int("movies", ix.Len()),
		zap.Int("vocabulary", meta.VocabularySize),
		zap.String("feed", abs))

	return &Result{
		BuildID:        meta.BuildID,
		Movies:         ix.Len(),
		VocabularySize: meta.VocabularySize,
		Fingerprint:    fingerprint,
	}, nil
}

// current reports whether ix was built from the same feed content with the same analysis chain.
func (idx *Indexer) current(ix *index.Index, fingerprint string) bool {
	meta := ix.Meta()
	return meta.Fingerprint == fingerprint && meta.Analysis == idx.builder.Settings()
}

// Restore installs the most recently stored artifact. It returns storage.ErrNoArtifact
// when nothing has been built yet.
func (idx *Indexer) Restore(ctx context.Context) (*index.Index, error) {
	if idx.store == nil {
		return nil, storage.ErrNoArtifact
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ix, err := idx.store.LoadLatest(ctx)
	if err != nil {
		return nil, err
	}
	idx.live.Swap(ix)
	metrics.SetIndexSize(ix.Len(), ix.Meta().VocabularySize)
	idx.logger.Info("index restored",
		zap.String("build_id", ix.Meta().BuildID),
		zap.Int("movies", ix.Len()),
		zap.Time("built_at", ix.Meta().BuiltAt))
	return ix, nil
}
