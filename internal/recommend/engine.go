// Package recommend answers "more like this" queries against the live index.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/eiga/internal/index"
	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrNoIndex is returned when no snapshot has been built or restored yet.
	ErrNoIndex = errors.New("no index loaded")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

const defaultSuggestions = 3

// Engine serves recommendations from the snapshot held in an index.Live.
type Engine struct {
	live        *index.Live
	defaultK    int
	maxK        int
	suggestions int
	diskUsage   func() (int64, error)
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for query debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithLimits sets the K used when a request omits it and the largest K accepted.
func WithLimits(defaultK, maxK int) EngineOption {
	return func(e *Engine) {
		e.defaultK = defaultK
		e.maxK = maxK
	}
}

// WithSuggestions sets how many close titles accompany an unknown-title error. Zero disables them.
func WithSuggestions(n int) EngineOption {
	return func(e *Engine) { e.suggestions = n }
}

// WithDiskUsage reports artifact storage size in Status.
func WithDiskUsage(fn func() (int64, error)) EngineOption {
	return func(e *Engine) { e.diskUsage = fn }
}

// NewEngine creates an engine reading from live.
func NewEngine(live *index.Live, opts ...EngineOption) *Engine {
	e := &Engine{
		live:        live,
		defaultK:    models.DefaultK,
		maxK:        models.MaxK,
		suggestions: defaultSuggestions,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Recommend returns the K titles most similar to req.Title from the current snapshot.
func (e *Engine) Recommend(ctx context.Context, req *models.RecommendRequest) (*models.RecommendResponse, error) {
	start := time.Now()
	resp, outcome, err := e.recommend(ctx, req)
	metrics.RecordRecommend(outcome, time.Since(start))
	if err != nil {
		return nil, err
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func (e *Engine) recommend(ctx context.Context, req *models.RecommendRequest) (*models.RecommendResponse, string, error) {
	if err := req.Validate(e.defaultK, e.maxK); err != nil {
		return nil, metrics.OutcomeInvalid, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, metrics.OutcomeError, err
	}
	ix := e.live.Load()
	if ix == nil {
		return nil, metrics.OutcomeUnavailable, ErrNoIndex
	}

	recs, err := ix.Recommend(req.Title, req.K)
	if err != nil {
		var unknown *models.UnknownTitleError
		if errors.As(err, &unknown) {
			unknown.Suggestions = SuggestTitles(req.Title, ix.Titles(), e.suggestions)
			e.logger.Debug("unknown title",
				zap.String("title", req.Title), zap.Strings("suggestions", unknown.Suggestions))
			return nil, metrics.OutcomeUnknownTitle, unknown
		}
		return nil, metrics.OutcomeError, err
	}

	results := make([]*models.Recommendation, len(recs))
	for i := range recs {
		results[i] = &recs[i]
	}
	e.logger.Debug("recommend",
		zap.String("title", req.Title), zap.Int("k", req.K), zap.Int("results", len(results)))
	return &models.RecommendResponse{
		Title:   req.Title,
		K:       req.K,
		Results: results,
		Total:   len(results),
		BuildID: ix.Meta().BuildID,
	}, metrics.OutcomeOK, nil
}

// Titles lists titles in catalog order whose text contains query (case-insensitive).
// An empty query matches everything. Total counts all matches; limit <= 0 returns all of them.
func (e *Engine) Titles(query string, limit int) (*models.TitlesResponse, error) {
	ix := e.live.Load()
	if ix == nil {
		return nil, ErrNoIndex
	}
	q := strings.ToLower(strings.TrimSpace(query))
	matched := make([]models.TitleEntry, 0)
	for _, t := range ix.Titles() {
		if q == "" || strings.Contains(strings.ToLower(t.Title), q) {
			matched = append(matched, t)
		}
	}
	total := len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return &models.TitlesResponse{Titles: matched, Total: total}, nil
}

// Status describes the snapshot currently served.
func (e *Engine) Status() *models.IndexStatus {
	st := &models.IndexStatus{}
	if e.diskUsage != nil {
		if n, err := e.diskUsage(); err == nil {
			st.DiskUsageBytes = &n
		} else {
			e.logger.Debug("disk usage unavailable", zap.Error(err))
		}
	}
	ix := e.live.Load()
	if ix == nil {
		return st
	}
	meta := ix.Meta()
	st.Loaded = true
	st.BuildID = meta.BuildID
	st.BuiltAt = meta.BuiltAt.Format(time.RFC3339)
	st.Movies = ix.Len()
	st.VocabularySize = meta.VocabularySize
	st.Source = meta.Source
	st.Fingerprint = meta.Fingerprint
	return st
}
