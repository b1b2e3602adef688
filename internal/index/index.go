package index

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/eiga/internal/features"
	"github.com/hyperjump/eiga/internal/models"
)

// Meta describes one build of the index.
type Meta struct {
	BuildID        string
	BuiltAt        time.Time
	VocabularySize int
	// Source is the feed the corpus was read from; Fingerprint is its content digest.
	Source      string
	Fingerprint string
	// Analysis identifies the text analysis chain the features were encoded with.
	Analysis string
}

// Index is an immutable snapshot: the title projection and the similarity matrix,
// aligned by row position.
type Index struct {
	meta      Meta
	titles    []models.TitleEntry
	matrix    *SimilarityMatrix
	positions map[string]int
}

// New bundles a projection and a matrix. The number of titles must equal the matrix size.
func New(meta Meta, titles []models.TitleEntry, matrix *SimilarityMatrix) (*Index, error) {
	if matrix == nil {
		return nil, &models.CorruptIndexError{BuildID: meta.BuildID, Reason: "missing similarity matrix"}
	}
	if len(titles) != matrix.Size() {
		return nil, &models.CorruptIndexError{
			BuildID: meta.BuildID,
			Reason:  fmt.Sprintf("%d titles but %d matrix rows", len(titles), matrix.Size()),
		}
	}
	positions := make(map[string]int, len(titles))
	for i, t := range titles {
		// First stored position wins for duplicate titles.
		if _, dup := positions[t.Title]; !dup {
			positions[t.Title] = i
		}
	}
	return &Index{
		meta:      meta,
		titles:    append([]models.TitleEntry(nil), titles...),
		matrix:    matrix,
		positions: positions,
	}, nil
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	builder     *features.Builder
	source      string
	fingerprint string
	now         func() time.Time
}

// WithFeatureBuilder sets the feature builder; the default analyzer is used otherwise.
func WithFeatureBuilder(b *features.Builder) BuildOption {
	return func(o *buildOptions) { o.builder = b }
}

// WithSource records the feed path and content fingerprint in the index metadata.
func WithSource(source, fingerprint string) BuildOption {
	return func(o *buildOptions) {
		o.source = source
		o.fingerprint = fingerprint
	}
}

// Build encodes the corpus, computes the similarity matrix and returns a new snapshot.
func Build(corpus models.Corpus, opts ...BuildOption) (*Index, error) {
	o := &buildOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.builder == nil {
		b, err := features.NewBuilder()
		if err != nil {
			return nil, err
		}
		o.builder = b
	}
	fm, err := o.builder.Build(corpus)
	if err != nil {
		return nil, err
	}
	matrix, err := BuildMatrix(fm)
	if err != nil {
		return nil, err
	}
	meta := Meta{
		BuildID:        uuid.New().String(),
		BuiltAt:        o.now().UTC(),
		VocabularySize: fm.Dim(),
		Source:         o.source,
		Fingerprint:    o.fingerprint,
		Analysis:       o.builder.Settings(),
	}
	return New(meta, corpus.Projection(), matrix)
}

// Meta returns the build metadata.
func (ix *Index) Meta() Meta {
	return ix.meta
}

// Len returns the number of movies.
func (ix *Index) Len() int {
	return len(ix.titles)
}

// Titles returns a copy of the projection in corpus order.
func (ix *Index) Titles() []models.TitleEntry {
	return append([]models.TitleEntry(nil), ix.titles...)
}

// Matrix returns the similarity matrix.
func (ix *Index) Matrix() *SimilarityMatrix {
	return ix.matrix
}

// Position returns the row of title (exact, case-sensitive match).
func (ix *Index) Position(title string) (int, bool) {
	pos, ok := ix.positions[title]
	return pos, ok
}

// Score returns the similarity between two titles.
func (ix *Index) Score(a, b string) (float64, error) {
	i, ok := ix.positions[a]
	if !ok {
		return 0, &models.UnknownTitleError{Title: a}
	}
	j, ok := ix.positions[b]
	if !ok {
		return 0, &models.UnknownTitleError{Title: b}
	}
	return ix.matrix.At(i, j), nil
}

// Recommend returns the k titles most similar to title, best first.
// The queried row is excluded by position. Equal scores keep corpus order.
// Fewer than k results are returned when the corpus has fewer than k other movies.
func (ix *Index) Recommend(title string, k int) ([]models.Recommendation, error) {
	pos, ok := ix.positions[title]
	if !ok {
		return nil, &models.UnknownTitleError{Title: title}
	}
	if k <= 0 {
		k = models.DefaultK
	}
	row := ix.matrix.row(pos)
	candidates := make([]int, 0, len(row)-1)
	for j := range row {
		if j != pos {
			candidates = append(candidates, j)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return row[candidates[a]] > row[candidates[b]]
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]models.Recommendation, k)
	for r := 0; r < k; r++ {
		j := candidates[r]
		out[r] = models.Recommendation{
			Rank:  r + 1,
			ID:    ix.titles[j].ID,
			Title: ix.titles[j].Title,
			Score: row[j],
		}
	}
	return out, nil
}
