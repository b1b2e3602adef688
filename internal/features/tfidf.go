package features

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/pkg/utils"
	"go.uber.org/zap"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return strings.ToLower(f.Name)
			}
			return name
		})
	})
	return validate
}

// Matrix is the TF-IDF encoding of a corpus: one row per record, aligned by position.
type Matrix struct {
	// Terms maps dimension -> term; sorted lexicographically.
	Terms []string
	// IDF holds the inverse document frequency per dimension.
	IDF  []float64
	Rows []Vector

	vocab map[string]int
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.Rows)
}

// Dim returns the vocabulary size.
func (m *Matrix) Dim() int {
	return len(m.Terms)
}

// TermIndex returns the dimension of term.
func (m *Matrix) TermIndex(term string) (int, bool) {
	i, ok := m.vocab[term]
	return i, ok
}

// Builder encodes corpora into TF-IDF matrices.
type Builder struct {
	analyzer *Analyzer
	logger   *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithAnalyzer replaces the default analysis chain.
func WithAnalyzer(a *Analyzer) BuilderOption {
	return func(b *Builder) { b.analyzer = a }
}

// NewBuilder creates a builder. Without WithAnalyzer the default analyzer is used.
func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = utils.OrNop(b.logger)
	if b.analyzer == nil {
		a, err := NewAnalyzer(DefaultMinTokenLength)
		if err != nil {
			return nil, err
		}
		b.analyzer = a
	}
	return b, nil
}

// Settings identifies the analysis chain the builder encodes with.
func (b *Builder) Settings() string {
	return b.analyzer.Settings()
}

// Build encodes corpus with a default Builder.
// Any record lacking title, director, genre or description fails the whole build.
func Build(corpus models.Corpus) (*Matrix, error) {
	b, err := NewBuilder()
	if err != nil {
		return nil, err
	}
	return b.Build(corpus)
}

// Composite returns the text a record contributes to the model:
// title, director, genre and description, space separated.
func Composite(m *models.MovieRecord) string {
	return m.Title + " " + m.Director + " " + m.Genre + " " + m.Description
}

// Validate checks that rec carries every attribute the model needs.
// pos is the record's corpus position, used in the error.
func Validate(pos int, rec *models.MovieRecord) error {
	trimmed := *rec
	trimmed.Title = strings.TrimSpace(rec.Title)
	trimmed.Director = strings.TrimSpace(rec.Director)
	trimmed.Genre = strings.TrimSpace(rec.Genre)
	trimmed.Description = strings.TrimSpace(rec.Description)
	err := recordValidator().Struct(&trimmed)
	if err == nil {
		return nil
	}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		return &models.MissingAttributeError{Position: pos, ID: rec.ID, Attribute: fieldErrs[0].Field()}
	}
	return fmt.Errorf("validate record %d: %w", pos, err)
}

// Build validates every record and encodes the corpus.
func (b *Builder) Build(corpus models.Corpus) (*Matrix, error) {
	for i := range corpus {
		if err := Validate(i, &corpus[i]); err != nil {
			return nil, err
		}
	}

	n := len(corpus)
	counts := make([]map[string]int, n)
	docFreq := make(map[string]int)
	for i := range corpus {
		tc := make(map[string]int)
		for _, term := range b.analyzer.Terms(Composite(&corpus[i])) {
			tc[term]++
		}
		for term := range tc {
			docFreq[term]++
		}
		counts[i] = tc
	}

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = math.Log(float64(1+n)/float64(1+docFreq[term])) + 1
	}

	rows := make([]Vector, n)
	for i, tc := range counts {
		indices := make([]int, 0, len(tc))
		for term := range tc {
			indices = append(indices, vocab[term])
		}
		sort.Ints(indices)
		values := make([]float64, len(indices))
		for k, idx := range indices {
			values[k] = float64(tc[terms[idx]]) * idf[idx]
		}
		utils.NormalizeL2(values)
		rows[i] = Vector{Indices: indices, Values: values}
		if len(indices) == 0 {
			b.logger.Warn("record has no terms after analysis",
				zap.Int("position", i), zap.Int("id", corpus[i].ID), zap.String("title", corpus[i].Title))
		}
	}

	b.logger.Debug("features built", zap.Int("records", n), zap.Int("vocabulary", len(terms)))
	return &Matrix{Terms: terms, IDF: idf, Rows: rows, vocab: vocab}, nil
}
