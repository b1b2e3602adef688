// Package features turns movie records into TF-IDF feature vectors.
package features

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

const (
	analyzerName     = "movie_text"
	lengthFilterName = "movie_min_length"

	// DefaultMinTokenLength drops single-character tokens.
	DefaultMinTokenLength = 2
)

// tokenAnalyzer is the subset of bleve's analyzer used here.
type tokenAnalyzer interface {
	Analyze(input []byte) analysis.TokenStream
}

// tokenFilters is the filter chain applied after the unicode tokenizer, in order.
// Possessives are stripped before stop words so "she's" is dropped like "she".
var tokenFilters = []string{lowercase.Name, en.PossessiveName, en.StopName}

// Analyzer splits text into lower-cased terms with possessive suffixes and English
// stop words removed. It is built from bleve's analysis registry: unicode tokenizer,
// to_lower, possessive_en, stop_en and a minimum length filter.
type Analyzer struct {
	analyzer       tokenAnalyzer
	minTokenLength int
}

// NewAnalyzer builds the analysis chain. minTokenLength <= 0 uses DefaultMinTokenLength.
func NewAnalyzer(minTokenLength int) (*Analyzer, error) {
	if minTokenLength <= 0 {
		minTokenLength = DefaultMinTokenLength
	}
	im := bleve.NewIndexMapping()
	if err := im.AddCustomTokenFilter(lengthFilterName, map[string]interface{}{
		"type": length.Name,
		"min":  float64(minTokenLength),
	}); err != nil {
		return nil, fmt.Errorf("define length filter: %w", err)
	}
	if err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": append(append([]string(nil), tokenFilters...), lengthFilterName),
	}); err != nil {
		return nil, fmt.Errorf("define analyzer: %w", err)
	}
	a := im.AnalyzerNamed(analyzerName)
	if a == nil {
		return nil, fmt.Errorf("analyzer %q not available", analyzerName)
	}
	return &Analyzer{analyzer: a, minTokenLength: minTokenLength}, nil
}

// Settings identifies the analysis chain. Indexes built with different settings
// are not comparable.
func (a *Analyzer) Settings() string {
	return fmt.Sprintf("%s|%s|min=%d", unicode.Name, strings.Join(tokenFilters, ","), a.minTokenLength)
}

// Terms returns the analyzed terms of text in order of appearance (duplicates kept).
func (a *Analyzer) Terms(text string) []string {
	tokens := a.analyzer.Analyze([]byte(text))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, string(tok.Term))
	}
	return out
}
