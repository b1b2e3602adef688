// Package ingest reads the tabular movie feed (xlsx or csv) into a corpus.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/pkg/utils"
	"go.uber.org/zap"
)

// SupportedExtensions lists the feed formats Read understands.
var SupportedExtensions = []string{".xlsx", ".csv"}

// Reader converts feed files into a Corpus.
type Reader struct {
	sheet  string
	logger *zap.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithSheet selects the workbook sheet to read; the first sheet is used when empty.
func WithSheet(name string) ReaderOption {
	return func(r *Reader) { r.sheet = name }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// NewReader returns a feed reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// ReadFile reads the feed at path. The extension selects the format.
func (r *Reader) ReadFile(path string) (models.Corpus, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	corpus, err := r.Read(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	r.logger.Debug("feed read", zap.String("path", path), zap.Int("movies", len(corpus)))
	return corpus, nil
}

// Read parses content in the format given by ext (including the leading dot).
func (r *Reader) Read(content []byte, ext string) (models.Corpus, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext {
	case ".xlsx":
		rows, err = readExcel(content, r.sheet)
	case ".csv":
		rows, err = readCSV(content)
	default:
		return nil, fmt.Errorf("unsupported feed format %q (supported: %s)", ext, strings.Join(SupportedExtensions, ", "))
	}
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows)
}
