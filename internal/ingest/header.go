package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hyperjump/eiga/internal/models"
)

type column int

const (
	colID column = iota
	colTitle
	colGenre
	colDirector
	colCast
	colDescription
	colYear
	colRuntime
	colRating
	colMetascore
	colVotes
	numColumns
)

// columnNames are the attribute names used in errors.
var columnNames = [numColumns]string{
	"id", "title", "genre", "director", "cast", "description",
	"year", "runtime", "rating", "metascore", "votes",
}

// headerAliases maps normalized header text to a column. The scraped IMDb feed
// uses "Unnamed: 0" for the row identifier and "Movie Name" for the title.
var headerAliases = map[string]column{
	"unnamed: 0":         colID,
	"movie_id":           colID,
	"movie id":           colID,
	"id":                 colID,
	"identifier":         colID,
	"movie name":         colTitle,
	"title":              colTitle,
	"movie title":        colTitle,
	"genre":              colGenre,
	"genres":             colGenre,
	"director":           colDirector,
	"directors":          colDirector,
	"cast":               colCast,
	"stars":              colCast,
	"description":        colDescription,
	"overview":           colDescription,
	"plot":               colDescription,
	"year of release":    colYear,
	"year":               colYear,
	"watch time":         colRuntime,
	"runtime":            colRuntime,
	"movie rating":       colRating,
	"rating":             colRating,
	"metascore of movie": colMetascore,
	"metascore":          colMetascore,
	"votes":              colVotes,
}

// requiredColumns must be present in the header.
var requiredColumns = []column{colTitle, colGenre, colDirector, colDescription}

func normalizeHeader(h string) string {
	return strings.ToLower(Preprocess(h))
}

// mapHeader returns, per column, the index in the row (-1 when absent).
// The first matching header wins.
func mapHeader(header []string) ([numColumns]int, error) {
	var idx [numColumns]int
	for i := range idx {
		idx[i] = -1
	}
	for i, h := range header {
		col, ok := headerAliases[normalizeHeader(h)]
		if ok && idx[col] < 0 {
			idx[col] = i
		}
	}
	for _, col := range requiredColumns {
		if idx[col] < 0 {
			return idx, &models.MissingAttributeError{Position: -1, Attribute: columnNames[col]}
		}
	}
	return idx, nil
}

func recordsFromRows(rows [][]string) (models.Corpus, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("feed is empty")
	}
	idx, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}
	corpus := make(models.Corpus, 0, len(rows)-1)
	for line, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		cell := func(c column) string {
			i := idx[c]
			if i < 0 || i >= len(row) {
				return ""
			}
			return Preprocess(row[i])
		}
		pos := len(corpus)
		id := pos
		if raw := cell(colID); raw != "" {
			id, err = parseID(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", line+2, err)
			}
		}
		corpus = append(corpus, models.MovieRecord{
			ID:          id,
			Title:       cell(colTitle),
			Genre:       cell(colGenre),
			Director:    cell(colDirector),
			Cast:        cell(colCast),
			Description: cell(colDescription),
			Year:        cell(colYear),
			Runtime:     cell(colRuntime),
			Rating:      cell(colRating),
			Metascore:   cell(colMetascore),
			Votes:       cell(colVotes),
		})
	}
	return corpus, nil
}

// parseID accepts integers and integral floats ("12", "12.0").
func parseID(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid identifier %q", raw)
	}
	return int(f), nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
