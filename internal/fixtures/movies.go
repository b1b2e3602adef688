// Package fixtures provides small movie catalogs and feed files for tests.
package fixtures

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/xuri/excelize/v2"
)

// FeedHeader is the column layout of the scraped IMDb feed.
var FeedHeader = []string{
	"Unnamed: 0", "Movie Name", "Year of Release", "Watch Time", "Genre", "Movie Rating",
	"Metascore of movie", "Director", "Cast", "Votes", "Description",
}

// SampleCorpus returns six movies with distinct descriptions.
// Positions 0 and 1 share a franchise, 2 and 3 share a director.
func SampleCorpus() models.Corpus {
	return models.Corpus{
		{
			ID: 0, Title: "Spider-Man: Far From Home", Genre: "Action, Adventure, Sci-Fi", Director: "Jon Watts",
			Cast: "Tom Holland, Samuel L. Jackson, Zendaya", Year: "2019",
			Description: "Peter Parker goes on a school trip to Europe and faces Mysterio, a new superhero threat.",
		},
		{
			ID: 1, Title: "Spider-Man: No Way Home", Genre: "Action, Adventure, Fantasy", Director: "Jon Watts",
			Cast: "Tom Holland, Zendaya, Benedict Cumberbatch", Year: "2021",
			Description: "Peter Parker asks Doctor Strange for help when his superhero identity is revealed.",
		},
		{
			ID: 2, Title: "Stillwater", Genre: "Crime, Drama, Thriller", Director: "Tom McCarthy",
			Cast: "Matt Damon, Abigail Breslin", Year: "2021",
			Description: "An oil rig roughneck travels from Oklahoma to Marseille to visit his estranged daughter in prison for murder.",
		},
		{
			ID: 3, Title: "Spotlight", Genre: "Biography, Crime, Drama", Director: "Tom McCarthy",
			Cast: "Mark Ruffalo, Michael Keaton, Rachel McAdams", Year: "2015",
			Description: "Boston Globe journalists uncover a massive scandal of child abuse and crime in the local archdiocese.",
		},
		{
			ID: 4, Title: "Dune", Genre: "Action, Adventure, Drama", Director: "Denis Villeneuve",
			Cast: "Timothee Chalamet, Rebecca Ferguson, Zendaya", Year: "2021",
			Description: "A noble family becomes embroiled in a war for control of the desert planet Arrakis.",
		},
		{
			ID: 5, Title: "Prisoners", Genre: "Crime, Drama, Mystery", Director: "Denis Villeneuve",
			Cast: "Hugh Jackman, Jake Gyllenhaal", Year: "2013",
			Description: "A desperate father takes the law into his own hands after his daughter goes missing.",
		},
	}
}

// Rows converts corpus into feed rows matching FeedHeader.
func Rows(corpus models.Corpus) [][]string {
	rows := make([][]string, 0, len(corpus))
	for _, m := range corpus {
		rows = append(rows, []string{
			strconv.Itoa(m.ID), m.Title, m.Year, m.Runtime, m.Genre, m.Rating,
			m.Metascore, m.Director, m.Cast, m.Votes, m.Description,
		})
	}
	return rows
}

// XLSX returns an xlsx workbook with header and rows on Sheet1.
func XLSX(header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := writeSheetRow(f, 1, header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := writeSheetRow(f, i+2, row); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheetRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow("Sheet1", cell, &vals)
}

// CSV returns a CSV document with header and rows.
func CSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFeed writes corpus as a feed file at path; the extension selects xlsx or csv.
func WriteFeed(path string, corpus models.Corpus) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		data, err = XLSX(FeedHeader, Rows(corpus))
	case ".csv":
		data, err = CSV(FeedHeader, Rows(corpus))
	default:
		return fmt.Errorf("unsupported feed extension %q", ext)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
