// Package cli provides output formatting for the eiga command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per result, for scripting.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const maxTitleWidth = 60

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, compact or json)", s)
	}
}

// WriteRecommendations writes a recommendation response to w in the given format.
func WriteRecommendations(w io.Writer, resp *models.RecommendResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, r := range resp.Results {
			if _, err := fmt.Fprintf(w, "%d\t%d\t%.4f\t%s\n", r.Rank, r.ID, r.Score, r.Title); err != nil {
				return err
			}
		}
		return nil
	default:
		writeRecommendationsText(w, resp)
		return nil
	}
}

func writeRecommendationsText(w io.Writer, resp *models.RecommendResponse) {
	fmt.Fprintf(w, "\nMovies like %q (%d of %d requested, %dms)\n\n", resp.Title, resp.Total, resp.K, resp.QueryTime)
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No other movies in the catalog.")
		return
	}
	for _, r := range resp.Results {
		fmt.Fprintf(w, "%3d. %-*s  score %.4f  (id %d)\n",
			r.Rank, maxTitleWidth+3, utils.Truncate(r.Title, maxTitleWidth), r.Score, r.ID)
	}
	if resp.BuildID != "" {
		fmt.Fprintf(w, "\nindex build %s\n", resp.BuildID)
	}
}

// WriteTitles writes a title listing to w.
func WriteTitles(w io.Writer, resp *models.TitlesResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, t := range resp.Titles {
			if _, err := fmt.Fprintf(w, "%d\t%s\n", t.ID, t.Title); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, t := range resp.Titles {
			fmt.Fprintf(w, "%6d  %s\n", t.ID, t.Title)
		}
		if len(resp.Titles) < resp.Total {
			fmt.Fprintf(w, "... %d more\n", resp.Total-len(resp.Titles))
		}
		return nil
	}
}

// WriteStatus writes the index status to w.
func WriteStatus(w io.Writer, st *models.IndexStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	if !st.Loaded {
		fmt.Fprintln(w, "No index loaded.")
		return nil
	}
	fmt.Fprintf(w, "Build:      %s\n", st.BuildID)
	fmt.Fprintf(w, "Built at:   %s\n", st.BuiltAt)
	fmt.Fprintf(w, "Movies:     %d\n", st.Movies)
	fmt.Fprintf(w, "Vocabulary: %d terms\n", st.VocabularySize)
	if st.Source != "" {
		fmt.Fprintf(w, "Feed:       %s\n", st.Source)
	}
	if st.Fingerprint != "" {
		fmt.Fprintf(w, "Checksum:   %s\n", utils.Truncate(st.Fingerprint, 23))
	}
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(*st.DiskUsageBytes))
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
