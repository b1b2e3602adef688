// Package models defines core data structures for movies, recommendation queries, and results.
package models

// MovieRecord is one catalog entry as ingested from the feed.
// Only Title, Director, Genre and Description feed the similarity model.
type MovieRecord struct {
	ID          int    `json:"id"`
	Title       string `json:"title" validate:"required"`
	Genre       string `json:"genre" validate:"required"`
	Director    string `json:"director" validate:"required"`
	Cast        string `json:"cast,omitempty"`
	Description string `json:"description" validate:"required"`

	// Passthrough columns from the feed; never used for features.
	Year      string `json:"year,omitempty"`
	Runtime   string `json:"runtime,omitempty"`
	Rating    string `json:"rating,omitempty"`
	Metascore string `json:"metascore,omitempty"`
	Votes     string `json:"votes,omitempty"`
}

// Corpus is the ordered catalog. A record's position is its row in every derived matrix.
type Corpus []MovieRecord

// TitleEntry is the serving projection of a MovieRecord.
type TitleEntry struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Projection returns the id/title projection of the corpus in corpus order.
func (c Corpus) Projection() []TitleEntry {
	out := make([]TitleEntry, len(c))
	for i, m := range c {
		out[i] = TitleEntry{ID: m.ID, Title: m.Title}
	}
	return out
}
