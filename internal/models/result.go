package models

// Recommendation is a single similar title. Rank starts at 1.
type Recommendation struct {
	Rank  int     `json:"rank"`
	ID    int     `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	Title   string            `json:"title"`
	K       int               `json:"k"`
	Results []*Recommendation `json:"results"`
	Total   int               `json:"total"`
	// BuildID identifies the index snapshot that answered the request.
	BuildID   string `json:"build_id"`
	QueryTime int64  `json:"query_time_ms"`
}

// TitlesResponse lists titles available for recommendation.
type TitlesResponse struct {
	Titles []TitleEntry `json:"titles"`
	Total  int          `json:"total"`
}

// IndexStatus describes the snapshot currently being served.
type IndexStatus struct {
	Loaded         bool   `json:"loaded"`
	BuildID        string `json:"build_id,omitempty"`
	BuiltAt        string `json:"built_at,omitempty"`
	Movies         int    `json:"movies"`
	VocabularySize int    `json:"vocabulary_size"`
	Source         string `json:"source,omitempty"`
	Fingerprint    string `json:"fingerprint,omitempty"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}
