package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/fixtures"
	"github.com/hyperjump/eiga/internal/index"
	"github.com/hyperjump/eiga/internal/indexer"
	"github.com/hyperjump/eiga/internal/ingest"
	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/recommend"
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

type fakeRebuilder struct {
	err   error
	calls int
	force bool
}

func (f *fakeRebuilder) Rebuild(_ context.Context, _ string, force bool) (*indexer.Result, error) {
	f.calls++
	f.force = force
	if f.err != nil {
		return nil, f.err
	}
	return &indexer.Result{BuildID: "b1", Movies: 6}, nil
}

func testServer(t *testing.T, live *index.Live, rb Rebuilder, feed string) http.Handler {
	t.Helper()
	engine := recommend.NewEngine(live)
	return NewServer(engine, rb, feed, &config.ServerConfig{Port: 8080}, zap.NewNop()).Handler()
}

func sampleLive(t *testing.T) *index.Live {
	t.Helper()
	ix, err := index.Build(fixtures.SampleCorpus())
	if err != nil {
		t.Fatal(err)
	}
	return index.NewLive(ix)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleRecommend_post(t *testing.T) {
	h := testServer(t, sampleLive(t), nil, "")
	w := do(t, h, http.MethodPost, "/api/v1/recommend", `{"title":"Stillwater","k":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body)
	}
	var resp models.RecommendResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.K != 2 || len(resp.Results) != 2 || resp.Results[0].Title != "Spotlight" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleRecommend_get(t *testing.T) {
	h := testServer(t, sampleLive(t), nil, "")
	w := do(t, h, http.MethodGet, "/api/v1/recommend?title=Spider-Man%3A+Far+From+Home&k=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body)
	}
	var resp models.RecommendResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Title != "Spider-Man: No Way Home" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleRecommend_errors(t *testing.T) {
	h := testServer(t, sampleLive(t), nil, "")
	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/v1/recommend", `{`, http.StatusBadRequest},
		{"empty title", http.MethodPost, "/api/v1/recommend", `{"title":""}`, http.StatusBadRequest},
		{"bad k", http.MethodGet, "/api/v1/recommend?title=Dune&k=two", "", http.StatusBadRequest},
		{"missing title", http.MethodGet, "/api/v1/recommend", "", http.StatusBadRequest},
		{"unknown title", http.MethodPost, "/api/v1/recommend", `{"title":"dune"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestHandleRecommend_unknownTitleSuggestions(t *testing.T) {
	h := testServer(t, sampleLive(t), nil, "")
	w := do(t, h, http.MethodPost, "/api/v1/recommend", `{"title":"Spotligt"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", w.Code)
	}
	var out errorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Suggestions) != 1 || out.Suggestions[0] != "Spotlight" {
		t.Errorf("suggestions = %v", out.Suggestions)
	}
}

func TestHandleRecommend_noIndex(t *testing.T) {
	h := testServer(t, index.NewLive(nil), nil, "")
	w := do(t, h, http.MethodPost, "/api/v1/recommend", `{"title":"Dune"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
	w = do(t, h, http.MethodGet, "/api/v1/titles", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("titles status: got %d, want 503", w.Code)
	}
}

func TestHandleTitles(t *testing.T) {
	h := testServer(t, sampleLive(t), nil, "")
	w := do(t, h, http.MethodGet, "/api/v1/titles?q=spider&limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp models.TitlesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Titles) != 1 || resp.Titles[0].ID != 0 {
		t.Errorf("resp = %+v", resp)
	}

	if w := do(t, h, http.MethodGet, "/api/v1/titles?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	h := testServer(t, sampleLive(t), nil, "")
	w := do(t, h, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st models.IndexStatus
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.Loaded || st.Movies != 6 {
		t.Errorf("status = %+v", st)
	}
}

func TestHandleRebuild(t *testing.T) {
	dir := t.TempDir()
	feed := filepath.Join(dir, "movies.csv")
	if err := fixtures.WriteFeed(feed, fixtures.SampleCorpus()); err != nil {
		t.Fatal(err)
	}
	live := index.NewLive(nil)
	idx := indexer.NewIndexer(ingest.NewReader(), nil, nil, live)
	h := testServer(t, live, idx, feed)

	w := do(t, h, http.MethodPost, "/api/v1/rebuild", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body)
	}
	var res indexer.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Movies != 6 || res.Skipped {
		t.Errorf("result = %+v", res)
	}

	// The rebuilt snapshot serves queries immediately.
	if w := do(t, h, http.MethodPost, "/api/v1/recommend", `{"title":"Dune","k":1}`); w.Code != http.StatusOK {
		t.Errorf("recommend after rebuild: got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/api/v1/rebuild", `{"force":false}`)
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("second rebuild of an unchanged feed should be skipped")
	}
}

func TestHandleRebuild_errors(t *testing.T) {
	live := sampleLive(t)
	tests := []struct {
		name string
		rb   Rebuilder
		feed string
		body string
		want int
	}{
		{"disabled", nil, "/data/movies.csv", "", http.StatusNotImplemented},
		{"no feed", &fakeRebuilder{}, "", "", http.StatusBadRequest},
		{"bad body", &fakeRebuilder{}, "/data/movies.csv", "{", http.StatusBadRequest},
		{"missing attribute", &fakeRebuilder{err: &models.MissingAttributeError{Position: 3, Attribute: "genre"}}, "/data/movies.csv", "", http.StatusUnprocessableEntity},
		{"insufficient", &fakeRebuilder{err: &models.InsufficientDataError{Movies: 1, Min: 2}}, "/data/movies.csv", "", http.StatusUnprocessableEntity},
		{"corrupt", &fakeRebuilder{err: &models.CorruptIndexError{Reason: "row width"}}, "/data/movies.csv", "", http.StatusInternalServerError},
		{"other", &fakeRebuilder{err: errors.New("disk full")}, "/data/movies.csv", "", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testServer(t, live, tt.rb, tt.feed)
			w := do(t, h, http.MethodPost, "/api/v1/rebuild", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestHandleRebuild_force(t *testing.T) {
	rb := &fakeRebuilder{}
	h := testServer(t, sampleLive(t), rb, "/data/movies.csv")
	w := do(t, h, http.MethodPost, "/api/v1/rebuild", `{"force":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if rb.calls != 1 || !rb.force {
		t.Errorf("calls = %d, force = %v", rb.calls, rb.force)
	}
}

func TestHandleHealthAndMetrics(t *testing.T) {
	h := testServer(t, sampleLive(t), nil, "")
	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"ok"`)) {
		t.Errorf("health: %d %s", w.Code, w.Body)
	}

	do(t, h, http.MethodPost, "/api/v1/recommend", `{"title":"Dune"}`)
	w = do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "eiga_recommend_requests_total") {
		t.Error("metrics output should include eiga_recommend_requests_total")
	}
}

func TestRespondJSON_contentType(t *testing.T) {
	s := NewServer(nil, nil, "", &config.ServerConfig{}, nil)
	w := httptest.NewRecorder()
	s.respondJSON(w, http.StatusCreated, map[string]string{"a": "b"})
	if w.Code != http.StatusCreated || w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("got %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

// httpRouteSeries returns the request count per route label of eiga_http_requests_total.
func httpRouteSeries(t *testing.T) map[string]float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	go func() {
		metrics.HTTPRequestsTotal.Collect(ch)
		close(ch)
	}()
	routes := make(map[string]float64)
	for m := range ch {
		var pb io_prometheus_client.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatal(err)
		}
		for _, l := range pb.GetLabel() {
			if l.GetName() == "route" {
				routes[l.GetValue()] += pb.GetCounter().GetValue()
			}
		}
	}
	return routes
}

func TestRequestLogger_unmatchedRoutesShareOneLabel(t *testing.T) {
	h := testServer(t, sampleLive(t), nil, "")
	before := httpRouteSeries(t)

	for i := 0; i < 25; i++ {
		w := do(t, h, http.MethodGet, fmt.Sprintf("/random/%d", i), "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("GET /random/%d: got %d", i, w.Code)
		}
	}
	do(t, h, http.MethodGet, "/api/v1/recommend?title=Dune", "")

	after := httpRouteSeries(t)
	for route := range after {
		if strings.HasPrefix(route, "/random/") {
			t.Fatalf("raw path %q used as a route label", route)
		}
	}
	if got := after[metrics.RouteUnmatched] - before[metrics.RouteUnmatched]; got != 25 {
		t.Errorf("unmatched requests counted = %v, want 25", got)
	}
	if got := after["/api/v1/recommend"] - before["/api/v1/recommend"]; got != 1 {
		t.Errorf("recommend requests counted = %v, want 1", got)
	}
	if grown := len(after) - len(before); grown > 2 {
		t.Errorf("route labels grew by %d, want at most 2", grown)
	}
}
