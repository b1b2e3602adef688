package index

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/eiga/internal/features"
	"github.com/hyperjump/eiga/internal/fixtures"
	"github.com/hyperjump/eiga/internal/models"
)

func buildSample(t *testing.T) *Index {
	t.Helper()
	ix, err := Build(fixtures.SampleCorpus())
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

func TestBuild_matrixProperties(t *testing.T) {
	ix := buildSample(t)
	m := ix.Matrix()
	n := m.Size()
	if n != 6 {
		t.Fatalf("size = %d, want 6", n)
	}
	for i := 0; i < n; i++ {
		rowMax := math.Inf(-1)
		for j := 0; j < n; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > 1e-9 {
				t.Errorf("M[%d][%d]=%f != M[%d][%d]=%f", i, j, m.At(i, j), j, i, m.At(j, i))
			}
			if v := m.At(i, j); v < -1-1e-9 || v > 1+1e-9 {
				t.Errorf("M[%d][%d]=%f outside [-1, 1]", i, j, v)
			}
			rowMax = math.Max(rowMax, m.At(i, j))
		}
		if m.At(i, i) < rowMax-1e-9 {
			t.Errorf("M[%d][%d]=%f is not the row maximum %f", i, i, m.At(i, i), rowMax)
		}
		if math.Abs(m.At(i, i)-1) > 1e-9 {
			t.Errorf("self-similarity of row %d = %f, want 1", i, m.At(i, i))
		}
	}
}

func TestBuild_insufficientData(t *testing.T) {
	corpus := fixtures.SampleCorpus()[:1]
	_, err := Build(corpus)
	var insufficient *models.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if insufficient.Movies != 1 {
		t.Errorf("Movies = %d", insufficient.Movies)
	}

	_, err = Build(models.Corpus{})
	if !errors.As(err, &insufficient) {
		t.Fatalf("empty corpus: err = %v, want InsufficientDataError", err)
	}
}

func TestBuild_missingAttributeAborts(t *testing.T) {
	corpus := fixtures.SampleCorpus()
	corpus[4].Description = ""
	_, err := Build(corpus)
	var missing *models.MissingAttributeError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingAttributeError", err)
	}
}

func TestBuild_meta(t *testing.T) {
	ix, err := Build(fixtures.SampleCorpus(), WithSource("/data/imdb.xlsx", "sha256:abc"))
	if err != nil {
		t.Fatal(err)
	}
	meta := ix.Meta()
	if meta.BuildID == "" || meta.BuiltAt.IsZero() {
		t.Errorf("build id and time should be set: %+v", meta)
	}
	if meta.Source != "/data/imdb.xlsx" || meta.Fingerprint != "sha256:abc" {
		t.Errorf("source not recorded: %+v", meta)
	}
	if meta.VocabularySize == 0 {
		t.Error("vocabulary size should be recorded")
	}
	other := buildSample(t)
	if other.Meta().BuildID == meta.BuildID {
		t.Error("each build should get a new id")
	}
}

func TestRecommend_stillwater(t *testing.T) {
	ix := buildSample(t)
	recs, err := ix.Recommend("Stillwater", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 5 {
		t.Fatalf("got %d results, want 5", len(recs))
	}
	for i, r := range recs {
		if r.Title == "Stillwater" {
			t.Error("results must not include the queried title")
		}
		if r.Rank != i+1 {
			t.Errorf("rank = %d, want %d", r.Rank, i+1)
		}
		if i > 0 && r.Score > recs[i-1].Score {
			t.Errorf("scores not descending at %d: %f > %f", i, r.Score, recs[i-1].Score)
		}
	}
	// Same director and genre: Spotlight is the closest match.
	if recs[0].Title != "Spotlight" || recs[0].ID != 3 {
		t.Errorf("top result = %+v, want Spotlight", recs[0])
	}
}

func TestRecommend_franchise(t *testing.T) {
	ix := buildSample(t)
	recs, err := ix.Recommend("Spider-Man: Far From Home", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Title != "Spider-Man: No Way Home" {
		t.Errorf("got %+v, want Spider-Man: No Way Home", recs)
	}
}

func TestRecommend_fewerThanK(t *testing.T) {
	ix, err := Build(fixtures.SampleCorpus()[:3])
	if err != nil {
		t.Fatal(err)
	}
	recs, err := ix.Recommend("Stillwater", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d results, want 2", len(recs))
	}
}

func TestRecommend_lengthIsMinKNMinusOne(t *testing.T) {
	ix := buildSample(t)
	for k := 1; k <= 8; k++ {
		recs, err := ix.Recommend("Dune", k)
		if err != nil {
			t.Fatal(err)
		}
		want := k
		if want > ix.Len()-1 {
			want = ix.Len() - 1
		}
		if len(recs) != want {
			t.Errorf("k=%d: got %d results, want %d", k, len(recs), want)
		}
	}
}

func TestRecommend_unknownTitle(t *testing.T) {
	ix := buildSample(t)
	for _, title := range []string{"Not A Movie", "stillwater", "Stillwater ", ""} {
		recs, err := ix.Recommend(title, 5)
		var unknown *models.UnknownTitleError
		if !errors.As(err, &unknown) {
			t.Errorf("Recommend(%q): err = %v, want UnknownTitleError", title, err)
		}
		if recs != nil {
			t.Errorf("Recommend(%q) returned %v alongside error", title, recs)
		}
	}
	// The snapshot still serves after a failed query.
	if _, err := ix.Recommend("Dune", 5); err != nil {
		t.Errorf("index unusable after unknown title: %v", err)
	}
}

func TestRecommend_defaultK(t *testing.T) {
	ix := buildSample(t)
	recs, err := ix.Recommend("Dune", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != models.DefaultK {
		t.Errorf("got %d results, want %d", len(recs), models.DefaultK)
	}
}

func TestRecommend_stableTies(t *testing.T) {
	// Row 0 scores rows 1..4 equally; ties must keep corpus order.
	rows := [][]float64{
		{1, 0.5, 0.2, 0.5, 0.5},
		{0.5, 1, 0, 0, 0},
		{0.2, 0, 1, 0, 0},
		{0.5, 0, 0, 1, 0},
		{0.5, 0, 0, 0, 1},
	}
	m, err := NewSimilarityMatrix(rows)
	if err != nil {
		t.Fatal(err)
	}
	titles := []models.TitleEntry{{ID: 10, Title: "a"}, {ID: 11, Title: "b"}, {ID: 12, Title: "c"}, {ID: 13, Title: "d"}, {ID: 14, Title: "e"}}
	ix, err := New(Meta{BuildID: "t"}, titles, m)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := ix.Recommend("a", 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "d", "e", "c"}
	for i, r := range recs {
		if r.Title != want[i] {
			t.Errorf("position %d = %s, want %s", i, r.Title, want[i])
		}
	}
}

func TestRecommend_excludesSelfByPosition(t *testing.T) {
	// Two movies with identical features: the twin scores 1.0 like the query itself.
	corpus := models.Corpus{
		{ID: 1, Title: "Twin A", Director: "Same", Genre: "Drama", Description: "identical words here"},
		{ID: 2, Title: "Twin B", Director: "Same", Genre: "Drama", Description: "identical words here"},
		{ID: 3, Title: "Other", Director: "Else", Genre: "Comedy", Description: "different entirely"},
	}
	ix, err := Build(corpus)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := ix.Recommend("Twin B", 2)
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].Title != "Twin A" {
		t.Errorf("top = %s, want Twin A", recs[0].Title)
	}
	for _, r := range recs {
		if r.ID == 2 {
			t.Error("queried position must be excluded")
		}
	}
}

func TestRecommend_duplicateTitleFirstWins(t *testing.T) {
	rows := [][]float64{
		{1, 0.9, 0.1},
		{0.9, 1, 0.8},
		{0.1, 0.8, 1},
	}
	m, _ := NewSimilarityMatrix(rows)
	titles := []models.TitleEntry{{ID: 1, Title: "Dup"}, {ID: 2, Title: "Dup"}, {ID: 3, Title: "Z"}}
	ix, err := New(Meta{}, titles, m)
	if err != nil {
		t.Fatal(err)
	}
	pos, ok := ix.Position("Dup")
	if !ok || pos != 0 {
		t.Errorf("Position(Dup) = %d, %v; want 0", pos, ok)
	}
	recs, _ := ix.Recommend("Dup", 2)
	if recs[0].ID != 2 || recs[1].ID != 3 {
		t.Errorf("got %+v", recs)
	}
}

func TestNew_corrupt(t *testing.T) {
	m, _ := NewSimilarityMatrix([][]float64{{1, 0}, {0, 1}})
	_, err := New(Meta{BuildID: "x"}, []models.TitleEntry{{ID: 1, Title: "only"}}, m)
	var corrupt *models.CorruptIndexError
	if !errors.As(err, &corrupt) {
		t.Fatalf("err = %v, want CorruptIndexError", err)
	}
	if _, err := New(Meta{}, nil, nil); !errors.As(err, &corrupt) {
		t.Fatalf("nil matrix: err = %v, want CorruptIndexError", err)
	}
}

func TestNewSimilarityMatrix_raggedRow(t *testing.T) {
	if _, err := NewSimilarityMatrix([][]float64{{1, 0}, {0}}); err == nil {
		t.Error("expected error for ragged rows")
	}
}

func TestScore(t *testing.T) {
	ix := buildSample(t)
	s, err := ix.Score("Stillwater", "Spotlight")
	if err != nil {
		t.Fatal(err)
	}
	r, _ := ix.Score("Spotlight", "Stillwater")
	if s != r || s <= 0 {
		t.Errorf("Score = %f / %f", s, r)
	}
	if _, err := ix.Score("Stillwater", "nope"); err == nil {
		t.Error("expected error for unknown title")
	}
}

func TestCosineSimilarity_zeroVector(t *testing.T) {
	a := features.Vector{Indices: []int{0}, Values: []float64{2}}
	if got := CosineSimilarity(a, features.Vector{}); got != 0 {
		t.Errorf("got %f, want 0", got)
	}
	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-12 {
		t.Errorf("self = %f, want 1", got)
	}
}
