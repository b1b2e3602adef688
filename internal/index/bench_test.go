package index

import (
	"fmt"
	"testing"

	"github.com/hyperjump/eiga/internal/models"
)

var benchGenres = []string{"Action", "Drama", "Comedy", "Crime", "Sci-Fi", "Horror", "Romance"}

func benchCorpus(n int) models.Corpus {
	corpus := make(models.Corpus, n)
	for i := range corpus {
		corpus[i] = models.MovieRecord{
			ID:       i,
			Title:    fmt.Sprintf("Movie %d", i),
			Genre:    benchGenres[i%len(benchGenres)] + ", " + benchGenres[(i/3)%len(benchGenres)],
			Director: fmt.Sprintf("Director %d", i%40),
			Cast:     fmt.Sprintf("Actor %d, Actor %d", i%97, i%53),
			Description: fmt.Sprintf("A story about character%d who travels to city%d and meets rival%d.",
				i%211, i%17, i%29),
		}
	}
	return corpus
}

func BenchmarkBuild_500(b *testing.B) {
	corpus := benchCorpus(500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(corpus); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRecommend(b *testing.B) {
	ix, err := Build(benchCorpus(1000))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ix.Recommend(fmt.Sprintf("Movie %d", i%1000), 10); err != nil {
			b.Fatal(err)
		}
	}
}
