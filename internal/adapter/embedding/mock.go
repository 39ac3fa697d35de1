package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"ctxopt/internal/adapter/analyzer"
)

// MockEmbedder hashes keywords into a fixed number of buckets. Texts that
// share keywords get similar vectors, which is enough for tests and
// offline runs.
type MockEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(analyzer.NewEstimator(0)),
	}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, e.dimension)
		for _, tok := range e.tokenizer.Tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			v[h.Sum32()%uint32(e.dimension)]++
		}
		normalize(v)
		out[i] = v
	}
	return out, nil
}

func (e *MockEmbedder) Dimension() int    { return e.dimension }
func (e *MockEmbedder) ModelName() string { return "mock" }

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
