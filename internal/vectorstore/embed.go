package vectorstore

import (
	"math"
	"strings"
	"unicode"

	farm "github.com/dgryski/go-farm"
)

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Embed(text string) []float32
	Dims() int
}

// HashEmbedder is a model-free embedder: tokens are feature-hashed into a
// fixed number of buckets and the result is L2-normalised.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Dims() int { return e.dims }

func (e *HashEmbedder) Embed(text string) []float32 {
	v := make([]float32, e.dims)
	for _, tok := range Tokenize(text) {
		h := farm.Hash64([]byte(tok))
		idx := h % uint64(e.dims)
		// The top bit of the hash picks the sign.
		if h>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Tokenize lower-cases text and splits it on whitespace and punctuation,
// dropping tokens shorter than two bytes.
func Tokenize(text string) []string {
	var tokens []string
	f := func(c rune) bool {
		return unicode.IsSpace(c) || unicode.IsPunct(c)
	}
	for _, token := range strings.FieldsFunc(text, f) {
		t := strings.ToLower(token)
		if len(t) >= 2 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
