package analyzer

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"ctxopt/internal/port"
)

var _ port.Tokenizer = (*Tokenizer)(nil)

// Tokenizer splits text into lower-cased keywords with stopwords and
// one-character tokens removed.
type Tokenizer struct {
	stopwords map[string]struct{}
	estimator Estimator
	stemmer   *PorterStemmer
}

type Option func(*Tokenizer)

// WithStemming reduces every token to its Porter stem. Chunk postings and
// queries must be tokenized the same way for their terms to meet.
func WithStemming() Option {
	return func(t *Tokenizer) {
		t.stemmer = NewPorterStemmer()
	}
}

// NewTokenizer creates a Tokenizer whose CountTokens uses est.
func NewTokenizer(est Estimator, opts ...Option) *Tokenizer {
	t := &Tokenizer{
		stopwords: defaultStopwords(),
		estimator: est,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize splits text into tokens, preserving order and duplicates.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.stemmer != nil {
			if word = t.stemmer.Stem(word); len(word) < 2 {
				continue
			}
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CountTokens returns the estimated LLM token count of text.
func (t *Tokenizer) CountTokens(text string) int {
	return t.estimator.Estimate(text)
}

// IsStopword reports whether the lower-cased word is a stopword.
func (t *Tokenizer) IsStopword(word string) bool {
	_, ok := t.stopwords[strings.ToLower(word)]
	return ok
}

// Keywords returns the distinct tokens of text in sorted order.
func (t *Tokenizer) Keywords(text string) []string {
	set := t.KeywordSet(text)
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *Tokenizer) KeywordSet(text string) map[string]struct{} {
	tokens := t.Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// Cosine is the cosine similarity of two keyword-presence vectors:
// |A∩B| / (sqrt|A| * sqrt|B|). Empty sets score 0.
func Cosine(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for k := range small {
		if _, ok := large[k]; ok {
			shared++
		}
	}
	return float64(shared) / (math.Sqrt(float64(len(a))) * math.Sqrt(float64(len(b))))
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
		"me", "my", "find", "show",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
