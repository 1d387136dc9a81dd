package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer turns text into the sparse features used by the local embedder:
// lowercased words plus boundary-padded character n-grams of each word.
type Tokenizer struct {
	stopwords map[string]struct{}
	ngram     int
}

// NewTokenizer creates a Tokenizer emitting character n-grams of size ngram.
// ngram <= 0 disables n-gram features.
func NewTokenizer(ngram int) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		ngram:     ngram,
	}
}

// Tokenize splits text into lowercased words, dropping stopwords and
// single-character words.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Features returns word features prefixed "w:" and n-gram features prefixed "g:".
func (t *Tokenizer) Features(text string) []string {
	tokens := t.Tokenize(text)
	features := make([]string, 0, len(tokens)*4)

	for _, tok := range tokens {
		features = append(features, "w:"+tok)
		if t.ngram <= 0 {
			continue
		}
		padded := []rune("^" + tok + "$")
		for i := 0; i+t.ngram <= len(padded); i++ {
			features = append(features, "g:"+string(padded[i:i+t.ngram]))
		}
	}

	return features
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

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"but", "or", "so", "if", "do", "does", "did", "been",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
