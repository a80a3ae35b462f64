package tokenizer

import (
	"regexp"
	"strings"
)

var wordRegex = regexp.MustCompile(`\p{L}+`)

type Tokenizer struct {
	StopWords map[string]bool
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		StopWords: defaultStopWords(),
	}
}

// Tokenize lowercases text and splits it on runs of non-letter characters.
// Every word is kept, stop words included.
func (t *Tokenizer) Tokenize(text string) []string {
	tokens := wordRegex.FindAllString(strings.ToLower(text), -1)
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// ContentWords tokenizes text and drops stop words.
func (t *Tokenizer) ContentWords(text string) []string {
	tokens := t.Tokenize(text)

	words := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if t.StopWords[token] {
			continue
		}
		words = append(words, token)
	}
	return words
}

func (t *Tokenizer) IsStopWord(word string) bool {
	return t.StopWords[strings.ToLower(word)]
}

func defaultStopWords() map[string]bool {
	words := []string{"the", "of", "to", "and", "a", "in", "is", "it"}

	stopWords := make(map[string]bool, len(words))
	for _, word := range words {
		stopWords[word] = true
	}
	return stopWords
}
