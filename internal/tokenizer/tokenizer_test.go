package tokenizer_test

import (
	"reflect"
	"testing"

	"github.com/deidaraiorek/searchcore/internal/tokenizer"
)

func TestTokenize(t *testing.T) {
	tok := tokenizer.NewTokenizer()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "basic text keeps stop words",
			input:    "The quick brown fox jumps over the lazy dog",
			expected: []string{"the", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog"},
		},
		{
			name:     "with punctuation",
			input:    "Hello, world! How are you?",
			expected: []string{"hello", "world", "how", "are", "you"},
		},
		{
			name:     "digits split words",
			input:    "Python3.11 is great for AI/ML",
			expected: []string{"python", "is", "great", "for", "ai", "ml"},
		},
		{
			name:     "hyphens and underscores",
			input:    "machine-learning snake_case",
			expected: []string{"machine", "learning", "snake", "case"},
		},
		{
			name:     "single letters survive",
			input:    "I have a big dog",
			expected: []string{"i", "have", "a", "big", "dog"},
		},
		{
			name:     "non ascii letters",
			input:    "Crème brûlée, Straße",
			expected: []string{"crème", "brûlée", "straße"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: []string{},
		},
		{
			name:     "only separators",
			input:    " 123 -- !! ",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tok.Tokenize(tt.input)

			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestContentWords(t *testing.T) {
	tok := tokenizer.NewTokenizer()

	tests := []struct {
		input    string
		expected []string
	}{
		{"The history of Go", []string{"history", "go"}},
		{"it is in a box", []string{"box"}},
		{"Functional programming AND the lambda calculus", []string{"functional", "programming", "lambda", "calculus"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := tok.ContentWords(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ContentWords(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStopWords(t *testing.T) {
	tok := tokenizer.NewTokenizer()

	for _, word := range []string{"the", "of", "to", "and", "a", "in", "is", "it"} {
		if !tok.IsStopWord(word) {
			t.Errorf("Expected %q to be a stop word", word)
		}
	}

	for _, word := range []string{"an", "or", "machine", "search"} {
		if tok.IsStopWord(word) {
			t.Errorf("Expected %q to NOT be a stop word", word)
		}
	}

	if !tok.IsStopWord("The") {
		t.Error("Stop word check should ignore case")
	}
}

func BenchmarkTokenize(b *testing.B) {
	tok := tokenizer.NewTokenizer()
	text := `Machine learning is a subset of artificial intelligence that focuses on
	building systems that learn from data. Deep learning, a subset of machine learning,
	uses neural networks with multiple layers to analyze various factors of data.`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tok.Tokenize(text)
	}
}
