package analyzer

import (
	"strings"
	"testing"
)

func TestTokenizer_Terms(t *testing.T) {
	tok := NewTokenizer()

	terms := tok.Terms("The Transformer architecture relies on attention")
	want := []string{"transformer", "architecture", "relies", "attention"}
	if len(terms) != len(want) {
		t.Fatalf("expected %v, got %v", want, terms)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("term %d: expected %q, got %q", i, want[i], terms[i])
		}
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer()

	for _, term := range tok.Terms("a I x go") {
		if len(term) < 2 {
			t.Errorf("short word should be removed: %s", term)
		}
	}
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer()

	count := tok.CountTokens("hello world this is a test")
	if count < 6 {
		t.Errorf("expected count >= 6 words, got %d", count)
	}

	dense := strings.Repeat("x", 400)
	if got := tok.CountTokens(dense); got != 100 {
		t.Errorf("expected 100 tokens for 400 chars, got %d", got)
	}

	if got := tok.CountTokens("!!!"); got != 1 {
		t.Errorf("expected punctuation to count as 1 token, got %d", got)
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer()

	if terms := tok.Terms(""); len(terms) != 0 {
		t.Errorf("expected 0 terms for empty input, got %d", len(terms))
	}
	if count := tok.CountTokens("   \n"); count != 0 {
		t.Errorf("expected 0 count for blank input, got %d", count)
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello_world", 1},
		{"hello-world", 2},
		{"f(x, y)", 3},
		{"naïve café", 2},
		{"123numbers456", 1},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
