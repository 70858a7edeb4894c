package tokenize

import (
	"testing"
)

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "the cat sat", []string{"the", "cat", "sat"}},
		{"punctuation", "hello, world! how's it going?", []string{"hello", "world", "how", "s", "it", "going"}},
		{"digits kept", "error 404 not found", []string{"error", "404", "not", "found"}},
		{"runs collapse", "a  --  b", []string{"a", "b"}},
		{"empty", "", nil},
		{"only separators", "?! .,", nil},
		{"unicode letters", "café naïve", []string{"café", "naïve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Words(tt.text)
			if !equalTokens(got, tt.want) {
				t.Errorf("Words(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestWhitespaceKeepsPunctuation(t *testing.T) {
	got := Whitespace("hello, world!")
	want := []string{"hello,", "world!"}
	if !equalTokens(got, want) {
		t.Errorf("Whitespace = %v, want %v", got, want)
	}
}

func TestLower(t *testing.T) {
	if got := Lower("CaT"); got != "cat" {
		t.Errorf("Lower(CaT) = %q, want cat", got)
	}
}

func TestIdentity(t *testing.T) {
	if got := Identity("CaT"); got != "CaT" {
		t.Errorf("Identity(CaT) = %q, want CaT", got)
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"running", "run"},
		{"cats", "cat"},
		{"Dogs", "dog"},
		{"the", "the"},
	}
	for _, tt := range tests {
		if got := Stem(tt.token); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestStemFallsBackToLower(t *testing.T) {
	// The stemmer rejects the empty string; the fallback is case folding.
	if got := Stem(""); got != "" {
		t.Errorf("Stem(\"\") = %q, want empty string", got)
	}
}

func TestStemCollapsesVariants(t *testing.T) {
	// Inflections of the same root must share a stem so queries and corpus
	// documents land on the same vocabulary id.
	if a, b := Stem("connected"), Stem("connecting"); a != b {
		t.Errorf("Stem variants diverge: connected=%q connecting=%q", a, b)
	}
}
