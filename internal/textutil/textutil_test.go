package textutil_test

import (
	"testing"

	"opiniongraph/internal/textutil"
)

func TestSimilarityIdenticalText(t *testing.T) {
	score := textutil.Similarity("the fed will cut rates", "the fed will cut rates")
	if score < 0.999 {
		t.Fatalf("expected identical text to score ~1.0, got %f", score)
	}
}

func TestSimilarityDisjointText(t *testing.T) {
	if score := textutil.Similarity("bitcoin adoption accelerating", "remote work productivity"); score != 0 {
		t.Fatalf("expected disjoint text to score 0, got %f", score)
	}
}

func TestSimilarityEmptyText(t *testing.T) {
	if score := textutil.Similarity("", "anything at all"); score != 0 {
		t.Fatalf("expected empty text to score 0, got %f", score)
	}
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	tokens := textutil.Tokenize("AI is the Future of work")
	for _, token := range tokens {
		if len(token) < 3 {
			t.Fatalf("short token %q survived", token)
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := textutil.Excerpt("short", 10); got != "short" {
		t.Fatalf("unexpected excerpt: %q", got)
	}
	got := textutil.Excerpt("a very long piece of content that keeps going", 12)
	if len([]rune(got)) > 15 {
		t.Fatalf("excerpt too long: %q", got)
	}
	if got[len(got)-3:] != "..." {
		t.Fatalf("expected ellipsis, got %q", got)
	}
}
