package identity_test

import (
	"testing"

	"opiniongraph/internal/identity"
	"opiniongraph/internal/opinion"
)

func buildIndex(t *testing.T, ids ...string) *identity.Index {
	t.Helper()
	opinions := make(map[string]*opinion.Raw, len(ids))
	for _, id := range ids {
		opinions[id] = &opinion.Raw{ID: id}
	}
	return identity.NewIndex(opinions, nil)
}

func TestResolveExactMatch(t *testing.T) {
	idx := buildIndex(t, "12_ep3")
	if got := idx.Resolve("12_ep3", ""); got == nil || got.ID != "12_ep3" {
		t.Fatalf("expected exact match, got %v", got)
	}
}

func TestResolveShortIDViaEpisodeHint(t *testing.T) {
	idx := buildIndex(t, "42_epZ")
	got := idx.Resolve("42", "epZ")
	if got == nil || got.ID != "42_epZ" {
		t.Fatalf("expected variant-table resolution of short id, got %v", got)
	}
}

func TestResolveDoubledEpisodeSuffix(t *testing.T) {
	idx := buildIndex(t, "7_ep1")
	got := idx.Resolve("7_ep1_ep1", "")
	if got == nil || got.ID != "7_ep1" {
		t.Fatalf("expected doubled-suffix alias to resolve, got %v", got)
	}
}

func TestResolveBareNumberWithoutHint(t *testing.T) {
	idx := buildIndex(t, "9_ep4")
	got := idx.Resolve("9", "")
	if got == nil || got.ID != "9_ep4" {
		t.Fatalf("expected alias table to resolve bare number, got %v", got)
	}
}

func TestResolveFuzzySubstringFallback(t *testing.T) {
	idx := buildIndex(t, "opinion-15_ep8")
	got := idx.Resolve("15_ep8", "ep8")
	if got == nil || got.ID != "opinion-15_ep8" {
		t.Fatalf("expected fuzzy fallback to resolve, got %v", got)
	}
}

func TestResolveUnknownReturnsNil(t *testing.T) {
	idx := buildIndex(t, "1_ep1", "2_ep2")
	if got := idx.Resolve("99", "ep9"); got != nil {
		t.Fatalf("expected nil for unknown id, got %v", got)
	}
	if got := idx.Resolve("", "ep1"); got != nil {
		t.Fatalf("expected nil for empty id, got %v", got)
	}
}

func TestAliasCollisionKeepsFirstRegistration(t *testing.T) {
	opinions := map[string]*opinion.Raw{
		"3_ep1": {ID: "3_ep1"},
		"3_ep2": {ID: "3_ep2"},
	}
	idx := identity.NewIndex(opinions, nil)

	// The bare alias "3" is ambiguous; the episode hint must still
	// disambiguate regardless of which registration won.
	if got := idx.Resolve("3", "ep2"); got == nil || got.ID != "3_ep2" {
		t.Fatalf("expected hint to disambiguate, got %v", got)
	}
	if got := idx.Resolve("3", "ep1"); got == nil || got.ID != "3_ep1" {
		t.Fatalf("expected hint to disambiguate, got %v", got)
	}
}
