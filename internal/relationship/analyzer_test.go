package relationship_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"opiniongraph/internal/checkpoint"
	"opiniongraph/internal/opinion"
	"opiniongraph/internal/relationship"
)

type fakeOracle struct {
	payloads []string
	calls    int
	err      error
}

func (f *fakeOracle) CompleteJSON(_ context.Context, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	payload := f.payloads[f.calls%len(f.payloads)]
	f.calls++
	return payload, nil
}

type memoryCache struct {
	entries map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]string{}}
}

func (m *memoryCache) GetLLMResponse(_ context.Context, stage checkpoint.Stage, queryID string) (string, bool, error) {
	payload, ok := m.entries[string(stage)+"/"+queryID]
	return payload, ok, nil
}

func (m *memoryCache) SaveLLMResponse(_ context.Context, stage checkpoint.Stage, queryID, payload string) error {
	m.entries[string(stage)+"/"+queryID] = payload
	return nil
}

func day(n int) time.Time {
	return time.Date(2023, time.March, n, 0, 0, 0, 0, time.UTC)
}

func sampleOpinions() []*opinion.Raw {
	return []*opinion.Raw{
		{ID: "1_ep1", Title: "Rates will stay high", Description: "Central banks hold", EpisodeID: "ep1", EpisodeDate: day(1)},
		{ID: "2_ep2", Title: "Rates will fall soon", Description: "Cuts incoming", EpisodeID: "ep2", EpisodeDate: day(10)},
	}
}

func TestAnalyzeBuildsRelationships(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{
		`{"relationships":[{"source_id":"1_ep1","target_id":"2_ep2","relation_type":"EVOLUTION","notes":"view shifted","confidence":0.9}]}`,
	}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)

	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected one relationship, got %d", len(rels))
	}
	rel := rels[0]
	if rel.RelationType != opinion.RelationEvolution {
		t.Fatalf("unexpected type: %q", rel.RelationType)
	}
	if rel.SourceID != "1_ep1" || rel.TargetID != "2_ep2" {
		t.Fatalf("unexpected ids: %s -> %s", rel.SourceID, rel.TargetID)
	}
	if rel.SourceEpisodeID != "ep1" || rel.TargetEpisodeID != "ep2" {
		t.Fatalf("unexpected episodes: %s -> %s", rel.SourceEpisodeID, rel.TargetEpisodeID)
	}
}

func TestAnalyzeAcceptsBareArray(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{
		`[{"source_id":"1_ep1","target_id":"2_ep2","relation_type":"RELATED"}]`,
	}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rels) != 1 || rels[0].RelationType != opinion.RelationRelated {
		t.Fatalf("unexpected result: %v", rels)
	}
}

func TestAnalyzeDropsNoRelation(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{
		`{"relationships":[{"source_id":"1_ep1","target_id":"2_ep2","relation_type":"NO_RELATION"}]}`,
	}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rels) != 0 {
		t.Fatalf("expected NO_RELATION to be dropped, got %v", rels)
	}
}

func TestAnalyzeUnknownTypeBecomesRelated(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{
		`{"relationships":[{"source_id":"1_ep1","target_id":"2_ep2","relation_type":"KIND_OF_SIMILAR"}]}`,
	}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rels) != 1 || rels[0].RelationType != opinion.RelationRelated {
		t.Fatalf("expected unknown type to become related, got %v", rels)
	}
}

func TestAnalyzeReversesBackwardsEvolution(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{
		`{"relationships":[{"source_id":"2_ep2","target_id":"1_ep1","relation_type":"EVOLUTION","notes":"shifted"}]}`,
	}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected one relationship, got %d", len(rels))
	}
	rel := rels[0]
	if rel.SourceID != "1_ep1" || rel.TargetID != "2_ep2" {
		t.Fatalf("expected chronological flip, got %s -> %s", rel.SourceID, rel.TargetID)
	}
	if rel.Notes != "shifted [reversed]" {
		t.Fatalf("expected reversed marker, got %q", rel.Notes)
	}
}

func TestAnalyzeResolvesShortIDs(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{
		`{"relationships":[{"source_id":"1","target_id":"2","relation_type":"RELATED"}]}`,
	}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected short ids resolved, got %d relationships", len(rels))
	}
	if rels[0].SourceID != "1_ep1" || rels[0].TargetID != "2_ep2" {
		t.Fatalf("unexpected composite ids: %s -> %s", rels[0].SourceID, rels[0].TargetID)
	}
	if rels[0].OriginalSourceID != "1" {
		t.Fatalf("expected original id retained, got %q", rels[0].OriginalSourceID)
	}
}

func TestAnalyzeDropsUnresolvableIDs(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{
		`{"relationships":[{"source_id":"99","target_id":"2_ep2","relation_type":"RELATED"}]}`,
	}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rels) != 0 {
		t.Fatalf("expected unresolvable relationship dropped, got %v", rels)
	}
}

func TestAnalyzeCachesBatchResponses(t *testing.T) {
	payload := `{"relationships":[{"source_id":"1_ep1","target_id":"2_ep2","relation_type":"RELATED"}]}`
	oracle := &fakeOracle{payloads: []string{payload}}
	cache := newMemoryCache()
	analyzer := relationship.NewAnalyzer(oracle, cache, 20, 0.7, nil)

	for i := 0; i < 2; i++ {
		if _, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions()); err != nil {
			t.Fatalf("Analyze run %d: %v", i, err)
		}
	}
	if oracle.calls != 1 {
		t.Fatalf("expected single oracle call with cache, got %d", oracle.calls)
	}
}

func TestAnalyzeRefusalObjectIsHard(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{
		`{"error": "model refused", "results": []}`,
	}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err == nil {
		t.Fatalf("expected hard failure on object without relationships key, got %v", rels)
	}
}

func TestAnalyzeEmptyRelationshipsKeyIsValid(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{`{"relationships": []}`}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rels) != 0 {
		t.Fatalf("expected no relationships, got %v", rels)
	}
}

func TestAnalyzeOracleFailureIsHard(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("boom")}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	if _, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions()); err == nil {
		t.Fatal("expected hard failure on oracle error")
	}
}

func TestAnalyzeSingleOpinionNoOp(t *testing.T) {
	oracle := &fakeOracle{payloads: []string{`[]`}}
	analyzer := relationship.NewAnalyzer(oracle, nil, 20, 0.7, nil)
	rels, err := analyzer.Analyze(context.Background(), "economics", sampleOpinions()[:1])
	if err != nil || rels != nil {
		t.Fatalf("expected no-op for single opinion, got %v %v", rels, err)
	}
	if oracle.calls != 0 {
		t.Fatalf("oracle should not be called, got %d calls", oracle.calls)
	}
}

func TestHeuristicAnalyze(t *testing.T) {
	analyzer := relationship.NewAnalyzer(&fakeOracle{}, nil, 20, 0.5, nil)
	opinions := []*opinion.Raw{
		{ID: "1_ep1", Title: "Bitcoin adoption is accelerating fast", Description: "institutional money flowing into bitcoin", EpisodeID: "ep1", EpisodeDate: day(1)},
		{ID: "2_ep2", Title: "Bitcoin adoption keeps accelerating", Description: "institutional money flowing into bitcoin", EpisodeID: "ep2", EpisodeDate: day(5)},
		{ID: "3_ep3", Title: "Remote work is here to stay", Description: "offices remain empty", EpisodeID: "ep3", EpisodeDate: day(9)},
	}
	rels := analyzer.HeuristicAnalyze("crypto", opinions)
	if len(rels) != 1 {
		t.Fatalf("expected one heuristic link, got %d", len(rels))
	}
	if rels[0].SourceID != "1_ep1" || rels[0].TargetID != "2_ep2" {
		t.Fatalf("unexpected pair: %s -> %s", rels[0].SourceID, rels[0].TargetID)
	}
	if rels[0].RelationType != opinion.RelationRelated {
		t.Fatalf("unexpected type: %q", rels[0].RelationType)
	}
}

func TestHeuristicAnalyzeSkipsSameEpisode(t *testing.T) {
	analyzer := relationship.NewAnalyzer(&fakeOracle{}, nil, 20, 0.1, nil)
	opinions := []*opinion.Raw{
		{ID: "1_ep1", Title: "same words here", Description: "same words here", EpisodeID: "ep1", EpisodeDate: day(1)},
		{ID: "2_ep1", Title: "same words here", Description: "same words here", EpisodeID: "ep1", EpisodeDate: day(1)},
	}
	if rels := analyzer.HeuristicAnalyze("x", opinions); len(rels) != 0 {
		t.Fatalf("expected same-episode pair skipped, got %v", rels)
	}
}
