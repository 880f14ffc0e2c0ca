package checkpoint_test

import (
	"context"
	"path/filepath"
	"testing"

	"opiniongraph/internal/checkpoint"
)

func openStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.OpenPath(filepath.Join(t.TempDir(), "checkpoint.db"))
	if err != nil {
		t.Fatalf("open checkpoint store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReopenKeepsSchemaAndState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.db")

	store, err := checkpoint.OpenPath(path)
	if err != nil {
		t.Fatalf("open checkpoint store: %v", err)
	}
	if err := store.MarkStageComplete(ctx, "batch-1", checkpoint.StageRawExtraction); err != nil {
		t.Fatalf("MarkStageComplete: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := checkpoint.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen checkpoint store: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	done, err := reopened.IsStageComplete(ctx, "batch-1", checkpoint.StageRawExtraction)
	if err != nil {
		t.Fatalf("IsStageComplete: %v", err)
	}
	if !done {
		t.Fatal("completed stage lost across reopen")
	}
}

func TestStageDefaultsToFirst(t *testing.T) {
	store := openStore(t)
	stage, err := store.Stage(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if stage != checkpoint.StageRawExtraction {
		t.Fatalf("expected raw_extraction for fresh scope, got %q", stage)
	}
}

func TestMarkStageCompleteAdvancesCurrentStage(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.MarkStageComplete(ctx, "batch-1", checkpoint.StageRawExtraction); err != nil {
		t.Fatalf("MarkStageComplete: %v", err)
	}
	stage, err := store.Stage(ctx, "batch-1")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if stage != checkpoint.StageCategorization {
		t.Fatalf("expected categorization next, got %q", stage)
	}

	done, err := store.IsStageComplete(ctx, "batch-1", checkpoint.StageRawExtraction)
	if err != nil || !done {
		t.Fatalf("expected raw_extraction complete, got %v %v", done, err)
	}
}

func TestMarkStageCompleteIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.MarkStageComplete(ctx, "batch-1", checkpoint.StageRawExtraction); err != nil {
			t.Fatalf("MarkStageComplete attempt %d: %v", i, err)
		}
	}
	stage, err := store.Stage(ctx, "batch-1")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if stage != checkpoint.StageCategorization {
		t.Fatalf("repeat marking moved the stage: %q", stage)
	}
}

func TestAllStagesPromoteToProcessed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, stage := range checkpoint.Stages {
		if err := store.MarkStageComplete(ctx, "batch-1", stage); err != nil {
			t.Fatalf("MarkStageComplete(%s): %v", stage, err)
		}
	}

	processed, err := store.IsProcessed(ctx, "batch-1")
	if err != nil || !processed {
		t.Fatalf("expected processed scope, got %v %v", processed, err)
	}
	stage, err := store.Stage(ctx, "batch-1")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if stage != checkpoint.StageComplete {
		t.Fatalf("expected complete, got %q", stage)
	}

	scopes, err := store.ProcessedScopes(ctx)
	if err != nil {
		t.Fatalf("ProcessedScopes: %v", err)
	}
	if len(scopes) != 1 || scopes[0] != "batch-1" {
		t.Fatalf("unexpected processed scopes: %v", scopes)
	}
}

func TestResetClearsScope(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.MarkStageComplete(ctx, "batch-1", checkpoint.StageRawExtraction); err != nil {
		t.Fatalf("MarkStageComplete: %v", err)
	}
	if err := store.Reset(ctx, "batch-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	stage, err := store.Stage(ctx, "batch-1")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if stage != checkpoint.StageRawExtraction {
		t.Fatalf("expected fresh scope after reset, got %q", stage)
	}
}

func TestLLMResponseCacheRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetLLMResponse(ctx, checkpoint.StageRelationshipAnalysis, "hash-1"); err != nil || ok {
		t.Fatalf("expected cache miss, got %v %v", ok, err)
	}
	if err := store.SaveLLMResponse(ctx, checkpoint.StageRelationshipAnalysis, "hash-1", `{"relationships":[]}`); err != nil {
		t.Fatalf("SaveLLMResponse: %v", err)
	}
	payload, ok, err := store.GetLLMResponse(ctx, checkpoint.StageRelationshipAnalysis, "hash-1")
	if err != nil || !ok {
		t.Fatalf("expected cache hit, got %v %v", ok, err)
	}
	if payload != `{"relationships":[]}` {
		t.Fatalf("unexpected payload: %q", payload)
	}

	// Overwrite is allowed.
	if err := store.SaveLLMResponse(ctx, checkpoint.StageRelationshipAnalysis, "hash-1", `[]`); err != nil {
		t.Fatalf("SaveLLMResponse overwrite: %v", err)
	}
	payload, _, _ = store.GetLLMResponse(ctx, checkpoint.StageRelationshipAnalysis, "hash-1")
	if payload != `[]` {
		t.Fatalf("expected overwritten payload, got %q", payload)
	}
}

func TestStatsAccumulate(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.AddStat(ctx, "opinions_merged", 3); err != nil {
		t.Fatalf("AddStat: %v", err)
	}
	if err := store.AddStat(ctx, "opinions_merged", 2); err != nil {
		t.Fatalf("AddStat: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["opinions_merged"] != 5 {
		t.Fatalf("expected 5, got %d", stats["opinions_merged"])
	}
}

func TestProgressSummary(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.MarkStageComplete(ctx, "batch-2", checkpoint.StageRawExtraction); err != nil {
		t.Fatalf("MarkStageComplete: %v", err)
	}
	if err := store.MarkStageComplete(ctx, "batch-2", checkpoint.StageCategorization); err != nil {
		t.Fatalf("MarkStageComplete: %v", err)
	}

	summaries, err := store.Progress(ctx)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(summaries))
	}
	got := summaries[0]
	if got.ScopeID != "batch-2" || got.StagesDone != 2 || got.Processed {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if got.CurrentStage != checkpoint.StageRelationshipAnalysis {
		t.Fatalf("unexpected current stage: %q", got.CurrentStage)
	}
}

func TestStageOrdering(t *testing.T) {
	if checkpoint.StageRawExtraction.Next() != checkpoint.StageCategorization {
		t.Fatal("unexpected stage order")
	}
	if checkpoint.StageSpeakerTracking.Next() != checkpoint.StageComplete {
		t.Fatal("expected speaker_tracking to be last")
	}
	if _, ok := checkpoint.ParseStage("nonsense"); ok {
		t.Fatal("expected parse failure for unknown stage")
	}
}
