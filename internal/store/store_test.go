package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"opiniongraph/internal/opinion"
	"opiniongraph/internal/store"
)

func TestOpinionStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opinions.json")
	s := store.NewOpinionStore(path)

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty store, got %d", len(loaded))
	}

	opinions := []*opinion.Opinion{
		{ID: "1_ep1", Title: "Rates will fall", CategoryID: "economics"},
		{ID: "2_ep1", Title: "Remote work persists", CategoryID: "society"},
	}
	if err := s.SaveAll(opinions); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	loaded, err = s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "1_ep1" {
		t.Fatalf("unexpected load result: %v", loaded)
	}
}

func TestOpinionStoreWrapsDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opinions.json")
	s := store.NewOpinionStore(path)
	if err := s.SaveAll(nil); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), `"opinions"`) {
		t.Fatalf("expected wrapped document, got %s", data)
	}
}

func TestCategoryStoreFindOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	s := store.NewCategoryStore(path)

	created, err := s.FindOrCreate("Economics and Finance")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if created.ID != "economics_and_finance" {
		t.Fatalf("unexpected slug id: %q", created.ID)
	}

	// Case-insensitive reuse.
	again, err := s.FindOrCreate("economics AND finance")
	if err != nil {
		t.Fatalf("FindOrCreate again: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("expected same category, got %q vs %q", again.ID, created.ID)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one category, got %d", len(all))
	}

	// Persisted across store instances.
	reopened := store.NewCategoryStore(path)
	found, err := reopened.GetByName("Economics and Finance")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("expected persisted category, got %v", found)
	}
}

func TestCategoryStoreIDCollision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	s := store.NewCategoryStore(path)

	first, err := s.FindOrCreate("Tech & AI")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	second, err := s.FindOrCreate("Tech -- AI")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids for distinct names, both %q", first.ID)
	}
	if second.ID != first.ID+"_1" {
		t.Fatalf("expected numeric suffix, got %q", second.ID)
	}
}

func TestSnapshotsRoundTrip(t *testing.T) {
	s := store.NewSnapshots(t.TempDir())

	if _, found, err := s.ReadRawOpinions(); err != nil || found {
		t.Fatalf("expected no snapshot yet, got %v %v", found, err)
	}

	raws := []*opinion.Raw{{ID: "1_ep1", Title: "Rates will fall", EpisodeID: "ep1",
		EpisodeDate: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)}}
	if err := s.WriteRawOpinions(raws); err != nil {
		t.Fatalf("WriteRawOpinions: %v", err)
	}
	loaded, found, err := s.ReadRawOpinions()
	if err != nil || !found {
		t.Fatalf("ReadRawOpinions: %v %v", found, err)
	}
	if len(loaded) != 1 || loaded[0].ID != "1_ep1" {
		t.Fatalf("unexpected raw opinions: %v", loaded)
	}

	rels := []*opinion.Relationship{{SourceID: "1_ep1", TargetID: "2_ep2", RelationType: opinion.RelationRelated}}
	if err := s.WriteRelationships(rels); err != nil {
		t.Fatalf("WriteRelationships: %v", err)
	}
	loadedRels, found, err := s.ReadRelationships()
	if err != nil || !found || len(loadedRels) != 1 {
		t.Fatalf("ReadRelationships: %v %v %d", found, err, len(loadedRels))
	}

	if err := s.WriteMergeStats(opinion.MergeStats{Processed: 4}); err != nil {
		t.Fatalf("WriteMergeStats: %v", err)
	}
	if err := s.WriteConsistencyReport([]store.ConsistencyEntry{{SpeakerID: "s1", Score: 0.9}}); err != nil {
		t.Fatalf("WriteConsistencyReport: %v", err)
	}
}

func TestSnapshotsAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := store.NewSnapshots(dir)
	if err := s.WriteRawOpinions(nil); err != nil {
		t.Fatalf("WriteRawOpinions: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}
