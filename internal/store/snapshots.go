package store

import (
	"path/filepath"
	"time"

	"opiniongraph/internal/opinion"
)

// Snapshots writes the per-stage analysis artifacts into the output
// directory. Each artifact is a standalone JSON document.
type Snapshots struct {
	dir string
}

// NewSnapshots returns a writer rooted at dir.
func NewSnapshots(dir string) *Snapshots {
	return &Snapshots{dir: dir}
}

// Dir returns the output directory.
func (s *Snapshots) Dir() string { return s.dir }

const (
	rawOpinionsFile   = "raw_opinions.json"
	relationshipsFile = "relationships.json"
	mergeStatsFile    = "merge_stats.json"
	mergeRecordsFile  = "merge_records.json"
	chainsFile        = "evolution_chains.json"
	journeysFile      = "speaker_journeys.json"
	consistencyFile   = "consistency_report.json"
)

type rawOpinionsDocument struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Opinions    []*opinion.Raw `json:"opinions"`
}

// WriteRawOpinions persists the working records after a mutating stage.
func (s *Snapshots) WriteRawOpinions(opinions []*opinion.Raw) error {
	return writeJSONAtomic(filepath.Join(s.dir, rawOpinionsFile), rawOpinionsDocument{
		GeneratedAt: time.Now().UTC(),
		Opinions:    opinions,
	})
}

// ReadRawOpinions loads the working records, reporting whether a snapshot
// existed. The raw-extraction stage runs outside this pipeline; its output
// snapshot is this pipeline's input.
func (s *Snapshots) ReadRawOpinions() ([]*opinion.Raw, bool, error) {
	var doc rawOpinionsDocument
	found, err := readJSON(filepath.Join(s.dir, rawOpinionsFile), &doc)
	if err != nil || !found {
		return nil, found, err
	}
	return doc.Opinions, true, nil
}

type relationshipsDocument struct {
	GeneratedAt   time.Time               `json:"generated_at"`
	Relationships []*opinion.Relationship `json:"relationships"`
}

// WriteRelationships persists the relationship-analysis output.
func (s *Snapshots) WriteRelationships(relationships []*opinion.Relationship) error {
	return writeJSONAtomic(filepath.Join(s.dir, relationshipsFile), relationshipsDocument{
		GeneratedAt:   time.Now().UTC(),
		Relationships: relationships,
	})
}

// ReadRelationships loads a previously written relationship snapshot.
func (s *Snapshots) ReadRelationships() ([]*opinion.Relationship, bool, error) {
	var doc relationshipsDocument
	found, err := readJSON(filepath.Join(s.dir, relationshipsFile), &doc)
	if err != nil || !found {
		return nil, found, err
	}
	return doc.Relationships, true, nil
}

// WriteMergeStats persists the merge statistics document.
func (s *Snapshots) WriteMergeStats(stats opinion.MergeStats) error {
	return writeJSONAtomic(filepath.Join(s.dir, mergeStatsFile), stats)
}

// WriteMergeRecords persists the merge audit trail.
func (s *Snapshots) WriteMergeRecords(records []*opinion.MergeRecord) error {
	return writeJSONAtomic(filepath.Join(s.dir, mergeRecordsFile), struct {
		GeneratedAt time.Time              `json:"generated_at"`
		Records     []*opinion.MergeRecord `json:"records"`
	}{time.Now().UTC(), records})
}

// WriteChains persists the evolution chains.
func (s *Snapshots) WriteChains(chains []*opinion.EvolutionChain) error {
	return writeJSONAtomic(filepath.Join(s.dir, chainsFile), struct {
		GeneratedAt time.Time                 `json:"generated_at"`
		Chains      []*opinion.EvolutionChain `json:"chains"`
	}{time.Now().UTC(), chains})
}

// ReadChains loads a previously written chain snapshot.
func (s *Snapshots) ReadChains() ([]*opinion.EvolutionChain, bool, error) {
	var doc struct {
		Chains []*opinion.EvolutionChain `json:"chains"`
	}
	found, err := readJSON(filepath.Join(s.dir, chainsFile), &doc)
	if err != nil || !found {
		return nil, found, err
	}
	return doc.Chains, true, nil
}

// WriteJourneys persists the speaker journeys.
func (s *Snapshots) WriteJourneys(journeys []*opinion.SpeakerJourney) error {
	return writeJSONAtomic(filepath.Join(s.dir, journeysFile), struct {
		GeneratedAt time.Time                 `json:"generated_at"`
		Journeys    []*opinion.SpeakerJourney `json:"journeys"`
	}{time.Now().UTC(), journeys})
}

// ConsistencyEntry is one speaker's row in the consistency report.
type ConsistencyEntry struct {
	SpeakerID      string  `json:"speaker_id"`
	SpeakerName    string  `json:"speaker_name,omitempty"`
	Score          float64 `json:"score"`
	StanceChanges  int     `json:"stance_changes"`
	Contradictions int     `json:"contradictions"`
	Opinions       int     `json:"opinions"`
}

// WriteConsistencyReport persists the per-speaker consistency scores.
func (s *Snapshots) WriteConsistencyReport(entries []ConsistencyEntry) error {
	return writeJSONAtomic(filepath.Join(s.dir, consistencyFile), struct {
		GeneratedAt time.Time          `json:"generated_at"`
		Speakers    []ConsistencyEntry `json:"speakers"`
	}{time.Now().UTC(), entries})
}
