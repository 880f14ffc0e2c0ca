package opinion

import "time"

// Raw is the loosely-typed working record a single extracted opinion moves
// through before reconciliation. Extraction produces the flat episode
// fields; the merge engine fills the link fields and may attach multi-episode
// appearances when records fold together. The typed Opinion is constructed
// from a Raw only once merging is final.
type Raw struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Content      string          `json:"content,omitempty"`
	Category     string          `json:"category"`
	Keywords     []string        `json:"keywords,omitempty"`
	Confidence   float64         `json:"confidence"`
	EpisodeID    string          `json:"episode_id"`
	EpisodeTitle string          `json:"episode_title"`
	EpisodeDate  time.Time       `json:"episode_date"`
	Speakers     []SpeakerStance `json:"speakers,omitempty"`

	// Populated during merging.
	RelatedOpinions      []string       `json:"related_opinions,omitempty"`
	EvolutionChain       []string       `json:"evolution_chain,omitempty"`
	EvolutionNotes       string         `json:"evolution_notes,omitempty"`
	IsContradiction      bool           `json:"is_contradiction,omitempty"`
	ContradictsOpinionID string         `json:"contradicts_opinion_id,omitempty"`
	ContradictionNotes   string         `json:"contradiction_notes,omitempty"`
	Appearances          []Appearance   `json:"appearances,omitempty"`
	MergedFrom           []string       `json:"merged_from,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
}

// InfoScore measures how much detail a record carries. The merge engine
// keeps the higher-scoring record as the base when folding duplicates.
func (r *Raw) InfoScore() int {
	return len(r.Description) + len(r.Content)
}

// Appearance builds the single-episode appearance implied by the record's
// flat episode fields.
func (r *Raw) Appearance() Appearance {
	return Appearance{
		EpisodeID:    r.EpisodeID,
		EpisodeTitle: r.EpisodeTitle,
		Date:         r.EpisodeDate,
		Speakers:     r.Speakers,
		Content:      r.Content,
	}
}
