package opinion

import "time"

// MergeRecord is the audit record written whenever a SAME_OPINION relation
// folds one opinion into another.
type MergeRecord struct {
	ID          string    `json:"id"`
	SurvivingID string    `json:"surviving_id"`
	MergedIDs   []string  `json:"merged_ids"`
	Notes       string    `json:"notes,omitempty"`
	MergedAt    time.Time `json:"merged_at"`
}

// MergeStats summarizes one merge-engine pass for observability. Soft
// failures are counted here rather than aborting the run.
type MergeStats struct {
	Processed            int `json:"processed"`
	SkippedMissingID     int `json:"skipped_missing_id"`
	SkippedAlreadyMerged int `json:"skipped_already_merged"`
	Errors               int `json:"errors"`

	AppliedSameOpinion   int `json:"applied_same_opinion"`
	AppliedRelated       int `json:"applied_related"`
	AppliedEvolution     int `json:"applied_evolution"`
	AppliedContradiction int `json:"applied_contradiction"`

	RelatedLinks               int `json:"related_links"`
	RelatedBidirectional       int `json:"related_bidirectional"`
	ContradictionLinks         int `json:"contradiction_links"`
	ContradictionBidirectional int `json:"contradiction_bidirectional"`

	RawCount   int `json:"raw_count"`
	FinalCount int `json:"final_count"`
}

// Applied returns the total number of relationships that changed state.
func (s MergeStats) Applied() int {
	return s.AppliedSameOpinion + s.AppliedRelated + s.AppliedEvolution + s.AppliedContradiction
}

// Category groups opinions by topic.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
