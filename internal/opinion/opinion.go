package opinion

import (
	"sort"
	"time"
)

// Appearance is one episode-dated occurrence of an opinion, with the
// per-speaker stance records captured for that episode.
type Appearance struct {
	EpisodeID                string          `json:"episode_id"`
	EpisodeTitle             string          `json:"episode_title"`
	Date                     time.Time       `json:"date"`
	Speakers                 []SpeakerStance `json:"speakers"`
	Content                  string          `json:"content,omitempty"`
	ContextNotes             string          `json:"context_notes,omitempty"`
	EvolutionNotesForEpisode string          `json:"evolution_notes_for_episode,omitempty"`
}

// IsContentious reports whether this appearance has disagreement among
// its speakers (both support and oppose present).
func (a Appearance) IsContentious() bool {
	var support, oppose bool
	for _, s := range a.Speakers {
		switch s.Stance {
		case StanceSupport:
			support = true
		case StanceOppose:
			oppose = true
		}
	}
	return support && oppose
}

// Opinion is a distinct viewpoint tracked across episodes. It is built by
// the merge engine once reconciliation is final; appearances are unique per
// (episode, speaker) and RelatedOpinions never contains the opinion's own id.
type Opinion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`

	RelatedOpinions []string `json:"related_opinions"`
	EvolutionNotes  string   `json:"evolution_notes,omitempty"`
	EvolutionChain  []string `json:"evolution_chain"`

	IsContradiction      bool   `json:"is_contradiction"`
	ContradictsOpinionID string `json:"contradicts_opinion_id,omitempty"`
	ContradictionNotes   string `json:"contradiction_notes,omitempty"`

	Appearances     []Appearance     `json:"appearances"`
	PreviousStances []PreviousStance `json:"previous_stances,omitempty"`

	Keywords   []string       `json:"keywords"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AddAppearance merges an appearance into the opinion. An existing
// appearance for the same episode absorbs the new speakers and any fields
// it was missing instead of creating a duplicate; speakers already present
// for the episode are not added twice. Appearances stay sorted by date.
func (o *Opinion) AddAppearance(app Appearance) {
	for i := range o.Appearances {
		existing := &o.Appearances[i]
		if existing.EpisodeID != app.EpisodeID {
			continue
		}
		seen := make(map[string]struct{}, len(existing.Speakers))
		for _, s := range existing.Speakers {
			seen[s.SpeakerID] = struct{}{}
		}
		for _, s := range app.Speakers {
			if _, ok := seen[s.SpeakerID]; ok {
				continue
			}
			existing.Speakers = append(existing.Speakers, s)
			seen[s.SpeakerID] = struct{}{}
		}
		if existing.Content == "" {
			existing.Content = app.Content
		}
		if existing.ContextNotes == "" {
			existing.ContextNotes = app.ContextNotes
		}
		if existing.EvolutionNotesForEpisode == "" {
			existing.EvolutionNotesForEpisode = app.EvolutionNotesForEpisode
		}
		return
	}

	o.Appearances = append(o.Appearances, app)
	sort.SliceStable(o.Appearances, func(i, j int) bool {
		return o.Appearances[i].Date.Before(o.Appearances[j].Date)
	})
}

// SpeakerIDs returns the ids of every speaker who discussed this opinion,
// in first-appearance order.
func (o *Opinion) SpeakerIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, app := range o.Appearances {
		for _, s := range app.Speakers {
			if _, ok := seen[s.SpeakerID]; ok {
				continue
			}
			seen[s.SpeakerID] = struct{}{}
			ids = append(ids, s.SpeakerID)
		}
	}
	return ids
}

// EpisodeIDs returns the episodes this opinion appeared in, in date order.
func (o *Opinion) EpisodeIDs() []string {
	ids := make([]string, 0, len(o.Appearances))
	for _, app := range o.Appearances {
		ids = append(ids, app.EpisodeID)
	}
	return ids
}

// EarliestDate returns the date of the opinion's first appearance, or the
// zero time when it has none.
func (o *Opinion) EarliestDate() time.Time {
	var earliest time.Time
	for _, app := range o.Appearances {
		if earliest.IsZero() || app.Date.Before(earliest) {
			earliest = app.Date
		}
	}
	return earliest
}

// IsContentious reports whether speakers disagree on this opinion across
// all of its appearances.
func (o *Opinion) IsContentious() bool {
	var support, oppose bool
	for _, app := range o.Appearances {
		for _, s := range app.Speakers {
			switch s.Stance {
			case StanceSupport:
				support = true
			case StanceOppose:
				oppose = true
			}
		}
	}
	return support && oppose
}

// Normalize ensures the slice-valued fields downstream consumers iterate
// are non-nil, and strips the opinion's own id from RelatedOpinions.
func (o *Opinion) Normalize() {
	if o.RelatedOpinions == nil {
		o.RelatedOpinions = []string{}
	}
	if o.EvolutionChain == nil {
		o.EvolutionChain = []string{}
	}
	if o.Keywords == nil {
		o.Keywords = []string{}
	}
	filtered := o.RelatedOpinions[:0]
	for _, id := range o.RelatedOpinions {
		if id != o.ID {
			filtered = append(filtered, id)
		}
	}
	o.RelatedOpinions = filtered
	if o.ContradictsOpinionID == o.ID {
		o.ContradictsOpinionID = ""
	}
}
