// Package journey tracks per-speaker stance histories across opinions,
// detecting stance changes, contradictions, and overall consistency.
package journey

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"opiniongraph/internal/logging"
	"opiniongraph/internal/opinion"
)

// Tracker computes speaker stance analytics over a finalized opinion set.
type Tracker struct {
	logger *slog.Logger
}

// NewTracker constructs a tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{logger: logging.NewComponentLogger(logger, "journey")}
}

// StanceRecord is one dated stance a speaker took on an opinion.
type StanceRecord struct {
	OpinionID    string         `json:"opinion_id"`
	EpisodeID    string         `json:"episode_id"`
	EpisodeTitle string         `json:"episode_title,omitempty"`
	Date         time.Time      `json:"date"`
	Stance       opinion.Stance `json:"stance"`
	Reasoning    string         `json:"reasoning,omitempty"`
}

// StanceHistory groups every stance record by speaker and opinion. Speakers
// and their opinions keep first-seen order so downstream output is
// deterministic.
type StanceHistory struct {
	Speakers          []string
	Names             map[string]string
	Stances           map[string]map[string][]StanceRecord
	OpinionsBySpeaker map[string][]string
}

// TrackStances collects every speaker's stance on every opinion, sorted by
// date within each (speaker, opinion) pair.
func (t *Tracker) TrackStances(opinions []*opinion.Opinion) *StanceHistory {
	history := &StanceHistory{
		Names:             make(map[string]string),
		Stances:           make(map[string]map[string][]StanceRecord),
		OpinionsBySpeaker: make(map[string][]string),
	}

	for _, op := range opinions {
		for _, app := range op.Appearances {
			for _, stance := range app.Speakers {
				byOpinion, ok := history.Stances[stance.SpeakerID]
				if !ok {
					byOpinion = make(map[string][]StanceRecord)
					history.Stances[stance.SpeakerID] = byOpinion
					history.Speakers = append(history.Speakers, stance.SpeakerID)
				}
				if stance.SpeakerName != "" {
					history.Names[stance.SpeakerID] = stance.SpeakerName
				}
				if _, seen := byOpinion[op.ID]; !seen {
					history.OpinionsBySpeaker[stance.SpeakerID] = append(history.OpinionsBySpeaker[stance.SpeakerID], op.ID)
				}
				byOpinion[op.ID] = append(byOpinion[op.ID], StanceRecord{
					OpinionID:    op.ID,
					EpisodeID:    app.EpisodeID,
					EpisodeTitle: app.EpisodeTitle,
					Date:         app.Date,
					Stance:       stance.Stance,
					Reasoning:    stance.Reasoning,
				})
			}
		}
	}

	for _, byOpinion := range history.Stances {
		for id, records := range byOpinion {
			sort.SliceStable(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
			byOpinion[id] = records
		}
	}

	t.logger.Info("tracked speaker stances",
		logging.Int("speakers", len(history.Speakers)),
		logging.Int("opinions", len(opinions)))
	return history
}

// SpeakerName returns the display name for a speaker id, falling back to a
// generated label.
func (h *StanceHistory) SpeakerName(speakerID string) string {
	if name, ok := h.Names[speakerID]; ok {
		return name
	}
	return "Speaker " + speakerID
}

// Magnitude grades how far a stance moved on the signed scale.
type Magnitude string

const (
	MagnitudeNone     Magnitude = "none"
	MagnitudeMinor    Magnitude = "minor"
	MagnitudeModerate Magnitude = "moderate"
	MagnitudeMajor    Magnitude = "major"
	MagnitudeReversal Magnitude = "reversal"
	MagnitudeUnclear  Magnitude = "unclear"
)

// ChangeMagnitude grades the distance between two stances. Unknown stance
// values grade as unclear.
func ChangeMagnitude(from, to opinion.Stance) Magnitude {
	if !from.Known() || !to.Known() {
		return MagnitudeUnclear
	}
	diff := from.Value() - to.Value()
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return MagnitudeNone
	case diff <= 0.5:
		return MagnitudeMinor
	case diff <= 1.0:
		return MagnitudeModerate
	case diff <= 1.5:
		return MagnitudeMajor
	default:
		return MagnitudeReversal
	}
}

// StanceChange is one consecutive-stance transition on a single opinion.
type StanceChange struct {
	OpinionID string       `json:"opinion_id"`
	From      StanceRecord `json:"from"`
	To        StanceRecord `json:"to"`
	Magnitude Magnitude    `json:"magnitude"`
}

// DetectStanceChanges finds every consecutive stance transition per speaker
// and opinion. Records where the stance did not change are not reported.
func (t *Tracker) DetectStanceChanges(history *StanceHistory) map[string]map[string][]StanceChange {
	changes := make(map[string]map[string][]StanceChange)
	for _, speakerID := range history.Speakers {
		for _, opinionID := range history.OpinionsBySpeaker[speakerID] {
			records := history.Stances[speakerID][opinionID]
			for i := 1; i < len(records); i++ {
				prev, curr := records[i-1], records[i]
				if prev.Stance == curr.Stance {
					continue
				}
				byOpinion, ok := changes[speakerID]
				if !ok {
					byOpinion = make(map[string][]StanceChange)
					changes[speakerID] = byOpinion
				}
				byOpinion[opinionID] = append(byOpinion[opinionID], StanceChange{
					OpinionID: opinionID,
					From:      prev,
					To:        curr,
					Magnitude: ChangeMagnitude(prev.Stance, curr.Stance),
				})
			}
		}
	}
	return changes
}

// ContradictionType distinguishes cross-opinion conflicts from same-opinion
// reversals.
type ContradictionType string

const (
	ContradictionExplicit ContradictionType = "explicit"
	ContradictionReversal ContradictionType = "reversal"
)

// Contradiction is a detected conflict in one speaker's positions.
type Contradiction struct {
	SpeakerID   string            `json:"speaker_id"`
	SpeakerName string            `json:"speaker_name"`
	OpinionAID  string            `json:"opinion_a_id"`
	OpinionBID  string            `json:"opinion_b_id"`
	StanceA     opinion.Stance    `json:"stance_a"`
	StanceB     opinion.Stance    `json:"stance_b"`
	DateA       time.Time         `json:"date_a"`
	DateB       time.Time         `json:"date_b"`
	EpisodeA    string            `json:"episode_a"`
	EpisodeB    string            `json:"episode_b"`
	Type        ContradictionType `json:"contradiction_type"`
	Description string            `json:"description"`
}

// DetectContradictions finds two kinds of conflicts: a speaker's latest
// stances on two different opinions opposing each other, and a speaker
// reversing support and opposition on the same opinion over time. Neutral
// and unclear stances never count toward a reversal.
func (t *Tracker) DetectContradictions(history *StanceHistory) []Contradiction {
	var contradictions []Contradiction

	for _, speakerID := range history.Speakers {
		opinionIDs := history.OpinionsBySpeaker[speakerID]
		byOpinion := history.Stances[speakerID]

		if len(opinionIDs) >= 2 {
			for i := 0; i < len(opinionIDs); i++ {
				for j := i + 1; j < len(opinionIDs); j++ {
					recordsA := byOpinion[opinionIDs[i]]
					recordsB := byOpinion[opinionIDs[j]]
					if len(recordsA) == 0 || len(recordsB) == 0 {
						continue
					}
					latestA := recordsA[len(recordsA)-1]
					latestB := recordsB[len(recordsB)-1]
					if !opposing(latestA.Stance, latestB.Stance) {
						continue
					}
					contradictions = append(contradictions, Contradiction{
						SpeakerID:   speakerID,
						SpeakerName: history.SpeakerName(speakerID),
						OpinionAID:  opinionIDs[i],
						OpinionBID:  opinionIDs[j],
						StanceA:     latestA.Stance,
						StanceB:     latestB.Stance,
						DateA:       latestA.Date,
						DateB:       latestB.Date,
						EpisodeA:    latestA.EpisodeID,
						EpisodeB:    latestB.EpisodeID,
						Type:        ContradictionExplicit,
						Description: "Speaker holds opposing stances on related opinions",
					})
				}
			}
		}

		for _, opinionID := range opinionIDs {
			records := byOpinion[opinionID]
			if len(records) < 2 {
				continue
			}
			var current *StanceRecord
			for i := range records {
				record := records[i]
				if record.Stance == opinion.StanceNeutral || record.Stance == opinion.StanceUnclear {
					continue
				}
				if current == nil {
					current = &records[i]
					continue
				}
				if opposing(current.Stance, record.Stance) {
					contradictions = append(contradictions, Contradiction{
						SpeakerID:   speakerID,
						SpeakerName: history.SpeakerName(speakerID),
						OpinionAID:  opinionID,
						OpinionBID:  opinionID,
						StanceA:     current.Stance,
						StanceB:     record.Stance,
						DateA:       current.Date,
						DateB:       record.Date,
						EpisodeA:    current.EpisodeID,
						EpisodeB:    record.EpisodeID,
						Type:        ContradictionReversal,
						Description: "Speaker reversed position on the same opinion",
					})
				}
				current = &records[i]
			}
		}
	}

	if len(contradictions) > 0 {
		t.logger.Info("detected contradictions", logging.Int(logging.FieldCount, len(contradictions)))
	}
	return contradictions
}

func opposing(a, b opinion.Stance) bool {
	return (a == opinion.StanceSupport && b == opinion.StanceOppose) ||
		(a == opinion.StanceOppose && b == opinion.StanceSupport)
}

// Consistency summarizes how steadily one speaker held their positions.
type Consistency struct {
	SpeakerID          string  `json:"speaker_id"`
	SpeakerName        string  `json:"speaker_name"`
	OpinionCount       int     `json:"opinion_count"`
	StanceChangeCount  int     `json:"stance_change_count"`
	ContradictionCount int     `json:"contradiction_count"`
	FlipFlopCount      int     `json:"flip_flop_count"`
	MajorReversalCount int     `json:"major_reversal_count"`
	Score              float64 `json:"consistency_score"`
}

// AnalyzeConsistency scores each speaker from 1.0 down, penalizing stance
// changes, contradictions, flip-flops, and major reversals relative to the
// number of opinions the speaker discussed. The score never drops below 0.
func (t *Tracker) AnalyzeConsistency(history *StanceHistory, contradictions []Contradiction) map[string]Consistency {
	changes := t.DetectStanceChanges(history)

	contradictionCounts := make(map[string]int)
	for _, c := range contradictions {
		contradictionCounts[c.SpeakerID]++
	}

	metrics := make(map[string]Consistency, len(history.Speakers))
	for _, speakerID := range history.Speakers {
		opinionCount := len(history.OpinionsBySpeaker[speakerID])

		var changeCount, flipFlops, majorReversals int
		for _, opinionChanges := range changes[speakerID] {
			changeCount += len(opinionChanges)
			for _, change := range opinionChanges {
				if change.Magnitude == MagnitudeMajor || change.Magnitude == MagnitudeReversal {
					majorReversals++
				}
				if change.From.Stance == opinion.StanceOppose && change.To.Stance == opinion.StanceSupport {
					for _, earlier := range opinionChanges {
						if earlier.From.Stance == opinion.StanceSupport && earlier.To.Stance == opinion.StanceOppose {
							flipFlops++
							break
						}
					}
				}
			}
		}

		score := 0.0
		if opinionCount > 0 {
			n := float64(opinionCount)
			score = 1.0
			score -= float64(changeCount) / (n * 2.0) * 0.3
			score -= float64(contradictionCounts[speakerID]) / (n * 2.0) * 0.4
			score -= float64(flipFlops) / n * 0.5
			score -= float64(majorReversals) / n * 0.6
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
		}

		metrics[speakerID] = Consistency{
			SpeakerID:          speakerID,
			SpeakerName:        history.SpeakerName(speakerID),
			OpinionCount:       opinionCount,
			StanceChangeCount:  changeCount,
			ContradictionCount: contradictionCounts[speakerID],
			FlipFlopCount:      flipFlops,
			MajorReversalCount: majorReversals,
			Score:              score,
		}
	}
	return metrics
}

// GeneratePreviousStances attaches a PreviousStance record per detected
// change, keyed by opinion id, for reporting which positions a speaker moved
// away from.
func (t *Tracker) GeneratePreviousStances(opinions []*opinion.Opinion) map[string][]opinion.PreviousStance {
	history := t.TrackStances(opinions)
	changes := t.DetectStanceChanges(history)

	previous := make(map[string][]opinion.PreviousStance)
	for _, speakerID := range history.Speakers {
		for _, opinionID := range history.OpinionsBySpeaker[speakerID] {
			for _, change := range changes[speakerID][opinionID] {
				previous[opinionID] = append(previous[opinionID], opinion.PreviousStance{
					SpeakerStanceID: fmt.Sprintf("%s_%s_%s", speakerID, opinionID, change.From.EpisodeID),
					EpisodeID:       change.From.EpisodeID,
					EpisodeDate:     change.From.Date,
					Stance:          change.From.Stance,
					ChangeReasoning: fmt.Sprintf("Changed to %s in episode %s", change.To.Stance, change.To.EpisodeTitle),
				})
			}
		}
	}
	return previous
}
