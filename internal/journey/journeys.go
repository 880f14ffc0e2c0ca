package journey

import (
	"github.com/google/uuid"

	"opiniongraph/internal/logging"
	"opiniongraph/internal/opinion"
)

// BuildJourneys walks each evolution chain and records, per speaker, the
// stance they took at every chain node they appear in. Consecutive nodes
// with differing stances get a stance_changed flag and a description.
// Journeys with fewer than two nodes are discarded.
func (t *Tracker) BuildJourneys(opinions []*opinion.Opinion, chains []*opinion.EvolutionChain) []*opinion.SpeakerJourney {
	byID := make(map[string]*opinion.Opinion, len(opinions))
	for _, op := range opinions {
		byID[op.ID] = op
	}
	history := t.TrackStances(opinions)

	var journeys []*opinion.SpeakerJourney
	for _, speakerID := range history.Speakers {
		journey := &opinion.SpeakerJourney{
			ID:          uuid.NewString(),
			SpeakerID:   speakerID,
			SpeakerName: history.SpeakerName(speakerID),
		}

		for _, chain := range chains {
			var previousNode *opinion.SpeakerJourneyNode
			var previousStance opinion.Stance
			for _, chainNode := range chain.OrderedNodes() {
				op, ok := byID[chainNode.OpinionID]
				if !ok {
					continue
				}
				record, found := firstStance(op, speakerID)
				if !found {
					continue
				}

				node := &opinion.SpeakerJourneyNode{
					ID:        uuid.NewString(),
					OpinionID: op.ID,
					SpeakerID: speakerID,
					EpisodeID: record.EpisodeID,
					Date:      record.Date,
					Stance:    record.Stance,
					Reasoning: record.Reasoning,
				}
				if previousNode != nil {
					node.PreviousNodeID = previousNode.ID
					if previousStance != record.Stance {
						node.StanceChanged = true
						node.ChangeDescription = describeStanceChange(previousStance, record.Stance)
					}
				}
				journey.AddNode(node)
				previousNode = node
				previousStance = record.Stance
			}
		}

		if journey.Len() > 1 {
			journeys = append(journeys, journey)
		}
	}

	t.logger.Info("built speaker journeys",
		logging.Int("journeys", len(journeys)),
		logging.Int("chains", len(chains)))
	return journeys
}

// firstStance returns the speaker's earliest recorded stance on the
// opinion. Appearances are already date sorted.
func firstStance(op *opinion.Opinion, speakerID string) (StanceRecord, bool) {
	for _, app := range op.Appearances {
		for _, stance := range app.Speakers {
			if stance.SpeakerID != speakerID {
				continue
			}
			return StanceRecord{
				OpinionID:    op.ID,
				EpisodeID:    app.EpisodeID,
				EpisodeTitle: app.EpisodeTitle,
				Date:         app.Date,
				Stance:       stance.Stance,
				Reasoning:    stance.Reasoning,
			}, true
		}
	}
	return StanceRecord{}, false
}

func describeStanceChange(from, to opinion.Stance) string {
	switch {
	case from == opinion.StanceSupport && to == opinion.StanceOppose:
		return "Changed from supporting to opposing this opinion"
	case from == opinion.StanceOppose && to == opinion.StanceSupport:
		return "Changed from opposing to supporting this opinion"
	case from == opinion.StanceNeutral && to == opinion.StanceSupport:
		return "Changed from neutral to supporting this opinion"
	case from == opinion.StanceNeutral && to == opinion.StanceOppose:
		return "Changed from neutral to opposing this opinion"
	case from == opinion.StanceSupport && to == opinion.StanceNeutral:
		return "Moderated position from support to neutral"
	case from == opinion.StanceOppose && to == opinion.StanceNeutral:
		return "Moderated position from opposition to neutral"
	default:
		return "Changed stance from " + string(from) + " to " + string(to)
	}
}
