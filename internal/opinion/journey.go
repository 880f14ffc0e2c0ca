package opinion

import "time"

// SpeakerJourneyNode is one point in a speaker's journey: a stance taken on
// an opinion in a specific episode, flagged when it differs from the
// immediately preceding node.
type SpeakerJourneyNode struct {
	ID                string    `json:"id"`
	OpinionID         string    `json:"opinion_id"`
	SpeakerID         string    `json:"speaker_id"`
	EpisodeID         string    `json:"episode_id"`
	Date              time.Time `json:"date"`
	Stance            Stance    `json:"stance"`
	Reasoning         string    `json:"reasoning,omitempty"`
	PreviousNodeID    string    `json:"previous_node_id,omitempty"`
	NextNodeIDs       []string  `json:"next_node_ids"`
	StanceChanged     bool      `json:"stance_changed"`
	ChangeDescription string    `json:"change_description,omitempty"`
}

// SpeakerJourney is the ordered record of a speaker's stances across
// opinions over time.
type SpeakerJourney struct {
	ID          string                         `json:"id"`
	SpeakerID   string                         `json:"speaker_id"`
	SpeakerName string                         `json:"speaker_name"`
	RootNodeID  string                         `json:"root_node_id,omitempty"`
	Nodes       map[string]*SpeakerJourneyNode `json:"nodes"`
	OpinionIDs  []string                       `json:"opinion_ids"`
}

// AddNode inserts a journey node and links it to its predecessor.
func (j *SpeakerJourney) AddNode(node *SpeakerJourneyNode) {
	if j.Nodes == nil {
		j.Nodes = make(map[string]*SpeakerJourneyNode)
	}
	j.Nodes[node.ID] = node
	seen := false
	for _, id := range j.OpinionIDs {
		if id == node.OpinionID {
			seen = true
			break
		}
	}
	if !seen {
		j.OpinionIDs = append(j.OpinionIDs, node.OpinionID)
	}
	if j.RootNodeID == "" {
		j.RootNodeID = node.ID
	}
	if node.PreviousNodeID == "" {
		return
	}
	if prev, ok := j.Nodes[node.PreviousNodeID]; ok {
		for _, id := range prev.NextNodeIDs {
			if id == node.ID {
				return
			}
		}
		prev.NextNodeIDs = append(prev.NextNodeIDs, node.ID)
	}
}

// Len returns the number of nodes in the journey.
func (j *SpeakerJourney) Len() int { return len(j.Nodes) }

// PreviousStance records a stance a speaker later moved away from. These
// are attached back onto opinions for reporting.
type PreviousStance struct {
	SpeakerStanceID string    `json:"speaker_stance_id"`
	EpisodeID       string    `json:"episode_id"`
	EpisodeDate     time.Time `json:"episode_date"`
	Stance          Stance    `json:"stance"`
	ChangeReasoning string    `json:"change_reasoning,omitempty"`
}
