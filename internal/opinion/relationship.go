package opinion

import "strings"

// RelationType classifies the edge between two opinions.
type RelationType string

const (
	RelationSameOpinion   RelationType = "same_opinion"
	RelationRelated       RelationType = "related"
	RelationEvolution     RelationType = "evolution"
	RelationContradiction RelationType = "contradiction"
	// RelationNone is emitted by classifiers for unrelated pairs and is
	// dropped before relationships reach the merge engine.
	RelationNone RelationType = "no_relation"
)

// ParseRelationType folds free-form classifier output onto the known
// relation kinds. The second return is false for unrecognized values.
func ParseRelationType(value string) (RelationType, bool) {
	switch RelationType(strings.ToLower(strings.TrimSpace(value))) {
	case RelationSameOpinion:
		return RelationSameOpinion, true
	case RelationRelated:
		return RelationRelated, true
	case RelationEvolution:
		return RelationEvolution, true
	case RelationContradiction:
		return RelationContradiction, true
	case RelationNone:
		return RelationNone, true
	}
	return RelationRelated, false
}

// Relationship is a typed edge between two opinion ids produced by the
// relationship classifier. SourceID/TargetID hold composite
// "{id}_{episode_id}" forms for merge processing; the original ids the
// classifier returned are retained for audit.
type Relationship struct {
	SourceID         string       `json:"source_id"`
	TargetID         string       `json:"target_id"`
	RelationType     RelationType `json:"relation_type"`
	Notes            string       `json:"notes,omitempty"`
	Confidence       float64      `json:"confidence,omitempty"`
	SourceEpisodeID  string       `json:"source_episode_id,omitempty"`
	TargetEpisodeID  string       `json:"target_episode_id,omitempty"`
	OriginalSourceID string       `json:"original_source_id,omitempty"`
	OriginalTargetID string       `json:"original_target_id,omitempty"`
}
