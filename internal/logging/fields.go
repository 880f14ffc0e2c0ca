package logging

// Standardized attribute keys. Components attach FieldComponent once via
// NewComponentLogger; per-record keys identify the unit of work.
const (
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldEpisode   = "episode_id"
	FieldCategory  = "category"
	FieldOpinion   = "opinion_id"
	FieldChain     = "chain_id"
	FieldSpeaker   = "speaker_id"
	FieldBatch     = "batch"
	FieldCount     = "count"
)
