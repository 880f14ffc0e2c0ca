// Package checkpoint persists pipeline progress in SQLite so interrupted
// runs resume where they stopped. It tracks per-scope stage completion, a
// processed-scope set, cached LLM responses, and aggregate extraction
// statistics.
package checkpoint

// Stage identifies one step of the extraction pipeline.
type Stage string

const (
	StageRawExtraction        Stage = "raw_extraction"
	StageCategorization       Stage = "categorization"
	StageRelationshipAnalysis Stage = "relationship_analysis"
	StageOpinionMerging       Stage = "opinion_merging"
	StageEvolutionDetection   Stage = "evolution_detection"
	StageSpeakerTracking      Stage = "speaker_tracking"
	StageComplete             Stage = "complete"
)

// Stages lists the pipeline stages in execution order, excluding the
// terminal complete marker.
var Stages = []Stage{
	StageRawExtraction,
	StageCategorization,
	StageRelationshipAnalysis,
	StageOpinionMerging,
	StageEvolutionDetection,
	StageSpeakerTracking,
}

// Ordinal returns the position of the stage in the pipeline order, or -1
// for unknown stages.
func (s Stage) Ordinal() int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	if s == StageComplete {
		return len(Stages)
	}
	return -1
}

// Next returns the stage that follows s, or StageComplete at the end.
func (s Stage) Next() Stage {
	ord := s.Ordinal()
	if ord < 0 || ord+1 >= len(Stages) {
		return StageComplete
	}
	return Stages[ord+1]
}

// ParseStage validates a stage name.
func ParseStage(value string) (Stage, bool) {
	stage := Stage(value)
	if stage == StageComplete {
		return stage, true
	}
	return stage, stage.Ordinal() >= 0
}
