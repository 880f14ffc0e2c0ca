package opinion

import "strings"

// Stance is a speaker's position on an opinion.
type Stance string

const (
	StanceSupport Stance = "support"
	StanceOppose  Stance = "oppose"
	StanceNeutral Stance = "neutral"
	StanceUnclear Stance = "unclear"
)

// NormalizeStance folds free-form stance text onto the known constants.
// Unrecognized values map to StanceUnclear.
func NormalizeStance(value string) Stance {
	switch Stance(strings.ToLower(strings.TrimSpace(value))) {
	case StanceSupport:
		return StanceSupport
	case StanceOppose:
		return StanceOppose
	case StanceNeutral:
		return StanceNeutral
	case "":
		return StanceSupport
	default:
		return StanceUnclear
	}
}

// Value maps a stance onto the signed scale used for change-magnitude
// computation: support=+1, neutral/unclear=0, oppose=-1.
func (s Stance) Value() float64 {
	switch s {
	case StanceSupport:
		return 1.0
	case StanceOppose:
		return -1.0
	default:
		return 0.0
	}
}

// Known reports whether the stance is one of the recognized constants.
func (s Stance) Known() bool {
	switch s {
	case StanceSupport, StanceOppose, StanceNeutral, StanceUnclear:
		return true
	}
	return false
}

// SpeakerStance records one speaker's position on an opinion within a
// single episode appearance.
type SpeakerStance struct {
	SpeakerID   string  `json:"speaker_id"`
	SpeakerName string  `json:"speaker_name"`
	Stance      Stance  `json:"stance"`
	Reasoning   string  `json:"reasoning,omitempty"`
	StartTime   float64 `json:"start_time,omitempty"`
	EndTime     float64 `json:"end_time,omitempty"`
}
