// Package merge applies relationship judgments to the raw opinion set,
// folding duplicates into canonical records and attaching related,
// evolution, and contradiction links. The output of ProcessRelationships is
// still the loosely-typed working representation; Finalize performs the one
// explicit conversion into typed Opinions.
package merge

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"opiniongraph/internal/identity"
	"opiniongraph/internal/logging"
	"opiniongraph/internal/opinion"
)

// Engine reconciles raw opinions against a relationship set.
type Engine struct {
	logger *slog.Logger
}

// NewEngine constructs a merge engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.NewComponentLogger(logger, "merge")}
}

// Result carries everything one merge pass produced.
type Result struct {
	// Opinions holds the surviving working records in input order.
	Opinions []*opinion.Raw
	// MergedMap maps every folded-away id to its surviving canonical id.
	MergedMap map[string]string
	// Records is the audit trail, one record per fold.
	Records []*opinion.MergeRecord
	Stats   opinion.MergeStats
}

// ProcessRelationships applies the relationship set to the raw opinions in
// input order. Unresolvable endpoints and already-reconciled pairs are
// counted and skipped; nothing here aborts the pass.
func (e *Engine) ProcessRelationships(relationships []*opinion.Relationship, raws []*opinion.Raw) *Result {
	byID := make(map[string]*opinion.Raw, len(raws))
	for _, raw := range raws {
		byID[raw.ID] = raw
	}
	index := identity.NewIndex(byID, e.logger)

	result := &Result{MergedMap: make(map[string]string)}
	result.Stats.RawCount = len(raws)

	for _, rel := range relationships {
		if rel == nil {
			continue
		}
		result.Stats.Processed++

		source := e.resolveEndpoint(index, result.MergedMap, rel.SourceID, rel.OriginalSourceID, rel.SourceEpisodeID)
		target := e.resolveEndpoint(index, result.MergedMap, rel.TargetID, rel.OriginalTargetID, rel.TargetEpisodeID)
		if source == nil || target == nil {
			result.Stats.SkippedMissingID++
			e.logger.Debug("skipping relationship with unresolved endpoint",
				logging.String("source_id", rel.SourceID),
				logging.String("target_id", rel.TargetID))
			continue
		}
		if source.ID == target.ID {
			result.Stats.SkippedAlreadyMerged++
			continue
		}

		switch rel.RelationType {
		case opinion.RelationSameOpinion:
			e.applySameOpinion(result, source, target, rel)
			result.Stats.AppliedSameOpinion++
		case opinion.RelationRelated:
			applyRelated(source, target)
			result.Stats.AppliedRelated++
		case opinion.RelationEvolution:
			applyEvolution(source, target, rel)
			result.Stats.AppliedEvolution++
		case opinion.RelationContradiction:
			applyContradiction(source, target, rel)
			result.Stats.AppliedContradiction++
		default:
			result.Stats.Errors++
			e.logger.Warn("relationship with unapplied type",
				logging.String("relation_type", string(rel.RelationType)),
				logging.String("source_id", rel.SourceID))
		}
	}

	for _, raw := range raws {
		if _, folded := result.MergedMap[raw.ID]; folded {
			continue
		}
		normalizeRaw(raw)
		result.Opinions = append(result.Opinions, raw)
	}
	result.Stats.FinalCount = len(result.Opinions)

	e.verifyBidirectionality(result)

	e.logger.Info("merge pass complete",
		logging.Int("raw", result.Stats.RawCount),
		logging.Int("final", result.Stats.FinalCount),
		logging.Int("applied", result.Stats.Applied()),
		logging.Int("skipped_missing_id", result.Stats.SkippedMissingID),
		logging.Int("skipped_already_merged", result.Stats.SkippedAlreadyMerged))
	return result
}

// resolveEndpoint resolves a relationship endpoint through every known id
// form, then chases merged_map redirects to the surviving record.
func (e *Engine) resolveEndpoint(index *identity.Index, mergedMap map[string]string, id, originalID, episodeHint string) *opinion.Raw {
	record := index.Resolve(id, episodeHint)
	if record == nil && originalID != "" && originalID != id {
		record = index.Resolve(originalID, episodeHint)
	}
	if record == nil {
		return nil
	}
	canonical := record.ID
	for i := 0; i < len(mergedMap); i++ {
		next, ok := mergedMap[canonical]
		if !ok {
			break
		}
		canonical = next
	}
	if canonical == record.ID {
		return record
	}
	return index.Resolve(canonical, "")
}

// applySameOpinion folds the lower-information record into the higher one.
// Ties keep the first-seen record (the source) as the base.
func (e *Engine) applySameOpinion(result *Result, source, target *opinion.Raw, rel *opinion.Relationship) {
	base, other := source, target
	if target.InfoScore() > source.InfoScore() {
		base, other = target, source
	}

	absorb(base, other)
	result.MergedMap[other.ID] = base.ID

	record := &opinion.MergeRecord{
		ID:          uuid.NewString(),
		SurvivingID: base.ID,
		MergedIDs:   []string{other.ID},
		Notes:       rel.Notes,
		MergedAt:    time.Now().UTC(),
	}
	result.Records = append(result.Records, record)

	e.logger.Debug("folded duplicate opinion",
		logging.String("surviving_id", base.ID),
		logging.String("merged_id", other.ID))
}

// absorb merges everything from other into base.
func absorb(base, other *opinion.Raw) {
	ensureAppearances(base)
	for _, app := range appearancesOf(other) {
		addAppearance(base, app)
	}

	for _, id := range other.RelatedOpinions {
		if id != base.ID {
			base.RelatedOpinions = appendUnique(base.RelatedOpinions, id)
		}
	}
	for _, id := range other.EvolutionChain {
		base.EvolutionChain = appendUnique(base.EvolutionChain, id)
	}
	base.Keywords = unionKeywords(base.Keywords, other.Keywords)

	if other.IsContradiction {
		base.IsContradiction = true
		if base.ContradictsOpinionID == "" && other.ContradictsOpinionID != base.ID {
			base.ContradictsOpinionID = other.ContradictsOpinionID
		}
		if base.ContradictionNotes == "" {
			base.ContradictionNotes = other.ContradictionNotes
		}
	}
	if other.EvolutionNotes != "" {
		base.EvolutionNotes = joinNotes(base.EvolutionNotes, other.EvolutionNotes)
	}
	if other.Confidence > base.Confidence {
		base.Confidence = other.Confidence
	}
	if base.Content == "" {
		base.Content = other.Content
	}

	base.MergedFrom = appendUnique(base.MergedFrom, other.ID)
	for _, id := range other.MergedFrom {
		base.MergedFrom = appendUnique(base.MergedFrom, id)
	}
}

func applyRelated(source, target *opinion.Raw) {
	source.RelatedOpinions = appendUnique(source.RelatedOpinions, target.ID)
	target.RelatedOpinions = appendUnique(target.RelatedOpinions, source.ID)
}

func applyEvolution(source, target *opinion.Raw, rel *opinion.Relationship) {
	source.EvolutionChain = appendUnique(source.EvolutionChain, target.ID)
	if rel.Notes != "" {
		source.EvolutionNotes = joinNotes(source.EvolutionNotes, rel.Notes)
	}
}

func applyContradiction(source, target *opinion.Raw, rel *opinion.Relationship) {
	source.IsContradiction = true
	target.IsContradiction = true
	if source.ContradictsOpinionID == "" {
		source.ContradictsOpinionID = target.ID
	}
	if target.ContradictsOpinionID == "" {
		target.ContradictsOpinionID = source.ID
	}
	if rel.Notes != "" {
		if source.ContradictionNotes == "" {
			source.ContradictionNotes = rel.Notes
		}
		if target.ContradictionNotes == "" {
			target.ContradictionNotes = "Contradicted by " + source.ID + ": " + rel.Notes
		}
	}
}

// verifyBidirectionality counts mutual RELATED and CONTRADICTION links and
// warns when fewer than half are consistent. Asymmetry is a data-quality
// signal from upstream judgments, never a failure.
func (e *Engine) verifyBidirectionality(result *Result) {
	byID := make(map[string]*opinion.Raw, len(result.Opinions))
	for _, raw := range result.Opinions {
		byID[raw.ID] = raw
	}

	for _, raw := range result.Opinions {
		for _, relatedID := range raw.RelatedOpinions {
			other, ok := byID[relatedID]
			if !ok {
				continue
			}
			result.Stats.RelatedLinks++
			if contains(other.RelatedOpinions, raw.ID) {
				result.Stats.RelatedBidirectional++
			}
		}
		if raw.ContradictsOpinionID != "" {
			if other, ok := byID[raw.ContradictsOpinionID]; ok {
				result.Stats.ContradictionLinks++
				if other.ContradictsOpinionID == raw.ID {
					result.Stats.ContradictionBidirectional++
				}
			}
		}
	}

	if result.Stats.RelatedLinks > 0 && result.Stats.RelatedBidirectional*2 < result.Stats.RelatedLinks {
		e.logger.Warn("related links drifting from bidirectional consistency",
			logging.Int("links", result.Stats.RelatedLinks),
			logging.Int("bidirectional", result.Stats.RelatedBidirectional))
	}
	if result.Stats.ContradictionLinks > 0 && result.Stats.ContradictionBidirectional*2 < result.Stats.ContradictionLinks {
		e.logger.Warn("contradiction links drifting from bidirectional consistency",
			logging.Int("links", result.Stats.ContradictionLinks),
			logging.Int("bidirectional", result.Stats.ContradictionBidirectional))
	}
}

func normalizeRaw(raw *opinion.Raw) {
	if raw.RelatedOpinions == nil {
		raw.RelatedOpinions = []string{}
	}
	if raw.EvolutionChain == nil {
		raw.EvolutionChain = []string{}
	}
	if raw.Keywords == nil {
		raw.Keywords = []string{}
	}
	filtered := raw.RelatedOpinions[:0]
	for _, id := range raw.RelatedOpinions {
		if id != raw.ID {
			filtered = append(filtered, id)
		}
	}
	raw.RelatedOpinions = filtered
	if raw.ContradictsOpinionID == raw.ID {
		raw.ContradictsOpinionID = ""
	}
}

func ensureAppearances(raw *opinion.Raw) {
	if len(raw.Appearances) == 0 && raw.EpisodeID != "" {
		raw.Appearances = append(raw.Appearances, raw.Appearance())
	}
}

func appearancesOf(raw *opinion.Raw) []opinion.Appearance {
	if len(raw.Appearances) > 0 {
		return raw.Appearances
	}
	if raw.EpisodeID == "" {
		return nil
	}
	return []opinion.Appearance{raw.Appearance()}
}

// addAppearance merges an appearance into the raw record, deduplicating by
// episode and by speaker within an episode.
func addAppearance(raw *opinion.Raw, app opinion.Appearance) {
	for i := range raw.Appearances {
		existing := &raw.Appearances[i]
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
		return
	}
	raw.Appearances = append(raw.Appearances, app)
}

func appendUnique(list []string, value string) []string {
	if value == "" || contains(list, value) {
		return list
	}
	return append(list, value)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func unionKeywords(a, b []string) []string {
	out := a
	for _, keyword := range b {
		out = appendUnique(out, keyword)
	}
	return out
}

func joinNotes(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return existing
	}
	if existing == "" {
		return addition
	}
	if strings.Contains(existing, addition) {
		return existing
	}
	return existing + "; " + addition
}
