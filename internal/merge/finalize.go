package merge

import (
	"opiniongraph/internal/logging"
	"opiniongraph/internal/opinion"
)

// Finalize converts the surviving working records into typed Opinions. This
// is the single explicit conversion step; nothing mutates opinions after
// it. Records with no resolvable appearance are skipped with a warning.
// categoryIDs maps category names to store ids; unknown names pass through
// unchanged.
func (e *Engine) Finalize(survivors []*opinion.Raw, categoryIDs map[string]string) []*opinion.Opinion {
	opinions := make([]*opinion.Opinion, 0, len(survivors))
	for _, raw := range survivors {
		apps := appearancesOf(raw)
		if len(apps) == 0 {
			e.logger.Warn("skipping opinion with no appearance",
				logging.String(logging.FieldOpinion, raw.ID),
				logging.String("title", raw.Title))
			continue
		}

		categoryID := raw.Category
		if mapped, ok := categoryIDs[raw.Category]; ok {
			categoryID = mapped
		}

		final := &opinion.Opinion{
			ID:                   raw.ID,
			Title:                raw.Title,
			Description:          raw.Description,
			CategoryID:           categoryID,
			RelatedOpinions:      raw.RelatedOpinions,
			EvolutionNotes:       raw.EvolutionNotes,
			EvolutionChain:       raw.EvolutionChain,
			IsContradiction:      raw.IsContradiction,
			ContradictsOpinionID: raw.ContradictsOpinionID,
			ContradictionNotes:   raw.ContradictionNotes,
			Keywords:             raw.Keywords,
			Confidence:           raw.Confidence,
			Metadata:             raw.Metadata,
		}
		for _, app := range apps {
			final.AddAppearance(app)
		}
		final.Normalize()
		opinions = append(opinions, final)
	}
	return opinions
}
