// Package identity resolves the opinion ids that appear in LLM relationship
// judgments. The classifier frequently truncates, renumbers, or drops the
// episode suffix from the ids it was given, so exact-match-only lookup would
// silently discard most real relationships. The resolver keeps a variant
// index mapping every generated alias of a canonical id back to that id and
// queries it as a pure lookup.
package identity

import (
	"fmt"
	"log/slog"
	"strings"

	"opiniongraph/internal/logging"
	"opiniongraph/internal/opinion"
)

// Index maps canonical opinion ids and their generated aliases to opinion
// records. Build it once per opinion set; it is a read-only lookup after
// construction.
type Index struct {
	opinions map[string]*opinion.Raw
	variants map[string]string // alias -> canonical id
	logger   *slog.Logger
}

// NewIndex builds the variant index over the supplied opinion set. For each
// canonical id X of the form "{num}_{episode}", the aliases "{num}",
// "{num}_{episode}" and "{num}_{episode}_{episode}" are registered; a bare
// id registers only itself. When two canonical ids collide on an alias
// (the same short number recurring across episodes), the alias keeps its
// first registration — callers disambiguate through the episode hint.
func NewIndex(opinions map[string]*opinion.Raw, logger *slog.Logger) *Index {
	idx := &Index{
		opinions: opinions,
		variants: make(map[string]string, len(opinions)*3),
		logger:   logging.NewComponentLogger(logger, "identity"),
	}
	for canonical, record := range opinions {
		idx.register(canonical, canonical)
		num, episode, ok := splitComposite(canonical)
		if !ok {
			// Flat id: register the composite forms implied by the
			// record's own episode so truncated references still land.
			if record != nil && record.EpisodeID != "" {
				idx.register(fmt.Sprintf("%s_%s", canonical, record.EpisodeID), canonical)
			}
			continue
		}
		idx.register(num, canonical)
		idx.register(fmt.Sprintf("%s_%s", num, episode), canonical)
		idx.register(fmt.Sprintf("%s_%s_%s", num, episode, episode), canonical)
	}
	idx.logger.Debug("variant index built",
		logging.Int("opinions", idx.Len()),
		logging.Int("aliases", idx.VariantCount()))
	return idx
}

func (x *Index) register(alias, canonical string) {
	if alias == "" {
		return
	}
	if _, exists := x.variants[alias]; !exists {
		x.variants[alias] = canonical
	}
}

// Resolve maps a candidate id, as it appeared in a relationship judgment,
// to the canonical opinion record. It tries, in order: exact id match,
// composite variants built from the episode hint, the alias table, and
// finally a substring fuzzy match restricted to ids sharing the episode
// hint. Returns nil when nothing matches; resolution failure is a soft
// error and never aborts the caller's batch.
func (x *Index) Resolve(candidate, episodeHint string) *opinion.Raw {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil
	}

	if record, ok := x.opinions[candidate]; ok {
		return record
	}

	for _, variant := range candidateVariants(candidate, episodeHint) {
		if record, ok := x.opinions[variant]; ok {
			x.logger.Debug("resolved id via composite variant",
				logging.String("candidate", candidate),
				logging.String("variant", variant))
			return record
		}
		if canonical, ok := x.variants[variant]; ok {
			x.logger.Debug("resolved id via variant table",
				logging.String("candidate", candidate),
				logging.String("canonical", canonical))
			return x.opinions[canonical]
		}
	}

	if canonical, ok := x.variants[candidate]; ok {
		x.logger.Debug("resolved id via variant table",
			logging.String("candidate", candidate),
			logging.String("canonical", canonical))
		return x.opinions[canonical]
	}

	if episodeHint != "" {
		if record := x.fuzzyMatch(candidate, episodeHint); record != nil {
			return record
		}
	}

	return nil
}

// fuzzyMatch is the last-resort leg: among ids that carry the episode hint,
// accept one that contains the candidate (or vice versa) as a substring.
func (x *Index) fuzzyMatch(candidate, episodeHint string) *opinion.Raw {
	for id, record := range x.opinions {
		if !strings.Contains(id, episodeHint) {
			continue
		}
		if strings.Contains(id, candidate) || strings.Contains(candidate, id) {
			x.logger.Debug("resolved id via fuzzy substring match",
				logging.String("candidate", candidate),
				logging.String("episode_hint", episodeHint),
				logging.String("canonical", id))
			return record
		}
	}
	return nil
}

// Len returns the number of canonical ids in the index.
func (x *Index) Len() int { return len(x.opinions) }

// VariantCount returns the number of registered aliases, canonical ids
// included.
func (x *Index) VariantCount() int { return len(x.variants) }

func candidateVariants(candidate, episodeHint string) []string {
	if episodeHint == "" {
		return nil
	}
	variants := []string{
		fmt.Sprintf("%s_%s", candidate, episodeHint),
		fmt.Sprintf("%s_%s_%s", candidate, episodeHint, episodeHint),
	}
	// A candidate that already carries an episode suffix also gets its
	// bare numeric prefix retried against the hint.
	if num, _, ok := splitComposite(candidate); ok {
		variants = append(variants, fmt.Sprintf("%s_%s", num, episodeHint))
	}
	return variants
}

func splitComposite(id string) (num, episode string, ok bool) {
	idx := strings.IndexByte(id, '_')
	if idx <= 0 || idx == len(id)-1 {
		return "", "", false
	}
	return id[:idx], id[idx+1:], true
}
