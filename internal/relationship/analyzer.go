// Package relationship turns an LLM into a relationship classifier over
// batches of opinions within one category. Responses are cached in the
// checkpoint store so an interrupted run never pays for the same batch
// twice.
package relationship

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"opiniongraph/internal/checkpoint"
	"opiniongraph/internal/identity"
	"opiniongraph/internal/llm"
	"opiniongraph/internal/logging"
	"opiniongraph/internal/opinion"
	"opiniongraph/internal/textutil"
)

// Oracle is the completion surface the analyzer needs from the LLM client.
type Oracle interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ResponseCache is the slice of the checkpoint store used for caching batch
// responses.
type ResponseCache interface {
	GetLLMResponse(ctx context.Context, stage checkpoint.Stage, queryID string) (string, bool, error)
	SaveLLMResponse(ctx context.Context, stage checkpoint.Stage, queryID, payload string) error
}

// Analyzer classifies relationships between opinions of a category.
type Analyzer struct {
	oracle              Oracle
	cache               ResponseCache
	batchSize           int
	similarityThreshold float64
	logger              *slog.Logger
}

// NewAnalyzer constructs an analyzer. The cache may be nil, in which case
// every batch hits the oracle.
func NewAnalyzer(oracle Oracle, cache ResponseCache, batchSize int, similarityThreshold float64, logger *slog.Logger) *Analyzer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Analyzer{
		oracle:              oracle,
		cache:               cache,
		batchSize:           batchSize,
		similarityThreshold: similarityThreshold,
		logger:              logging.NewComponentLogger(logger, "relationship"),
	}
}

// Analyze classifies relationships among the opinions of one category. The
// opinions are sorted chronologically and analyzed in batches. An oracle or
// parse failure aborts the whole call; unresolvable ids inside an otherwise
// valid response are skipped and logged.
func (a *Analyzer) Analyze(ctx context.Context, category string, opinions []*opinion.Raw) ([]*opinion.Relationship, error) {
	if a.oracle == nil {
		return nil, errors.New("relationship: no oracle configured")
	}
	if len(opinions) < 2 {
		return nil, nil
	}

	sorted := make([]*opinion.Raw, len(opinions))
	copy(sorted, opinions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EpisodeDate.Before(sorted[j].EpisodeDate)
	})

	index := identity.NewIndex(indexByID(sorted), a.logger)

	var relationships []*opinion.Relationship
	for start := 0; start < len(sorted); start += a.batchSize {
		end := start + a.batchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		batch := sorted[start:end]
		if len(batch) < 2 {
			continue
		}
		batchRels, err := a.analyzeBatch(ctx, category, batch, index)
		if err != nil {
			return nil, fmt.Errorf("analyze category %q batch %d: %w", category, start/a.batchSize, err)
		}
		relationships = append(relationships, batchRels...)
	}
	return relationships, nil
}

func (a *Analyzer) analyzeBatch(ctx context.Context, category string, batch []*opinion.Raw, index *identity.Index) ([]*opinion.Relationship, error) {
	userPrompt := formatBatchPrompt(category, batch)
	queryID := batchHash(userPrompt)

	payload, cached, err := a.cachedResponse(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if !cached {
		payload, err = a.oracle.CompleteJSON(ctx, relationshipSystemPrompt, userPrompt)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			if err := a.cache.SaveLLMResponse(ctx, checkpoint.StageRelationshipAnalysis, queryID, payload); err != nil {
				return nil, err
			}
		}
	} else {
		a.logger.Debug("batch served from cache", logging.String("query_id", queryID))
	}

	entries, err := decodeRelationshipPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("parse classifier payload: %w", err)
	}
	return a.buildRelationships(entries, index), nil
}

func (a *Analyzer) cachedResponse(ctx context.Context, queryID string) (string, bool, error) {
	if a.cache == nil {
		return "", false, nil
	}
	return a.cache.GetLLMResponse(ctx, checkpoint.StageRelationshipAnalysis, queryID)
}

// relationshipEntry mirrors one record of the classifier response.
type relationshipEntry struct {
	SourceID     string  `json:"source_id"`
	TargetID     string  `json:"target_id"`
	RelationType string  `json:"relation_type"`
	Notes        string  `json:"notes"`
	Confidence   float64 `json:"confidence"`
}

// decodeRelationshipPayload accepts either a bare JSON array or an object
// wrapping one under "relationships". Any other shape, such as a refusal
// object, is a hard parse failure; the stage must never complete on a
// payload it could not actually read.
func decodeRelationshipPayload(payload string) ([]relationshipEntry, error) {
	var entries []relationshipEntry
	if err := llm.DecodeLLMJSON(payload, &entries); err == nil {
		return entries, nil
	}
	var wrapped struct {
		Relationships *[]relationshipEntry `json:"relationships"`
	}
	if err := llm.DecodeLLMJSON(payload, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Relationships == nil {
		return nil, errors.New("payload is neither a relationship array nor an object with a relationships key")
	}
	return *wrapped.Relationships, nil
}

func (a *Analyzer) buildRelationships(entries []relationshipEntry, index *identity.Index) []*opinion.Relationship {
	var relationships []*opinion.Relationship
	for _, entry := range entries {
		relType, known := opinion.ParseRelationType(entry.RelationType)
		if relType == opinion.RelationNone {
			continue
		}
		if !known {
			a.logger.Warn("unknown relation type, treating as related",
				logging.String("relation_type", entry.RelationType),
				logging.String("source_id", entry.SourceID),
				logging.String("target_id", entry.TargetID))
		}

		source := index.Resolve(entry.SourceID, "")
		target := index.Resolve(entry.TargetID, "")
		if source == nil || target == nil {
			a.logger.Warn("dropping relationship with unresolvable id",
				logging.String("source_id", entry.SourceID),
				logging.String("target_id", entry.TargetID))
			continue
		}
		if source.ID == target.ID {
			continue
		}

		notes := strings.TrimSpace(entry.Notes)
		// The classifier sometimes returns evolution edges backwards.
		// Evolution follows episode chronology, so flip when needed.
		if relType == opinion.RelationEvolution && target.EpisodeDate.Before(source.EpisodeDate) {
			source, target = target, source
			entry.SourceID, entry.TargetID = entry.TargetID, entry.SourceID
			if notes != "" {
				notes += " [reversed]"
			} else {
				notes = "[reversed]"
			}
		}

		relationships = append(relationships, &opinion.Relationship{
			SourceID:         compositeID(source),
			TargetID:         compositeID(target),
			RelationType:     relType,
			Notes:            notes,
			Confidence:       entry.Confidence,
			SourceEpisodeID:  source.EpisodeID,
			TargetEpisodeID:  target.EpisodeID,
			OriginalSourceID: entry.SourceID,
			OriginalTargetID: entry.TargetID,
		})
	}
	return relationships
}

// HeuristicAnalyze links opinions whose title and description text exceeds
// the similarity threshold. Pairs from the same episode are skipped; two
// opinions extracted from one episode are already distinct by construction.
// This path is only invoked explicitly, never as an automatic fallback.
func (a *Analyzer) HeuristicAnalyze(category string, opinions []*opinion.Raw) []*opinion.Relationship {
	fingerprints := make([]*textutil.Fingerprint, len(opinions))
	for i, op := range opinions {
		fingerprints[i] = textutil.NewFingerprint(op.Title + " " + op.Description)
	}

	var relationships []*opinion.Relationship
	for i := 0; i < len(opinions); i++ {
		for j := i + 1; j < len(opinions); j++ {
			if opinions[i].EpisodeID == opinions[j].EpisodeID {
				continue
			}
			score := textutil.CosineSimilarity(fingerprints[i], fingerprints[j])
			if score < a.similarityThreshold {
				continue
			}
			source, target := opinions[i], opinions[j]
			if target.EpisodeDate.Before(source.EpisodeDate) {
				source, target = target, source
			}
			relationships = append(relationships, &opinion.Relationship{
				SourceID:         compositeID(source),
				TargetID:         compositeID(target),
				RelationType:     opinion.RelationRelated,
				Notes:            fmt.Sprintf("heuristic similarity %.2f", score),
				Confidence:       score,
				SourceEpisodeID:  source.EpisodeID,
				TargetEpisodeID:  target.EpisodeID,
				OriginalSourceID: source.ID,
				OriginalTargetID: target.ID,
			})
		}
	}
	if len(relationships) > 0 {
		a.logger.Info("heuristic analysis linked opinions",
			logging.String(logging.FieldCategory, category),
			logging.Int(logging.FieldCount, len(relationships)))
	}
	return relationships
}

// compositeID returns the "{id}_{episode_id}" form used by the merge
// engine, avoiding a doubled suffix when the id already carries it.
func compositeID(record *opinion.Raw) string {
	if record.EpisodeID == "" || strings.HasSuffix(record.ID, "_"+record.EpisodeID) {
		return record.ID
	}
	return record.ID + "_" + record.EpisodeID
}

func indexByID(opinions []*opinion.Raw) map[string]*opinion.Raw {
	index := make(map[string]*opinion.Raw, len(opinions))
	for _, op := range opinions {
		index[op.ID] = op
	}
	return index
}

func batchHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
