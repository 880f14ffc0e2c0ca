// Package categorize folds the free-form category names carried by raw
// opinions onto a standard set and groups opinions per category. Off-list
// names are mapped with an LLM call when an oracle is available; mapping
// failures fall back to the original name rather than aborting the stage.
package categorize

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"opiniongraph/internal/checkpoint"
	"opiniongraph/internal/llm"
	"opiniongraph/internal/logging"
	"opiniongraph/internal/opinion"
)

// StandardCategories is the default category set opinions are folded onto.
var StandardCategories = []string{
	"Politics", "Economics", "Technology", "Society", "Philosophy",
	"Science", "Business", "Culture", "Health", "Environment",
	"Media", "Education", "Finance", "Sports", "Entertainment",
}

// Uncategorized is assigned when a raw opinion carries no category at all.
const Uncategorized = "Uncategorized"

// Oracle is the completion surface the categorizer needs.
type Oracle interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ResponseCache persists mapping responses so reruns skip the oracle.
type ResponseCache interface {
	GetLLMResponse(ctx context.Context, stage checkpoint.Stage, queryID string) (string, bool, error)
	SaveLLMResponse(ctx context.Context, stage checkpoint.Stage, queryID, payload string) error
}

// CategoryEnsurer creates categories on first use.
type CategoryEnsurer interface {
	FindOrCreate(name string) (*opinion.Category, error)
	GetByName(name string) (*opinion.Category, error)
}

// Categorizer standardizes category names and groups opinions by them.
type Categorizer struct {
	oracle        Oracle
	cache         ResponseCache
	categories    CategoryEnsurer
	standard      []string
	standardLower map[string]string
	mapping       map[string]string
	titler        cases.Caser
	logger        *slog.Logger
}

// NewCategorizer constructs a categorizer. The oracle, cache, and category
// store may each be nil; missing collaborators narrow behavior instead of
// failing (no oracle means off-list names pass through unchanged).
func NewCategorizer(oracle Oracle, cache ResponseCache, categories CategoryEnsurer, logger *slog.Logger) *Categorizer {
	c := &Categorizer{
		oracle:        oracle,
		cache:         cache,
		categories:    categories,
		standard:      StandardCategories,
		standardLower: make(map[string]string, len(StandardCategories)),
		mapping:       make(map[string]string),
		titler:        cases.Title(language.English),
		logger:        logging.NewComponentLogger(logger, "categorize"),
	}
	for _, name := range c.standard {
		c.standardLower[strings.ToLower(name)] = name
	}
	return c
}

// CanonicalName trims and title-cases a raw category name.
func (c *Categorizer) CanonicalName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return Uncategorized
	}
	if standard, ok := c.standardLower[strings.ToLower(name)]; ok {
		return standard
	}
	return c.titler.String(strings.ToLower(name))
}

// Categorize maps every raw opinion onto a standard category, rewrites the
// record's category field, and returns the opinions grouped per category
// with category names in first-seen order.
func (c *Categorizer) Categorize(ctx context.Context, raws []*opinion.Raw) (map[string][]*opinion.Raw, []string, error) {
	grouped := make(map[string][]*opinion.Raw)
	var order []string

	for _, raw := range raws {
		category, err := c.MapToStandard(ctx, raw.Category)
		if err != nil {
			return nil, nil, err
		}
		raw.Category = category
		if _, seen := grouped[category]; !seen {
			order = append(order, category)
		}
		grouped[category] = append(grouped[category], raw)
	}

	c.logger.Info("categorized opinions",
		logging.Int("opinions", len(raws)),
		logging.Int("categories", len(order)))
	return grouped, order, nil
}

// MapToStandard folds one raw category name onto the standard set: direct
// case-insensitive match first, then an existing stored category, then the
// oracle, and finally the canonicalized original name. Only a context
// cancellation is propagated as an error.
func (c *Categorizer) MapToStandard(ctx context.Context, raw string) (string, error) {
	name := c.CanonicalName(raw)
	key := strings.ToLower(name)

	if mapped, ok := c.mapping[key]; ok {
		return mapped, nil
	}
	if standard, ok := c.standardLower[key]; ok {
		c.mapping[key] = standard
		return standard, nil
	}

	if c.categories != nil {
		existing, err := c.categories.GetByName(name)
		if err != nil {
			c.logger.Warn("category lookup failed",
				logging.String(logging.FieldCategory, name), logging.Error(err))
		} else if existing != nil {
			c.mapping[key] = existing.Name
			return existing.Name, nil
		}
	}

	if c.oracle != nil {
		mapped, err := c.mapWithOracle(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn("category mapping call failed, keeping original",
				logging.String(logging.FieldCategory, name), logging.Error(err))
		} else if mapped != "" {
			c.mapping[key] = mapped
			return mapped, nil
		}
	}

	c.mapping[key] = name
	return name, nil
}

const mappingSystemPrompt = `You map specific category names onto a standard category list.
Match the given category to the closest standard category. If none fits,
keep the original. Respond with JSON only: {"category": "<name>"}.`

type mappingResponse struct {
	Category string `json:"category"`
}

func (c *Categorizer) mapWithOracle(ctx context.Context, name string) (string, error) {
	queryID := "category_map:" + strings.ToLower(name)

	payload, ok, err := c.cachedResponse(ctx, queryID)
	if err != nil {
		c.logger.Warn("mapping cache read failed", logging.Error(err))
	}
	if !ok {
		userPrompt := "Category: \"" + name + "\"\n\nStandard categories: " +
			strings.Join(c.standard, ", ") +
			"\n\nReturn the best matching standard category, or the original name if none fits."
		payload, err = c.oracle.CompleteJSON(ctx, mappingSystemPrompt, userPrompt)
		if err != nil {
			return "", err
		}
		if c.cache != nil {
			if err := c.cache.SaveLLMResponse(ctx, checkpoint.StageCategorization, queryID, payload); err != nil {
				c.logger.Warn("mapping cache write failed", logging.Error(err))
			}
		}
	}

	var response mappingResponse
	if err := llm.DecodeLLMJSON(payload, &response); err != nil {
		return "", err
	}
	mapped := strings.TrimSpace(response.Category)
	if mapped == "" {
		return "", nil
	}
	if standard, ok := c.standardLower[strings.ToLower(mapped)]; ok {
		return standard, nil
	}
	return c.CanonicalName(mapped), nil
}

func (c *Categorizer) cachedResponse(ctx context.Context, queryID string) (string, bool, error) {
	if c.cache == nil {
		return "", false, nil
	}
	return c.cache.GetLLMResponse(ctx, checkpoint.StageCategorization, queryID)
}

// EnsureCategories creates every named category in the store and returns a
// name-to-id map for the merge finalization step.
func (c *Categorizer) EnsureCategories(names []string) (map[string]string, error) {
	ids := make(map[string]string, len(names))
	if c.categories == nil {
		return ids, nil
	}
	for _, name := range names {
		category, err := c.categories.FindOrCreate(name)
		if err != nil {
			return nil, err
		}
		ids[name] = category.ID
	}
	return ids, nil
}
