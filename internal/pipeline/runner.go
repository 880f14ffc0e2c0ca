// Package pipeline sequences the opinion-graph stages over a raw-opinions
// snapshot: categorization, relationship analysis, merging, evolution
// detection, and speaker tracking. Progress is checkpointed per scope so an
// interrupted run resumes at the first incomplete stage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"opiniongraph/internal/categorize"
	"opiniongraph/internal/checkpoint"
	"opiniongraph/internal/config"
	"opiniongraph/internal/evolution"
	"opiniongraph/internal/journey"
	"opiniongraph/internal/logging"
	"opiniongraph/internal/merge"
	"opiniongraph/internal/opinion"
	"opiniongraph/internal/relationship"
	"opiniongraph/internal/store"
)

// Oracle is the LLM surface the pipeline stages share.
type Oracle interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Runner executes the pipeline for one scope at a time. Raw extraction runs
// outside this pipeline; its snapshot in the output directory is the
// runner's input.
type Runner struct {
	cfg         *config.Config
	checkpoints *checkpoint.Store
	snapshots   *store.Snapshots
	opinions    *store.OpinionStore
	categorizer *categorize.Categorizer
	analyzer    *relationship.Analyzer
	engine      *merge.Engine
	builder     *evolution.Builder
	tracker     *journey.Tracker
	logger      *slog.Logger
}

// New wires a runner from configuration. The oracle serves the
// categorization and relationship-analysis stages; cached responses in the
// checkpoint store are consulted before it is called.
func New(cfg *config.Config, checkpoints *checkpoint.Store, oracle Oracle, logger *slog.Logger) *Runner {
	categories := store.NewCategoryStore(cfg.CategoriesPath())
	var categorizerOracle categorize.Oracle
	var analyzerOracle relationship.Oracle
	if oracle != nil {
		categorizerOracle = oracle
		analyzerOracle = oracle
	}
	return &Runner{
		cfg:         cfg,
		checkpoints: checkpoints,
		snapshots:   store.NewSnapshots(cfg.Paths.OutputDir),
		opinions:    store.NewOpinionStore(cfg.OpinionsPath()),
		categorizer: categorize.NewCategorizer(categorizerOracle, checkpoints, categories, logger),
		analyzer: relationship.NewAnalyzer(analyzerOracle, checkpoints,
			cfg.Pipeline.RelationBatchSize, cfg.Pipeline.SimilarityThreshold, logger),
		engine:  merge.NewEngine(logger),
		builder: evolution.NewBuilder(cfg.Pipeline.EvolutionRootFraction, logger),
		tracker: journey.NewTracker(logger),
		logger:  logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Options controls one pipeline run.
type Options struct {
	// Scope identifies the unit of work being checkpointed, typically a
	// podcast feed id.
	Scope string
	// StartStage skips earlier stages even when incomplete. Zero value
	// starts from the beginning.
	StartStage checkpoint.Stage
	// Force reruns stages the checkpoint already marks complete.
	Force bool
	// DryRun reports which stages would run without executing anything.
	DryRun bool
}

// Summary reports what one run did.
type Summary struct {
	Scope             string
	StagesRun         []checkpoint.Stage
	StagesSkipped     []checkpoint.Stage
	RawCount          int
	FinalCount        int
	RelationshipCount int
	ChainCount        int
	JourneyCount      int
	MergeStats        opinion.MergeStats
	NoOp              bool
}

// Run executes the pipeline for one scope. A scope the checkpoint already
// marks processed is a no-op unless Force is set.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Scope == "" {
		return nil, fmt.Errorf("pipeline: scope required")
	}
	summary := &Summary{Scope: opts.Scope}

	if !opts.Force {
		processed, err := r.checkpoints.IsProcessed(ctx, opts.Scope)
		if err != nil {
			return nil, fmt.Errorf("check processed: %w", err)
		}
		if processed {
			r.logger.Info("scope already processed",
				logging.String("scope", opts.Scope))
			summary.NoOp = true
			return summary, nil
		}
	}

	raws, found, err := r.snapshots.ReadRawOpinions()
	if err != nil {
		return nil, fmt.Errorf("read raw opinions: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("pipeline: no raw opinions snapshot in %s, run extraction first", r.snapshots.Dir())
	}
	summary.RawCount = len(raws)

	if opts.DryRun {
		return r.plan(ctx, opts, summary)
	}

	if err := r.ensureStage(ctx, opts.Scope, checkpoint.StageRawExtraction); err != nil {
		return nil, err
	}

	run, err := r.stageGate(ctx, opts, summary)
	if err != nil {
		return nil, err
	}

	var (
		order []string
		rels  []*opinion.Relationship
		final []*opinion.Opinion
	)

	if run(checkpoint.StageCategorization) {
		_, order, err = r.categorizer.Categorize(ctx, raws)
		if err != nil {
			return nil, fmt.Errorf("categorization stage: %w", err)
		}
		if err := r.snapshots.WriteRawOpinions(raws); err != nil {
			return nil, fmt.Errorf("categorization stage: %w", err)
		}
		if err := r.complete(ctx, opts.Scope, checkpoint.StageCategorization); err != nil {
			return nil, err
		}
	} else {
		order = categoryOrder(raws)
	}

	if run(checkpoint.StageRelationshipAnalysis) {
		rels, err = r.analyzeRelationships(ctx, raws, order)
		if err != nil {
			return nil, fmt.Errorf("relationship analysis stage: %w", err)
		}
		if err := r.snapshots.WriteRelationships(rels); err != nil {
			return nil, fmt.Errorf("relationship analysis stage: %w", err)
		}
		r.addStat(ctx, "relationships_found", int64(len(rels)))
		if err := r.complete(ctx, opts.Scope, checkpoint.StageRelationshipAnalysis); err != nil {
			return nil, err
		}
	} else {
		rels, _, err = r.snapshots.ReadRelationships()
		if err != nil {
			return nil, fmt.Errorf("read relationships: %w", err)
		}
	}
	summary.RelationshipCount = len(rels)

	if run(checkpoint.StageOpinionMerging) {
		result := r.engine.ProcessRelationships(rels, raws)
		categoryIDs, err := r.categorizer.EnsureCategories(order)
		if err != nil {
			return nil, fmt.Errorf("opinion merging stage: %w", err)
		}
		final = r.engine.Finalize(result.Opinions, categoryIDs)
		if err := r.opinions.SaveAll(final); err != nil {
			return nil, fmt.Errorf("opinion merging stage: %w", err)
		}
		if err := r.snapshots.WriteMergeStats(result.Stats); err != nil {
			return nil, fmt.Errorf("opinion merging stage: %w", err)
		}
		if err := r.snapshots.WriteMergeRecords(result.Records); err != nil {
			return nil, fmt.Errorf("opinion merging stage: %w", err)
		}
		summary.MergeStats = result.Stats
		r.addStat(ctx, "opinions_merged", int64(result.Stats.AppliedSameOpinion))
		if err := r.complete(ctx, opts.Scope, checkpoint.StageOpinionMerging); err != nil {
			return nil, err
		}
	} else {
		final, err = r.opinions.Load()
		if err != nil {
			return nil, fmt.Errorf("load opinions: %w", err)
		}
	}
	summary.FinalCount = len(final)

	var chains []*opinion.EvolutionChain
	if run(checkpoint.StageEvolutionDetection) {
		chains = r.builder.BuildChains(final, rels)
		if err := r.snapshots.WriteChains(chains); err != nil {
			return nil, fmt.Errorf("evolution detection stage: %w", err)
		}
		r.addStat(ctx, "evolution_chains", int64(len(chains)))
		if err := r.complete(ctx, opts.Scope, checkpoint.StageEvolutionDetection); err != nil {
			return nil, err
		}
	} else {
		chains, _, err = r.snapshots.ReadChains()
		if err != nil {
			return nil, fmt.Errorf("read chains: %w", err)
		}
	}
	summary.ChainCount = len(chains)

	if run(checkpoint.StageSpeakerTracking) {
		journeys, err := r.trackSpeakers(final, chains)
		if err != nil {
			return nil, fmt.Errorf("speaker tracking stage: %w", err)
		}
		summary.JourneyCount = len(journeys)
		if err := r.complete(ctx, opts.Scope, checkpoint.StageSpeakerTracking); err != nil {
			return nil, err
		}
	}

	r.logger.Info("pipeline run finished",
		logging.String("scope", opts.Scope),
		logging.Int("stages_run", len(summary.StagesRun)),
		logging.Int("raw", summary.RawCount),
		logging.Int("final", summary.FinalCount))
	return summary, nil
}

// stageGate returns the predicate deciding whether each stage executes, and
// records the decision on the summary.
func (r *Runner) stageGate(ctx context.Context, opts Options, summary *Summary) (func(checkpoint.Stage) bool, error) {
	completed := make(map[checkpoint.Stage]bool, len(checkpoint.Stages))
	for _, stage := range checkpoint.Stages {
		done, err := r.checkpoints.IsStageComplete(ctx, opts.Scope, stage)
		if err != nil {
			return nil, fmt.Errorf("check stage %s: %w", stage, err)
		}
		completed[stage] = done
	}

	startOrdinal := 0
	if opts.StartStage != "" {
		startOrdinal = opts.StartStage.Ordinal()
		if startOrdinal < 0 {
			return nil, fmt.Errorf("pipeline: unknown start stage %q", opts.StartStage)
		}
	}

	return func(stage checkpoint.Stage) bool {
		shouldRun := stage.Ordinal() >= startOrdinal && (opts.Force || !completed[stage])
		if shouldRun {
			summary.StagesRun = append(summary.StagesRun, stage)
			r.logger.Info("running stage",
				logging.String("scope", opts.Scope),
				logging.String(logging.FieldStage, string(stage)))
		} else {
			summary.StagesSkipped = append(summary.StagesSkipped, stage)
			r.logger.Debug("skipping stage",
				logging.String("scope", opts.Scope),
				logging.String(logging.FieldStage, string(stage)))
		}
		return shouldRun
	}, nil
}

// plan fills the summary with the stages a real run would execute.
func (r *Runner) plan(ctx context.Context, opts Options, summary *Summary) (*Summary, error) {
	run, err := r.stageGate(ctx, opts, summary)
	if err != nil {
		return nil, err
	}
	for _, stage := range checkpoint.Stages[1:] {
		run(stage)
	}
	r.logger.Info("dry run",
		logging.String("scope", opts.Scope),
		logging.Int("stages_planned", len(summary.StagesRun)))
	return summary, nil
}

func (r *Runner) analyzeRelationships(ctx context.Context, raws []*opinion.Raw, order []string) ([]*opinion.Relationship, error) {
	grouped := make(map[string][]*opinion.Raw)
	for _, raw := range raws {
		grouped[raw.Category] = append(grouped[raw.Category], raw)
	}

	var rels []*opinion.Relationship
	for _, category := range order {
		group := grouped[category]
		if len(group) < 2 {
			continue
		}
		found, err := r.analyzer.Analyze(ctx, category, group)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		rels = append(rels, found...)
	}
	return rels, nil
}

func (r *Runner) trackSpeakers(final []*opinion.Opinion, chains []*opinion.EvolutionChain) ([]*opinion.SpeakerJourney, error) {
	history := r.tracker.TrackStances(final)
	contradictions := r.tracker.DetectContradictions(history)
	consistency := r.tracker.AnalyzeConsistency(history, contradictions)

	entries := make([]store.ConsistencyEntry, 0, len(history.Speakers))
	for _, speakerID := range history.Speakers {
		m := consistency[speakerID]
		entries = append(entries, store.ConsistencyEntry{
			SpeakerID:      m.SpeakerID,
			SpeakerName:    m.SpeakerName,
			Score:          m.Score,
			StanceChanges:  m.StanceChangeCount,
			Contradictions: m.ContradictionCount,
			Opinions:       m.OpinionCount,
		})
	}
	if err := r.snapshots.WriteConsistencyReport(entries); err != nil {
		return nil, err
	}

	// Stances a speaker later moved away from ride on the opinions
	// themselves, so the opinions document is rewritten once they are known.
	previous := r.tracker.GeneratePreviousStances(final)
	if len(previous) > 0 {
		for _, op := range final {
			if stances, ok := previous[op.ID]; ok {
				op.PreviousStances = stances
			}
		}
		if err := r.opinions.SaveAll(final); err != nil {
			return nil, err
		}
	}

	journeys := r.tracker.BuildJourneys(final, chains)
	if err := r.snapshots.WriteJourneys(journeys); err != nil {
		return nil, err
	}
	return journeys, nil
}

// ensureStage marks an externally satisfied stage complete if it is not
// already.
func (r *Runner) ensureStage(ctx context.Context, scope string, stage checkpoint.Stage) error {
	done, err := r.checkpoints.IsStageComplete(ctx, scope, stage)
	if err != nil {
		return fmt.Errorf("check stage %s: %w", stage, err)
	}
	if done {
		return nil
	}
	return r.complete(ctx, scope, stage)
}

func (r *Runner) complete(ctx context.Context, scope string, stage checkpoint.Stage) error {
	if err := r.checkpoints.MarkStageComplete(ctx, scope, stage); err != nil {
		return fmt.Errorf("mark %s complete: %w", stage, err)
	}
	return nil
}

func (r *Runner) addStat(ctx context.Context, key string, delta int64) {
	if delta == 0 {
		return
	}
	if err := r.checkpoints.AddStat(ctx, key, delta); err != nil {
		r.logger.Warn("failed to record stat",
			logging.String("key", key), logging.Error(err))
	}
}

// categoryOrder recovers the category iteration order from already
// categorized records.
func categoryOrder(raws []*opinion.Raw) []string {
	var order []string
	seen := make(map[string]struct{})
	for _, raw := range raws {
		if _, ok := seen[raw.Category]; ok {
			continue
		}
		seen[raw.Category] = struct{}{}
		order = append(order, raw.Category)
	}
	return order
}
