// Package evolution builds evolution chains out of the EVOLUTION
// relationships between finalized opinions. Chains are trees rooted at the
// first statement of a viewpoint; traversal tolerates cycles in the
// relationship data by tracking visited opinions globally.
package evolution

import (
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"opiniongraph/internal/logging"
	"opiniongraph/internal/opinion"
)

// defaultRootFraction is the share of oldest opinions promoted to roots
// when no structural root exists.
const defaultRootFraction = 0.1

// Builder constructs evolution chains.
type Builder struct {
	rootFraction float64
	logger       *slog.Logger
}

// NewBuilder constructs a chain builder. A non-positive rootFraction falls
// back to the default.
func NewBuilder(rootFraction float64, logger *slog.Logger) *Builder {
	if rootFraction <= 0 || rootFraction > 1 {
		rootFraction = defaultRootFraction
	}
	return &Builder{
		rootFraction: rootFraction,
		logger:       logging.NewComponentLogger(logger, "evolution"),
	}
}

type evolutionEdge struct {
	targetID string
	notes    string
}

// BuildChains builds one chain per reachable evolution tree. Only EVOLUTION
// relationships contribute edges; every other type is ignored here. Chains
// with a single node are discarded.
func (b *Builder) BuildChains(opinions []*opinion.Opinion, relationships []*opinion.Relationship) []*opinion.EvolutionChain {
	byID := make(map[string]*opinion.Opinion, len(opinions))
	for _, op := range opinions {
		byID[op.ID] = op
	}

	graph := make(map[string][]evolutionEdge)
	targets := make(map[string]struct{})
	edgeCount := 0
	for _, rel := range relationships {
		if rel == nil || rel.RelationType != opinion.RelationEvolution {
			continue
		}
		graph[rel.SourceID] = append(graph[rel.SourceID], evolutionEdge{targetID: rel.TargetID, notes: rel.Notes})
		targets[rel.TargetID] = struct{}{}
		edgeCount++
	}
	if edgeCount == 0 {
		b.logger.Info("no evolution relationships found")
		return nil
	}

	roots := b.selectRoots(opinions, graph, targets)

	var chains []*opinion.EvolutionChain
	visited := make(map[string]struct{})
	for _, rootID := range roots {
		root, ok := byID[rootID]
		if !ok {
			continue
		}
		if _, seen := visited[rootID]; seen {
			continue
		}
		if chain := b.buildChainFromRoot(root, byID, graph, visited); chain != nil {
			chains = append(chains, chain)
		}
	}

	b.logger.Info("built evolution chains",
		logging.Int("chains", len(chains)),
		logging.Int("edges", edgeCount))
	return chains
}

// selectRoots picks chain roots in input order: opinions that are never an
// evolution target, then opinions with no outgoing evolution edge, then the
// oldest tenth of the set.
func (b *Builder) selectRoots(opinions []*opinion.Opinion, graph map[string][]evolutionEdge, targets map[string]struct{}) []string {
	var roots []string
	for _, op := range opinions {
		if _, isTarget := targets[op.ID]; !isTarget {
			roots = append(roots, op.ID)
		}
	}
	if len(roots) > 0 {
		return roots
	}

	for _, op := range opinions {
		if _, hasOutgoing := graph[op.ID]; !hasOutgoing {
			roots = append(roots, op.ID)
		}
	}
	if len(roots) > 0 {
		return roots
	}

	// Every opinion is inside a cycle. Treat the oldest tenth as roots.
	sorted := make([]*opinion.Opinion, len(opinions))
	copy(sorted, opinions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EarliestDate().Before(sorted[j].EarliestDate())
	})
	count := int(float64(len(sorted)) * b.rootFraction)
	if count < 1 {
		count = 1
	}
	for _, op := range sorted[:count] {
		roots = append(roots, op.ID)
	}
	b.logger.Debug("no structural roots, using oldest opinions",
		logging.Int(logging.FieldCount, count))
	return roots
}

// buildChainFromRoot walks the evolution graph breadth-first from one root,
// typing each transition and marking every reached opinion visited. Returns
// nil when the root has no reachable successors.
func (b *Builder) buildChainFromRoot(root *opinion.Opinion, byID map[string]*opinion.Opinion, graph map[string][]evolutionEdge, visited map[string]struct{}) *opinion.EvolutionChain {
	rootNode := newNode(root, opinion.EvolutionInitial, "Initial statement of opinion: "+root.Title, "")

	chain := &opinion.EvolutionChain{
		ID:          uuid.NewString(),
		Title:       "Evolution of: " + root.Title,
		Description: "Evolution chain tracking the development of the opinion: " + root.Description,
		CategoryID:  root.CategoryID,
		RootNodeID:  rootNode.ID,
	}
	chain.AddNode(rootNode)
	visited[root.ID] = struct{}{}

	type frontier struct {
		opinionID string
		nodeID    string
	}
	queue := []frontier{{opinionID: root.ID, nodeID: rootNode.ID}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range graph[current.opinionID] {
			target, ok := byID[edge.targetID]
			if !ok {
				continue
			}
			if _, seen := visited[edge.targetID]; seen {
				continue
			}

			source := byID[current.opinionID]
			evolutionType := classifyTransition(source, target)
			description := strings.TrimSpace(edge.notes)
			if description == "" {
				description = describeTransition(evolutionType)
			}

			node := newNode(target, evolutionType, description, current.nodeID)
			chain.AddNode(node)
			visited[edge.targetID] = struct{}{}
			queue = append(queue, frontier{opinionID: edge.targetID, nodeID: node.ID})
		}
	}

	if chain.Len() < 2 {
		return nil
	}
	b.logger.Debug("built chain",
		logging.String(logging.FieldChain, chain.ID),
		logging.String(logging.FieldOpinion, root.ID),
		logging.Int("nodes", chain.Len()))
	return chain
}

// newNode creates a chain node anchored at the opinion's earliest
// appearance.
func newNode(op *opinion.Opinion, evolutionType opinion.EvolutionType, description, previousNodeID string) *opinion.EvolutionNode {
	date := op.EarliestDate()
	episodeID := "unknown"
	if len(op.Appearances) > 0 {
		earliest := op.Appearances[0]
		for _, app := range op.Appearances[1:] {
			if app.Date.Before(earliest.Date) {
				earliest = app
			}
		}
		episodeID = earliest.EpisodeID
		date = earliest.Date
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return &opinion.EvolutionNode{
		ID:             uuid.NewString(),
		OpinionID:      op.ID,
		EpisodeID:      episodeID,
		Date:           date,
		EvolutionType:  evolutionType,
		Description:    description,
		PreviousNodeID: previousNodeID,
		OpinionTitle:   op.Title,
	}
}

var refinementMarkers = []string{
	"however", "but", "although", "nevertheless", "despite", "actually",
	"clarify", "adjust", "refine", "revise", "correct", "modify", "update",
}

var pivotMarkers = []string{
	"instead", "rather", "changed", "shift", "pivot", "reverse", "opposite",
	"no longer", "changed my mind", "now believe", "previously thought",
}

// classifyTransition types the change between two chained opinions by
// comparing their descriptions. Length ratio catches expansion and
// contraction; marker terms catch refinement and pivot; everything else is
// development.
func classifyTransition(source, target *opinion.Opinion) opinion.EvolutionType {
	sourceDesc := strings.ToLower(source.Description)
	targetDesc := strings.ToLower(target.Description)

	sourceLen := len(sourceDesc)
	if sourceLen == 0 {
		sourceLen = 1
	}
	ratio := float64(len(targetDesc)) / float64(sourceLen)
	if ratio > 1.5 {
		return opinion.EvolutionExpansion
	}
	if ratio < 0.75 {
		return opinion.EvolutionContraction
	}

	for _, term := range refinementMarkers {
		if strings.Contains(targetDesc, term) && !strings.Contains(sourceDesc, term) {
			return opinion.EvolutionRefinement
		}
	}
	for _, term := range pivotMarkers {
		if strings.Contains(targetDesc, term) {
			return opinion.EvolutionPivot
		}
	}
	return opinion.EvolutionDevelopment
}

func describeTransition(evolutionType opinion.EvolutionType) string {
	switch evolutionType {
	case opinion.EvolutionExpansion:
		return "Expanded on original opinion with additional details or examples"
	case opinion.EvolutionContraction:
		return "Condensed or focused the opinion on key aspects"
	case opinion.EvolutionRefinement:
		return "Refined the opinion with more nuanced perspective"
	case opinion.EvolutionPivot:
		return "Significantly changed position from the original opinion"
	default:
		return "Developed the opinion further over time"
	}
}
