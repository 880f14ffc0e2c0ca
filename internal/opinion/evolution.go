package opinion

import (
	"sort"
	"time"
)

// EvolutionType classifies how an opinion's framing changed between two
// chain nodes.
type EvolutionType string

const (
	EvolutionInitial       EvolutionType = "initial"
	EvolutionRefinement    EvolutionType = "refinement"
	EvolutionPivot         EvolutionType = "pivot"
	EvolutionContradiction EvolutionType = "contradiction"
	EvolutionExpansion     EvolutionType = "expansion"
	EvolutionContraction   EvolutionType = "contraction"
	EvolutionDevelopment   EvolutionType = "development"
)

// EvolutionNode is a single point in an evolution chain, referencing the
// opinion appearance it was derived from. A node has at most one previous
// node but may branch into multiple next nodes.
type EvolutionNode struct {
	ID             string        `json:"id"`
	OpinionID      string        `json:"opinion_id"`
	EpisodeID      string        `json:"episode_id"`
	Date           time.Time     `json:"date"`
	EvolutionType  EvolutionType `json:"evolution_type"`
	Description    string        `json:"description"`
	PreviousNodeID string        `json:"previous_node_id,omitempty"`
	NextNodeIDs    []string      `json:"next_node_ids"`
	OpinionTitle   string        `json:"opinion_title,omitempty"`
}

// EvolutionChain is a tree of evolution nodes rooted at the initial
// statement of an opinion. Chains are rebuilt wholesale each run and never
// mutated afterward.
type EvolutionChain struct {
	ID          string                    `json:"id"`
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	CategoryID  string                    `json:"category_id,omitempty"`
	RootNodeID  string                    `json:"root_node_id"`
	Nodes       map[string]*EvolutionNode `json:"nodes"`
	OpinionIDs  []string                  `json:"opinion_ids"`
}

// AddNode inserts a node into the chain and links it to its predecessor.
func (c *EvolutionChain) AddNode(node *EvolutionNode) {
	if c.Nodes == nil {
		c.Nodes = make(map[string]*EvolutionNode)
	}
	c.Nodes[node.ID] = node
	c.OpinionIDs = append(c.OpinionIDs, node.OpinionID)
	if node.PreviousNodeID == "" {
		return
	}
	prev, ok := c.Nodes[node.PreviousNodeID]
	if !ok {
		return
	}
	for _, id := range prev.NextNodeIDs {
		if id == node.ID {
			return
		}
	}
	prev.NextNodeIDs = append(prev.NextNodeIDs, node.ID)
}

// OrderedNodes walks the chain from the root, always descending into the
// earliest unvisited branch, and returns the nodes in that order. A
// malformed chain without its root falls back to date order.
func (c *EvolutionChain) OrderedNodes() []*EvolutionNode {
	if len(c.Nodes) == 0 {
		return nil
	}
	if _, ok := c.Nodes[c.RootNodeID]; !ok {
		nodes := make([]*EvolutionNode, 0, len(c.Nodes))
		for _, node := range c.Nodes {
			nodes = append(nodes, node)
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Date.Before(nodes[j].Date) })
		return nodes
	}

	var ordered []*EvolutionNode
	visited := make(map[string]struct{}, len(c.Nodes))
	current := c.RootNodeID
	for current != "" {
		if _, ok := visited[current]; ok {
			break
		}
		node, ok := c.Nodes[current]
		if !ok {
			break
		}
		ordered = append(ordered, node)
		visited[current] = struct{}{}

		var next *EvolutionNode
		for _, id := range node.NextNodeIDs {
			candidate, ok := c.Nodes[id]
			if !ok {
				continue
			}
			if _, seen := visited[id]; seen {
				continue
			}
			if next == nil || candidate.Date.Before(next.Date) {
				next = candidate
			}
		}
		if next == nil {
			break
		}
		current = next.ID
	}
	return ordered
}

// Len returns the number of nodes in the chain.
func (c *EvolutionChain) Len() int { return len(c.Nodes) }
