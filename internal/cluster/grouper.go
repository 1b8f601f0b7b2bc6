package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
)

// Group is one event: indices into the grouped articles plus the preferred
// representative (Best, or -1 when none was named).
type Group struct {
	Label   string
	Indices []int
	Best    int
}

// Grouper partitions articles into groups covering the same event. Every
// index appears in exactly one group.
type Grouper interface {
	Group(ctx context.Context, articles []model.ScoredArticle) ([]Group, error)
}

// OracleGrouper asks the oracle to group articles by underlying event.
type OracleGrouper struct {
	Oracle llm.Generator
}

type clusterItem struct {
	Label            string `json:"label"`
	CandidateIndices []int  `json:"candidate_indices"`
	BestIndex        *int   `json:"best_index,omitempty"`
}

type clustersResponse struct {
	Clusters []clusterItem `json:"clusters"`
	count    int
}

// Validate rejects indices outside the candidate list.
func (r *clustersResponse) Validate() error {
	for i, c := range r.Clusters {
		for _, idx := range c.CandidateIndices {
			if idx < 0 || idx >= r.count {
				return fmt.Errorf("cluster %d: candidate index %d out of range [0,%d)", i, idx, r.count)
			}
		}
		if c.BestIndex != nil && (*c.BestIndex < 0 || *c.BestIndex >= r.count) {
			return fmt.Errorf("cluster %d: best_index %d out of range [0,%d)", i, *c.BestIndex, r.count)
		}
	}
	return nil
}

// Group implements Grouper.
func (g OracleGrouper) Group(ctx context.Context, articles []model.ScoredArticle) ([]Group, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	resp := &clustersResponse{count: len(articles)}
	if err := g.Oracle.Generate(ctx, llm.TaskClustering, buildClusterPrompt(articles), resp); err != nil {
		return nil, err
	}
	return sanitize(resp.Clusters, articles), nil
}

// sanitize turns the oracle answer into a partition: a repeated index stays
// with its first cluster, and unassigned articles become singletons.
func sanitize(items []clusterItem, articles []model.ScoredArticle) []Group {
	assigned := make([]bool, len(articles))
	groups := make([]Group, 0, len(items))

	for _, item := range items {
		g := Group{Label: strings.TrimSpace(item.Label), Best: -1}
		for _, idx := range item.CandidateIndices {
			if idx < 0 || idx >= len(articles) || assigned[idx] {
				continue
			}
			assigned[idx] = true
			g.Indices = append(g.Indices, idx)
		}
		if len(g.Indices) == 0 {
			continue
		}
		if item.BestIndex != nil && containsInt(g.Indices, *item.BestIndex) {
			g.Best = *item.BestIndex
		}
		if g.Label == "" {
			g.Label = articles[g.Indices[0]].Title
		}
		groups = append(groups, g)
	}

	for i, ok := range assigned {
		if !ok {
			groups = append(groups, Group{Label: articles[i].Title, Indices: []int{i}, Best: i})
		}
	}
	return groups
}

func buildClusterPrompt(articles []model.ScoredArticle) string {
	var b strings.Builder
	b.WriteString("Group these news candidates by the underlying event they describe. ")
	b.WriteString("Candidates covering the same event belong in the same cluster.\n\nCandidates:\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. title=%q url=%q snippet=%q\n", i, a.Title, a.URL, a.Snippet)
	}
	b.WriteString(`
Return a JSON object:
{"clusters": [{"label": "short descriptive label for the event", "candidate_indices": [0, 3, 5], "best_index": 0}]}

- Each candidate index must appear in exactly one cluster.
- best_index is the candidate with the most comprehensive coverage.
- Return valid JSON only.`)
	return b.String()
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
