package editor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/curator/internal/llm"
	"github.com/ppiankov/curator/internal/model"
)

// metricsOracle answers with the metrics configured for the cluster id in the prompt.
type metricsOracle struct {
	metrics map[string]model.Metrics
}

func (o *metricsOracle) Generate(ctx context.Context, task llm.Task, prompt string, out interface{}) error {
	for id, m := range o.metrics {
		if !strings.Contains(prompt, "cluster_id=\""+id+"\"") {
			continue
		}
		if m.SNR == 0 {
			return &llm.OracleError{Task: task.Name, Kind: llm.KindMalformed, Attempts: 5, Err: errors.New("bad json")}
		}
		data, _ := json.Marshal(map[string]interface{}{
			"headline":  "Headline " + id,
			"core_fact": "Fact " + id,
			"summary":   "Summary " + id,
			"metrics":   m,
		})
		return json.Unmarshal(data, out)
	}
	return errors.New("unknown cluster")
}

func enriched(ids ...string) []model.EnrichedCluster {
	out := make([]model.EnrichedCluster, len(ids))
	for i, id := range ids {
		out[i] = model.EnrichedCluster{
			Cluster: model.Cluster{
				ID:             id,
				Label:          "label " + id,
				MemberURLs:     []string{"https://example.com/" + id},
				Representative: model.Article{URL: "https://example.com/" + id},
			},
			Enrichment: model.Enrichment{ClusterID: id, DepthOK: true, KnowledgeDepth: 6},
		}
	}
	return out
}

func TestRun_GateAndOrdering(t *testing.T) {
	oracle := &metricsOracle{metrics: map[string]model.Metrics{
		"A": {Breaking: 2, Importance: 9, SNR: 5},
		"B": {Breaking: 2, Importance: 9, SNR: 7},
		"C": {Breaking: 9, Importance: 5, SNR: 9},
		"D": {Breaking: 9, Importance: 9, SNR: 4},
		"E": {Breaking: 5, Importance: 7, SNR: 9},
		"F": {},
	}}
	ed := New(oracle, model.DefaultConfig().Editor, 3, zerolog.Nop())
	ed.now = func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) }

	res, err := ed.Run(context.Background(), enriched("A", "B", "C", "D", "E", "F"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"B", "A", "C"}
	if len(res.Stories) != len(want) {
		t.Fatalf("expected %d stories, got %+v", len(want), res.Stories)
	}
	for i, id := range want {
		if res.Stories[i].ClusterID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, res.Stories[i].ClusterID)
		}
	}
	if !res.Stories[2].IsBreaking || res.Stories[0].IsBreaking {
		t.Error("unexpected breaking flags")
	}
	if res.Stories[0].Headline != "Headline B" || res.Stories[0].CoreFact != "Fact B" {
		t.Errorf("unexpected story content %+v", res.Stories[0])
	}

	if len(res.Rejected) != 3 || res.Failed != 1 {
		t.Errorf("expected 3 rejected (1 failed), got %d (%d)", len(res.Rejected), res.Failed)
	}
}

func TestRun_Empty(t *testing.T) {
	res, err := New(&metricsOracle{}, model.DefaultConfig().Editor, 2, zerolog.Nop()).Run(context.Background(), nil)
	if err != nil || len(res.Stories) != 0 {
		t.Errorf("expected empty result, got %+v %v", res, err)
	}
}
