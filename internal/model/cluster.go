package model

import "time"

// Cluster groups articles describing the same underlying event.
// ID is derived from MemberURLs and never assigned by hand.
type Cluster struct {
	ID             string          `json:"cluster_id"`
	Label          string          `json:"label"`
	MemberURLs     []string        `json:"member_urls"` // normalized, sorted, unique
	Members        []ScoredArticle `json:"members"`
	Representative Article         `json:"representative"`
	LanguageMix    map[string]int  `json:"language_mix,omitempty"`
	FirstSeen      time.Time       `json:"first_seen"`
	CandidateScore float64         `json:"candidate_score"`
}

// Enrichment is the Analyst verdict for one cluster.
type Enrichment struct {
	ClusterID      string   `json:"cluster_id"`
	DepthOK        bool     `json:"depth_ok"`
	KnowledgeDepth int      `json:"knowledge_depth"`
	VerifiedFacts  []string `json:"verified_facts"`
	ClaimsVerified bool     `json:"claims_verified"`
	ScrapeFailed   bool     `json:"scrape_failed"`
	Text           string   `json:"text,omitempty"`
}

// EnrichedCluster pairs a cluster with its enrichment verdict.
type EnrichedCluster struct {
	Cluster    Cluster    `json:"cluster"`
	Enrichment Enrichment `json:"enrichment"`
}
