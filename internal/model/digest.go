package model

import "time"

// Digest is the published artifact of one run.
type Digest struct {
	Date        string      `json:"date"` // YYYY-MM-DD
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Stories     []Story     `json:"stories"`
	Metadata    RunMetadata `json:"metadata"`
}

// RunMetadata counts items surviving each stage.
type RunMetadata struct {
	TotalDiscovered    int `json:"total_discovered"`
	AfterSentinel      int `json:"after_sentinel"`
	ClustersFormed     int `json:"clusters_formed"`
	Deduped            int `json:"deduped"`
	AfterDedup         int `json:"after_dedup"`
	AfterAnalyst       int `json:"after_analyst"`
	Rejected           int `json:"rejected"`
	StoriesPublished   int `json:"stories_published"`
	OracleCalls        int `json:"total_api_calls"`
	OracleTokens       int `json:"oracle_tokens,omitempty"`
	IdentityCollisions int `json:"identity_collisions,omitempty"`
}

// ArchiveEntry points at one dated digest file.
type ArchiveEntry struct {
	Date       string `json:"date"`
	File       string `json:"file"`
	StoryCount int    `json:"story_count"`
}

// ArchiveIndex lists published digests, newest first.
type ArchiveIndex struct {
	Digests []ArchiveEntry `json:"digests"`
}
