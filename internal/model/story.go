package model

import "time"

// Story is a published digest entry.
type Story struct {
	ClusterID       string         `json:"cluster_id"`
	Label           string         `json:"label,omitempty"`
	Headline        string         `json:"headline"`
	CoreFact        string         `json:"core_fact,omitempty"`
	Summary         string         `json:"summary"`
	Sources         []string       `json:"sources"`
	SNRScore        int            `json:"snr_score"`        // 1-10
	ImportanceScore int            `json:"importance_score"` // 1-10
	BreakingScore   int            `json:"breaking_score"`   // 1-10
	IsBreaking      bool           `json:"is_breaking"`
	LanguageMix     map[string]int `json:"language_mix,omitempty"`
	PublishedAt     time.Time      `json:"published_at"`
	Signals         []Signal       `json:"signals,omitempty"`
}

// Metrics are the raw editorial scores returned for a cluster.
type Metrics struct {
	Breaking   int `json:"breaking"`
	Importance int `json:"importance"`
	SNR        int `json:"snr"`
}

// Draft is a synthesized but not yet gated story.
type Draft struct {
	ClusterID string  `json:"cluster_id"`
	Headline  string  `json:"headline"`
	CoreFact  string  `json:"core_fact"`
	Summary   string  `json:"summary"`
	Metrics   Metrics `json:"metrics"`
}

// Signal explains one input to the publication decision
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // inputs, thresholds, formula
}

// SignalType classifies a gate signal
type SignalType string

const (
	SignalSNRFloor       SignalType = "snr_floor"
	SignalImportanceBar  SignalType = "importance_bar"
	SignalBreakingBypass SignalType = "breaking_bypass"
	SignalDepth          SignalType = "knowledge_depth"
	SignalVerification   SignalType = "claims_verification"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
