package model

import "time"

// HistoryRecord marks a cluster as published.
type HistoryRecord struct {
	ClusterID   string    `json:"cluster_id"`
	Label       string    `json:"label,omitempty"`
	MemberURLs  []string  `json:"member_urls"`
	PublishedAt time.Time `json:"published_at"`
}

// History is the full set of published records as loaded at run start.
type History struct {
	Records     []HistoryRecord `json:"entries"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Window returns records published within the last days before now.
func (h *History) Window(now time.Time, days int) []HistoryRecord {
	if h == nil {
		return nil
	}
	cutoff := now.AddDate(0, 0, -days)
	var out []HistoryRecord
	for _, r := range h.Records {
		if !r.PublishedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// Retain drops records older than the retention window and returns how many were removed.
func (h *History) Retain(now time.Time, days int) int {
	if h == nil || days <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -days)
	kept := h.Records[:0]
	removed := 0
	for _, r := range h.Records {
		if r.PublishedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	h.Records = kept
	return removed
}
