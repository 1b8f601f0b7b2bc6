package model

import "time"

// Article is a single discovered news item. Its identity is the normalized URL.
type Article struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Snippet       string    `json:"snippet,omitempty"`
	Language      string    `json:"language,omitempty"`       // ISO 639-1, may be empty
	Source        string    `json:"source,omitempty"`         // feed or search origin
	InterestQuery string    `json:"interest_query,omitempty"` // interest that surfaced the article
	DiscoveredAt  time.Time `json:"discovered_at"`
}

// TopicText is the text used for muted/snoozed topic matching.
func (a Article) TopicText() string {
	return a.Title + " " + a.Snippet
}

// ScoredArticle is an article that passed the relevance filter.
type ScoredArticle struct {
	Article
	Relevance float64 `json:"relevance"` // 0..1
}
