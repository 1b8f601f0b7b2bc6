package model

import (
	"strings"
	"time"
)

// Snooze suppresses a topic until Until (inclusive). A zero Until never expires.
type Snooze struct {
	Topic string    `json:"topic"`
	Until time.Time `json:"until,omitempty"`
}

// Active reports whether the snooze still applies on the given day.
func (s Snooze) Active(today time.Time) bool {
	if s.Until.IsZero() {
		return true
	}
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	uy, um, ud := s.Until.Date()
	until := time.Date(uy, um, ud, 0, 0, 0, 0, time.UTC)
	return !day.After(until)
}

// PersonaPreferences is the reader profile consumed by the Sentinel.
type PersonaPreferences struct {
	Interests   []string `json:"interests"`
	MutedTopics []string `json:"muted_topics"`
	Snoozes     []Snooze `json:"snoozes"`
	Notes       []string `json:"notes,omitempty"`
}

// IsMuted reports whether text mentions any muted topic (case-insensitive substring).
func (p PersonaPreferences) IsMuted(text string) bool {
	lower := strings.ToLower(text)
	for _, topic := range p.MutedTopics {
		t := strings.ToLower(strings.TrimSpace(topic))
		if t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// IsSnoozed reports whether text mentions a topic with an active snooze.
func (p PersonaPreferences) IsSnoozed(text string, today time.Time) bool {
	lower := strings.ToLower(text)
	for _, s := range p.Snoozes {
		t := strings.ToLower(strings.TrimSpace(s.Topic))
		if t == "" || !s.Active(today) {
			continue
		}
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
