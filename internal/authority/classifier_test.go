package authority

import (
	"testing"

	"github.com/ppiankov/curator/internal/model"
)

func TestClassifier_Classify(t *testing.T) {
	classifier := NewClassifier(&model.AuthorityConfig{
		PrimaryDomains:   []string{"reuters.com", "apnews.com"},
		SecondaryDomains: []string{"bbc.co.uk", "lemonde.fr"},
		DomainMap:        map[string]string{"blog.reuters.com": "tertiary", "elpais.com": "2"},
	})

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{"https://www.reuters.com/world/europe/story", model.TierPrimary, "Primary with www prefix"},
		{"https://APNEWS.com/article/x", model.TierPrimary, "Primary case-insensitive"},
		{"https://blog.reuters.com/post", model.TierTertiary, "Domain map overrides primary"},
		{"https://news.bbc.co.uk/2/hi", model.TierSecondary, "Secondary subdomain"},
		{"https://www.lemonde.fr/international/article", model.TierSecondary, "Secondary exact"},
		{"https://elpais.com/internacional", model.TierSecondary, "Domain map numeric tier"},
		{"https://www.whitehouse.gov/briefing", model.TierPrimary, ".gov host"},
		{"https://www.gov.uk/government/news", model.TierTertiary, "gov.uk apex is not a .gov. subdomain"},
		{"https://www.legislation.gov.uk/ukpga", model.TierPrimary, ".gov. subdomain"},
		{"https://www.who.int/news", model.TierPrimary, ".int host"},
		{"https://someblog.example/post", model.TierTertiary, "Unknown host"},
		{"not a url", model.TierTertiary, "Unparseable"},
		{"https://notreuters.com/x", model.TierTertiary, "Suffix without dot boundary"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := classifier.Classify(tt.url); got != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, got)
			}
		})
	}
}

func TestNewClassifier_Defaults(t *testing.T) {
	classifier := NewClassifier(nil)
	if got := classifier.Classify("https://www.reuters.com/x"); got != model.TierPrimary {
		t.Errorf("expected reuters primary by default, got %v", got)
	}
}

func TestRank(t *testing.T) {
	if !(Rank(model.TierPrimary) < Rank(model.TierSecondary) &&
		Rank(model.TierSecondary) < Rank(model.TierTertiary) &&
		Rank(model.TierTertiary) < Rank(model.TierUnknown)) {
		t.Error("expected primary < secondary < tertiary < unknown")
	}
}
