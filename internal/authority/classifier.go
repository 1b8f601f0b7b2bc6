package authority

import (
	"net/url"
	"strings"

	"github.com/ppiankov/curator/internal/model"
)

// Classifier assigns news sources to authority tiers by host
type Classifier struct {
	domainMap map[string]model.AuthorityTier
	primary   []string
	secondary []string
}

// NewClassifier creates a classifier from config; nil uses the defaults.
func NewClassifier(config *model.AuthorityConfig) *Classifier {
	if config == nil {
		def := model.DefaultConfig().Authority
		config = &def
	}

	c := &Classifier{
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
	}
	for host, tier := range config.DomainMap {
		c.domainMap[normalizeHost(host)] = ParseTier(tier)
	}
	for _, d := range config.PrimaryDomains {
		c.primary = append(c.primary, normalizeHost(d))
	}
	for _, d := range config.SecondaryDomains {
		c.secondary = append(c.secondary, normalizeHost(d))
	}
	return c
}

// Classify returns the tier of the source at rawURL. Unparseable URLs are tertiary.
func (c *Classifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return model.TierTertiary
	}
	host := normalizeHost(parsed.Hostname())

	// Explicit mappings win, including for subdomains of the mapped host
	for h := host; h != ""; h = parentDomain(h) {
		if tier, ok := c.domainMap[h]; ok {
			return tier
		}
	}

	if matchesAny(host, c.primary) {
		return model.TierPrimary
	}
	if matchesAny(host, c.secondary) {
		return model.TierSecondary
	}

	if strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov.") ||
		strings.HasSuffix(host, ".int") || strings.HasSuffix(host, ".europa.eu") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// Rank orders tiers for representative selection; lower is more authoritative.
func Rank(tier model.AuthorityTier) int {
	switch tier {
	case model.TierPrimary:
		return 1
	case model.TierSecondary:
		return 2
	case model.TierTertiary:
		return 3
	default:
		return 4
	}
}

// ParseTier converts a tier name or number to AuthorityTier
func ParseTier(tier string) model.AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}

func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func parentDomain(host string) string {
	idx := strings.Index(host, ".")
	if idx < 0 {
		return ""
	}
	return host[idx+1:]
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}
