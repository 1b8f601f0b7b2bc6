package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/curator/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headlineStyle = lipgloss.NewStyle().Bold(true)
	breakingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	bodyStyle     = lipgloss.NewStyle().PaddingLeft(3).Width(88)
)

func renderDigest(d *model.Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("Curator digest %s", d.Date)))
	fmt.Fprintf(&b, "%s\n\n", mutedStyle.Render(fmt.Sprintf("run %s · %d stories", d.RunID, len(d.Stories))))

	if len(d.Stories) == 0 {
		b.WriteString(mutedStyle.Render("No story cleared the editorial thresholds today."))
		b.WriteString("\n")
		return b.String()
	}

	for i, s := range d.Stories {
		headline := headlineStyle.Render(fmt.Sprintf("%d. %s", i+1, s.Headline))
		if s.IsBreaking {
			headline += " " + breakingStyle.Render("BREAKING")
		}
		b.WriteString(headline + "\n")
		b.WriteString("   " + scoreStyle.Render(fmt.Sprintf("importance %d · snr %d · breaking %d", s.ImportanceScore, s.SNRScore, s.BreakingScore)) + "\n")
		if s.CoreFact != "" {
			b.WriteString(bodyStyle.Render(s.CoreFact) + "\n")
		}
		if s.Summary != "" {
			b.WriteString(bodyStyle.Render(s.Summary) + "\n")
		}
		if mix := formatLanguageMix(s.LanguageMix); mix != "" {
			b.WriteString("   " + mutedStyle.Render("languages "+mix) + "\n")
		}
		for _, src := range s.Sources {
			b.WriteString("   " + mutedStyle.Render("↳ "+src) + "\n")
		}
		b.WriteString("\n")
	}

	m := d.Metadata
	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"discovered %d → relevant %d → clusters %d (deduped %d) → enriched %d → published %d · oracle calls %d (%d tokens)",
		m.TotalDiscovered, m.AfterSentinel, m.ClustersFormed, m.Deduped, m.AfterAnalyst, m.StoriesPublished, m.OracleCalls, m.OracleTokens,
	)))
	b.WriteString("\n")
	return b.String()
}

func renderSummary(d *model.Digest, dryRun bool) string {
	verb := "Published"
	if dryRun {
		verb = "Dry run produced"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s %d stories for %s\n", verb, len(d.Stories), d.Date)
	for _, s := range d.Stories {
		marker := " "
		if s.IsBreaking {
			marker = "!"
		}
		fmt.Fprintf(&b, "  %s [%2d/%2d] %s\n", marker, s.ImportanceScore, s.SNRScore, s.Headline)
	}
	if d.Metadata.IdentityCollisions > 0 {
		fmt.Fprintf(&b, "  warning: %d cluster identity collisions\n", d.Metadata.IdentityCollisions)
	}
	return b.String()
}

func renderArchive(a model.ArchiveIndex) string {
	if len(a.Digests) == 0 {
		return mutedStyle.Render("No digests published yet.") + "\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Archive") + "\n")
	for _, e := range a.Digests {
		fmt.Fprintf(&b, "  %s  %s  %s\n", e.Date, scoreStyle.Render(fmt.Sprintf("%2d stories", e.StoryCount)), mutedStyle.Render(e.File))
	}
	return b.String()
}

func renderHistory(window []model.HistoryRecord, total int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("History: %d in dedup window, %d retained", len(window), total)) + "\n")
	for _, r := range window {
		label := r.Label
		if label == "" {
			label = mutedStyle.Render("(no label)")
		}
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
			r.PublishedAt.Format("2006-01-02"),
			scoreStyle.Render(r.ClusterID),
			label,
			mutedStyle.Render(fmt.Sprintf("%d urls", len(r.MemberURLs))),
		)
	}
	return b.String()
}

func formatLanguageMix(mix map[string]int) string {
	if len(mix) == 0 {
		return ""
	}
	langs := make([]string, 0, len(mix))
	for l := range mix {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	parts := make([]string, 0, len(langs))
	for _, l := range langs {
		parts = append(parts, fmt.Sprintf("%s:%d", l, mix[l]))
	}
	return strings.Join(parts, " ")
}
