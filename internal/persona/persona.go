package persona

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/curator/internal/model"
)

var (
	headerRe = regexp.MustCompile(`^##\s+(.+)$`)
	snoozeRe = regexp.MustCompile(`^(.+?)\s*\(until\s+(\d{4}-\d{2}-\d{2})\)`)
)

// Load reads the persona markdown at path. A missing file yields an empty persona.
func Load(path string) (model.PersonaPreferences, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.PersonaPreferences{}, nil
	}
	if err != nil {
		return model.PersonaPreferences{}, fmt.Errorf("open persona: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads "## Section" headings with "- item" bullets. Recognized sections
// are Interests, Muted Topics (or Muted), Active Snoozes (or Snoozes) and Notes.
func Parse(r io.Reader) (model.PersonaPreferences, error) {
	sections := make(map[string][]string)
	current := ""

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := headerRe.FindStringSubmatch(line); m != nil {
			current = strings.ToLower(strings.TrimSpace(m[1]))
			continue
		}
		if current == "" || !strings.HasPrefix(line, "- ") {
			continue
		}
		if item := strings.TrimSpace(line[2:]); item != "" {
			sections[current] = append(sections[current], item)
		}
	}
	if err := scanner.Err(); err != nil {
		return model.PersonaPreferences{}, fmt.Errorf("read persona: %w", err)
	}

	p := model.PersonaPreferences{
		Interests:   sections["interests"],
		MutedTopics: firstNonEmpty(sections["muted topics"], sections["muted"]),
		Notes:       sections["notes"],
	}
	for _, item := range firstNonEmpty(sections["active snoozes"], sections["snoozes"]) {
		p.Snoozes = append(p.Snoozes, parseSnooze(item))
	}
	return p, nil
}

// parseSnooze reads "topic (until YYYY-MM-DD)". An entry without a valid
// date never expires.
func parseSnooze(item string) model.Snooze {
	m := snoozeRe.FindStringSubmatch(item)
	if m == nil {
		return model.Snooze{Topic: item}
	}
	until, err := time.Parse("2006-01-02", m[2])
	if err != nil {
		return model.Snooze{Topic: strings.TrimSpace(m[1])}
	}
	return model.Snooze{Topic: strings.TrimSpace(m[1]), Until: until}
}

// Format renders p in the markdown layout Parse reads.
func Format(p model.PersonaPreferences) string {
	var b strings.Builder
	b.WriteString("# Memory\n\n")

	writeSection := func(title string, items []string) {
		b.WriteString("## " + title + "\n")
		for _, item := range items {
			b.WriteString("- " + item + "\n")
		}
		b.WriteString("\n")
	}

	writeSection("Interests", p.Interests)
	writeSection("Muted Topics", p.MutedTopics)

	snoozes := make([]string, 0, len(p.Snoozes))
	for _, s := range p.Snoozes {
		if s.Until.IsZero() {
			snoozes = append(snoozes, s.Topic)
			continue
		}
		snoozes = append(snoozes, fmt.Sprintf("%s (until %s)", s.Topic, s.Until.Format("2006-01-02")))
	}
	writeSection("Active Snoozes", snoozes)
	writeSection("Notes", p.Notes)

	return b.String()
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}
