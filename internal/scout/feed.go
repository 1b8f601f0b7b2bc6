package scout

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// FeedItem is one entry of an RSS 2.0 or Atom feed.
type FeedItem struct {
	Title       string
	Link        string
	Description string
	Published   time.Time // zero when the feed gives no parseable date
}

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"http://purl.org/dc/elements/1.1/ date"`
}

type atomDocument struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	Links   []atomLink `xml:"link"`
	Summary string     `xml:"summary"`
	Content string     `xml:"content"`
	Publ    string     `xml:"published"`
	Updated string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// ParseFeed decodes an RSS 2.0 or Atom document.
func ParseFeed(data []byte) ([]FeedItem, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}

	switch root {
	case "rss", "RDF":
		var doc rssDocument
		if err := decode(data, &doc); err != nil {
			return nil, fmt.Errorf("decode rss: %w", err)
		}
		items := make([]FeedItem, 0, len(doc.Channel.Items))
		for _, it := range doc.Channel.Items {
			items = append(items, FeedItem{
				Title:       strings.TrimSpace(it.Title),
				Link:        strings.TrimSpace(it.Link),
				Description: it.Description,
				Published:   parseDate(it.PubDate, it.Date),
			})
		}
		return items, nil
	case "feed":
		var doc atomDocument
		if err := decode(data, &doc); err != nil {
			return nil, fmt.Errorf("decode atom: %w", err)
		}
		items := make([]FeedItem, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			desc := e.Summary
			if desc == "" {
				desc = e.Content
			}
			items = append(items, FeedItem{
				Title:       strings.TrimSpace(e.Title),
				Link:        atomHref(e.Links),
				Description: desc,
				Published:   parseDate(e.Publ, e.Updated),
			})
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported feed root element %q", root)
	}
}

func decode(data []byte, v interface{}) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return dec.Decode(v)
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("read feed: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func atomHref(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

// parseDate returns the first candidate dateparse understands, in UTC.
func parseDate(candidates ...string) time.Time {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if t, err := dateparse.ParseAny(c); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
