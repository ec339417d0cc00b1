package rss

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"time"
)

// document is the union of the RSS 2.0, RSS 1.0 and Atom root elements. Only the
// fields used for ingestion are decoded.
type document struct {
	XMLName xml.Name
	Channel struct {
		Items []item `xml:"item"`
	} `xml:"channel"`
	Items   []item  `xml:"item"`
	Entries []entry `xml:"entry"`
}

// item is an RSS 2.0 item, also the normalised form of an Atom entry.
type item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Encoded     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	PubDate     string `xml:"pubDate"`
	DCDate      string `xml:"http://purl.org/dc/elements/1.1/ date"`
	Author      string `xml:"author"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type entry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	ID        string     `xml:"id"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Author    struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

func (e entry) item() item {
	it := item{
		Title:       e.Title,
		GUID:        e.ID,
		Description: e.Summary,
		Encoded:     e.Content,
		PubDate:     e.Published,
		Author:      e.Author.Name,
	}
	if it.PubDate == "" {
		it.PubDate = e.Updated
	}
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			it.Link = l.Href
			break
		}
	}
	return it
}

// body prefers full content over the summary.
func (it item) body() string {
	if strings.TrimSpace(it.Encoded) != "" {
		return it.Encoded
	}
	return it.Description
}

// link falls back to a guid that looks like a URL.
func (it item) link() string {
	if l := strings.TrimSpace(it.Link); l != "" {
		return l
	}
	if g := strings.TrimSpace(it.GUID); strings.HasPrefix(g, "http://") || strings.HasPrefix(g, "https://") {
		return g
	}
	return ""
}

func (it item) date() string {
	if it.PubDate != "" {
		return it.PubDate
	}
	return it.DCDate
}

var errUnknownFormat = errors.New("not an RSS or Atom feed")

// parseFeed decodes an RSS or Atom document into items.
func parseFeed(r io.Reader) ([]item, error) {
	var doc document
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	switch doc.XMLName.Local {
	case "rss":
		return doc.Channel.Items, nil
	case "RDF":
		return doc.Items, nil
	case "feed":
		items := make([]item, len(doc.Entries))
		for i, e := range doc.Entries {
			items[i] = e.item()
		}
		return items, nil
	default:
		return nil, errUnknownFormat
	}
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate accepts the date forms seen in real feeds.
func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
