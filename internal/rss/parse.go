// Package rss parses pushed feed documents and normalizes their entries.
package rss

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	jsonfeed "github.com/mmcdole/gofeed/json"
	rssfeed "github.com/mmcdole/gofeed/rss"
	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

// Document formats.
const (
	FormatAtom = "atom"
	FormatRSS  = "rss"
	FormatJSON = "json"
)

// Document is a parsed feed reduced to what ingestion needs.
type Document struct {
	Format  string
	Title   string
	Entries []Entry
}

// Entry is one feed entry. It is either a ContentEntry or a
// DescriptionEntry.
type Entry interface {
	isEntry()
}

// ContentEntry carries a content sequence: Atom <content>, RSS
// content:encoded, or JSON Feed content_html/content_text.
type ContentEntry struct {
	ID      string
	Title   string
	Link    string
	Content []string
}

// DescriptionEntry carries only a description or summary.
type DescriptionEntry struct {
	ID          string
	Title       string
	Link        string
	Description string
}

func (ContentEntry) isEntry()     {}
func (DescriptionEntry) isEntry() {}

// MalformedError reports a document that is not a well-formed feed.
type MalformedError struct {
	Err     error
	Line    int    // 1-based, 0 when unknown
	Segment string // offending input line when Line is known
}

func (e *MalformedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed feed at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed feed: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Parse parses an Atom, RSS/RDF or JSON feed. XML documents must be
// well-formed; any syntax error rejects the whole document. The returned
// error is always a *MalformedError.
func Parse(body []byte) (*Document, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(body)) {
	case gofeed.FeedTypeAtom:
		if err := checkWellFormed(body); err != nil {
			return nil, err
		}
		feed, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
		if err != nil {
			return nil, &MalformedError{Err: err}
		}
		return fromAtom(feed), nil
	case gofeed.FeedTypeRSS:
		if err := checkWellFormed(body); err != nil {
			return nil, err
		}
		feed, err := (&rssfeed.Parser{}).Parse(bytes.NewReader(body))
		if err != nil {
			return nil, &MalformedError{Err: err}
		}
		return fromRSS(feed), nil
	case gofeed.FeedTypeJSON:
		feed, err := (&jsonfeed.Parser{}).Parse(bytes.NewReader(body))
		if err != nil {
			return nil, &MalformedError{Err: err}
		}
		return fromJSON(feed), nil
	}
	if err := checkWellFormed(body); err != nil {
		return nil, err
	}
	return nil, &MalformedError{Err: gofeed.ErrFeedTypeNotDetected}
}

// checkWellFormed runs a strict XML pass over body so that documents the
// lenient feed parsers would silently repair are rejected.
func checkWellFormed(body []byte) error {
	p := xpp.NewXMLPullParser(bytes.NewReader(body), true, charset.NewReaderLabel)
	for {
		event, err := p.NextToken()
		if err != nil {
			merr := &MalformedError{Err: err}
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				merr.Line = syn.Line
				lines := bytes.Split(body, []byte("\n"))
				if syn.Line > 0 && syn.Line <= len(lines) {
					merr.Segment = string(lines[syn.Line-1])
				}
			}
			return merr
		}
		if event == xpp.EndDocument {
			return nil
		}
	}
}

func fromAtom(feed *atom.Feed) *Document {
	doc := &Document{Format: FormatAtom, Title: feed.Title}
	for _, e := range feed.Entries {
		link := alternateLink(e.Links)
		if e.Content != nil {
			doc.Entries = append(doc.Entries, ContentEntry{
				ID:      e.ID,
				Title:   e.Title,
				Link:    link,
				Content: []string{e.Content.Value},
			})
			continue
		}
		doc.Entries = append(doc.Entries, DescriptionEntry{
			ID:          e.ID,
			Title:       e.Title,
			Link:        link,
			Description: e.Summary,
		})
	}
	return doc
}

// alternateLink returns the href of the first link with rel "alternate",
// an absent rel counting as "alternate".
func alternateLink(links []*atom.Link) string {
	for _, l := range links {
		if l == nil {
			continue
		}
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	return ""
}

func fromRSS(feed *rssfeed.Feed) *Document {
	doc := &Document{Format: FormatRSS, Title: feed.Title}
	for _, it := range feed.Items {
		var id string
		if it.GUID != nil {
			id = it.GUID.Value
		}
		if it.Content != "" {
			doc.Entries = append(doc.Entries, ContentEntry{
				ID:      id,
				Title:   it.Title,
				Link:    it.Link,
				Content: []string{it.Content},
			})
			continue
		}
		doc.Entries = append(doc.Entries, DescriptionEntry{
			ID:          id,
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
		})
	}
	return doc
}

func fromJSON(feed *jsonfeed.Feed) *Document {
	doc := &Document{Format: FormatJSON, Title: feed.Title}
	for _, it := range feed.Items {
		var content []string
		if it.ContentHTML != "" {
			content = append(content, it.ContentHTML)
		}
		if it.ContentText != "" {
			content = append(content, it.ContentText)
		}
		if len(content) > 0 {
			doc.Entries = append(doc.Entries, ContentEntry{
				ID:      it.ID,
				Title:   it.Title,
				Link:    it.URL,
				Content: content,
			})
			continue
		}
		doc.Entries = append(doc.Entries, DescriptionEntry{
			ID:          it.ID,
			Title:       it.Title,
			Link:        it.URL,
			Description: it.Summary,
		})
	}
	return doc
}
