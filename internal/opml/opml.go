// Package opml exports the known topics as an OPML subscription list.
package opml

import (
	"encoding/xml"
	"time"

	"github.com/bryan-buckman/pushfeed/internal/model"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (callback folder or topic).
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Export generates an OPML 2.0 document listing every topic. Topics pushed
// to a named callback are grouped in one folder per callback, in the order
// callbacks first appear; the rest sit at the root.
func Export(title string, created time.Time, topics []model.TopicSummary) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: created.Format(time.RFC1123Z),
		},
	}

	folders := make(map[string]int)
	var root []Outline
	for _, t := range topics {
		topic := Outline{
			Text:   t.Topic,
			Title:  t.Topic,
			Type:   "rss",
			XMLURL: t.Topic,
		}
		if t.Callback == "" {
			root = append(root, topic)
			continue
		}
		i, ok := folders[t.Callback]
		if !ok {
			i = len(root)
			folders[t.Callback] = i
			root = append(root, Outline{Text: t.Callback, Title: t.Callback})
		}
		root[i].Outlines = append(root[i].Outlines, topic)
	}
	doc.Body.Outlines = root

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
