package rss

import (
	"crypto/sha1"
	"encoding/hex"
)

// Normalized is the canonical view of an entry used for storage.
type Normalized struct {
	EntryID string
	Title   string
	Content string
	Link    string
}

// Normalize extracts the canonical fields of an entry. Description entries
// without an id fall back to link, then title, then content; if all are
// empty the id is empty and deduplication degrades to the link alone.
func Normalize(e Entry) Normalized {
	switch e := e.(type) {
	case ContentEntry:
		n := Normalized{EntryID: e.ID, Title: e.Title, Link: e.Link}
		if len(e.Content) > 0 {
			n.Content = e.Content[0]
		}
		return n
	case DescriptionEntry:
		n := Normalized{Title: e.Title, Content: e.Description, Link: e.Link}
		n.EntryID = firstNonEmpty(e.ID, e.Link, e.Title, e.Description)
		return n
	}
	return Normalized{}
}

// UpdateKey is the storage key of an entry: "key_" followed by the hex
// SHA-1 of link + "\n" + entry id.
func UpdateKey(link, entryID string) string {
	sum := sha1.Sum([]byte(link + "\n" + entryID))
	return "key_" + hex.EncodeToString(sum[:])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
