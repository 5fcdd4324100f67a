// Package model defines shared data structures.
package model

import (
	"strconv"
	"strings"
	"time"
)

// TopicUpdate represents a single entry received from a pushed feed.
type TopicUpdate struct {
	Key      string // "key_" + hex(sha1(link + "\n" + entry id))
	Topic    string // self link of the source feed, empty if none was advertised
	Title    string
	Content  string
	Link     string
	Callback string // ingest path suffix the entry arrived on
	Updated  time.Time
}

// UpdateQuery selects the most recent updates.
type UpdateQuery struct {
	Limit    int
	Callback string // exact match; empty means all callbacks
}

// TopicSummary aggregates the stored updates of one topic on one callback.
type TopicSummary struct {
	Topic       string
	Callback    string
	Entries     int64
	LastUpdated time.Time
}

// RangePolicy bounds an integer request parameter.
type RangePolicy struct {
	Min     int
	Max     int
	Default int
}

// DefaultItemsPolicy is the num_entries policy for the items endpoint.
var DefaultItemsPolicy = RangePolicy{Min: 1, Max: 100, Default: 25}

// Clamp parses raw and clamps it into [Min, Max]. Missing or non-integer
// values yield Default.
func (p RangePolicy) Clamp(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return p.Default
	}
	if n < p.Min {
		n = p.Min
	}
	if n > p.Max {
		n = p.Max
	}
	return n
}

// Retention defaults.
const (
	DefaultRetentionKeep = 50000
)
