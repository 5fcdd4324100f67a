// Package linkheader parses HTTP Link header values (RFC 5988 style).
//
// Commas inside quoted parameters are not honoured. Input that is not link
// shaped still yields a descriptor whose URL is the trimmed input.
package linkheader

import (
	"net/http"
	"slices"
	"strings"
)

// Link is one parsed link-value.
type Link struct {
	URL    string
	Rel    []string          // lower-cased relation tokens, in order
	Rev    []string          // lower-cased reverse relation tokens, in order
	Params map[string]string // every other parameter, raw; last occurrence wins
}

// HasRel reports whether rel is one of the link's relation tokens.
func (l Link) HasRel(rel string) bool {
	return slices.Contains(l.Rel, rel)
}

// Parse splits a Link header value into descriptors, preserving input order.
// An empty value yields a single descriptor with an empty URL.
func Parse(value string) []Link {
	var links []Link
	for _, val := range strings.Split(value, ",") {
		rawURL, params, _ := strings.Cut(val, ";")
		link := Link{URL: strings.Trim(rawURL, "<> ")}
		for _, param := range strings.Split(params, ";") {
			key, val, _ := strings.Cut(param, "=")
			key = clean(key)
			if key == "" {
				continue
			}
			switch key {
			case "rel":
				link.Rel = relTokens(val)
			case "rev":
				link.Rev = relTokens(val)
			default:
				if link.Params == nil {
					link.Params = make(map[string]string)
				}
				link.Params[key] = clean(val)
			}
		}
		links = append(links, link)
	}
	return links
}

// SelfLink returns the URL of the first link whose rel contains "self".
func SelfLink(links []Link) (string, bool) {
	for _, l := range links {
		if l.HasRel("self") {
			return l.URL, true
		}
	}
	return "", false
}

// SelfLinkFromHeader parses every Link header in h and returns the first
// self link.
func SelfLinkFromHeader(h http.Header) (string, bool) {
	values := h.Values("Link")
	if len(values) == 0 {
		return "", false
	}
	return SelfLink(Parse(strings.Join(values, ",")))
}

func clean(s string) string {
	return strings.Trim(s, " \t\"")
}

func relTokens(v string) []string {
	return strings.Fields(strings.ToLower(clean(v)))
}
