// Package feed holds the normalized feed every route produces, and its RSS rendering.
package feed

import (
	"strconv"
	"strings"
	"time"
)

type Item struct {
	Title       string
	Link        string
	GUID        string
	Description string
	Author      string
	Categories  []string
	PubDate     time.Time
	// Image is rendered as an enclosure.
	Image string
}

type Feed struct {
	Title       string
	Link        string
	Description string
	Language    string
	Image       string
	Items       []Item

	// AllowEmpty marks feeds where zero items is a normal outcome rather than a scraping failure.
	AllowEmpty bool
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate accepts the formats routes meet in practice: RFC 3339 and RFC 1123 variants,
// plain dates, and unix timestamps in seconds or milliseconds. The zero time means unknown.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ParseUnix(n)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseUnix treats values past year 33658 in seconds as milliseconds.
func ParseUnix(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
