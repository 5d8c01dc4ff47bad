package routes

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/feed"
)

// upstreamFeed republishes an existing RSS, Atom or JSON feed given by ?url=.
// Only hosts configured with WithFeedHosts are fetched, redirects included.
func (rt *Router) upstreamFeed(ctx context.Context, q url.Values) (*feed.Feed, error) {
	raw := q.Get("url")
	u, err := url.Parse(raw)
	if raw == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url must be an absolute http(s) URL", ErrBadRequest)
	}
	if !rt.feedHostAllowed(u.Host) {
		return nil, fmt.Errorf("%w: host %s is not allowed", ErrBadRequest, u.Host)
	}
	target := u.String()

	body, err := cache.TryGetAs(ctx, rt.cache, target, func(ctx context.Context) ([]byte, error) {
		return rt.feedClient.Get(ctx, target)
	}, 0, true)
	if err != nil {
		return nil, err
	}

	parsed, err := rt.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", target, err)
	}

	out := &feed.Feed{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
		Items:       make([]feed.Item, 0, len(parsed.Items)),
		AllowEmpty:  true,
	}
	if out.Link == "" {
		out.Link = target
	}
	if parsed.Image != nil {
		out.Image = parsed.Image.URL
	}

	for _, entry := range parsed.Items {
		out.Items = append(out.Items, fromGofeed(entry))
	}
	return out, nil
}

func fromGofeed(entry *gofeed.Item) feed.Item {
	it := feed.Item{
		Title:       entry.Title,
		Link:        entry.Link,
		GUID:        entry.GUID,
		Description: entry.Description,
		Categories:  entry.Categories,
	}
	if it.Description == "" {
		it.Description = entry.Content
	}
	if entry.Author != nil {
		it.Author = entry.Author.Name
	}

	if entry.PublishedParsed != nil {
		it.PubDate = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		it.PubDate = *entry.UpdatedParsed
	}
	return it
}
