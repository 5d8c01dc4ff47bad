package routes

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/feed"
	"github.com/krisalay/routecache/fetch"
)

// cursorChangelog scrapes the changelog page: one item per article in the first <main>.
func (rt *Router) cursorChangelog(ctx context.Context, q url.Values) (*feed.Feed, error) {
	limit, err := intParam(q, "limit", 100)
	if err != nil {
		return nil, err
	}

	target := resolve(rt.sites.Cursor, "/changelog")
	page, err := cache.TryGetAs(ctx, rt.cache, target, func(ctx context.Context) ([]byte, error) {
		return rt.client.Get(ctx, target, fetch.WithCookie("NEXT_LOCALE", "en"))
	}, 0, false)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("cursor changelog: parse: %w", err)
	}

	language := doc.Find("html").AttrOr("lang", "en")
	articles := doc.Find("main").First().Find("article")
	articles = articles.Slice(0, min(limit, articles.Length()))

	items := make([]feed.Item, 0, articles.Length())
	articles.Each(func(_ int, el *goquery.Selection) {
		timeEl := el.Find("time").First()
		pubDate := timeEl.AttrOr("datetime", strings.TrimSpace(timeEl.Text()))
		version := strings.TrimSpace(timeEl.Closest("a").Find(".label").Text())

		linkEl := el.Find("h1 a").First()
		title := strings.TrimSpace(linkEl.Text())
		if linkEl.Length() == 0 {
			title = strings.TrimSpace(el.Find("h1").First().Text())
		}
		if version != "" {
			title = fmt.Sprintf("[%s] %s", version, title)
		}

		href, hasLink := linkEl.Attr("href")
		guid := "unknown"
		if hasLink {
			guid = path.Base(href)
		}
		if version != "" {
			guid = "cursor-changelog-" + version
		}

		description, _ := el.Find(".prose").Html()

		it := feed.Item{
			Title:       title,
			GUID:        guid,
			Description: description,
			PubDate:     feed.ParseDate(pubDate),
		}
		if hasLink {
			it.Link = resolve(rt.sites.Cursor, href)
		}
		items = append(items, it)
	})

	description := doc.Find(`meta[name="description"]`).AttrOr("content", "")
	if description == "" {
		description = doc.Find(`meta[property="og:description"]`).AttrOr("content", "")
	}

	return &feed.Feed{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Link:        target,
		Description: description,
		Language:    language,
		Image:       doc.Find(`meta[property="og:image"]`).AttrOr("content", ""),
		Items:       items,
		AllowEmpty:  true,
	}, nil
}
