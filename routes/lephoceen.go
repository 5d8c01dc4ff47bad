package routes

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/feed"
)

type lephoceenArticle struct {
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Text     string `json:"text"`
	Category *struct {
		Name string `json:"name"`
	} `json:"category"`
	Date struct {
		PublishAt struct {
			Timestamp int64 `json:"timestamp"`
		} `json:"publish_at"`
	} `json:"date"`
	Images map[string]struct {
		URL string `json:"url"`
	} `json:"images"`
}

type nextData struct {
	Props struct {
		PageProps struct {
			Data struct {
				Datas []lephoceenArticle `json:"datas"`
			} `json:"data"`
		} `json:"pageProps"`
	} `json:"props"`
}

// lephoceenChrono reads the news ticker from the page's embedded Next.js data.
func (rt *Router) lephoceenChrono(ctx context.Context, _ url.Values) (*feed.Feed, error) {
	page := resolve(rt.sites.Lephoceen, "/chrono")
	articles, err := cache.TryGetAs(ctx, rt.cache, page, func(ctx context.Context) ([]lephoceenArticle, error) {
		body, err := rt.client.Get(ctx, page)
		if err != nil {
			return nil, err
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("lephoceen: parse: %w", err)
		}
		raw := doc.Find(`script#__NEXT_DATA__`).First().Text()
		if raw == "" {
			return nil, fmt.Errorf("lephoceen: %s has no __NEXT_DATA__", page)
		}

		var data nextData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("lephoceen: decode __NEXT_DATA__: %w", err)
		}
		return data.Props.PageProps.Data.Datas, nil
	}, 0, true)
	if err != nil {
		return nil, err
	}

	items := make([]feed.Item, 0, len(articles))
	for _, a := range articles {
		it := feed.Item{
			Title:       a.Title,
			Link:        a.Slug,
			Description: a.Text,
			PubDate:     feed.ParseUnix(a.Date.PublishAt.Timestamp),
			Image:       a.Images["16x9"].URL,
		}
		if !strings.HasPrefix(a.Slug, "http") {
			it.Link = resolve(rt.sites.Lephoceen, a.Slug)
		}
		category := ""
		if a.Category != nil {
			category = a.Category.Name
			it.Categories = []string{category}
		}
		if it.Description == "" {
			it.Description = fmt.Sprintf("[%s] %s", category, a.Title)
		}
		items = append(items, it)
	}

	return &feed.Feed{
		Title: "Le Phocéen - Fil Info",
		Link:  page,
		Items: items,
	}, nil
}
