package routes

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/feed"
)

type zhihuStory struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishTime int64  `json:"publish_time"`
}

// zhihuDaily reads the story list from the home page and each story from the JSON API.
// Stories are fetched concurrently; a story that cannot be fetched is logged and skipped.
func (rt *Router) zhihuDaily(ctx context.Context, _ url.Values) (*feed.Feed, error) {
	home := resolve(rt.sites.Zhihu, "/")
	page, err := rt.client.Get(ctx, home)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("zhihu daily: parse: %w", err)
	}

	var storyURLs []string
	doc.Find(".box").Each(func(_ int, box *goquery.Selection) {
		if href, ok := box.Find(".link-button").Attr("href"); ok {
			storyURLs = append(storyURLs, resolve(rt.sites.Zhihu, "/api/4"+href))
		}
	})

	stories := make([]*zhihuStory, len(storyURLs))
	var g errgroup.Group
	g.SetLimit(rt.concurrency)
	for i, storyURL := range storyURLs {
		g.Go(func() error {
			s, err := cache.TryGetAs(ctx, rt.cache, storyURL, func(ctx context.Context) (*zhihuStory, error) {
				var s zhihuStory
				if err := rt.client.GetJSON(ctx, storyURL, &s); err != nil {
					return nil, err
				}
				return &s, nil
			}, 0, true)
			if err != nil {
				rt.log.Debug("zhihu story skipped", "url", storyURL, "err", err)
				return nil
			}
			stories[i] = s
			return nil
		})
	}
	_ = g.Wait()

	items := make([]feed.Item, 0, len(stories))
	for _, s := range stories {
		if s == nil {
			continue
		}
		it := feed.Item{
			Title:       s.Title,
			Description: s.Body,
			Link:        s.URL,
			Image:       s.Image,
		}
		if s.PublishTime > 0 {
			it.PubDate = feed.ParseUnix(s.PublishTime)
		}
		items = append(items, it)
	}

	return &feed.Feed{
		Title:       "知乎日报",
		Link:        rt.sites.Zhihu,
		Description: "每天3次，每次7分钟",
		Image:       "http://static.daily.zhihu.com/img/new_home_v3/mobile_top_logo.png",
		Items:       items,
	}, nil
}
