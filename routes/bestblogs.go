package routes

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/feed"
)

type bestblogsNewsletter struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Summary          string `json:"summary"`
	CreatedTimestamp any    `json:"createdTimestamp"`
}

type bestblogsResponse struct {
	Data struct {
		DataList []bestblogsNewsletter `json:"dataList"`
	} `json:"data"`
}

// bestblogsNewsletter lists the newsletter issues from the JSON API.
func (rt *Router) bestblogsNewsletter(ctx context.Context, q url.Values) (*feed.Feed, error) {
	pageSize, err := intParam(q, "limit", 10)
	if err != nil {
		return nil, err
	}

	api := resolve(rt.sites.BestblogsAPI, "/api/newsletter/list")
	key := fmt.Sprintf("%s?pageSize=%d&userLanguage=zh", api, pageSize)

	list, err := cache.TryGetAs(ctx, rt.cache, key, func(ctx context.Context) ([]bestblogsNewsletter, error) {
		var resp bestblogsResponse
		body := map[string]any{
			"currentPage":  1,
			"pageSize":     pageSize,
			"userLanguage": "zh",
		}
		if err := rt.client.PostJSON(ctx, api, body, &resp); err != nil {
			return nil, err
		}
		return resp.Data.DataList, nil
	}, 0, false)
	if err != nil {
		return nil, err
	}

	items := make([]feed.Item, 0, len(list))
	for _, n := range list {
		items = append(items, feed.Item{
			Title:       n.Title,
			Link:        resolve(rt.sites.Bestblogs, "/newsletter/"+n.ID),
			Description: n.Summary,
			PubDate:     timestamp(n.CreatedTimestamp),
		})
	}

	return &feed.Feed{
		Title:      "Bestblogs.dev - 精选推送",
		Link:       resolve(rt.sites.Bestblogs, "/newsletter"),
		Items:      items,
		AllowEmpty: true,
	}, nil
}

// timestamp accepts the numeric or string timestamps JSON APIs hand out.
func timestamp(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return feed.ParseUnix(int64(t))
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return feed.ParseUnix(n)
		}
		return feed.ParseDate(t)
	default:
		return time.Time{}
	}
}
