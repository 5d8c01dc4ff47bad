package routes

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/feed"
)

type chanPost struct {
	No          int64      `json:"no"`
	Time        int64      `json:"time"`
	Name        string     `json:"name"`
	Trip        string     `json:"trip"`
	Sub         string     `json:"sub"`
	Com         string     `json:"com"`
	Tim         int64      `json:"tim"`
	Ext         string     `json:"ext"`
	W           int        `json:"w"`
	H           int        `json:"h"`
	Spoiler     int        `json:"spoiler"`
	Replies     int        `json:"replies"`
	LastReplies []chanPost `json:"last_replies"`
}

type chanPage struct {
	Page    int        `json:"page"`
	Threads []chanPost `json:"threads"`
}

type chanView struct {
	lastReplies    bool
	replyCount     bool
	revealSpoilers bool
}

// fourChanCatalog lists every thread on a board's catalog.
// showReplyCount, showLastReplies and revealSpoilers toggle extra rendering.
func (rt *Router) fourChanCatalog(ctx context.Context, q url.Values) (*feed.Feed, error) {
	board := q.Get("board")
	view := chanView{
		lastReplies:    boolParam(q, "showLastReplies"),
		replyCount:     boolParam(q, "showReplyCount"),
		revealSpoilers: boolParam(q, "revealSpoilers"),
	}

	api := resolve(rt.sites.FourChanAPI, "/"+url.PathEscape(board)+"/catalog.json")
	pages, err := cache.TryGetAs(ctx, rt.cache, api, func(ctx context.Context) ([]chanPage, error) {
		var pages []chanPage
		if err := rt.client.GetJSON(ctx, api, &pages); err != nil {
			return nil, err
		}
		return pages, nil
	}, 0, true)
	if err != nil {
		return nil, err
	}

	var items []feed.Item
	for _, page := range pages {
		for _, thread := range page.Threads {
			author := thread.Name + " "
			if thread.Trip != "" {
				author += thread.Trip
			} else {
				author += fmt.Sprint(thread.No)
			}

			items = append(items, feed.Item{
				Title:       chanTitle(thread),
				Author:      author,
				Link:        resolve(rt.sites.FourChan, fmt.Sprintf("/%s/thread/%d", board, thread.No)),
				Description: rt.renderChanPost(board, thread, view),
				PubDate:     feed.ParseUnix(thread.Time),
			})
		}
	}

	return &feed.Feed{
		Title: fmt.Sprintf("4chan's /%s/", board),
		Link:  resolve(rt.sites.FourChan, "/"+url.PathEscape(board)+"/catalog"),
		Items: items,
	}, nil
}

// chanTitle is the subject, or else the plain text of the comment's first line.
func chanTitle(p chanPost) string {
	if p.Sub != "" {
		return html.UnescapeString(p.Sub)
	}
	first, _, _ := strings.Cut(p.Com, "<br>")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(first))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

func (rt *Router) renderChanPost(board string, p chanPost, view chanView) string {
	var b strings.Builder

	if len(p.LastReplies) > 0 && view.replyCount {
		fmt.Fprintf(&b, "<small>%d 💬</small><br>", p.Replies)
	}
	b.WriteString(p.Com)

	file := resolve(rt.sites.FourChanFile, fmt.Sprintf("/%s/%d%s", board, p.Tim, p.Ext))
	var media string
	switch p.Ext {
	case ".jpg", ".png", ".gif":
		media = fmt.Sprintf(`<img width="%d" height="%d" src="%s">`, p.W, p.H, file)
	case ".pdf":
		media = fmt.Sprintf(`<embed src="%s" width="100%%" height="500px">`, file)
	case ".swf":
		media = fmt.Sprintf(`<embed src="%s" type="application/x-shockwave-flash" width="%d" height="%d">`, file, p.W, p.H)
	case ".webm":
		media = fmt.Sprintf(`<video src="%s" loop controls class="full-image"></video>`, file)
	}
	if p.Spoiler != 0 {
		open := ""
		if view.revealSpoilers {
			open = " open"
		}
		media = fmt.Sprintf("<details%s><summary>Spoiler</summary>%s</details>", open, media)
	}
	b.WriteString("<br> " + media + " <br>")

	if view.lastReplies {
		for _, reply := range p.LastReplies {
			b.WriteString(`<div class="post reply">`)
			b.WriteString(rt.renderChanPost(board, reply, view))
			b.WriteString(`</div>`)
		}
	}
	return b.String()
}
