package routes

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	jsoniter "github.com/json-iterator/go"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/feed"
)

var iwaraTypes = map[string]string{
	"video": "Videos",
	"image": "Images",
}

var youtubeID = regexp.MustCompile(`https?://(?:www\.)?youtu(?:be\.com/watch\?v=|\.be/)([\w-]*)`)

type iwaraProfile struct {
	ID string `json:"id"`
}

type iwaraFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type iwaraItem struct {
	ID        string  `json:"id"`
	Slug      string  `json:"slug"`
	Title     string  `json:"title"`
	CreatedAt string  `json:"createdAt"`
	EmbedURL  *string `json:"embedUrl"`
	Tags      []struct {
		ID string `json:"id"`
	} `json:"tags"`
	File *iwaraFile `json:"file"`
	// A thumbnail index for videos, a file object for images.
	Thumbnail jsoniter.RawMessage `json:"thumbnail"`
}

// iwaraUser lists a user's videos or images. The profile and the list are cached separately:
// the profile keeps serving while stale, the list does not.
func (rt *Router) iwaraUser(ctx context.Context, q url.Values) (*feed.Feed, error) {
	username := q.Get("username")
	kind := q.Get("type")
	if kind == "" {
		kind = "video"
	}
	label, ok := iwaraTypes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: type must be video or image", ErrBadRequest)
	}

	profileURL := resolve(rt.sites.IwaraAPI, "/profile/"+url.PathEscape(username))
	profile, err := cache.TryGetAs(ctx, rt.cache, profileURL, func(ctx context.Context) (*iwaraProfile, error) {
		var resp struct {
			User iwaraProfile `json:"user"`
		}
		if err := rt.client.GetJSON(ctx, profileURL, &resp); err != nil {
			return nil, err
		}
		return &resp.User, nil
	}, 0, true)
	if err != nil {
		return nil, err
	}

	listURL := resolve(rt.sites.IwaraAPI, "/"+kind+"s?user="+url.QueryEscape(profile.ID))
	list, err := cache.TryGetAs(ctx, rt.cache, listURL, func(ctx context.Context) ([]iwaraItem, error) {
		var resp struct {
			Results []iwaraItem `json:"results"`
		}
		if err := rt.client.GetJSON(ctx, listURL, &resp); err != nil {
			return nil, err
		}
		return resp.Results, nil
	}, 0, false)
	if err != nil {
		return nil, err
	}

	items := make([]feed.Item, 0, len(list))
	for _, it := range list {
		tags := make([]string, 0, len(it.Tags))
		for _, tag := range it.Tags {
			tags = append(tags, tag.ID)
		}
		items = append(items, feed.Item{
			Title:       it.Title,
			Author:      username,
			Link:        resolve(rt.sites.Iwara, fmt.Sprintf("/%s/%s/%s", kind, it.ID, it.Slug)),
			Categories:  tags,
			Description: rt.iwaraThumbnail(kind, it),
			PubDate:     feed.ParseDate(it.CreatedAt),
		})
	}

	return &feed.Feed{
		Title:      fmt.Sprintf("%s's iwara - %s", username, label),
		Link:       resolve(rt.sites.Iwara, "/users/"+url.PathEscape(username)),
		Items:      items,
		AllowEmpty: true,
	}, nil
}

func (rt *Router) iwaraThumbnail(kind string, it iwaraItem) string {
	img := func(path string) string {
		return fmt.Sprintf(`<img src="%s">`, resolve(rt.sites.IwaraImages, path))
	}

	if kind == "image" {
		var thumb *iwaraFile
		if err := json.Unmarshal(it.Thumbnail, &thumb); err != nil || thumb == nil {
			thumb = it.File
		}
		if thumb == nil {
			return ""
		}
		return img(fmt.Sprintf("/image/original/%s/%s", thumb.ID, thumb.Name))
	}

	if it.EmbedURL == nil {
		if it.File == nil {
			return ""
		}
		var n int
		_ = json.Unmarshal(it.Thumbnail, &n)
		return img(fmt.Sprintf("/image/original/%s/thumbnail-%02d.jpg", it.File.ID, n))
	}

	if m := youtubeID.FindStringSubmatch(*it.EmbedURL); m != nil {
		return img("/image/embed/original/youtube/" + m[1])
	}
	return ""
}
