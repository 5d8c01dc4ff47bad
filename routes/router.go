// Package routes turns upstream sites into feeds. Every upstream response and every
// rendered route result goes through the shared response cache.
package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mmcdole/gofeed"

	cache "github.com/krisalay/routecache"
	cacheapi "github.com/krisalay/routecache/api"
	"github.com/krisalay/routecache/feed"
	"github.com/krisalay/routecache/fetch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrBadRequest = errors.New("bad request")
	ErrEmptyFeed  = errors.New("route produced no items")
)

// Handler builds one feed from the request's query parameters.
type Handler func(ctx context.Context, q url.Values) (*feed.Feed, error)

// Sites holds upstream base URLs, overridable for tests and mirrors.
type Sites struct {
	Cursor       string
	BestblogsAPI string
	Bestblogs    string
	Zhihu        string
	IwaraAPI     string
	Iwara        string
	IwaraImages  string
	FourChanAPI  string
	FourChan     string
	FourChanFile string
	Lephoceen    string
	Arcteryx     string
}

func DefaultSites() Sites {
	return Sites{
		Cursor:       "https://cursor.com",
		BestblogsAPI: "https://api.bestblogs.dev",
		Bestblogs:    "https://www.bestblogs.dev",
		Zhihu:        "https://daily.zhihu.com",
		IwaraAPI:     "https://api.iwara.tv",
		Iwara:        "https://www.iwara.tv",
		IwaraImages:  "https://i.iwara.tv",
		FourChanAPI:  "https://a.4cdn.org",
		FourChan:     "https://boards.4chan.org",
		FourChanFile: "https://i.4cdn.org",
		Lephoceen:    "https://www.lephoceen.fr",
		Arcteryx:     "https://www.regear.arcteryx.com",
	}
}

type Router struct {
	cache       cacheapi.Cache
	client      *fetch.Client
	feedClient  *fetch.Client
	feedHosts   map[string]bool
	log         *slog.Logger
	parser      *gofeed.Parser
	sites       Sites
	concurrency int
	stats       func() any
	now         func() time.Time

	mux *http.ServeMux
}

type Option func(*Router)

func WithSites(s Sites) Option { return func(r *Router) { r.sites = s } }

// WithConcurrency bounds parallel detail fetches inside one route.
func WithConcurrency(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithFeedHosts allows /feed to republish feeds from these hosts. An entry without a port
// matches any port. With no hosts /feed rejects every url.
func WithFeedHosts(hosts ...string) Option {
	return func(r *Router) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				r.feedHosts[h] = true
			}
		}
	}
}

// WithStats exposes fn's result as JSON on /debug/cache.
func WithStats(fn func() any) Option { return func(r *Router) { r.stats = fn } }

func New(c cacheapi.Cache, client *fetch.Client, log *slog.Logger, opts ...Option) *Router {
	rt := &Router{
		cache:       c,
		client:      client,
		log:         log,
		parser:      gofeed.NewParser(),
		sites:       DefaultSites(),
		concurrency: 8,
		feedHosts:   map[string]bool{},
		now:         time.Now,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.feedClient = client.Restrict(rt.feedHostAllowed)

	rt.mux.Handle("GET /cursor/changelog", rt.serve(rt.cursorChangelog))
	rt.mux.Handle("GET /bestblogs/newsletter", rt.serve(rt.bestblogsNewsletter))
	rt.mux.Handle("GET /zhihu/daily", rt.serve(rt.zhihuDaily))
	rt.mux.Handle("GET /iwara/users/{username}", rt.serve(rt.iwaraUser, "username"))
	rt.mux.Handle("GET /iwara/users/{username}/{type}", rt.serve(rt.iwaraUser, "username", "type"))
	rt.mux.Handle("GET /4chan/{board}/catalog", rt.serve(rt.fourChanCatalog, "board"))
	rt.mux.Handle("GET /lephoceen/chrono", rt.serve(rt.lephoceenChrono))
	rt.mux.Handle("GET /arcteryx/regear/new-arrivals", rt.serve(rt.arcteryxRegear))
	rt.mux.Handle("GET /feed", rt.serve(rt.upstreamFeed))

	rt.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if rt.stats != nil {
		rt.mux.HandleFunc("GET /debug/cache", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(rt.stats())
		})
	}

	return rt
}

// Handler returns the mux wrapped with request logging.
func (rt *Router) Handler() http.Handler {
	return withLogging(rt.log, rt.mux)
}

// serve caches the whole route result under its path and sorted query, then renders RSS.
// A route failure falls back to the last good result for the same request when one is held.
// The named path wildcards are handed to h as query values, overriding the query string.
func (rt *Router) serve(h Handler, wildcards ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		key := "route:" + r.URL.Path + "?" + q.Encode()
		for _, name := range wildcards {
			if v := r.PathValue(name); v != "" {
				q.Set(name, v)
			}
		}

		f, err := cache.TryGetAs(r.Context(), rt.cache, key, func(ctx context.Context) (*feed.Feed, error) {
			f, err := h(ctx, q)
			if err != nil {
				return nil, err
			}
			if len(f.Items) == 0 && !f.AllowEmpty {
				return nil, ErrEmptyFeed
			}
			return f, nil
		}, 0, true)
		if err != nil {
			rt.fail(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		if err := feed.RenderRSS(w, f, rt.now()); err != nil {
			rt.log.Error("render feed", "path", r.URL.Path, "err", err)
		}
	})
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	var se *fetch.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, ErrBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &se):
		rt.log.Warn("upstream error", "path", r.URL.Path, "upstream", se.URL, "status", se.StatusCode)
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		rt.log.Error("route failed", "path", r.URL.Path, "err", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func (rt *Router) feedHostAllowed(host string) bool {
	host = strings.ToLower(host)
	if rt.feedHosts[host] {
		return true
	}
	if name, _, err := net.SplitHostPort(host); err == nil {
		return rt.feedHosts[name]
	}
	return false
}

// intParam reads a positive integer query parameter.
func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrBadRequest, name)
	}
	return n, nil
}

// boolParam reads a 0/1/true/false query flag; anything else is false.
func boolParam(q url.Values, name string) bool {
	b, err := strconv.ParseBool(q.Get(name))
	return err == nil && b
}

// resolve makes href absolute against base. Unparseable hrefs are returned unchanged.
func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
