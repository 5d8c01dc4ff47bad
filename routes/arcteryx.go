package routes

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	cache "github.com/krisalay/routecache"
	"github.com/krisalay/routecache/feed"
)

var preloadedState = regexp.MustCompile(`\{.*\}`)

type regearItem struct {
	DisplayTitle   string    `json:"displayTitle"`
	Color          string    `json:"color"`
	AvailableSizes []string  `json:"availableSizes"`
	OriginalPrice  float64   `json:"originalPrice"`
	PriceRange     []float64 `json:"priceRange"`
	ImageURLs      string    `json:"imageUrls"`
	PDPLink        struct {
		URL string `json:"url"`
	} `json:"pdpLink"`
}

// arcteryxRegear lists in-stock used gear from the state the shop page preloads.
func (rt *Router) arcteryxRegear(ctx context.Context, _ url.Values) (*feed.Feed, error) {
	page := resolve(rt.sites.Arcteryx, "/shop/new-arrivals")
	list, err := cache.TryGetAs(ctx, rt.cache, page, func(ctx context.Context) ([]regearItem, error) {
		body, err := rt.client.Get(ctx, page)
		if err != nil {
			return nil, err
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("arcteryx: parse: %w", err)
		}
		script := doc.Find(`script:contains("window.__PRELOADED_STATE__")`).Text()
		state := preloadedState.FindString(script)
		if state == "" {
			return nil, fmt.Errorf("arcteryx: %s has no preloaded state", page)
		}

		var data struct {
			Shop struct {
				Items []regearItem `json:"items"`
			} `json:"shop"`
		}
		if err := json.Unmarshal([]byte(state), &data); err != nil {
			return nil, fmt.Errorf("arcteryx: decode preloaded state: %w", err)
		}
		return data.Shop.Items, nil
	}, 0, true)
	if err != nil {
		return nil, err
	}

	var items []feed.Item
	for _, it := range list {
		if len(it.AvailableSizes) == 0 {
			continue
		}
		items = append(items, feed.Item{
			Title:       it.DisplayTitle,
			Link:        it.PDPLink.URL,
			Description: regearDescription(it),
		})
	}

	return &feed.Feed{
		Title:       "Arcteryx - Regear - New Arrivals",
		Link:        page,
		Description: "Arcteryx - Regear - New Arrivals",
		Items:       items,
	}, nil
}

func regearDescription(it regearItem) string {
	var images struct {
		Front string `json:"front"`
	}
	_ = json.Unmarshal([]byte(it.ImageURLs), &images)

	price := ""
	switch {
	case len(it.PriceRange) == 1, len(it.PriceRange) >= 2 && it.PriceRange[0] == it.PriceRange[1]:
		price = usd(it.PriceRange[0])
	case len(it.PriceRange) >= 2:
		price = usd(it.PriceRange[0]) + " - " + usd(it.PriceRange[1])
	}

	var b strings.Builder
	b.WriteString("<div>Available Sizes:&nbsp;")
	for _, size := range it.AvailableSizes {
		b.WriteString(size + "&nbsp;")
	}
	fmt.Fprintf(&b, "<br>Color: %s<br>Original Price: %s<br>Regear Price: %s<br>", it.Color, usd(it.OriginalPrice), price)
	fmt.Fprintf(&b, `<img src="%s"><br><br></div>`, images.Front)
	return b.String()
}

// usd formats a price in cents as $1,234.56.
func usd(cents float64) string {
	n := int64(math.Round(cents))
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}

	whole := strconv.FormatInt(n/100, 10)
	for i := len(whole) - 3; i > 0; i -= 3 {
		whole = whole[:i] + "," + whole[i:]
	}
	return fmt.Sprintf("%s$%s.%02d", sign, whole, n%100)
}
