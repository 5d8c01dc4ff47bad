package feed

import (
	"encoding/xml"
	"io"
	"mime"
	"net/url"
	"path"
	"time"
)

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	Image         *rssImage `xml:"image,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Generator     string    `xml:"generator"`
	Items         []rssItem `xml:"item"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length int    `xml:"length,attr"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link,omitempty"`
	GUID        *rssGUID      `xml:"guid,omitempty"`
	Description cdata         `xml:"description"`
	Author      string        `xml:"author,omitempty"`
	Categories  []string      `xml:"category,omitempty"`
	PubDate     string        `xml:"pubDate,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

// RenderRSS writes f as RSS 2.0. buildTime stamps lastBuildDate.
func RenderRSS(w io.Writer, f *Feed, buildTime time.Time) error {
	ch := rssChannel{
		Title:         f.Title,
		Link:          f.Link,
		Description:   f.Description,
		Language:      f.Language,
		LastBuildDate: buildTime.UTC().Format(time.RFC1123Z),
		Generator:     "routecache",
	}
	if ch.Description == "" {
		ch.Description = f.Title
	}
	if f.Image != "" {
		ch.Image = &rssImage{URL: f.Image, Title: f.Title, Link: f.Link}
	}

	for _, it := range f.Items {
		ri := rssItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: cdata{it.Description},
			Author:      it.Author,
			Categories:  it.Categories,
		}
		switch {
		case it.GUID != "":
			ri.GUID = &rssGUID{Value: it.GUID}
		case it.Link != "":
			ri.GUID = &rssGUID{Value: it.Link, IsPermaLink: true}
		}
		if !it.PubDate.IsZero() {
			ri.PubDate = it.PubDate.UTC().Format(time.RFC1123Z)
		}
		if it.Image != "" {
			ri.Enclosure = &rssEnclosure{URL: it.Image, Type: imageType(it.Image)}
		}
		ch.Items = append(ch.Items, ri)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(rssDoc{Version: "2.0", Channel: ch})
}

// imageType guesses the MIME type from the URL's extension, falling back to JPEG.
func imageType(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if t := mime.TypeByExtension(path.Ext(u.Path)); t != "" {
			return t
		}
	}
	return "image/jpeg"
}
