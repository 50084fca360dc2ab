package publications

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// StaticPages are the site's fixed routes, relative to the site URL.
var StaticPages = []string{
	"",
	"/seo-consulting",
	"/web-analytics",
	"/publications",
	"/imprint",
	"/privacy-policy",
}

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Sitemap renders the sitemap for siteURL. Articles whose slug is listed in
// noIndex are left out. Static pages carry now as lastmod; articles carry
// their own date when it parses.
func Sitemap(w io.Writer, siteURL string, articles []ArticleMeta, noIndex []string, now time.Time) error {
	base := strings.TrimRight(siteURL, "/")
	set := urlSet{XMLNS: sitemapNS}
	stamp := now.UTC().Format(time.RFC3339)
	for _, p := range StaticPages {
		set.URLs = append(set.URLs, sitemapURL{Loc: base + p, LastMod: stamp})
	}
	for _, a := range articles {
		if slices.Contains(noIndex, a.Slug) {
			continue
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     base + "/publications/" + a.Slug,
			LastMod: articleLastMod(a.Date, stamp),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write sitemap header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("encode sitemap: %w", err)
	}
	return enc.Close()
}

func articleLastMod(date, fallback string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}
