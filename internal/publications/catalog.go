package publications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	articleExt   = ".mdx"
	linkedInFile = "linkedin.json"
)

// ErrNotFound is returned for unknown or unsafe slugs.
var ErrNotFound = errors.New("publication not found")

// ArticleMeta is the front matter of one article.
type ArticleMeta struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	YouTubeID   string `json:"youtubeId,omitempty"`
}

// Article is an article with its MDX body.
type Article struct {
	Meta ArticleMeta `json:"meta"`
	MDX  string      `json:"mdx"`
}

// LinkedInPost is one curated external post.
type LinkedInPost struct {
	Title       string
	Date        string
	Description string
	URL         string
	Image       string
}

// Item types.
const (
	TypeLinkedIn = "linkedin"
	TypeArticle  = "article"
)

// FeedItem is either a LinkedIn post (URL set) or an article (Slug set).
type FeedItem struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Image       string `json:"image,omitempty"`
	Slug        string `json:"slug,omitempty"`
}

// Catalog reads publications from a Source, caching the merged feed for TTL.
type Catalog struct {
	src    Source
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	feed     []FeedItem
	articles []ArticleMeta
	loadedAt time.Time
}

// NewCatalog builds a Catalog. ttl <= 0 disables caching.
func NewCatalog(src Source, ttl time.Duration, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{src: src, ttl: ttl, now: time.Now, logger: logger.Named("publications")}
}

// ValidSlug rejects empty slugs and anything that could leave the flat directory.
func ValidSlug(slug string) bool {
	return slug != "" &&
		!strings.Contains(slug, "/") &&
		!strings.Contains(slug, `\`) &&
		!strings.Contains(slug, "..")
}

// Articles returns article metadata, newest first.
func (c *Catalog) Articles(ctx context.Context) ([]ArticleMeta, error) {
	_, articles, err := c.load(ctx)
	return articles, err
}

// Feed returns LinkedIn posts and articles merged, newest first.
func (c *Catalog) Feed(ctx context.Context) ([]FeedItem, error) {
	feed, _, err := c.load(ctx)
	return feed, err
}

// Article loads one article by slug.
func (c *Catalog) Article(ctx context.Context, slug string) (Article, error) {
	if !ValidSlug(slug) {
		return Article{}, ErrNotFound
	}
	raw, err := c.src.Read(ctx, slug+articleExt)
	if errors.Is(err, fs.ErrNotExist) {
		return Article{}, ErrNotFound
	}
	if err != nil {
		return Article{}, fmt.Errorf("read article %s: %w", slug, err)
	}
	fm, body, err := parseFrontMatter(raw)
	if err != nil {
		return Article{}, fmt.Errorf("article %s: %w", slug, err)
	}
	return Article{Meta: metaFrom(slug, fm), MDX: string(body)}, nil
}

func (c *Catalog) load(ctx context.Context) ([]FeedItem, []ArticleMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl > 0 && c.feed != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.feed, c.articles, nil
	}

	names, err := c.src.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list publications: %w", err)
	}
	articles, err := c.readArticles(ctx, names)
	if err != nil {
		return nil, nil, err
	}
	posts, err := c.readLinkedIn(ctx, names)
	if err != nil {
		return nil, nil, err
	}

	feed := make([]FeedItem, 0, len(posts)+len(articles))
	for _, p := range posts {
		feed = append(feed, FeedItem{
			Type:        TypeLinkedIn,
			Title:       p.Title,
			Date:        p.Date,
			Description: p.Description,
			URL:         p.URL,
			Image:       p.Image,
		})
	}
	for _, a := range articles {
		feed = append(feed, FeedItem{
			Type:        TypeArticle,
			Title:       a.Title,
			Date:        a.Date,
			Description: a.Description,
			Slug:        a.Slug,
		})
	}
	sort.SliceStable(feed, func(i, j int) bool { return feed[i].Date > feed[j].Date })

	c.feed, c.articles, c.loadedAt = feed, articles, c.now()
	return feed, articles, nil
}

func (c *Catalog) readArticles(ctx context.Context, names []string) ([]ArticleMeta, error) {
	var out []ArticleMeta
	for _, name := range names {
		slug, ok := strings.CutSuffix(name, articleExt)
		if !ok || !ValidSlug(slug) {
			continue
		}
		raw, err := c.src.Read(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("read article %s: %w", slug, err)
		}
		fm, _, err := parseFrontMatter(raw)
		if err != nil {
			c.logger.Warn("skipping article with bad front matter", zap.String("slug", slug), zap.Error(err))
			continue
		}
		out = append(out, metaFrom(slug, fm))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (c *Catalog) readLinkedIn(ctx context.Context, names []string) ([]LinkedInPost, error) {
	if !slices.Contains(names, linkedInFile) {
		return nil, nil
	}
	raw, err := c.src.Read(ctx, linkedInFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", linkedInFile, err)
	}
	posts, err := parseLinkedIn(raw)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Date > posts[j].Date })
	return posts, nil
}

// parseLinkedIn keeps entries whose url, title and date are strings.
// A top-level value other than an array yields no posts.
func parseLinkedIn(raw []byte) ([]LinkedInPost, error) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("parse %s: %w", linkedInFile, err)
	}
	entries, ok := top.([]any)
	if !ok {
		return nil, nil
	}
	posts := make([]LinkedInPost, 0, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		url, okURL := obj["url"].(string)
		title, okTitle := obj["title"].(string)
		date, okDate := obj["date"].(string)
		if !okURL || !okTitle || !okDate {
			continue
		}
		posts = append(posts, LinkedInPost{
			Title:       title,
			Date:        date,
			Description: optionalString(obj["description"]),
			URL:         url,
			Image:       optionalString(obj["image"]),
		})
	}
	return posts, nil
}

func optionalString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	return fmt.Sprint(v)
}

func metaFrom(slug string, fm frontMatter) ArticleMeta {
	title := string(fm.Title)
	if title == "" {
		title = slug
	}
	return ArticleMeta{
		Slug:        slug,
		Title:       title,
		Date:        string(fm.Date),
		Description: string(fm.Description),
		YouTubeID:   string(fm.YouTubeID),
	}
}
