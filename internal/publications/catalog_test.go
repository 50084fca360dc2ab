package publications

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

const linkedInJSON = `[
  {"url":"https://linkedin.com/p/1","title":"Post one","date":"2024-03-01","description":"first","image":"/img/1.png"},
  {"url":"https://linkedin.com/p/2","title":"Post two","date":"2024-06-15"},
  {"url":"https://linkedin.com/p/3","title":"No date"},
  {"url":42,"title":"Bad url","date":"2024-01-01"},
  "not an object"
]`

func sampleDir(t *testing.T) string {
	return writeFiles(t, map[string]string{
		"ga4-migration.mdx":   "---\ntitle: GA4 migration\ndate: 2024-05-10\ndescription: What changed\nyoutubeId: abc123\n---\n# Body\n",
		"core-web-vitals.mdx": "---\r\ntitle: \"Core Web Vitals\"\r\ndate: \"2024-07-01\"\r\n---\r\nText\r\n",
		"untitled.mdx":        "No front matter here",
		"linkedin.json":       linkedInJSON,
		"notes.txt":           "ignored",
	})
}

func TestFeedMergesAndSortsNewestFirst(t *testing.T) {
	t.Parallel()

	cat := NewCatalog(DirSource{Dir: sampleDir(t)}, 0, nil)
	feed, err := cat.Feed(context.Background())
	require.NoError(t, err)

	got := make([]string, 0, len(feed))
	for _, item := range feed {
		got = append(got, item.Type+":"+item.Title)
	}
	assert.Equal(t, []string{
		"article:Core Web Vitals",
		"linkedin:Post two",
		"article:GA4 migration",
		"linkedin:Post one",
		"article:untitled",
	}, got)

	assert.Equal(t, FeedItem{
		Type: TypeLinkedIn, Title: "Post one", Date: "2024-03-01", Description: "first",
		URL: "https://linkedin.com/p/1", Image: "/img/1.png",
	}, feed[3])
	assert.Equal(t, FeedItem{
		Type: TypeArticle, Title: "GA4 migration", Date: "2024-05-10", Description: "What changed",
		Slug: "ga4-migration",
	}, feed[2])
}

func TestArticlesDefaultTitleToSlug(t *testing.T) {
	t.Parallel()

	cat := NewCatalog(DirSource{Dir: sampleDir(t)}, 0, nil)
	articles, err := cat.Articles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 3)
	assert.Equal(t, ArticleMeta{Slug: "untitled", Title: "untitled"}, articles[2])
	assert.Equal(t, "abc123", articles[1].YouTubeID)
}

func TestArticleBySlug(t *testing.T) {
	t.Parallel()

	cat := NewCatalog(DirSource{Dir: sampleDir(t)}, 0, nil)
	a, err := cat.Article(context.Background(), "ga4-migration")
	require.NoError(t, err)
	assert.Equal(t, "GA4 migration", a.Meta.Title)
	assert.Equal(t, "# Body\n", a.MDX)

	for _, slug := range []string{"", "missing", "../etc/passwd", `a\b`, "a/b", "..", "linkedin"} {
		_, err := cat.Article(context.Background(), slug)
		assert.ErrorIs(t, err, ErrNotFound, "slug %q", slug)
	}
}

func TestMissingDirectoryIsEmpty(t *testing.T) {
	t.Parallel()

	cat := NewCatalog(DirSource{Dir: filepath.Join(t.TempDir(), "nope")}, 0, nil)
	feed, err := cat.Feed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestLinkedInNonArrayYieldsNothing(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{"linkedin.json": `{"url":"x"}`})
	feed, err := NewCatalog(DirSource{Dir: dir}, 0, nil).Feed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, feed)

	dir = writeFiles(t, map[string]string{"linkedin.json": `[{`})
	_, err = NewCatalog(DirSource{Dir: dir}, 0, nil).Feed(context.Background())
	require.Error(t, err)
}

type countingSource struct {
	Source
	lists int
}

func (c *countingSource) List(ctx context.Context) ([]string, error) {
	c.lists++
	return c.Source.List(ctx)
}

func TestCatalogCachesForTTL(t *testing.T) {
	t.Parallel()

	src := &countingSource{Source: DirSource{Dir: sampleDir(t)}}
	cat := NewCatalog(src, time.Minute, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cat.now = func() time.Time { return now }

	_, err := cat.Feed(context.Background())
	require.NoError(t, err)
	_, err = cat.Articles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.lists)

	now = now.Add(2 * time.Minute)
	_, err = cat.Feed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.lists)
}

type brokenSource struct{}

func (brokenSource) List(context.Context) ([]string, error) { return nil, errors.New("bucket offline") }

func (brokenSource) Read(context.Context, string) ([]byte, error) { return nil, fs.ErrPermission }

func TestCatalogSurfacesSourceErrors(t *testing.T) {
	t.Parallel()

	cat := NewCatalog(brokenSource{}, 0, nil)
	_, err := cat.Feed(context.Background())
	require.Error(t, err)

	_, err = cat.Article(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSplitFrontMatter(t *testing.T) {
	t.Parallel()

	header, body := splitFrontMatter([]byte("---\ntitle: x\n---\nrest"))
	assert.Equal(t, "title: x\n", string(header))
	assert.Equal(t, "rest", string(body))

	header, body = splitFrontMatter([]byte("---\ntitle: x\nno closing fence"))
	assert.Nil(t, header)
	assert.Equal(t, "---\ntitle: x\nno closing fence", string(body))

	_, _, err := parseFrontMatter([]byte("---\ntitle: [unclosed\n---\n"))
	require.Error(t, err)
}
