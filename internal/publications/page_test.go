package publications

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaging(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query       string
		offset, lim int
	}{
		{"", 0, 12},
		{"offset=5&limit=3", 5, 3},
		{"offset=-4", 0, 12},
		{"limit=0", 0, 1},
		{"limit=", 0, 1},
		{"limit=500", 0, 50},
		{"limit=abc&offset=xyz", 0, 12},
		{"limit=2.9&offset=1.2", 1, 2},
	}
	for _, tc := range cases {
		q, err := url.ParseQuery(tc.query)
		require.NoError(t, err)
		off, lim := ParsePaging(q)
		assert.Equal(t, tc.offset, off, tc.query)
		assert.Equal(t, tc.lim, lim, tc.query)
	}
}

func feedOf(n int) []FeedItem {
	out := make([]FeedItem, n)
	for i := range out {
		out[i] = FeedItem{Type: TypeArticle, Title: fmt.Sprintf("t%d", i), Slug: fmt.Sprintf("s%d", i)}
	}
	return out
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	p := Paginate(feedOf(5), 0, 2)
	assert.Len(t, p.Items, 2)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, 2, p.NextOffset)
	assert.True(t, p.HasMore)

	p = Paginate(feedOf(5), 4, 12)
	assert.Len(t, p.Items, 1)
	assert.Equal(t, 5, p.NextOffset)
	assert.False(t, p.HasMore)

	p = Paginate(feedOf(5), 9, 12)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Equal(t, 9, p.NextOffset)
	assert.False(t, p.HasMore)
}

func TestSitemap(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	var buf bytes.Buffer
	err := Sitemap(&buf, "https://lfellinger.com/", []ArticleMeta{
		{Slug: "ga4-migration", Date: "2024-05-10"},
		{Slug: "example-article", Date: "2024-01-01"},
		{Slug: "undated"},
		{Slug: "odd-date", Date: "May 2024"},
	}, []string{"example-article"}, now)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(buf.String(), xml.Header))

	var set urlSet
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &set))
	locs := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		locs = append(locs, u.Loc)
	}
	assert.Equal(t, []string{
		"https://lfellinger.com",
		"https://lfellinger.com/seo-consulting",
		"https://lfellinger.com/web-analytics",
		"https://lfellinger.com/publications",
		"https://lfellinger.com/imprint",
		"https://lfellinger.com/privacy-policy",
		"https://lfellinger.com/publications/ga4-migration",
		"https://lfellinger.com/publications/undated",
		"https://lfellinger.com/publications/odd-date",
	}, locs)
	assert.Equal(t, "2025-02-03T04:05:06Z", set.URLs[0].LastMod)
	assert.Equal(t, "2024-05-10T00:00:00Z", set.URLs[6].LastMod)
	assert.Equal(t, "2025-02-03T04:05:06Z", set.URLs[7].LastMod)
	assert.Equal(t, "", set.URLs[8].LastMod)
}
