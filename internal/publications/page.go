package publications

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Paging bounds.
const (
	DefaultLimit = 12
	MaxLimit     = 50
)

// Page is one window of the feed.
type Page struct {
	Items      []FeedItem `json:"items"`
	Total      int        `json:"total"`
	NextOffset int        `json:"nextOffset"`
	HasMore    bool       `json:"hasMore"`
}

// ParsePaging reads offset and limit query values. Absent values use the
// defaults (0 and DefaultLimit), an empty value counts as zero, and anything
// non-numeric falls back to the default. Results are clamped to
// offset >= 0 and 1 <= limit <= MaxLimit.
func ParsePaging(q url.Values) (offset, limit int) {
	off := parseNumber(q, "offset", 0)
	lim := parseNumber(q, "limit", DefaultLimit)
	if off < 0 {
		off = 0
	}
	lim = max(1, min(MaxLimit, lim))
	return off, lim
}

func parseNumber(q url.Values, key string, def int) int {
	if !q.Has(key) {
		return def
	}
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return def
	}
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// Paginate slices feed starting at offset.
func Paginate(feed []FeedItem, offset, limit int) Page {
	start := min(offset, len(feed))
	end := min(start+limit, len(feed))
	items := feed[start:end]
	if items == nil {
		items = []FeedItem{}
	}
	return Page{
		Items:      items,
		Total:      len(feed),
		NextOffset: offset + len(items),
		HasMore:    offset+len(items) < len(feed),
	}
}
