// Package publications reads the site's articles (MDX files with YAML front
// matter) and the curated LinkedIn post list, and merges them into one feed
// ordered newest first. It also renders the sitemap.
package publications
