// Package api hosts the HTTP server, middleware, and handlers of the site
// backend. Notable routes:
//   - POST /api/contact runs one contact submission through contact.Service.
//   - GET /api/publications and /api/publications/{slug} serve the feed.
//   - GET /sitemap.xml lists static pages and articles.
//   - GET /healthz / readyz for probes, GET /metrics for Prometheus scraping.
package api
