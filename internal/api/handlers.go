package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/consulting-site/internal/contact"
	"github.com/JakeFAU/consulting-site/internal/publications"
)

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxContactBody)
	out := s.contact.Submit(r.Context(), body, contact.ClientIP(r))
	if out.ID != "" {
		w.Header().Set("X-Submission-ID", out.ID)
	}
	writeJSON(w, out.Status, out.Body)
}

func (s *Server) listPublications(w http.ResponseWriter, r *http.Request) {
	offset, limit := publications.ParsePaging(r.URL.Query())
	feed, err := s.catalog.Feed(r.Context())
	if err != nil {
		s.logger.Error("load publications feed failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, publications.Paginate(feed, offset, limit))
}

func (s *Server) getPublication(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	article, err := s.catalog.Article(r.Context(), slug)
	if errors.Is(err, publications.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		s.logger.Error("load article failed", zap.String("slug", slug), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) sitemap(w http.ResponseWriter, r *http.Request) {
	articles, err := s.catalog.Articles(r.Context())
	if err != nil {
		s.logger.Error("load articles for sitemap failed", zap.Error(err))
		http.Error(w, "sitemap unavailable", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := publications.Sitemap(&buf, s.siteURL, articles, s.noIndex, s.clock.Now()); err != nil {
		s.logger.Error("render sitemap failed", zap.Error(err))
		http.Error(w, "sitemap unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("write sitemap failed", zap.Error(err))
	}
}
