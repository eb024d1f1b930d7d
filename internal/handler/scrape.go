package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/dealflow/platform-server-go/internal/errors"
	"github.com/dealflow/platform-server-go/internal/httputil"
	"github.com/dealflow/platform-server-go/internal/scraper"
)

type ScrapeHandler struct {
	scraper *scraper.Scraper
}

func NewScrapeHandler(s *scraper.Scraper) *ScrapeHandler {
	return &ScrapeHandler{scraper: s}
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (h *ScrapeHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError("request body must be JSON"))
		return
	}
	if req.URL == "" {
		httputil.WriteError(w, apperrors.MissingRequired("url"))
		return
	}

	result, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL).Msg("scrape failed")
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}
