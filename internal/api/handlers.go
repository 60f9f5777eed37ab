package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goenrich/internal/app"
	"github.com/hyperifyio/goenrich/internal/enrich"
	"github.com/hyperifyio/goenrich/internal/pipeline"
)

// Client-facing messages for rejected input.
const (
	msgMissingURL  = "Missing 'url' in request body."
	msgBadScheme   = "URL must be http or https."
	msgInvalidURL  = "Invalid URL."
	msgNotEnough   = "Could not extract enough text from the URL."
	msgMissingSite = "Missing 'website' in request body."
	msgInvalidBody = "Request body must be a JSON object."
)

type enrichRequest struct {
	URL any `json:"url"`
}

// enrichResponse is the result with the cache marker inlined.
type enrichResponse struct {
	enrich.Result
	Cached bool `json:"_cached,omitempty"`
}

type companyRequest struct {
	Website string `json:"website"`
	Sector  string `json:"sector"`
}

type handler struct {
	enricher  Enricher
	companies CompanyEnricher
}

func (h *handler) enrich(c *gin.Context) {
	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	rawURL, ok := req.URL.(string)
	if !ok || rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingURL})
		return
	}

	out, err := h.enricher.Enrich(c.Request.Context(), rawURL)
	if err != nil {
		status, msg := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("url", rawURL).Msg("enrich failed")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, enrichResponse{Result: out.Result, Cached: out.Cached})
}

func (h *handler) invalidate(c *gin.Context) {
	if u := c.Query("url"); u != "" {
		if err := h.enricher.Invalidate(c.Request.Context(), u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("cache invalidation failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) enrichCompany(c *gin.Context) {
	var req companyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	view, err := h.companies.EnrichCompany(c.Request.Context(), app.Company{Website: req.Website, Sector: req.Sector})
	if errors.Is(err, app.ErrNoWebsite) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingSite})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// errorResponse maps a pipeline failure to an HTTP status and message.
func errorResponse(err error) (int, string) {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, err.Error()
	}
	switch pe.Kind {
	case pipeline.KindInvalidURL:
		switch {
		case errors.Is(pe, pipeline.ErrMissingURL):
			return http.StatusBadRequest, msgMissingURL
		case errors.Is(pe, pipeline.ErrURLScheme):
			return http.StatusBadRequest, msgBadScheme
		default:
			return http.StatusBadRequest, msgInvalidURL
		}
	case pipeline.KindInsufficientContent:
		return http.StatusUnprocessableEntity, msgNotEnough
	default:
		return http.StatusInternalServerError, pe.Error()
	}
}
