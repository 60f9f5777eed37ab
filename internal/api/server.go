// Package api exposes the enrichment pipeline over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperifyio/goenrich/internal/app"
	"github.com/hyperifyio/goenrich/internal/pipeline"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "goenrich"

// Enricher is the live enrichment path.
type Enricher interface {
	Enrich(ctx context.Context, rawURL string) (pipeline.Outcome, error)
	Invalidate(ctx context.Context, rawURL string) error
}

// CompanyEnricher applies the caller-side fallback policy.
type CompanyEnricher interface {
	EnrichCompany(ctx context.Context, c app.Company) (app.View, error)
}

// Options configures the router.
type Options struct {
	// DevRoutes registers the cache invalidation endpoint.
	DevRoutes bool
	// CORSAllow lists allowed origins; empty allows all.
	CORSAllow []string
}

// NewRouter wires the HTTP routes and middleware.
func NewRouter(enricher Enricher, companies CompanyEnricher, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog())
	r.Use(PrometheusMiddleware())
	r.Use(cors.New(corsConfig(opts.CORSAllow)))

	h := &handler{enricher: enricher, companies: companies}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": ServiceName})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/enrich", h.enrich)
		if opts.DevRoutes {
			api.DELETE("/enrich", h.invalidate)
		}
		api.POST("/companies/enrich", h.enrichCompany)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", RequestIDHeader}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	config.ExposeHeaders = []string{RequestIDHeader}
	return config
}
