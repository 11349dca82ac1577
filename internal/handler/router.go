package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/securerights/copyright-detection-go/internal/identity"
	"github.com/securerights/copyright-detection-go/internal/middleware"
)

// Routers bundles the handlers mounted on the API surface.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Routers struct {
	Health   *HealthHandler
	Queries  *QueryHandler
	Allow    *AllowlistHandler
	Pipeline *PipelineHandler
	Reports  *ReportHandler
	Verifier identity.Verifier
	Registry *prometheus.Registry
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(r Routers) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestLogger())

	if r.Health != nil {
		engine.GET("/healthz", r.Health.Check)
	}
	if r.Registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})))
	}

	api := engine.Group("", middleware.Auth(r.Verifier))
	{
		api.GET("/queries", r.Queries.List)
		api.POST("/queries", r.Queries.Create)
		api.DELETE("/queries/:id", r.Queries.Delete)

		api.GET("/allowlist", r.Allow.List)
		api.POST("/allowlist", r.Allow.Add)
		api.DELETE("/allowlist/:channel_id", r.Allow.Remove)

		api.GET("/candidates", r.Pipeline.ListCandidates)
		api.GET("/results", r.Pipeline.ListResults)
		api.GET("/results/:video_id", r.Pipeline.GetResult)

		api.POST("/reports", r.Reports.Submit)
		api.GET("/reports", r.Reports.List)
		api.GET("/reports/:id", r.Reports.Get)
		api.POST("/reports/:id/notice", r.Reports.BuildNotice)

		api.GET("/notices/:id", r.Reports.GetNotice)
		api.GET("/notices/:id/pdf", r.Reports.RenderNoticePDF)

		admin := api.Group("", middleware.RequireAdmin())
		{
			admin.POST("/cycle", r.Pipeline.TriggerCycle)
			admin.GET("/cycles", r.Pipeline.ListCycles)
			admin.PATCH("/reports/:id/status", r.Reports.UpdateStatus)
			admin.PATCH("/notices/:id/status", r.Reports.UpdateNoticeStatus)
		}
	}

	return engine
}
