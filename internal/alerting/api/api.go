package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigilops/vigil/internal/alerting/service/coordinator"
)

// Api wires the alerting HTTP surface onto a gin router.
type Api struct {
	coord *coordinator.Coordinator
}

func NewApi(router *gin.Engine, coord *coordinator.Coordinator, gatherer prometheus.Gatherer) *Api {
	api := &Api{coord: coord}
	api.setupRouters(router, gatherer)
	return api
}

func (api *Api) setupRouters(router *gin.Engine, gatherer prometheus.Gatherer) {
	router.POST("/v1/metrics", api.IngestSnapshot)

	router.GET("/v1/alerts", api.ListAlerts)
	router.GET("/v1/alerts/stats", api.GetStats)
	router.POST("/v1/alerts/:alertID/resolve", api.ResolveAlert)
	router.POST("/v1/alerts/:alertID/acknowledge", api.AcknowledgeAlert)

	router.GET("/v1/alert-rules", api.ListRules)
	router.PUT("/v1/alert-rules/:ruleID", api.PutRule)
	router.DELETE("/v1/alert-rules/:ruleID", api.DeleteRule)

	router.GET("/v1/notifications", api.ListDeliveries)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
