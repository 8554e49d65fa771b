package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Uptime  string `json:"uptime"`
}

// InitRoutes wires the liveness and metrics endpoints. The health handler
// holds no locks and touches no pipeline state, so it answers within a fixed
// bound no matter what the worker is doing.
func InitRoutes(e *echo.Echo, gatherer prometheus.Gatherer) {
	startedAt := time.Now()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "t-v-b",
			Uptime:  time.Since(startedAt).Round(time.Second).String(),
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
