// Package api exposes the loader's operator surface: health and batch
// statistics.
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ansh-info/StockPulse/internal/domain/repository"
	"github.com/ansh-info/StockPulse/internal/usecase"
	xhttp "github.com/ansh-info/StockPulse/pkg/http"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
)

// OpsHandler registers the loader's HTTP routes.
type OpsHandler struct {
	coord *usecase.Coordinator
	sink  repository.Sink
	log   *applogger.Logger
}

func NewOpsHandler(coord *usecase.Coordinator, sink repository.Sink, log *applogger.Logger) *OpsHandler {
	return &OpsHandler{
		coord: coord,
		sink:  sink,
		log:   log.With(applogger.String("component", "ops_api")),
	}
}

// RegisterRoutes implements xhttp.Handler.
func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)
	e.GET("/stats", h.stats)
}

func (h *OpsHandler) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.sink.Health(ctx); err != nil {
		h.log.Warn("health check failed", applogger.Error(err))
		return xhttp.ServiceUnavailableResponse(c, map[string]string{
			"status": "degraded",
			"sink":   err.Error(),
		})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *OpsHandler) stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbols":         h.coord.Stats(),
		"in_flight_loads": h.coord.InFlight(),
	})
}
