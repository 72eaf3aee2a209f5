package routes

import (
	"example.com/partybot/api/handlers"
	"example.com/partybot/api/middleware"
	"example.com/partybot/internal/metrics"
	"example.com/partybot/internal/repositories"
	"example.com/partybot/internal/signup"
	"example.com/partybot/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRoutes sets up all the routes for the ops server
func SetupRoutes(
	r *gin.Engine,
	events *repositories.EventRepository,
	engine *signup.Engine,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
	log zerolog.Logger,
) {
	r.Use(middleware.Logger(log))
	if app := tracer.Application(); app != nil {
		r.Use(middleware.NewRelicMiddleware(app))
	}

	metricsHandler := handlers.NewMetricsHandler(collector, tracer)
	r.GET("/health", metricsHandler.HandleGetHealthCheck)
	r.GET("/metrics", metricsHandler.HandleGetMetrics)

	api := r.Group("/api/v1")
	partyHandler := handlers.NewPartyHandler(events, engine, tracer)
	api.GET("/parties", partyHandler.HandleListParties)
	api.GET("/parties/:id", partyHandler.HandleGetParty)
}
