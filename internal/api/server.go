// Package api exposes the HTTP query and control surface: aggregated
// statistics, the producer endpoint, dead-letter management, health and
// metrics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/orderflow/internal/aggregation"
	"github.com/vietddude/orderflow/internal/health"
	"github.com/vietddude/orderflow/internal/infra/storage"
	"github.com/vietddude/orderflow/internal/pipeline/reprocess"
	"github.com/vietddude/orderflow/internal/stream"
)

// Deps carries everything the handlers need.
type Deps struct {
	Engine      *aggregation.Engine
	Publisher   stream.Publisher
	Topic       string
	Orders      storage.OrderRepository
	FailedRepo  storage.FailedOrderRepository
	Reprocessor *reprocess.Service
	Monitor     *health.Monitor
}

type Server struct {
	Engine *gin.Engine
	Addr   string
	deps   Deps
}

// New builds the HTTP server and registers all routes.
func New(port int, deps Deps, mode string) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Engine: r,
		Addr:   fmt.Sprintf(":%d", port),
		deps:   deps,
	}

	api := r.Group("/api")
	{
		api.GET("/statistics", s.handleAllStatistics)
		api.GET("/statistics/summary", s.handleSummary)
		api.GET("/statistics/product/:product", s.handleProductStatistics)
		api.GET("/statistics/windows/:product", s.handleProductWindows)

		api.POST("/orders", s.handleSubmitOrder)
		api.GET("/orders", s.handleListOrders)
		api.GET("/orders/order/:order_id", s.handleGetOrder)

		api.GET("/dlq/failed-orders", s.handleListFailedOrders)
		api.GET("/dlq/statistics", s.handleDLQStatistics)
		api.POST("/dlq/reprocess/:id", s.handleReprocess)
		api.POST("/dlq/reprocess-all", s.handleReprocessAll)
		api.POST("/dlq/discard/:id", s.handleDiscard)
	}

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("starting HTTP server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
