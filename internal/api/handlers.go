package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/health"
	"github.com/vietddude/orderflow/internal/infra/storage"
	"github.com/vietddude/orderflow/internal/pipeline/reprocess"
	"github.com/vietddude/orderflow/internal/stream"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// -----------------------------------------------------------------------------
// Statistics
// -----------------------------------------------------------------------------

func (s *Server) handleAllStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Engine.Running().All())
}

func (s *Server) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Engine.Running().Summary())
}

func (s *Server) handleProductStatistics(c *gin.Context) {
	product := c.Param("product")
	stats, ok := s.deps.Engine.Running().Get(product)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{
			Error:   "product not found",
			Details: product,
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleProductWindows(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Engine.Windowed().Windows(c.Param("product")))
}

// -----------------------------------------------------------------------------
// Producer endpoint
// -----------------------------------------------------------------------------

type submitOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Product string `json:"product" binding:"required"`
	// Price deliberately has no binding tag: zero and negative prices must
	// reach the pipeline so they dead-letter as validation failures.
	Price float32 `json:"price"`
}

// handleSubmitOrder accepts an order and publishes it onto the stream. The
// pipeline does the real validation; this endpoint only rejects bodies that
// cannot be turned into a message at all.
func (s *Server) handleSubmitOrder(c *gin.Context) {
	var req submitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid order body",
			Details: err.Error(),
		})
		return
	}

	value, err := stream.EncodeOrder(domain.Order{
		OrderID: req.OrderID,
		Product: req.Product,
		Price:   req.Price,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "failed to encode order",
			Details: err.Error(),
		})
		return
	}

	cid := uuid.New().String()
	msg := stream.Message{
		Topic: s.deps.Topic,
		Key:   req.OrderID,
		Value: value,
		Headers: map[string]string{
			stream.HeaderCorrelationID: cid,
			stream.HeaderEventTime:     time.Now().Format(time.RFC3339Nano),
		},
	}

	if err := s.deps.Publisher.Publish(c.Request.Context(), msg); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{
			Error:   "failed to publish order",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"order_id":       req.OrderID,
		"correlation_id": cid,
	})
}

// -----------------------------------------------------------------------------
// Order queries
// -----------------------------------------------------------------------------

const defaultOrderListLimit = 100

func (s *Server) handleListOrders(c *gin.Context) {
	limit := defaultOrderListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{
				Error:   "limit must be a positive integer",
				Details: raw,
			})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	orders, err := s.deps.Orders.List(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "failed to list orders",
			Details: err.Error(),
		})
		return
	}

	total, err := s.deps.Orders.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "failed to count orders",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"count":  len(orders),
		"orders": orders,
	})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	orderID := c.Param("order_id")
	order, err := s.deps.Orders.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{
				Error:   "order not found",
				Details: orderID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "failed to load order",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, order)
}

// -----------------------------------------------------------------------------
// Dead-letter management
// -----------------------------------------------------------------------------

func (s *Server) handleListFailedOrders(c *gin.Context) {
	filter := storage.FailedOrderFilter{
		Status:   domain.FailedOrderStatus(c.Query("status")),
		Category: domain.FailureCategory(c.Query("category")),
	}

	orders, err := s.deps.FailedRepo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "failed to list failed orders",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(orders),
		"orders": orders,
	})
}

func (s *Server) handleDLQStatistics(c *gin.Context) {
	ctx := c.Request.Context()

	byStatus, err := s.deps.FailedRepo.CountByStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "failed to count by status",
			Details: err.Error(),
		})
		return
	}

	byType, err := s.deps.FailedRepo.CountByFailureType(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "failed to count by failure type",
			Details: err.Error(),
		})
		return
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"total":           total,
		"by_status":       byStatus,
		"by_failure_type": byType,
	})
}

func (s *Server) handleReprocess(c *gin.Context) {
	actor := c.Query("by")
	if actor == "" {
		actor = "api"
	}

	outcome, err := s.deps.Reprocessor.Reprocess(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "reprocessing failed",
			Details: err.Error(),
		})
		return
	}
	if outcome == reprocess.OutcomeNotApplicable {
		c.JSON(http.StatusConflict, gin.H{"outcome": outcome})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

func (s *Server) handleReprocessAll(c *gin.Context) {
	actor := c.Query("by")
	if actor == "" {
		actor = "api"
	}

	tally, err := s.deps.Reprocessor.ReprocessAllPending(c.Request.Context(), actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "bulk reprocessing failed",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, tally)
}

func (s *Server) handleDiscard(c *gin.Context) {
	outcome, err := s.deps.Reprocessor.Discard(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "discard failed",
			Details: err.Error(),
		})
		return
	}
	if outcome == reprocess.OutcomeNotApplicable {
		c.JSON(http.StatusConflict, gin.H{"outcome": outcome})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

func (s *Server) handleHealth(c *gin.Context) {
	report := s.deps.Monitor.Check(c.Request.Context())
	code := http.StatusOK
	if report.SystemStatus == health.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}
