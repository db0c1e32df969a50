package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/warebot/warebot_backend/appctx"
	"github.com/warebot/warebot_backend/config"
	"github.com/warebot/warebot_backend/middlewares"
	"github.com/warebot/warebot_backend/models"
	"github.com/warebot/warebot_backend/workflow"
)

const defaultPort = "8080"

type inboundRequest struct {
	Lines []*models.InboundEvent `json:"lines" binding:"required,min=1"`
}

type outboundRequest struct {
	Lines []*models.OutboundEvent `json:"lines" binding:"required,min=1"`
}

func main() {
	logger := config.GetLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "X-Operator-Id", "X-Correlation-Id"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		s := config.GetRecordStore()
		if s == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "record store not connected"})
			return
		}
		if _, err := s.List(c.Request.Context(), config.StockLayerTable()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "record store unreachable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/inbound", handleInbound)
	api.POST("/outbound", handleOutbound)
	api.GET("/stock", handleStock)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", port).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	// Connect backends after the listener is up (Cloud Run wants the port
	// open quickly; /readyz gates traffic until the store answers).
	config.ConnectRecordStore()
	config.ConnectRedis()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// operatorContext copies the operator header into the request context and
// fills it into lines that do not carry their own operator id.
func operatorContext(c *gin.Context) (context.Context, string) {
	operatorId := c.GetHeader("X-Operator-Id")
	ctx := c.Request.Context()
	if operatorId != "" {
		ctx = appctx.Set(ctx, appctx.ContextKeyOperatorId, operatorId)
	}
	return ctx, operatorId
}

func handleInbound(c *gin.Context) {
	var req inboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, operatorId := operatorContext(c)
	for _, line := range req.Lines {
		if line.OperatorId == "" {
			line.OperatorId = operatorId
		}
	}

	ledger := workflow.NewLedger(config.GetRecordStore(), config.GetLogger())
	result, err := ledger.ProcessInboundBatch(ctx, req.Lines)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !result.Success() {
		// Some lines committed, some failed; the caller decides what to do
		// with the partial state.
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"success": result.Success(), "result": result})
}

func handleOutbound(c *gin.Context) {
	var req outboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, operatorId := operatorContext(c)
	for _, line := range req.Lines {
		if line.OperatorId == "" {
			line.OperatorId = operatorId
		}
	}

	ledger := workflow.NewLedger(config.GetRecordStore(), config.GetLogger())
	result, err := ledger.ProcessOutboundBatch(ctx, req.Lines)
	if err != nil {
		var insufficient *models.InsufficientStockError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock", "lines": insufficient.Lines})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func handleStock(c *gin.Context) {
	ledger := workflow.NewLedger(config.GetRecordStore(), config.GetLogger())
	layers, err := ledger.GetStockSummary(c.Request.Context(), c.Query("product_id"), c.Query("warehouse"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"layers": layers})
}
