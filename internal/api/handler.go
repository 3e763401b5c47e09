package api

import (
	"context"
	"net/http"
	"time"

	"pos-checkout/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessCheck reports whether a dependency can serve requests
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	sessions  *service.SessionManager
	registry  *service.Registry
	finalizer *service.Finalizer
	history   *service.SalesHistory
	checks    map[string]ReadinessCheck
}

// NewHandler creates a new HTTP handler. history may be nil when no sales
// archive is configured.
func NewHandler(
	sessions *service.SessionManager,
	registry *service.Registry,
	finalizer *service.Finalizer,
	history *service.SalesHistory,
) *Handler {
	return &Handler{
		sessions:  sessions,
		registry:  registry,
		finalizer: finalizer,
		history:   history,
		checks:    make(map[string]ReadinessCheck),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", h.login)
	}

	authed := v1.Group("", h.requireSession())
	{
		authed.POST("/auth/logout", h.logout)

		authed.GET("/checkout", h.getCheckout)
		authed.GET("/checkout/catalog", h.getCatalog)
		authed.POST("/checkout/catalog/reload", h.reloadCatalog)

		authed.POST("/checkout/cart/items", h.addItem)
		authed.PUT("/checkout/cart/items/:itemId", h.setQuantity)
		authed.DELETE("/checkout/cart/items/:itemId", h.removeItem)
		authed.DELETE("/checkout/cart", h.clearCart)

		authed.GET("/checkout/clients", h.searchClients)
		authed.PUT("/checkout/client", h.selectClient)
		authed.DELETE("/checkout/client", h.clearClient)

		authed.POST("/checkout/finalize", h.finalize)

		authed.GET("/sales", h.listSales)
		authed.GET("/sales/:id/receipt", h.saleReceipt)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}
