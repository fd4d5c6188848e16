// Package api exposes the price monitor over HTTP.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sjsage522/pricewatch/internal/monitor"
	"sjsage522/pricewatch/logger"
	apperrors "sjsage522/pricewatch/pkg/errors"
)

const (
	messageMissingFields  = "Missing required fields: email, prodUrl, price"
	messageProductAdded   = "Product added for tracking"
	messageProductRemoved = "Product removed from tracking"
	messageProductUpdated = "Product updated"
	messageHealthy        = "Price Monitor API is running"
)

// APIHandler serves the product tracking endpoints
type APIHandler struct {
	monitor *monitor.Monitor
	logger  *logger.Logger
	now     func() time.Time
}

// NewRouter builds the gin engine with middleware and routes
func NewRouter(m *monitor.Monitor) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), RequestLogger(), CORS())
	SetupRoutes(&r.RouterGroup, m)
	return r
}

// SetupRoutes registers the handlers on r
func SetupRoutes(r *gin.RouterGroup, m *monitor.Monitor) *APIHandler {
	handler := &APIHandler{
		monitor: m,
		logger:  logger.ForServer(),
		now:     time.Now,
	}

	r.POST("/products", handler.AddProduct)
	r.GET("/products/:email", handler.ListProducts)
	r.PATCH("/products/:id", handler.EditProduct)
	r.DELETE("/products/:id", handler.RemoveProduct)
	r.POST("/check-price", handler.CheckPrice)
	r.POST("/check-all", handler.CheckAll)
	r.GET("/health", handler.Health)

	return handler
}

func (h *APIHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		status = http.StatusNotFound
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   apperrors.Message(err),
	})
}

// AddProduct registers a product and runs its first check
func (h *APIHandler) AddProduct(c *gin.Context) {
	var req addProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.NewValidation("api", "Invalid request body: "+err.Error()))
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.ProdURL = strings.TrimSpace(req.ProdURL)
	if req.Email == "" || req.ProdURL == "" || req.Price <= 0 {
		h.fail(c, apperrors.NewValidation("api", messageMissingFields))
		return
	}

	id, initial, err := h.monitor.Track(c.Request.Context(), monitor.TrackRequest{
		ID:          strings.TrimSpace(req.ProductID),
		URL:         req.ProdURL,
		OwnerEmail:  req.Email,
		TargetPrice: float64(req.Price),
		Title:       strings.TrimSpace(req.Title),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"productId":    id,
		"message":      messageProductAdded,
		"initialCheck": initial,
	})
}

// CheckPrice runs one check for a tracked product
func (h *APIHandler) CheckPrice(c *gin.Context) {
	var req checkPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.NewValidation("api", "Invalid request body: "+err.Error()))
		return
	}

	// an empty id is just another unknown product
	id := strings.TrimSpace(req.ProductID)
	if id == "" {
		h.fail(c, apperrors.NewNotFound("api", "Product not found"))
		return
	}

	result, err := h.monitor.Check(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListProducts returns every product owned by :email
func (h *APIHandler) ListProducts(c *gin.Context) {
	products, err := h.monitor.Registry().ListByOwner(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"products": products,
	})
}

// EditProduct changes the target price, title or url of a product
func (h *APIHandler) EditProduct(c *gin.Context) {
	var req editProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.NewValidation("api", "Invalid request body: "+err.Error()))
		return
	}
	if req.Price == nil && req.Title == nil && req.ProdURL == nil {
		h.fail(c, apperrors.NewValidation("api", "Nothing to update: provide price, title or prodUrl"))
		return
	}

	edit := monitor.Edit{Title: req.Title, URL: req.ProdURL}
	if req.Price != nil {
		target := float64(*req.Price)
		edit.TargetPrice = &target
	}

	product, err := h.monitor.Edit(c.Request.Context(), c.Param("id"), edit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": messageProductUpdated,
		"product": product,
	})
}

// RemoveProduct stops tracking :id
func (h *APIHandler) RemoveProduct(c *gin.Context) {
	removed, err := h.monitor.Registry().Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !removed {
		h.fail(c, apperrors.NewNotFound("api", "Product not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": messageProductRemoved,
	})
}

// CheckAll re-checks every tracked product
func (h *APIHandler) CheckAll(c *gin.Context) {
	bulk, err := h.monitor.CheckAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"results":      bulk.Results,
		"totalChecked": bulk.TotalChecked,
	})
}

// Health reports liveness and the number of tracked products
func (h *APIHandler) Health(c *gin.Context) {
	count, err := h.monitor.Registry().Count(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      messageHealthy,
		"trackedCount": count,
		"timestamp":    h.now().UTC().Format(time.RFC3339),
	})
}
