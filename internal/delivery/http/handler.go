package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cheapmatch/backend/internal/domain"
)

// CompareService answers compare requests
type CompareService interface {
	Compare(ctx context.Context, item *domain.SourceItem) (*domain.CompareResponse, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	compareService CompareService
}

// NewHandler creates a new HTTP handler
func NewHandler(compareService CompareService) *Handler {
	return &Handler{compareService: compareService}
}

// compareRequest is the listing the extension scraped from the marketplace page
type compareRequest struct {
	ID       string  `json:"id" binding:"required"`
	Title    string  `json:"title" binding:"required"`
	Price    float64 `json:"price" binding:"required,gt=0"`
	Currency string  `json:"currency"`
	ImageURL string  `json:"imageUrl"`
	Domain   string  `json:"domain"`
}

// sourceItem converts the request into a source item. An explicit currency
// wins over the one implied by the marketplace domain.
func (r *compareRequest) sourceItem() (*domain.SourceItem, error) {
	currency := domain.CurrencyForDomain(r.Domain)
	if r.Currency != "" {
		parsed, err := domain.ParseCurrency(r.Currency)
		if err != nil {
			return nil, err
		}
		currency = parsed
	}

	return &domain.SourceItem{
		ID:       r.ID,
		Title:    r.Title,
		Price:    r.Price,
		Currency: currency,
		ImageURL: r.ImageURL,
	}, nil
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cheapmatch-backend",
		"version": "1.0.0",
	})
}

// Compare handles POST /api/v1/compare
func (h *Handler) Compare(c *gin.Context) {
	if h.compareService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "compare service unavailable"})
		return
	}

	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, err := req.sourceItem()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.compareService.Compare(c.Request.Context(), item)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[HTTP] Compare failed for %s (request %s): %v", item.ID, c.GetString(requestIDKey), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
