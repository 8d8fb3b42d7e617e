package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/handler"
	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/service/payment"
	apperrors "github.com/medibook/booking-api/pkg/errors"
)

type Handler struct {
	service *payment.Service
}

func NewHandler(service *payment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("/intent", h.CreateIntent)
		payments.GET("/:id", h.GetStatus)
		payments.GET("/verify/:orderID", h.VerifyByOrder)
	}
}

func (h *Handler) CreateIntent(c *gin.Context) {
	var req model.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, apperrors.NewBadRequest("invalid request body", err))
		return
	}

	intent, err := h.service.CreateIntent(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": intent})
}

// GetStatus re-reads the gateway and returns the persisted intent. The
// response body is what polling clients converge on.
func (h *Handler) GetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, apperrors.NewBadRequest("invalid intent ID", err))
		return
	}

	intent, err := h.service.SyncStatus(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": intent})
}

func (h *Handler) VerifyByOrder(c *gin.Context) {
	orderID := c.Param("orderID")
	if orderID == "" {
		handler.Error(c, apperrors.NewBadRequest("order ID is required", nil))
		return
	}

	intent, err := h.service.SyncStatusByOrderID(c.Request.Context(), orderID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": intent})
}
