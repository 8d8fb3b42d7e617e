package provider

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/handler"
	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
	"github.com/medibook/booking-api/internal/service/availability"
	apperrors "github.com/medibook/booking-api/pkg/errors"
)

type Handler struct {
	repo            repository.ProviderRepository
	availabilitySvc *availability.Service
}

func NewHandler(repo repository.ProviderRepository, availabilitySvc *availability.Service) *Handler {
	return &Handler{repo: repo, availabilitySvc: availabilitySvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	providers := r.Group("/providers")
	{
		providers.GET("", h.ListProviders)
		providers.GET("/:id", h.GetProvider)
		providers.GET("/:id/availability", h.GetAvailability)
	}
}

func (h *Handler) ListProviders(c *gin.Context) {
	filter := &model.ProviderFilter{
		Specialty: c.Query("specialty"),
	}

	providers, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": providers})
}

func (h *Handler) GetProvider(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, apperrors.NewBadRequest("invalid provider ID", err))
		return
	}

	provider, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, apperrors.NewNotFound("provider", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": provider})
}

// GetAvailability serves GET /providers/:id/availability?month=2006-01
func (h *Handler) GetAvailability(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, apperrors.NewBadRequest("invalid provider ID", err))
		return
	}

	month := c.Query("month")
	if month == "" {
		handler.Error(c, apperrors.NewBadRequest("month is required", nil))
		return
	}

	avail, err := h.availabilitySvc.MonthAvailability(c.Request.Context(), id, month)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": avail})
}
