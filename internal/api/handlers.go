package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meal-alert-service/internal/db"
	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/models"
)

// AlertStore is the record-store surface the API needs.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert models.Alert) error
	GetAlert(ctx context.Context, id string) (models.Alert, error)
	Acknowledge(ctx context.Context, id, by string) error
}

// Deliverer hands newly created alerts to the delivery orchestrator.
type Deliverer interface {
	DeliverWithRetry(ctx context.Context, alert models.Alert, maxRetries int) models.DeliveryReport
}

type Handler struct {
	store      AlertStore
	deliverer  Deliverer
	logger     *logging.Logger
	maxRetries int
}

func NewHandler(store AlertStore, deliverer Deliverer, logger *logging.Logger, maxRetries int) *Handler {
	return &Handler{store: store, deliverer: deliverer, logger: logger, maxRetries: maxRetries}
}

// CreateAlert raises an alert directly, bypassing the order-event topic.
// Delivery runs in the background; the retry loop can outlive the
// request by minutes.
func (h *Handler) CreateAlert(c *gin.Context) {
	var req struct {
		SourceOrderID string `json:"source_order_id" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Severity      string `json:"severity"`
		MealType      string `json:"meal_type"`
		ResidentName  string `json:"resident_name"`
		Room          string `json:"room"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid alert request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert := models.NewAlert(req.SourceOrderID, req.Message, models.ParseSeverity(req.Severity), models.OrderContext{
		MealType:     req.MealType,
		ResidentName: req.ResidentName,
		Room:         req.Room,
	})

	if err := h.store.CreateAlert(c.Request.Context(), alert); err != nil {
		h.logger.Errorf("Create alert failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	go h.deliverer.DeliverWithRetry(context.Background(), alert, h.maxRetries)

	h.logger.Infof("Created alert %s for order %s", alert.ID, alert.SourceOrderID)
	c.JSON(http.StatusCreated, alert)
}

// GetAlert fetches one alert by id.
func (h *Handler) GetAlert(c *gin.Context) {
	id := c.Param("id")
	alert, err := h.store.GetAlert(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Errorf("Get alert %s failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

// AckAlert records the acknowledgment transition. The fields are set
// exactly once; a repeat acknowledgment is rejected.
func (h *Handler) AckAlert(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		AcknowledgedBy string `json:"acknowledged_by" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := h.store.Acknowledge(c.Request.Context(), id, req.AcknowledgedBy)
	switch {
	case errors.Is(err, db.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
	case errors.Is(err, db.ErrAlreadyAcknowledged):
		c.JSON(http.StatusConflict, gin.H{"error": "Alert already acknowledged"})
	case err != nil:
		h.logger.Errorf("Acknowledge alert %s failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to acknowledge alert"})
	default:
		h.logger.Infof("Alert %s acknowledged by %s", id, req.AcknowledgedBy)
		c.JSON(http.StatusOK, gin.H{"message": "Alert acknowledged"})
	}
}
