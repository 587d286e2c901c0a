package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

type StatusHandler struct {
	status *services.StatusService
}

func NewStatusHandler(status *services.StatusService) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetOrderStatus godoc
// @Summary     Get order status
// @Description Returns the aggregate status of an order: submitted, processing, completed or failed.
// @Tags        status
// @Produce     json
// @Param       order_id path int true "Order ID"
// @Success     200 {object} models.OrderStatusResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{order_id}/status [get]
func (h *StatusHandler) GetOrderStatus(c *gin.Context) {
	orderID, ok := parseIDParam(c, "order_id")
	if !ok {
		return
	}

	view, err := h.status.OrderView(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, "failed to get order status", err)
		return
	}
	if !canAccess(c, view.Order.UserID) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "access denied"})
		return
	}

	c.JSON(http.StatusOK, models.OrderStatusResponse{OrderID: orderID, Status: view.Status})
}
