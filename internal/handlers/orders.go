package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

type OrdersHandler struct {
	status   *services.StatusService
	payments *services.PaymentService
	logger   *zap.Logger
}

func NewOrdersHandler(status *services.StatusService, payments *services.PaymentService, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		status:   status,
		payments: payments,
		logger:   logger,
	}
}

// ListOrders godoc
// @Summary     List orders
// @Description Returns the caller's orders, newest first, with the current video of every image.
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.OrderListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders [get]
func (h *OrdersHandler) ListOrders(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	views, err := h.status.UserOrders(c.Request.Context(), userID)
	if err != nil {
		writeError(c, "failed to list orders", err)
		return
	}

	resp := models.OrderListResponse{Orders: make([]models.OrderResponse, 0, len(views))}
	for _, view := range views {
		resp.Orders = append(resp.Orders, orderResponse(view))
	}
	c.JSON(http.StatusOK, resp)
}

// GetOrder godoc
// @Summary     Get order
// @Description Returns one order with the current video of every image.
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       order_id path int true "Order ID"
// @Success     200 {object} models.OrderResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{order_id} [get]
func (h *OrdersHandler) GetOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "order_id")
	if !ok {
		return
	}

	view, err := h.status.OrderView(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, "failed to load order", err)
		return
	}
	if !canAccess(c, view.Order.UserID) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "access denied"})
		return
	}
	c.JSON(http.StatusOK, orderResponse(*view))
}

// Reorder godoc
// @Summary     Reorder
// @Description Opens a new order repeating the given one. Processing starts once the reorder payment succeeds.
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       order_id path int true "Order ID to repeat"
// @Success     201 {object} models.OrderResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{order_id}/reorder [post]
func (h *OrdersHandler) Reorder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "order_id")
	if !ok {
		return
	}

	order, err := h.payments.CreateReorder(c.Request.Context(), orderID, userID)
	if err != nil {
		writeError(c, "failed to create reorder", err)
		return
	}
	h.logger.Info("reorder created", zap.Uint("order_id", order.ID), zap.Uint("parent_order_id", orderID))

	c.JSON(http.StatusCreated, models.OrderResponse{
		ID:            order.ID,
		Package:       order.Package,
		AddOns:        models.RawJSON(order.AddOns),
		ParentOrderID: order.ParentOrderID,
		Status:        models.OrderSubmitted,
		Videos:        []models.VideoSummary{},
		CreatedAt:     order.CreatedAt,
	})
}

func orderResponse(view services.OrderView) models.OrderResponse {
	resp := models.OrderResponse{
		ID:            view.Order.ID,
		Package:       view.Order.Package,
		AddOns:        models.RawJSON(view.Order.AddOns),
		ParentOrderID: view.Order.ParentOrderID,
		Status:        view.Status,
		Videos:        make([]models.VideoSummary, 0, len(view.Images)),
		CreatedAt:     view.Order.CreatedAt,
	}
	for _, iv := range view.Images {
		summary := models.VideoSummary{
			ImageID:  iv.Image.ID,
			Filename: iv.Image.Filename,
			Status:   models.VideoQueued,
		}
		if iv.Video != nil {
			id := iv.Video.ID
			summary.VideoID = &id
			summary.Iteration = iv.Video.Iteration
			summary.Status = iv.Video.Status
			summary.VideoURL = iv.Video.VideoURL
		}
		resp.Videos = append(resp.Videos, summary)
	}
	return resp
}
