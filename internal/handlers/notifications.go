package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/models"
)

const userNotificationLimit = 50

type NotificationsHandler struct {
	store *database.Store
}

func NewNotificationsHandler(store *database.Store) *NotificationsHandler {
	return &NotificationsHandler{store: store}
}

// ListNotifications godoc
// @Summary     List notifications
// @Description Returns the caller's latest notifications, newest first
// @Tags        notifications
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.NotificationListResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /notifications [get]
func (h *NotificationsHandler) ListNotifications(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	notifications, err := h.store.ListNotificationsByUser(c.Request.Context(), userID, userNotificationLimit)
	if err != nil {
		writeError(c, "failed to list notifications", err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	c.JSON(http.StatusOK, models.NotificationListResponse{Notifications: notifications})
}

// MarkRead godoc
// @Summary     Mark notification read
// @Tags        notifications
// @Security    Bearer
// @Param       notification_id path int true "Notification ID"
// @Success     204
// @Failure     404 {object} models.ErrorResponse
// @Router      /notifications/{notification_id}/read [post]
func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	notificationID, ok := parseIDParam(c, "notification_id")
	if !ok {
		return
	}

	if err := h.store.MarkNotificationRead(c.Request.Context(), userID, notificationID); err != nil {
		writeError(c, "failed to mark notification", err)
		return
	}
	c.Status(http.StatusNoContent)
}
