package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

type IntegrationHandler struct {
	driver *services.Driver
}

func NewIntegrationHandler(driver *services.Driver) *IntegrationHandler {
	return &IntegrationHandler{driver: driver}
}

// RunwayStatus godoc
// @Summary     Video generator integration status
// @Description Reports whether generation is mocked, whether an API key is configured and which model is used
// @Tags        runway
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.RunwayStatusResponse
// @Router      /runway/status [get]
func (h *IntegrationHandler) RunwayStatus(c *gin.Context) {
	c.JSON(http.StatusOK, models.RunwayStatusResponse{
		Mock:          h.driver.Mode() == services.ModeMock,
		APIKeyPresent: h.driver.APIKeyPresent(),
		Model:         h.driver.Model(),
	})
}
