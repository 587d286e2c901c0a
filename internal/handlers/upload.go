package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"tour-video-backend/internal/models"
	"tour-video-backend/internal/services"
)

const maxImageBytes = 25 << 20

type UploadHandler struct {
	intake *services.IntakeService
	logger *zap.Logger
}

func NewUploadHandler(intake *services.IntakeService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{intake: intake, logger: logger}
}

// Upload godoc
// @Summary     Upload an image batch for a package
// @Description Creates an order for the package and queues one video per image.
// @Description Starter takes 5-10 images, Professional 11-20 and Premium 21-30.
// @Description Processing runs in the background; poll the order status endpoint.
// @Tags        upload
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       package formData string true "Package tier (starter, professional, premium)"
// @Param       add_ons formData string false "Comma-separated add-ons"
// @Param       files formData file true "Images (multiple files allowed)"
// @Success     202 {object} models.UploadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.intake == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "intake service not available"})
		return
	}

	// Set max memory for multipart form (32MB)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse multipart form",
			Message: err.Error(),
		})
		return
	}
	form := c.Request.MultipartForm

	// Try multiple common field names
	var headers []*multipart.FileHeader
	fieldNames := []string{"files", "file", "images", "image", "photos", "photo"}
	for _, fieldName := range fieldNames {
		if f := form.File[fieldName]; len(f) > 0 {
			headers = f
			break
		}
	}
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no files uploaded",
			Message: fmt.Sprintf("please provide files with one of these field names: %v", fieldNames),
		})
		return
	}

	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		file, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "failed to read file",
				Message: err.Error(),
			})
			return
		}
		files = append(files, file)
	}

	addOns := splitAddOns(c.PostForm("add_ons"))
	handle, err := h.intake.SubmitBatch(c.Request.Context(), services.SubmitBatchInput{
		UserID:  callerID(c),
		Package: c.PostForm("package"),
		AddOns:  addOns,
		Files:   files,
	})
	if err != nil {
		if handle != nil {
			h.logger.Error("batch partially persisted", zap.Uint("order_id", handle.OrderID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "failed to save all images",
				Message: fmt.Sprintf("order %d kept %d images: %v", handle.OrderID, len(handle.ImageIDs), err),
			})
			return
		}
		writeError(c, "upload rejected", err)
		return
	}

	resp := models.UploadResponse{
		OrderID: handle.OrderID,
		Package: handle.Package,
		AddOns:  addOns,
		Status:  models.OrderSubmitted,
		Images:  make([]models.ImageInfo, 0, len(handle.ImageIDs)),
	}
	for i, imageID := range handle.ImageIDs {
		resp.Images = append(resp.Images, models.ImageInfo{
			ImageID:  imageID,
			VideoID:  handle.VideoIDs[i],
			Filename: headers[i].Filename,
		})
	}
	c.JSON(http.StatusAccepted, resp)
}

func readUpload(fh *multipart.FileHeader) (services.UploadFile, error) {
	if fh.Size > maxImageBytes {
		return services.UploadFile{}, fmt.Errorf("%s exceeds %d MB", fh.Filename, maxImageBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return services.UploadFile{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return services.UploadFile{}, err
	}
	return services.UploadFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     data,
	}, nil
}

func splitAddOns(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
