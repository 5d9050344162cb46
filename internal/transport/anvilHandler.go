package transport

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gin-gonic/gin"

	"github.com/slurpey/anvilizer/internal/entity"
)

// maxUploadBytes caps the decoded upload size before the image is decoded.
const maxUploadBytes = 50 << 20

type processRequest struct {
	ImageData string   `json:"imageData" binding:"required"`
	Ratio     string   `json:"ratio"`
	Colour    string   `json:"colour"`
	Opacity   *float64 `json:"opacity"`
	Scale     *float64 `json:"anvilScale"`
	OffsetX   *float64 `json:"anvilOffsetX"`
	OffsetY   *float64 `json:"anvilOffsetY"`
	Filename  string   `json:"filename"`
}

type advancedRequest struct {
	processRequest
	Style  string `json:"style" binding:"required"`
	Format string `json:"format"` // "image" (default) or "layers"
}

func (h *AnvilHandler) ProcessPreview(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	img, spec, err := decodeSubmission(req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	jobID, err := h.service.SubmitPreview(img, spec, req.Filename)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": entity.StatusQueued})
}

func (h *AnvilHandler) ProcessAdvanced(c *gin.Context) {
	var req advancedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	style, err := entity.ParseStyle(req.Style)
	if err != nil {
		abortWithError(c, err)
		return
	}

	img, spec, err := decodeSubmission(req.processRequest)
	if err != nil {
		abortWithError(c, err)
		return
	}

	layered := strings.EqualFold(req.Format, "layers")
	jobID, err := h.service.SubmitAdvanced(img, spec, style, layered, req.Filename)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": entity.StatusQueued})
}

func (h *AnvilHandler) JobStatus(c *gin.Context) {
	view, err := h.service.JobStatus(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := gin.H{
		"job_id": view.JobID,
		"kind":   view.Kind,
		"status": view.Status,
	}
	if view.Status == entity.StatusQueued {
		resp["position"] = view.Position
	}
	if view.ErrorDetail != "" {
		resp["error"] = view.ErrorDetail
	}
	if view.Status == entity.StatusDone && view.Result != nil {
		styles := gin.H{}
		for _, r := range view.Result.Styles {
			styles[string(r.Style)] = "/download/" + view.JobID + "/" + url.PathEscape(string(r.Style))
		}
		result := gin.H{
			"styles":     styles,
			"width":      view.Result.Width,
			"height":     view.Result.Height,
			"downscaled": view.Result.Downscaled,
		}
		if view.Result.ModelUsed != "" {
			result["model_used"] = view.Result.ModelUsed
		}
		if view.Result.Package != nil {
			result["layers"] = "/download_layers/" + view.JobID
		}
		resp["result"] = result
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AnvilHandler) CancelJob(c *gin.Context) {
	if err := h.service.CancelJob(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

func (h *AnvilHandler) DownloadStyle(c *gin.Context) {
	data, filename, err := h.service.StyleDownload(c.Param("uid"), c.Param("style"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	serveAttachment(c, data, filename, "image/png")
}

func (h *AnvilHandler) DownloadAll(c *gin.Context) {
	data, filename, err := h.service.DownloadAll(c.Param("uid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	serveAttachment(c, data, filename, "application/zip")
}

func (h *AnvilHandler) DownloadLayers(c *gin.Context) {
	data, filename, err := h.service.PackageDownload(c.Param("uid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	serveAttachment(c, data, filename, "application/zip")
}

func (h *AnvilHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}

func serveAttachment(c *gin.Context, data []byte, filename, contentType string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

// decodeSubmission turns the request into a decoded image and a validated
// spec with the documented defaults filled in.
func decodeSubmission(req processRequest) (image.Image, entity.AnvilSpec, error) {
	img, err := decodeDataURL(req.ImageData)
	if err != nil {
		return nil, entity.AnvilSpec{}, err
	}

	spec := entity.AnvilSpec{
		Scale:   0.7,
		Opacity: 0.5,
		Color:   entity.RGB{R: 0x00, G: 0x70, B: 0xF2},
		Ratio:   entity.Ratio16x9,
	}
	if req.Ratio != "" {
		if spec.Ratio, err = entity.ParseRatio(req.Ratio); err != nil {
			return nil, entity.AnvilSpec{}, err
		}
	}
	if req.Colour != "" {
		if spec.Color, err = entity.ParseHexColor(req.Colour); err != nil {
			return nil, entity.AnvilSpec{}, err
		}
	}
	if req.Opacity != nil {
		spec.Opacity = *req.Opacity
	}
	if req.Scale != nil {
		spec.Scale = *req.Scale
	}
	if req.OffsetX != nil {
		spec.OffsetX = *req.OffsetX
	}
	if req.OffsetY != nil {
		spec.OffsetY = *req.OffsetY
	}
	return img, spec, nil
}

// decodeDataURL validates and decodes a base64 image data URL.
func decodeDataURL(dataURL string) (image.Image, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return nil, fmt.Errorf("%w: must be an image data URL", entity.ErrInvalidImage)
	}
	parts := strings.SplitN(dataURL, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: malformed data URL", entity.ErrInvalidImage)
	}
	if len(parts[1]) > maxUploadBytes*4/3 {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", entity.ErrImageTooLarge, maxUploadBytes)
	}

	raw, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload", entity.ErrInvalidImage)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	return img, nil
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrInvalidSpec), errors.Is(err, entity.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrQueueOverflow):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "queue is full, retry later"})
	case errors.Is(err, entity.ErrJobNotFound), errors.Is(err, entity.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrJobNotQueued):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
