package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-resilient-api/internal/http/middleware"
	"github.com/tbourn/go-resilient-api/internal/resilience"
	"github.com/tbourn/go-resilient-api/internal/services"
)

// CreateUpload godoc
// @ID          createUpload
// @Summary     Upload a file
// @Description Hashes the multipart "file" field and records its metadata.
// @Tags        Uploads
// @Accept      multipart/form-data
// @Produce     json
// @Param       file  formData  file  true  "File to upload"
// @Success     201   {object}  domain.Upload
// @Failure     413   {object}  resilience.ErrorEnvelope  "Payload too large"
// @Failure     422   {object}  resilience.ErrorEnvelope  "Missing file"
// @Router      /uploads [post]
func (h *Handlers) CreateUpload(c *gin.Context) (any, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, services.ErrPayloadTooLarge
		}
		return nil, resilience.Validation("Validation failed", map[string]any{"file": "required"})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	u, err := h.uploads.Save(c.Request.Context(), fh.Filename, f)
	if err != nil {
		return nil, err
	}
	return middleware.Created(u), nil
}
