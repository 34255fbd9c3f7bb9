package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medibook-server/internal/external"
	"medibook-server/internal/utils"
)

// Content types accepted per upload kind, after sniffing the file itself.
var (
	prescriptionTypes = []string{"application/pdf", "image/png", "image/jpeg", "image/webp"}
	imageTypes        = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}
)

// UploadHandler stores uploaded files in object storage.
type UploadHandler struct {
	Storage  external.Storage
	MaxBytes int64
	Log      zerolog.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(storage external.Storage, maxBytes int64, logger zerolog.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &UploadHandler{Storage: storage, MaxBytes: maxBytes, Log: logger}
}

// UploadResponse describes a stored file.
type UploadResponse struct {
	URL         string `json:"url"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// UploadPrescription accepts a PDF or image in the "file" form field.
func (h *UploadHandler) UploadPrescription(c *gin.Context) {
	h.upload(c, "prescriptions", prescriptionTypes)
}

// UploadImage accepts an image in the "file" form field.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	h.upload(c, "images", imageTypes)
}

func (h *UploadHandler) upload(c *gin.Context, folder string, allowed []string) {
	// Leave room for the multipart envelope around the file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(c, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		utils.BadRequest(c, "A file is required in the \"file\" form field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.MaxBytes+1))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	if int64(len(data)) > h.MaxBytes {
		utils.Error(c, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}
	if len(data) == 0 {
		utils.BadRequest(c, "File is empty")
		return
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowed...) {
		utils.Error(c, http.StatusUnsupportedMediaType, "Unsupported file type")
		return
	}

	name := folder + "/" + uuid.New().String() + mtype.Extension()
	url, err := h.Storage.Upload(c.Request.Context(), name, mtype.String(), data)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, "File uploaded successfully", UploadResponse{
		URL:         url,
		FileName:    header.Filename,
		ContentType: mtype.String(),
		Size:        len(data),
	})
}
