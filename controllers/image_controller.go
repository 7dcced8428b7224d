package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devlog/devblog/config"
	"github.com/devlog/devblog/storage"
	"github.com/devlog/devblog/utils"
)

// MaxUploadSize caps a single image upload grant at 10 MiB.
const MaxUploadSize = 10 * 1024 * 1024

// ImageController exposes the upload-grant and resize endpoints of the image
// lifecycle. The grant's constraints are enforced only through the signed
// URL; the uploaded bytes themselves are never inspected here.
type ImageController struct {
	images *storage.ImageManager
}

// NewImageController creates an ImageController.
func NewImageController(images *storage.ImageManager) *ImageController {
	return &ImageController{images: images}
}

// PresignUpload validates the declared file metadata and returns a
// time-limited signed upload URL plus the temporary object key.
func (i *ImageController) PresignUpload(ctx *gin.Context) {
	var req struct {
		FileName string `json:"file_name"`
		FileType string `json:"file_type"`
		FileSize int64  `json:"file_size"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	if req.FileName == "" || req.FileType == "" || req.FileSize == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40041, "file_name, file_type and file_size are required")
		return
	}
	if req.FileSize > MaxUploadSize {
		utils.Error(ctx, http.StatusBadRequest, 40042, "file size cannot exceed 10MB")
		return
	}
	if !strings.HasPrefix(req.FileType, "image/") {
		utils.Error(ctx, http.StatusBadRequest, 40043, "only image files can be uploaded")
		return
	}

	expiry := time.Duration(config.Get().PresignExpirySec) * time.Second
	url, key, err := i.images.PresignUpload(req.FileName, req.FileType, expiry)
	if err != nil {
		utils.Sugar.Errorf("presign upload for %s: %v", req.FileName, err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to create upload grant")
		return
	}

	utils.Success(ctx, gin.H{"presigned_url": url, "s3_key": key})
}

// Resize produces a bounded thumbnail of an uploaded temporary object and
// returns its public CDN URL. Absence of a URL means the whole operation
// failed; no partial result is returned.
func (i *ImageController) Resize(ctx *gin.Context) {
	var req struct {
		S3Key string `json:"s3_key"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.S3Key) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40044, "s3_key is required")
		return
	}

	url, err := i.images.Resize(req.S3Key)
	if err != nil {
		utils.Sugar.Errorf("resize %s: %v", req.S3Key, err)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to upload resized image")
		return
	}

	utils.Success(ctx, gin.H{"image_url": url})
}
