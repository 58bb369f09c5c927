package controllers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	apperrors "marketplace-service/common/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const presignTimeout = 10 * time.Second

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Presigner is satisfied by *aws.S3Presigner.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (string, map[string]string, error)
	ObjectURL(key string) string
}

type PresignAttachmentRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// AttachmentController issues upload URLs for refund evidence. The refund
// itself only ever stores the resulting object URLs.
type AttachmentController struct {
	presigner Presigner
	logger    *zap.Logger
}

func NewAttachmentController(presigner Presigner, logger *zap.Logger) *AttachmentController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentController{presigner: presigner, logger: logger}
}

// Presign handles POST /refunds/attachments/presign.
func (ac *AttachmentController) Presign(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	if ac.presigner == nil {
		ctx.Error(apperrors.New(http.StatusServiceUnavailable, "attachment uploads are not configured", nil))
		return
	}

	var req PresignAttachmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}
	if !allowedAttachmentTypes[req.ContentType] {
		ctx.Error(apperrors.Validation("content type %q is not allowed", req.ContentType))
		return
	}
	filename := sanitizeFilename(req.Filename)
	if filename == "" {
		ctx.Error(apperrors.Validation("filename is required"))
		return
	}

	key := fmt.Sprintf("refunds/%s/%s-%s", userID, uuid.NewString(), filename)

	c, cancel := context.WithTimeout(ctx.Request.Context(), presignTimeout)
	defer cancel()

	uploadURL, headers, err := ac.presigner.PresignPut(c, key, req.ContentType)
	if err != nil {
		ac.logger.Error("Failed to generate presigned upload", zap.Error(err), zap.String("key", key))
		ctx.Error(apperrors.Storage("failed to generate upload url", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"uploadUrl": uploadURL,
		"method":    http.MethodPut,
		"headers":   headers,
		"key":       key,
		"url":       ac.presigner.ObjectURL(key),
	})
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
