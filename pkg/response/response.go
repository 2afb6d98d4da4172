package response

import (
	"errors"
	"fmt"
	"net/http"

	"anoa.com/runclub/pkg/apperror"
	"anoa.com/runclub/pkg/dto"
	"anoa.com/runclub/pkg/ratelimiter"
	"anoa.com/runclub/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	str, ok := userIDStr.(string)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// IsAdmin reports whether the auth middleware marked the caller as admin.
func IsAdmin(c *gin.Context) bool {
	return c.GetString("user_role") == "admin"
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	var rateErr *ratelimiter.RateLimitError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", fmt.Sprintf("%.0f", rateErr.RetryAfter.Seconds()))
	}

	// Log internal errors
	if code == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("internal error")
		c.JSON(code, gin.H{"error": apperror.ErrInternal.Error()})
		return
	}

	c.JSON(code, gin.H{"error": err.Error()})
}

// ResponseBindError reports a request binding failure as 400.
func ResponseBindError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		ResponseError(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
}

// OptionalFile opens an optional multipart file. The returned close func is
// always safe to call.
func OptionalFile(c *gin.Context, field string) (*dto.UploadFile, func(), error) {
	fileHeader, err := c.FormFile(field)
	if err != nil || fileHeader == nil {
		return nil, func() {}, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, func() {}, apperror.Invalid("failed to read " + field)
	}

	return &dto.UploadFile{Reader: file, FileName: fileHeader.Filename}, func() { _ = file.Close() }, nil
}
