package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/sqlnb/internal/pkg/errcode"
	appErr "github.com/xxxsen/sqlnb/internal/pkg/errors"
	"github.com/xxxsen/sqlnb/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get("user_id")
	userID, _ := value.(string)
	return userID
}

// handleError answers with the errcode matching err. Failures that carry a
// list of messages (validation, format, storage) return the full list as
// data so the editor can show each one.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	detail := response.ErrorDetail{Errors: appErr.Messages(err)}
	var verr *appErr.ValidationError
	if errors.As(err, &verr) {
		detail.Warnings = verr.Warnings
	}
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTimeout):
		response.Fail(c, errcode.ErrTimeout, "storage timeout", detail)
	case errors.Is(err, appErr.ErrFormat):
		response.Fail(c, errcode.ErrFormat, "invalid document format", detail)
	case errors.Is(err, appErr.ErrValidation):
		response.Fail(c, errcode.ErrValidation, "document validation failed", detail)
	case errors.Is(err, appErr.ErrInvalid):
		response.Fail(c, errcode.ErrInvalid, "invalid request", detail)
	case errors.Is(err, appErr.ErrStorage):
		response.Fail(c, errcode.ErrStorage, "storage error", detail)
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
