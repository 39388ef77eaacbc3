package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/sqlnb/internal/pkg/errcode"
	"github.com/xxxsen/sqlnb/internal/pkg/jwt"
	"github.com/xxxsen/sqlnb/internal/pkg/response"
)

const ContextUserIDKey = "user_id"

// JWTAuth requires a token signed with secret. GET requests may pass it as
// ?access_token= so export links work as plain downloads. An empty secret
// turns authentication off for a single user running the server locally.
func JWTAuth(secret []byte) gin.HandlerFunc {
	if len(secret) == 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		token, err := jwt.BearerToken(c.GetHeader("Authorization"))
		if err != nil && c.Request.Method == http.MethodGet {
			if q := c.Query("access_token"); q != "" {
				token, err = q, nil
			}
		}
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(token, secret)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Debug("reject token", zap.Error(err))
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}
