package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aisuite/internal/pkg/ctxutil"
	httputil "aisuite/internal/pkg/http"
	"aisuite/internal/pkg/jwt"
)

// Auth JWT 认证中间件
// 从 Authorization header 中提取 Bearer token，验证后把用户与工作空间写入 context
func Auth(jwtUtil *jwt.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "未授权"))
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "Invalid authorization header"))
			return
		}

		claims, err := jwtUtil.ValidateToken(tokenString)
		if err != nil {
			message := "Token无效"
			if errors.Is(err, jwt.ErrExpiredToken) {
				message = "Token已过期"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeInvalidToken, message))
			return
		}
		if claims.WorkspaceID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeInvalidToken, "Token缺少工作空间"))
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("workspace_id", claims.WorkspaceID)
		c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), claims.UserID, claims.WorkspaceID))

		c.Next()
	}
}
