package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"aisuite/internal/pkg/id"
)

// RequestIDHeader 请求ID响应头
const RequestIDHeader = "X-Request-ID"

// RequestID 为每个请求分配ID，并挂到请求 context 的 logger 上
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		logger := zerolog.Ctx(c.Request.Context()).With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		c.Next()
	}
}
