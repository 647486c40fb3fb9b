package server

import (
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	jsonMediaTypeConstant              = "application/json"
	contentTypeHeaderConstant          = "Content-Type"
	unsupportedMediaTypeMessage        = "Content-Type must be application/json"
	logMessageRequestServedConstant    = "HTTP request served"
	logMessageRequestFailedConstant    = "HTTP request failed"
	logFieldMethodConstant             = "method"
	logFieldRequestPathConstant        = "path"
	logFieldStatusConstant             = "status"
	logFieldLatencyConstant            = "latency"
	logFieldClientAddressConstant      = "client_address"
	serverErrorStatusThresholdConstant = http.StatusInternalServerError
)

// requestLogger logs every request through zap; server errors are logged at warn level.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(requestContext *gin.Context) {
		startedAt := time.Now()
		requestContext.Next()

		fields := []zap.Field{
			zap.String(logFieldMethodConstant, requestContext.Request.Method),
			zap.String(logFieldRequestPathConstant, requestContext.Request.URL.Path),
			zap.Int(logFieldStatusConstant, requestContext.Writer.Status()),
			zap.Duration(logFieldLatencyConstant, time.Since(startedAt)),
			zap.String(logFieldClientAddressConstant, requestContext.ClientIP()),
		}
		if requestContext.Writer.Status() >= serverErrorStatusThresholdConstant {
			logger.Warn(logMessageRequestFailedConstant, fields...)
			return
		}
		logger.Debug(logMessageRequestServedConstant, fields...)
	}
}

// requireJSON rejects request bodies that are not declared as JSON.
func requireJSON() gin.HandlerFunc {
	return func(requestContext *gin.Context) {
		if requestContext.Request.Method != http.MethodPost {
			requestContext.Next()
			return
		}
		contentType := requestContext.GetHeader(contentTypeHeaderConstant)
		if len(contentType) > 0 {
			mediaType, _, parseError := mime.ParseMediaType(contentType)
			if parseError != nil || mediaType != jsonMediaTypeConstant {
				requestContext.AbortWithStatusJSON(http.StatusUnsupportedMediaType, errorResponse{Error: unsupportedMediaTypeMessage})
				return
			}
		}
		requestContext.Next()
	}
}
