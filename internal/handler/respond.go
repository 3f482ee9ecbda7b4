// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragpro-go/internal/apperr"
	"ragpro-go/internal/model"
)

// respondError 把业务错误映射为 HTTP 响应。
// 客户端可以根据 retryable 字段判断是否值得原样重试。
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	c.JSON(status, gin.H{
		"error":     err.Error(),
		"kind":      apperr.KindOf(err).String(),
		"retryable": apperr.IsRetryable(err),
	})
}

// statusOf 根据错误类别选择 HTTP 状态码。
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindExtraction:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindEmbedding, apperr.KindRerank, apperr.KindGeneration:
		return http.StatusBadGateway
	case apperr.KindIndex, apperr.KindRetrieval:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// currentUser 从上下文中取出认证中间件放入的用户对象。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}
