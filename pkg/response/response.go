// Package response 统一 HTTP JSON 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/quantpricing/pkg/logger"
)

// Response 响应体
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Success 200 响应
func Success(c *gin.Context, data any) {
	SuccessWithStatus(c, http.StatusOK, data)
}

// SuccessWithStatus 指定状态码的成功响应
func SuccessWithStatus(c *gin.Context, status int, data any) {
	c.JSON(status, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}

// ErrorWithStatus 错误响应，code 与 HTTP 状态码一致
func ErrorWithStatus(c *gin.Context, status int, message, details string) {
	ErrorWithData(c, status, message, details, nil)
}

// ErrorWithData 带数据的错误响应，例如未收敛时的最后一次估计
func ErrorWithData(c *gin.Context, status int, message, details string, data any) {
	c.AbortWithStatusJSON(status, Response{
		Code:      status,
		Message:   message,
		Data:      data,
		Details:   details,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}
