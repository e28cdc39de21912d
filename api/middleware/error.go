package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/doc-structure-system/api/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 作业API使用的错误类型常量
const (
	ErrorTypeValidation = "VALIDATION_ERROR" // 请求参数校验错误
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"  // 作业或任务不存在
	ErrorTypeConflict   = "CONFLICT_ERROR"   // 作业状态不满足操作条件
	ErrorTypeInternal   = "INTERNAL_ERROR"   // 内部服务器错误
)

// AppError 应用错误
// 携带错误类型和对应的HTTP状态码，由错误处理中间件统一转换为响应
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建请求参数校验错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewConflictError 创建状态冲突错误
// 作业未达到操作要求的状态时使用，例如结果尚未生成
func NewConflictError(message string) AppError {
	return AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Code:    http.StatusConflict,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// ErrorMiddleware 统一错误处理中间件
// 恢复panic并将处理器通过HandleError记录的错误转换为统一响应
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"error": r,
					"stack": string(debug.Stack()),
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				resp := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					resp.Message = fmt.Sprintf("Panic: %v", r)
				}
				resp.TraceID = traceIDFromContext(c)

				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		traceID := traceIDFromContext(c)

		var appErr AppError
		if errors.As(err, &appErr) {
			log.WithFields(logrus.Fields{
				"error_type": appErr.Type,
				"trace_id":   traceID,
				"path":       c.Request.URL.Path,
			}).Error(appErr.Message)

			resp := model.NewErrorResponse(appErr.Code, appErr.Message)
			resp.TraceID = traceID
			c.JSON(appErr.Code, resp)
			c.Abort()
			return
		}

		// 未归类的错误一律按内部错误处理
		log.WithFields(logrus.Fields{
			"trace_id": traceID,
			"path":     c.Request.URL.Path,
		}).Error(err.Error())

		resp := model.NewErrorResponse(http.StatusInternalServerError, "Internal server error")
		resp.TraceID = traceID
		if gin.Mode() == gin.DebugMode {
			resp.Message = err.Error()
		}

		c.JSON(http.StatusInternalServerError, resp)
		c.Abort()
	}
}

// traceIDFromContext 读取请求上下文中的追踪ID
func traceIDFromContext(c *gin.Context) string {
	if value, exists := c.Get("TraceID"); exists {
		if traceID, ok := value.(string); ok {
			return traceID
		}
	}
	return ""
}

// HandleError 处理器内记录错误，由错误处理中间件统一输出响应
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}

// ErrorHandler 路由装配使用的错误处理中间件
func ErrorHandler() gin.HandlerFunc {
	return ErrorMiddleware()
}
