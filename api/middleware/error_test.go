package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyerfyer/doc-structure-system/api/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupErrorTestRouter 创建带错误处理中间件的测试路由
func setupErrorTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SetTraceID())
	router.Use(ErrorHandler())
	return router
}

// doErrorRequest 发起请求并解析统一响应
func doErrorRequest(t *testing.T, router *gin.Engine, path string) (int, model.Response) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var resp model.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

// TestErrorMiddlewareAppErrors 测试各类应用错误映射到对应状态码
func TestErrorMiddlewareAppErrors(t *testing.T) {
	router := setupErrorTestRouter()
	router.GET("/validation", func(c *gin.Context) {
		HandleError(c, NewValidationError("无效的请求参数", "missing file"))
	})
	router.GET("/notfound", func(c *gin.Context) {
		HandleError(c, NewNotFoundError("未找到作业"))
	})
	router.GET("/conflict", func(c *gin.Context) {
		HandleError(c, NewConflictError("作业尚未完成"))
	})
	router.GET("/internal", func(c *gin.Context) {
		HandleError(c, NewInternalError("获取作业状态失败"))
	})

	cases := []struct {
		path    string
		code    int
		message string
	}{
		{"/validation", http.StatusBadRequest, "无效的请求参数"},
		{"/notfound", http.StatusNotFound, "未找到作业"},
		{"/conflict", http.StatusConflict, "作业尚未完成"},
		{"/internal", http.StatusInternalServerError, "获取作业状态失败"},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			code, resp := doErrorRequest(t, router, tc.path)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.code, resp.Code)
			assert.Equal(t, tc.message, resp.Message)
			assert.NotEmpty(t, resp.TraceID)
		})
	}
}

// TestErrorMiddlewareUnclassified 测试未归类错误按内部错误处理
func TestErrorMiddlewareUnclassified(t *testing.T) {
	router := setupErrorTestRouter()
	router.GET("/plain", func(c *gin.Context) {
		HandleError(c, errors.New("database gone"))
	})

	code, resp := doErrorRequest(t, router, "/plain")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotEmpty(t, resp.TraceID)
}

// TestErrorMiddlewarePanicRecovery 测试panic恢复并返回500
func TestErrorMiddlewarePanicRecovery(t *testing.T) {
	router := setupErrorTestRouter()
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected state")
	})

	code, resp := doErrorRequest(t, router, "/panic")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NotEmpty(t, resp.TraceID)
}

// TestAppErrorMessage 测试错误文本包含类型与详情
func TestAppErrorMessage(t *testing.T) {
	withDetails := NewValidationError("无效的请求参数", "file missing", "tags malformed")
	assert.Contains(t, withDetails.Error(), ErrorTypeValidation)
	assert.Contains(t, withDetails.Error(), "file missing; tags malformed")

	plain := NewNotFoundError("未找到作业")
	assert.Contains(t, plain.Error(), ErrorTypeNotFound)
	assert.NotContains(t, plain.Error(), "(")
}
