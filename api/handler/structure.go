package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fyerfyer/doc-structure-system/api/middleware"
	"github.com/fyerfyer/doc-structure-system/api/model"
	"github.com/fyerfyer/doc-structure-system/internal/ingest"
	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
	"github.com/fyerfyer/doc-structure-system/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StructureHandler 处理同步结构化请求
// 直接接收页面跨度数据，在请求内完成结构化并返回结果
type StructureHandler struct {
	structureService *services.StructureService // 结构化服务
	logger           *logrus.Logger             // 日志记录器
}

// NewStructureHandler 创建新的结构化处理器
func NewStructureHandler(structureService *services.StructureService) *StructureHandler {
	return &StructureHandler{
		structureService: structureService,
		logger:           middleware.GetLogger(),
	}
}

// StructureSpans 对提交的页面跨度执行结构化
// POST /api/structure
func (h *StructureHandler) StructureSpans(c *gin.Context) {
	// 绑定请求参数
	var req model.StructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid structure request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	// 执行结构化
	result, err := h.structureService.StructureSpans(c.Request.Context(), req.Pages, req.Options)
	if err != nil {
		// 输入内容无效返回400
		if errors.Is(err, preprocess.ErrInvalidContent) {
			h.logger.WithError(err).Warn("Structure request with invalid content")
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(
				http.StatusBadRequest,
				"无效的文档内容: "+err.Error(),
			))
			return
		}

		h.logger.WithError(err).Error("Failed to structure spans")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"结构化处理失败",
		))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"section_count": result.Stats.SectionCount,
		"group_count":   result.Stats.GroupCount,
		"warning_count": len(result.Warnings),
	}).Info("Structure request completed")

	c.JSON(http.StatusOK, model.NewSuccessResponse(result))
}

// StructureMarkdown 对提交的Markdown文本执行结构化
// POST /api/structure/markdown
func (h *StructureHandler) StructureMarkdown(c *gin.Context) {
	// 绑定请求参数
	var req model.MarkdownStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid markdown structure request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	// 将Markdown转换为页面跨度
	pages, err := ingest.NewMarkdownLoader().LoadReader(strings.NewReader(req.Content), "request.md")
	if err != nil {
		h.logger.WithError(err).Warn("Failed to parse markdown content")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的Markdown内容: "+err.Error(),
		))
		return
	}

	// 执行结构化
	result, err := h.structureService.StructureSpans(c.Request.Context(), pages, req.Options)
	if err != nil {
		if errors.Is(err, preprocess.ErrInvalidContent) {
			h.logger.WithError(err).Warn("Markdown request with invalid content")
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(
				http.StatusBadRequest,
				"无效的文档内容: "+err.Error(),
			))
			return
		}

		h.logger.WithError(err).Error("Failed to structure markdown")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"结构化处理失败",
		))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"page_count":    len(pages),
		"section_count": result.Stats.SectionCount,
		"group_count":   result.Stats.GroupCount,
	}).Info("Markdown structure request completed")

	c.JSON(http.StatusOK, model.NewSuccessResponse(result))
}
