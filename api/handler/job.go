package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fyerfyer/doc-structure-system/api/middleware"
	"github.com/fyerfyer/doc-structure-system/api/model"
	"github.com/fyerfyer/doc-structure-system/internal/models"
	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
	"github.com/fyerfyer/doc-structure-system/internal/services"
	"github.com/fyerfyer/doc-structure-system/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// JobHandler 处理结构化作业相关的API请求
type JobHandler struct {
	structureService *services.StructureService // 结构化服务
	fileStorage      storage.Storage            // 文件存储服务
	logger           *logrus.Logger             // 日志记录器
}

// NewJobHandler 创建新的作业处理器
func NewJobHandler(structureService *services.StructureService, fileStorage storage.Storage) *JobHandler {
	return &JobHandler{
		structureService: structureService,
		fileStorage:      fileStorage,
		logger:           middleware.GetLogger(),
	}
}

// UploadJob 处理文档上传请求，创建结构化作业
// POST /api/jobs
func (h *JobHandler) UploadJob(c *gin.Context) {
	// 绑定请求参数
	var req model.JobUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Invalid job upload request")

		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	// 检查文件
	if req.File == nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"未提供文件",
		))
		return
	}

	// 检查文件类型
	filename := req.File.Filename
	ext := filepath.Ext(filename)
	if !isValidFileType(ext) {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"不支持的文件类型，仅支持 .json, .md, .markdown",
		))
		return
	}

	// 解析可选的引擎配置
	var engineOptions *preprocess.Options
	if req.Options != "" {
		opts := preprocess.DefaultOptions()
		if err := json.Unmarshal([]byte(req.Options), &opts); err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(
				http.StatusBadRequest,
				"无效的结构化配置",
			))
			return
		}
		engineOptions = &opts
	}

	// 打开上传的文件
	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to open uploaded file")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"无法打开上传的文件",
		))
		return
	}
	defer file.Close()

	// 保存文件到存储
	fileInfo, err := h.fileStorage.Save(file, filename)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to save file")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"保存文件失败",
		))
		return
	}

	// 创建作业记录
	statusManager := h.structureService.GetStatusManager()
	if err := statusManager.MarkAsUploaded(c.Request.Context(), fileInfo.ID, filename, fileInfo.Path, fileInfo.Size); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"job_id": fileInfo.ID,
		}).Error("Failed to create job record")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"创建作业记录失败",
		))
		return
	}

	// 记录上传的标签
	if req.Tags != "" {
		if err := h.structureService.UpdateJobTags(c.Request.Context(), fileInfo.ID, req.Tags); err != nil {
			h.logger.WithError(err).Warn("Failed to record job tags")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"job_id":   fileInfo.ID,
		"filename": fileInfo.Name,
		"path":     fileInfo.Path,
		"size":     fileInfo.Size,
	}).Info("File uploaded successfully")

	// 启动处理任务
	go func() {
		h.logger.WithField("job_id", fileInfo.ID).Info("Starting job processing")
		ctx := context.Background()

		if err := h.structureService.ProcessJobWithOptions(ctx, fileInfo.ID, fileInfo.Path, engineOptions); err != nil {
			h.logger.WithFields(logrus.Fields{
				"error":  err.Error(),
				"job_id": fileInfo.ID,
			}).Error("Failed to process job")
		} else {
			h.logger.WithField("job_id", fileInfo.ID).Info("Job processed successfully")
		}
	}()

	// 返回作业ID和状态
	resp := model.JobUploadResponse{
		JobID:    fileInfo.ID,
		FileName: filename,
		Status:   string(models.JobStatusProcessing),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetJobStatus 获取作业处理状态
// GET /api/jobs/:id/status
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	// 绑定路径参数
	var req model.JobStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的作业ID"))
		return
	}

	// 获取作业信息
	job, err := h.structureService.GetStatusManager().GetJob(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"job_id": req.ID,
		}).Error("Failed to get job info")

		c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到作业或获取信息失败"))
		return
	}

	// 构建响应
	resp := model.JobStatusResponse{
		JobID:        job.ID,
		Status:       string(job.Status),
		FileName:     job.FileName,
		Progress:     job.Progress,
		Stage:        string(job.CurrentStage),
		SectionCount: job.SectionCount,
		GroupCount:   job.GroupCount,
		Error:        job.Error,
		CreatedAt:    job.UploadedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}

	if job.ProcessedAt != nil {
		resp.ProcessedAt = job.ProcessedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetJobResult 获取作业的结构化结果
// GET /api/jobs/:id/result
func (h *JobHandler) GetJobResult(c *gin.Context) {
	// 绑定路径参数
	var req model.JobResultRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的作业ID"))
		return
	}

	// 检查作业状态，错误交由错误处理中间件统一输出
	status, err := h.structureService.GetJobStatus(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("未找到作业"))
			return
		}

		h.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"job_id": req.ID,
		}).Error("Failed to get job status")

		middleware.HandleError(c, middleware.NewInternalError("获取作业状态失败"))
		return
	}

	if status != models.JobStatusCompleted {
		middleware.HandleError(c, middleware.NewConflictError("作业尚未完成，当前状态: "+string(status)))
		return
	}

	// 获取结构化结果
	result, err := h.structureService.GetJobResult(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"job_id": req.ID,
		}).Error("Failed to get job result")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取结构化结果失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(result))
}

// ListJobs 获取作业列表
// GET /api/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	// 绑定查询参数
	var req model.JobListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的查询参数"))
		return
	}

	// 构建过滤条件
	filterOptions := make(map[string]interface{})

	if req.Status != "" {
		filterOptions["status"] = req.Status
	}

	if req.Tags != "" {
		filterOptions["tags"] = req.Tags
	}

	if req.FileName != "" {
		filterOptions["file_name"] = req.FileName
	}

	if req.StartTime != nil {
		filterOptions["start_time"] = req.StartTime.Format(time.RFC3339)
	}

	if req.EndTime != nil {
		filterOptions["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	// 查询作业列表
	offset := (req.GetPage() - 1) * req.GetPageSize()
	jobs, total, err := h.structureService.ListJobs(c.Request.Context(), offset, req.GetPageSize(), filterOptions)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list jobs")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取作业列表失败",
		))
		return
	}

	// 构建分页响应
	resp := model.JobListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Jobs:     model.ConvertToJobInfo(jobs),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// UpdateJobTags 更新作业标签
// PUT /api/jobs/:id/tags
func (h *JobHandler) UpdateJobTags(c *gin.Context) {
	// 绑定路径参数
	var uriReq model.JobStatusRequest
	if err := c.ShouldBindUri(&uriReq); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的作业ID"))
		return
	}

	// 绑定请求体
	var req model.JobTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的标签参数"))
		return
	}

	// 更新标签
	if err := h.structureService.UpdateJobTags(c.Request.Context(), uriReq.ID, req.Tags); err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到作业"))
			return
		}

		h.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"job_id": uriReq.ID,
		}).Error("Failed to update job tags")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"更新作业标签失败",
		))
		return
	}

	resp := model.JobTagsResponse{
		JobID: uriReq.ID,
		Tags:  req.Tags,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// DeleteJob 删除作业
// DELETE /api/jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	// 绑定路径参数
	var req model.JobDeleteRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的作业ID"))
		return
	}

	// 删除作业
	err := h.structureService.DeleteJob(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"job_id": req.ID,
		}).Error("Failed to delete job")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"删除作业失败",
		))
		return
	}

	h.logger.WithField("job_id", req.ID).Info("Job deleted successfully")

	// 返回成功响应
	resp := model.JobDeleteResponse{
		Success: true,
		JobID:   req.ID,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// isValidFileType 检查文件类型是否有效
func isValidFileType(ext string) bool {
	validTypes := map[string]bool{
		".json":     true,
		".md":       true,
		".markdown": true,
	}
	return validTypes[ext]
}
