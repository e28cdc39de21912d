package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fyerfyer/doc-structure-system/internal/database"
	"github.com/fyerfyer/doc-structure-system/internal/models"
	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
	"github.com/fyerfyer/doc-structure-system/internal/repository"
	"github.com/fyerfyer/doc-structure-system/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// AsyncStructureOptions 异步结构化处理的选项
type AsyncStructureOptions struct {
	EngineOptions *preprocess.Options // 结构化引擎配置，nil时使用服务默认配置
	Metadata      map[string]string   // 元数据
	Priority      string              // 任务优先级
}

// DefaultAsyncOptions 返回默认的异步处理选项
func DefaultAsyncOptions() *AsyncStructureOptions {
	return &AsyncStructureOptions{
		Priority: "default",
		Metadata: make(map[string]string), // 初始化一个空map，避免nil错误
	}
}

// AsyncOption 异步选项函数类型
type AsyncOption func(*AsyncStructureOptions)

// WithStructureOptions 设置结构化引擎配置
func WithStructureOptions(options preprocess.Options) AsyncOption {
	return func(o *AsyncStructureOptions) {
		o.EngineOptions = &options
	}
}

// WithJobMetadata 设置元数据
func WithJobMetadata(metadata map[string]string) AsyncOption {
	return func(o *AsyncStructureOptions) {
		o.Metadata = metadata
	}
}

// WithPriority 设置任务优先级
func WithPriority(priority string) AsyncOption {
	return func(o *AsyncStructureOptions) {
		o.Priority = priority
	}
}

// EnableAsyncProcessing 启用异步处理
func (s *StructureService) EnableAsyncProcessing(queue taskqueue.Queue) {
	s.asyncEnabled = true
	s.taskQueue = queue

	// 确保重要依赖已设置
	if s.statusManager == nil {
		s.logger.Warn("Status manager not set, creating default one")
		if s.repo == nil {
			s.repo = repository.NewStructureJobRepository()
		}
		s.statusManager = NewJobStatusManager(s.repo, s.logger)
	}

	// 使用已有的数据库连接和新的队列重建仓储，删除作业时可以级联清理任务
	s.repo = repository.NewStructureJobRepositoryWithQueue(database.DB, queue)

	// 注册任务回调处理器，替代默认处理器
	s.registerTaskHandlers()

	s.logger.Info("Async structure processing enabled")
}

// DisableAsyncProcessing 禁用异步处理
func (s *StructureService) DisableAsyncProcessing() {
	s.asyncEnabled = false
	s.logger.Info("Async structure processing disabled")
}

// processJobAsync 异步处理结构化作业
// 将任务加入队列并立即返回
func (s *StructureService) processJobAsync(ctx context.Context, jobID string, filePath string, options *AsyncStructureOptions) error {
	s.logger.WithFields(logrus.Fields{
		"job_id":    jobID,
		"file_path": filePath,
	}).Info("Enqueuing job for async structuring")

	if !s.asyncEnabled || s.taskQueue == nil {
		return fmt.Errorf("async processing not enabled or task queue not configured")
	}

	// 确保有选项
	if options == nil {
		options = DefaultAsyncOptions()
	}

	// 更新作业状态为处理中
	if err := s.statusManager.MarkAsProcessing(ctx, jobID); err != nil {
		s.logger.WithError(err).Error("Failed to mark job as processing")
		return fmt.Errorf("failed to update job status: %w", err)
	}

	// 创建任务载荷
	fileName := filepath.Base(filePath)
	fileType := getFileType(fileName)

	engineOptions := s.engineOptions
	if options.EngineOptions != nil {
		engineOptions = *options.EngineOptions
	}

	optionsJSON, err := json.Marshal(engineOptions)
	if err != nil {
		return fmt.Errorf("failed to marshal engine options: %w", err)
	}

	metadata := options.Metadata
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata["source"] = "api"
	metadata["created_by"] = "structure_service"

	payload := taskqueue.StructurePayload{
		JobID:    jobID,
		FilePath: filePath,
		FileName: fileName,
		FileType: fileType,
		Options:  optionsJSON,
		Metadata: metadata,
	}

	// 将任务加入队列
	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskStructureDocument, jobID, payload)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("failed to enqueue structure task: %v", err))
		return fmt.Errorf("failed to enqueue structure task: %w", err)
	}

	// 记录当前任务ID和阶段
	if job, err := s.statusManager.GetJob(ctx, jobID); err == nil {
		job.CurrentTaskID = taskID
		job.CurrentStage = models.StageLoading
		if err := s.repo.Update(job); err != nil {
			s.logger.WithError(err).Warn("Failed to record task id on job")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":  jobID,
		"task_id": taskID,
	}).Info("Structure task created successfully")

	return nil
}

// ProcessJobAsync 异步处理结构化作业
func (s *StructureService) ProcessJobAsync(ctx context.Context, jobID string, filePath string, opts ...AsyncOption) error {
	options := DefaultAsyncOptions()

	// 应用选项
	for _, opt := range opts {
		opt(options)
	}

	return s.processJobAsync(ctx, jobID, filePath, options)
}

// registerTaskHandlers 注册任务回调处理器
func (s *StructureService) registerTaskHandlers() {
	if s.taskQueue == nil {
		s.logger.Warn("Task queue not available, cannot register handlers")
		return
	}

	// 获取共享处理器
	processor := taskqueue.GetSharedCallbackProcessor(s.taskQueue, s.logger)

	// 注册结构化任务处理器
	processor.RegisterHandler(taskqueue.TaskStructureDocument, s.handleStructureResult)

	s.logger.Info("Registered structure task handlers")
}

// handleStructureResult 处理结构化任务的回调结果
func (s *StructureService) handleStructureResult(ctx context.Context, task *taskqueue.Task, result json.RawMessage) error {
	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"job_id":  task.JobID,
	}).Info("Handling structure task result")

	// 解析结果
	var structureResult taskqueue.StructureResult
	if err := json.Unmarshal(result, &structureResult); err != nil {
		return fmt.Errorf("failed to unmarshal structure result: %w", err)
	}

	// 处理明显的错误
	if structureResult.Error != "" {
		s.logger.WithFields(logrus.Fields{
			"job_id": task.JobID,
			"error":  structureResult.Error,
		}).Error("Structure task failed with error")

		if err := s.statusManager.MarkAsFailed(ctx, task.JobID, structureResult.Error); err != nil {
			s.logger.WithError(err).Error("Failed to mark job as failed")
		}
		return fmt.Errorf("structure task failed: %s", structureResult.Error)
	}

	// 标记作业为已完成
	if err := s.statusManager.MarkAsCompleted(ctx, task.JobID, structureResult.SectionCount, structureResult.GroupCount); err != nil {
		s.logger.WithError(err).Error("Failed to mark job as completed")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":        task.JobID,
		"section_count": structureResult.SectionCount,
		"group_count":   structureResult.GroupCount,
		"page_count":    structureResult.PageCount,
	}).Info("Structure job completed successfully")

	return nil
}

// WaitForTaskResult 等待任务完成并返回结果
func (s *StructureService) WaitForTaskResult(ctx context.Context, taskID string, timeout time.Duration) (*taskqueue.Task, error) {
	if !s.asyncEnabled || s.taskQueue == nil {
		return nil, fmt.Errorf("async processing not enabled or task queue not configured")
	}

	// 设置超时上下文
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 等待任务完成
	task, err := s.taskQueue.WaitForTask(ctx, taskID, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for task: %w", err)
	}

	// 检查任务状态
	if task.Status == taskqueue.StatusFailed {
		return task, fmt.Errorf("task failed: %s", task.Error)
	}

	return task, nil
}

// GetJobTasks 获取作业相关的任务列表
func (s *StructureService) GetJobTasks(ctx context.Context, jobID string) ([]*taskqueue.Task, error) {
	if !s.asyncEnabled || s.taskQueue == nil {
		return nil, fmt.Errorf("async processing not enabled or task queue not configured")
	}

	return s.taskQueue.GetTasksByJob(ctx, jobID)
}

// StructureTaskHandler 结构化任务处理器
// 在工作者进程中执行完整的结构化流水线
type StructureTaskHandler struct {
	service *StructureService
	logger  *logrus.Logger
}

// NewStructureTaskHandler 创建结构化任务处理器
func NewStructureTaskHandler(service *StructureService, logger *logrus.Logger) *StructureTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}

	return &StructureTaskHandler{
		service: service,
		logger:  logger,
	}
}

// GetTaskTypes 返回处理器支持的任务类型
func (h *StructureTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskStructureDocument}
}

// ProcessTask 执行结构化任务
func (h *StructureTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"job_id":  task.JobID,
	}).Info("Processing structure task")

	// 解析任务载荷
	var payload taskqueue.StructurePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal structure payload: %w", err)
	}

	// 确保服务初始化完成
	if err := h.service.Init(); err != nil {
		return err
	}

	// 解析引擎配置
	var options *preprocess.Options
	if len(payload.Options) > 0 {
		var opts preprocess.Options
		if err := json.Unmarshal(payload.Options, &opts); err != nil {
			return fmt.Errorf("failed to unmarshal engine options: %w", err)
		}
		options = &opts
	}

	// 加载文档页面
	pages, err := h.service.loadPages(payload.FilePath)
	if err != nil {
		h.service.failJob(ctx, task.JobID, fmt.Sprintf("failed to load document: %v", err))
		return fmt.Errorf("failed to load document: %w", err)
	}

	// 更新进度和阶段
	if err := h.service.statusManager.UpdateProgress(ctx, task.JobID, 30); err != nil {
		h.logger.WithError(err).Warn("Failed to update job progress")
	}
	if err := h.service.statusManager.UpdateStage(ctx, task.JobID, models.StageStructuring); err != nil {
		h.logger.WithError(err).Warn("Failed to update job stage")
	}

	// 执行结构化
	result, err := h.service.StructureSpans(ctx, pages, options)
	if err != nil {
		h.service.failJob(ctx, task.JobID, fmt.Sprintf("failed to structure document: %v", err))
		return fmt.Errorf("failed to structure document: %w", err)
	}

	// 保存结构化结果
	if err := h.service.saveResult(task.JobID, result); err != nil {
		h.service.failJob(ctx, task.JobID, fmt.Sprintf("failed to save structure result: %v", err))
		return fmt.Errorf("failed to save structure result: %w", err)
	}

	// 构建任务结果并写入任务记录
	structureResult := taskqueue.StructureResult{
		JobID:          task.JobID,
		SectionCount:   result.Stats.SectionCount,
		GroupCount:     result.Stats.GroupCount,
		PageCount:      len(pages),
		HeaderPatterns: result.RemovedHeaderPatterns,
		FooterPatterns: result.RemovedFooterPatterns,
		Warnings:       result.Warnings,
	}

	if err := h.service.taskQueue.UpdateTaskStatus(ctx, task.ID, taskqueue.StatusCompleted, structureResult, ""); err != nil {
		h.logger.WithError(err).Warn("Failed to record task result")
	}

	// 标记作业为已完成
	if err := h.service.statusManager.MarkAsCompleted(ctx, task.JobID, result.Stats.SectionCount, result.Stats.GroupCount); err != nil {
		h.logger.WithError(err).Error("Failed to mark job as completed")
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":       task.ID,
		"job_id":        task.JobID,
		"section_count": result.Stats.SectionCount,
		"group_count":   result.Stats.GroupCount,
	}).Info("Structure task processed successfully")

	return nil
}
