package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/doc-structure-system/internal/cache"
	"github.com/fyerfyer/doc-structure-system/internal/ingest"
	"github.com/fyerfyer/doc-structure-system/internal/models"
	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
	"github.com/fyerfyer/doc-structure-system/internal/repository"
	"github.com/fyerfyer/doc-structure-system/pkg/storage"
	"github.com/fyerfyer/doc-structure-system/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// StructureService 文档结构化服务
// 负责协调文档加载、规范化、降噪、分段和分组
type StructureService struct {
	storage       storage.Storage                   // 文件存储服务
	repo          repository.StructureJobRepository // 作业元数据存储
	statusManager *JobStatusManager                 // 作业状态管理器
	taskQueue     taskqueue.Queue                   // 任务队列
	resultCache   cache.Cache                       // 结构化结果缓存
	cacheTTL      time.Duration                     // 缓存过期时间
	engineOptions preprocess.Options                // 结构化引擎默认配置
	asyncEnabled  bool                              // 是否启用异步处理
	timeout       time.Duration                     // 处理超时时间
	logger        *logrus.Logger                    // 日志记录器
}

// StructureOption 结构化服务配置选项
type StructureOption func(*StructureService)

// NewStructureService 创建一个新的文档结构化服务
func NewStructureService(storage storage.Storage, opts ...StructureOption) *StructureService {
	// 创建服务实例
	srv := &StructureService{
		storage:       storage,
		engineOptions: preprocess.DefaultOptions(),
		cacheTTL:      time.Hour * 24,  // 默认缓存一天
		timeout:       time.Minute * 5, // 默认超时时间
		logger:        logrus.New(),    // 默认日志记录器
		asyncEnabled:  false,           // 默认不启用异步处理
	}

	// 应用配置选项
	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) StructureOption {
	return func(s *StructureService) {
		s.timeout = timeout
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) StructureOption {
	return func(s *StructureService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJobRepository 设置作业仓储
func WithJobRepository(repo repository.StructureJobRepository) StructureOption {
	return func(s *StructureService) {
		s.repo = repo
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *JobStatusManager) StructureOption {
	return func(s *StructureService) {
		s.statusManager = manager
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) StructureOption {
	return func(s *StructureService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithResultCache 设置结构化结果缓存
func WithResultCache(c cache.Cache) StructureOption {
	return func(s *StructureService) {
		s.resultCache = c
	}
}

// WithCacheTTL 设置缓存过期时间
func WithCacheTTL(ttl time.Duration) StructureOption {
	return func(s *StructureService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithEngineOptions 设置结构化引擎默认配置
func WithEngineOptions(options preprocess.Options) StructureOption {
	return func(s *StructureService) {
		s.engineOptions = options
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) StructureOption {
	return func(s *StructureService) {
		s.asyncEnabled = enabled
	}
}

// Init 初始化结构化服务
// 确保必要的依赖都已设置
func (s *StructureService) Init() error {
	// 如果没有设置仓储，创建默认仓储
	if s.repo == nil {
		s.repo = repository.NewStructureJobRepository()
	}

	// 如果没有设置状态管理器，创建默认状态管理器
	if s.statusManager == nil {
		s.statusManager = NewJobStatusManager(s.repo, s.logger)
	}

	return nil
}

// StructureSpans 直接对内存中的页面跨度执行结构化
// 不落库，命中缓存时直接返回缓存的结果
func (s *StructureService) StructureSpans(ctx context.Context, pages []preprocess.Page, options *preprocess.Options) (*preprocess.PreprocessResult, error) {
	opts := s.engineOptions
	if options != nil {
		opts = *options
	}

	// 尝试从缓存获取结果
	cacheKey := ""
	if s.resultCache != nil {
		key, err := cache.StructureResultKey(pages, opts)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to build cache key, skipping cache lookup")
		} else {
			cacheKey = key
			if cached, found, err := s.resultCache.Get(cacheKey); err == nil && found {
				var result preprocess.PreprocessResult
				if err := json.Unmarshal([]byte(cached), &result); err == nil {
					s.logger.WithField("cache_key", cacheKey).Debug("Structure result cache hit")
					return &result, nil
				}
				// 缓存内容损坏，删除并重新计算
				_ = s.resultCache.Delete(cacheKey)
			}
		}
	}

	// 执行结构化流水线
	engine := preprocess.NewPreprocessor(opts, s.logger)
	result, err := engine.Process(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to structure document: %w", err)
	}

	// 写入缓存
	if s.resultCache != nil && cacheKey != "" {
		data, err := json.Marshal(result)
		if err == nil {
			if err := s.resultCache.Set(cacheKey, string(data), s.cacheTTL); err != nil {
				s.logger.WithError(err).Warn("Failed to cache structure result")
			}
		}
	}

	return result, nil
}

// ProcessJob 处理结构化作业(加载、结构化、落库)
func (s *StructureService) ProcessJob(ctx context.Context, jobID string, filePath string) error {
	return s.ProcessJobWithOptions(ctx, jobID, filePath, nil)
}

// ProcessJobWithOptions 使用指定的引擎配置处理结构化作业
// options为nil时使用服务默认配置
func (s *StructureService) ProcessJobWithOptions(ctx context.Context, jobID string, filePath string, options *preprocess.Options) error {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":    jobID,
		"file_path": filePath,
	}).Info("Starting structure job processing")

	// 检查输入参数
	if jobID == "" {
		return errors.New("jobID cannot be empty")
	}
	if filePath == "" {
		return errors.New("filePath cannot be empty")
	}

	// 如果启用异步处理并且任务队列已配置，使用任务队列处理
	if s.asyncEnabled && s.taskQueue != nil {
		asyncOptions := DefaultAsyncOptions()
		asyncOptions.EngineOptions = options
		return s.processJobAsync(ctx, jobID, filePath, asyncOptions)
	}

	// 否则，使用同步方式处理
	return s.processJobSync(ctx, jobID, filePath, options)
}

// processJobSync 同步处理结构化作业
// 直接在当前进程中执行结构化流水线
func (s *StructureService) processJobSync(ctx context.Context, jobID string, filePath string, options *preprocess.Options) error {
	// 设置上下文超时
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// 更新作业状态为处理中
	if err := s.statusManager.MarkAsProcessing(ctx, jobID); err != nil {
		s.logger.WithError(err).Error("Failed to mark job as processing")
		// 继续处理，不中断
	}

	// 加载文档页面
	if err := s.statusManager.UpdateStage(ctx, jobID, models.StageLoading); err != nil {
		s.logger.WithError(err).Warn("Failed to update job stage")
	}

	pages, err := s.loadPages(filePath)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("failed to load document: %v", err))
		return fmt.Errorf("failed to load document: %w", err)
	}

	// 更新进度到30%
	if err := s.statusManager.UpdateProgress(ctx, jobID, 30); err != nil {
		s.logger.WithError(err).Warn("Failed to update job progress")
	}

	// 执行结构化
	if err := s.statusManager.UpdateStage(ctx, jobID, models.StageStructuring); err != nil {
		s.logger.WithError(err).Warn("Failed to update job stage")
	}

	result, err := s.StructureSpans(ctx, pages, options)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("failed to structure document: %v", err))
		return fmt.Errorf("failed to structure document: %w", err)
	}

	// 更新进度到90%
	if err := s.statusManager.UpdateProgress(ctx, jobID, 90); err != nil {
		s.logger.WithError(err).Warn("Failed to update job progress")
	}

	// 保存结构化结果
	if err := s.saveResult(jobID, result); err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("failed to save structure result: %v", err))
		return fmt.Errorf("failed to save structure result: %w", err)
	}

	// 作业处理完成，更新状态
	if err := s.statusManager.MarkAsCompleted(ctx, jobID, result.Stats.SectionCount, result.Stats.GroupCount); err != nil {
		s.logger.WithError(err).Error("Failed to mark job as completed")
		// 虽然状态更新失败，但结构化处理成功，所以不返回错误
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":        jobID,
		"section_count": result.Stats.SectionCount,
		"group_count":   result.Stats.GroupCount,
		"warning_count": len(result.Warnings),
	}).Info("Structure job processing completed successfully")

	return nil
}

// loadPages 从存储加载文档并解析为页面跨度
func (s *StructureService) loadPages(filePath string) ([]preprocess.Page, error) {
	s.logger.WithField("file_path", filePath).Debug("Loading document pages")

	// 首先尝试从存储获取文件
	fileID := filepath.Base(filePath)
	// 移除扩展名
	fileID = strings.TrimSuffix(fileID, filepath.Ext(fileID))

	// 尝试获取文件
	reader, err := s.storage.Get(fileID)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to get file directly, trying with path")
		// 尝试将整个路径作为ID
		reader, err = s.storage.Get(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to get file from storage: %w", err)
		}
	}
	defer reader.Close()

	// 创建加载器
	loader, err := ingest.LoaderFactory(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create loader: %w", err)
	}

	// 直接从reader解析文档
	pages, err := loader.LoadReader(reader, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	return pages, nil
}

// saveResult 将结构化结果序列化后落库
func (s *StructureService) saveResult(jobID string, result *preprocess.PreprocessResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal structure result: %w", err)
	}

	return s.repo.SaveResult(jobID, data, result.Stats.SectionCount, result.Stats.GroupCount)
}

// GetJobResult 获取作业的结构化结果
func (s *StructureService) GetJobResult(ctx context.Context, jobID string) (*preprocess.PreprocessResult, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, err
	}

	data, err := s.repo.GetResult(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get structure result: %w", err)
	}

	var result preprocess.PreprocessResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal structure result: %w", err)
	}

	return &result, nil
}

// DeleteJob 删除作业及其相关数据
func (s *StructureService) DeleteJob(ctx context.Context, jobID string) error {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithField("job_id", jobID).Info("Deleting structure job")

	// 1. 从存储中删除文件
	if err := s.storage.Delete(jobID); err != nil {
		// 文件可能已被删除，记录错误但不中断流程
		s.logger.WithError(err).Warn("Failed to delete file from storage")
	}

	// 2. 删除作业状态记录(仓储删除会级联清理任务记录)
	if err := s.statusManager.DeleteJob(ctx, jobID); err != nil {
		s.logger.WithError(err).Error("Failed to delete job status record")
		return fmt.Errorf("failed to delete job status record: %w", err)
	}

	s.logger.WithField("job_id", jobID).Info("Structure job deleted successfully")
	return nil
}

// GetJobInfo 获取作业信息
func (s *StructureService) GetJobInfo(ctx context.Context, jobID string) (map[string]interface{}, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, err
	}

	// 获取作业状态
	job, err := s.statusManager.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	// 构建作业信息
	info := map[string]interface{}{
		"job_id":        job.ID,
		"filename":      job.FileName,
		"status":        job.Status,
		"created_at":    job.UploadedAt.Format(time.RFC3339),
		"updated_at":    job.UpdatedAt.Format(time.RFC3339),
		"size":          job.FileSize,
		"progress":      job.Progress,
		"section_count": job.SectionCount,
		"group_count":   job.GroupCount,
	}

	// 如果有错误信息，添加到返回结果
	if job.Error != "" {
		info["error"] = job.Error
	}

	// 如果有处理完成时间，添加到返回结果
	if job.ProcessedAt != nil {
		info["processed_at"] = job.ProcessedAt.Format(time.RFC3339)
	}

	// 如果有标签，添加到返回结果
	if job.Tags != "" {
		info["tags"] = job.Tags
	}

	// 如果启用了异步处理，尝试获取相关任务信息
	if s.asyncEnabled && s.taskQueue != nil {
		tasks, err := s.taskQueue.GetTasksByJob(ctx, jobID)
		if err == nil && len(tasks) > 0 {
			// 添加最近的任务信息
			latestTask := tasks[0]
			for _, task := range tasks {
				if task.UpdatedAt.After(latestTask.UpdatedAt) {
					latestTask = task
				}
			}

			info["task_id"] = latestTask.ID
			info["task_status"] = latestTask.Status
			info["task_created_at"] = latestTask.CreatedAt.Format(time.RFC3339)
			info["task_updated_at"] = latestTask.UpdatedAt.Format(time.RFC3339)

			if latestTask.StartedAt != nil {
				info["task_started_at"] = latestTask.StartedAt.Format(time.RFC3339)
			}
			if latestTask.CompletedAt != nil {
				info["task_completed_at"] = latestTask.CompletedAt.Format(time.RFC3339)
			}
			if latestTask.Error != "" {
				info["task_error"] = latestTask.Error
			}
		}
	}

	return info, nil
}

// GetJobStatus 获取作业处理状态
func (s *StructureService) GetJobStatus(ctx context.Context, jobID string) (models.JobStatus, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return "", err
	}

	return s.statusManager.GetStatus(ctx, jobID)
}

// ListJobs 获取作业列表
func (s *StructureService) ListJobs(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.StructureJob, int64, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, 0, err
	}

	// 使用状态管理器获取作业列表
	return s.statusManager.ListJobs(ctx, offset, limit, filters)
}

// UpdateJobTags 更新作业标签
func (s *StructureService) UpdateJobTags(ctx context.Context, jobID string, tags string) error {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return err
	}

	// 获取作业
	job, err := s.statusManager.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	// 更新标签
	job.Tags = tags

	// 保存更新
	return s.repo.Update(job)
}

// WaitForJobProcessing 等待作业处理完成
func (s *StructureService) WaitForJobProcessing(ctx context.Context, jobID string, timeout time.Duration) error {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return err
	}

	if !s.asyncEnabled || s.taskQueue == nil {
		// 如果未启用异步处理，直接检查作业状态
		status, err := s.statusManager.GetStatus(ctx, jobID)
		if err != nil {
			return err
		}
		if status == models.JobStatusFailed {
			return fmt.Errorf("job processing failed")
		}
		if status != models.JobStatusCompleted {
			return fmt.Errorf("job not processed")
		}
		return nil
	}

	// 设置上下文超时
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 获取作业相关的任务
	tasks, err := s.taskQueue.GetTasksByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job tasks: %w", err)
	}

	if len(tasks) == 0 {
		return fmt.Errorf("no processing tasks found for job %s", jobID)
	}

	// 找到最新的结构化任务
	var latestTask *taskqueue.Task
	for _, task := range tasks {
		if task.Type == taskqueue.TaskStructureDocument {
			if latestTask == nil || task.CreatedAt.After(latestTask.CreatedAt) {
				latestTask = task
			}
		}
	}

	if latestTask == nil {
		return fmt.Errorf("no structure task found for job %s", jobID)
	}

	// 等待任务完成
	_, err = s.taskQueue.WaitForTask(ctx, latestTask.ID, timeout)
	if err != nil {
		return fmt.Errorf("failed to wait for job processing: %w", err)
	}

	// 再次检查作业状态
	status, err := s.statusManager.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}

	if status == models.JobStatusFailed {
		return fmt.Errorf("job processing failed")
	}

	if status != models.JobStatusCompleted {
		return fmt.Errorf("job processing incomplete")
	}

	return nil
}

// failJob 将作业标记为失败状态
func (s *StructureService) failJob(ctx context.Context, jobID string, errorMsg string) {
	if s.statusManager == nil {
		s.logger.Error("Cannot mark job as failed: status manager not initialized")
		return
	}

	if err := s.statusManager.MarkAsFailed(ctx, jobID, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"job_id": jobID,
			"error":  err,
		}).Error("Failed to mark job as failed")
	}
}

// GetStatusManager 返回作业状态管理器实例
func (s *StructureService) GetStatusManager() *JobStatusManager {
	return s.statusManager
}

// GetTaskQueue 返回任务队列实例
func (s *StructureService) GetTaskQueue() taskqueue.Queue {
	return s.taskQueue
}
