package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fyerfyer/doc-structure-system/internal/models"
	"github.com/fyerfyer/doc-structure-system/internal/repository"
	"github.com/sirupsen/logrus"
)

// JobStatusManager 作业状态管理器
// 负责管理结构化作业的生命周期状态
type JobStatusManager struct {
	repo   repository.StructureJobRepository // 作业仓储接口
	logger *logrus.Logger                    // 日志记录器
	mu     sync.Mutex                        // 互斥锁，保证状态转换的原子性
}

// NewJobStatusManager 创建作业状态管理器
func NewJobStatusManager(repo repository.StructureJobRepository, logger *logrus.Logger) *JobStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &JobStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// MarkAsUploaded 将作业标记为已上传状态
func (m *JobStatusManager) MarkAsUploaded(ctx context.Context, jobID string, fileName string, filePath string, fileSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"job_id":   jobID,
		"filename": fileName,
	}).Info("Marking job as uploaded")

	// 创建新的作业记录
	job := &models.StructureJob{
		ID:         jobID,
		FileName:   fileName,
		FileType:   getFileType(fileName),
		FilePath:   filePath,
		FileSize:   fileSize,
		Status:     models.JobStatusUploaded,
		UploadedAt: time.Now(),
		UpdatedAt:  time.Now(),
		Progress:   0,
	}

	// 保存到仓储
	return m.repo.Create(job)
}

// MarkAsProcessing 将作业标记为处理中状态
func (m *JobStatusManager) MarkAsProcessing(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前作业
	job, err := m.repo.GetByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	// 检查状态转换的有效性
	if job.Status != models.JobStatusUploaded {
		return fmt.Errorf("invalid state transition: job %s is in %s state, expected %s",
			jobID, job.Status, models.JobStatusUploaded)
	}

	m.logger.WithField("job_id", jobID).Info("Marking job as processing")

	// 更新状态
	return m.repo.UpdateStatus(jobID, models.JobStatusProcessing, "")
}

// MarkAsCompleted 将作业标记为处理完成状态
func (m *JobStatusManager) MarkAsCompleted(ctx context.Context, jobID string, sectionCount int, groupCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前作业
	job, err := m.repo.GetByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	// 检查状态转换的有效性
	if job.Status != models.JobStatusProcessing && job.Status != models.JobStatusUploaded {
		return fmt.Errorf("invalid state transition: job %s is in %s state, expected %s or %s",
			jobID, job.Status, models.JobStatusProcessing, models.JobStatusUploaded)
	}

	m.logger.WithFields(logrus.Fields{
		"job_id":        jobID,
		"section_count": sectionCount,
		"group_count":   groupCount,
	}).Info("Marking job as completed")

	// 更新状态
	if err := m.repo.UpdateStatus(jobID, models.JobStatusCompleted, ""); err != nil {
		return err
	}

	// 更新作业记录，添加章节和分组数量
	// Save会写入全部字段，处理完成时间需要在内存对象上同步
	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.SectionCount = sectionCount
	job.GroupCount = groupCount
	job.CurrentStage = models.StageCompleted
	job.Progress = 100
	job.ProcessedAt = &now
	return m.repo.Update(job)
}

// MarkAsFailed 将作业标记为处理失败状态
func (m *JobStatusManager) MarkAsFailed(ctx context.Context, jobID string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前作业
	_, err := m.repo.GetByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"error":  errorMsg,
	}).Error("Marking job as failed")

	// 更新状态
	return m.repo.UpdateStatus(jobID, models.JobStatusFailed, errorMsg)
}

// UpdateProgress 更新作业处理进度
func (m *JobStatusManager) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前作业
	job, err := m.repo.GetByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	// 只有处理中的作业才能更新进度
	if job.Status != models.JobStatusProcessing {
		return fmt.Errorf("cannot update progress: job %s is not in processing state", jobID)
	}

	m.logger.WithFields(logrus.Fields{
		"job_id":   jobID,
		"progress": progress,
	}).Debug("Updating job progress")

	// 更新进度
	return m.repo.UpdateProgress(jobID, progress)
}

// UpdateStage 更新作业当前处理阶段
func (m *JobStatusManager) UpdateStage(ctx context.Context, jobID string, stage models.ProcessStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前作业
	job, err := m.repo.GetByID(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"stage":  stage,
	}).Debug("Updating job stage")

	job.CurrentStage = stage
	return m.repo.Update(job)
}

// GetStatus 获取作业当前状态
func (m *JobStatusManager) GetStatus(ctx context.Context, jobID string) (models.JobStatus, error) {
	job, err := m.repo.GetByID(jobID)
	if err != nil {
		return "", fmt.Errorf("failed to get job status: %w", err)
	}
	return job.Status, nil
}

// GetJob 获取完整的作业对象
func (m *JobStatusManager) GetJob(ctx context.Context, jobID string) (*models.StructureJob, error) {
	return m.repo.GetByID(jobID)
}

// ListJobs 获取作业列表
func (m *JobStatusManager) ListJobs(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.StructureJob, int64, error) {
	return m.repo.List(offset, limit, filters)
}

// DeleteJob 删除作业状态记录
func (m *JobStatusManager) DeleteJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithField("job_id", jobID).Info("Deleting job status record")
	return m.repo.Delete(jobID)
}

// ValidateStateTransition 验证状态转换的有效性
func (m *JobStatusManager) ValidateStateTransition(from, to models.JobStatus) error {
	// 定义有效的状态转换
	validTransitions := map[models.JobStatus][]models.JobStatus{
		models.JobStatusUploaded: {
			models.JobStatusProcessing,
			models.JobStatusCompleted, // 小文档可能直接完成
			models.JobStatusFailed,    // 上传后可能立即失败
		},
		models.JobStatusProcessing: {
			models.JobStatusCompleted,
			models.JobStatusFailed,
		},
		// 终态
		models.JobStatusCompleted: {},
		models.JobStatusFailed:    {models.JobStatusProcessing}, // 允许重试
	}

	// 检查是否是有效转换
	allowed := false
	for _, validTo := range validTransitions[from] {
		if validTo == to {
			allowed = true
			break
		}
	}

	if !allowed {
		return errors.New("invalid state transition")
	}

	return nil
}

// getFileType 根据文件名获取文件类型
func getFileType(fileName string) string {
	ext := filepath.Ext(fileName)
	return strings.TrimPrefix(ext, ".")
}
