package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/doc-structure-system/internal/database"
	"github.com/fyerfyer/doc-structure-system/internal/models"
	"github.com/fyerfyer/doc-structure-system/pkg/taskqueue"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// jobRepository 结构化作业仓储实现
type jobRepository struct {
	db        *gorm.DB        // 数据库连接
	taskQueue taskqueue.Queue // 任务队列
	ctx       context.Context // 上下文，可用于事务或超时控制
}

// NewStructureJobRepository 创建作业仓储实例
func NewStructureJobRepository() StructureJobRepository {
	return &jobRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewStructureJobRepositoryWithDB 使用指定的数据库连接创建作业仓储实例
func NewStructureJobRepositoryWithDB(db *gorm.DB) StructureJobRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &jobRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// NewStructureJobRepositoryWithQueue 使用指定的数据库连接和任务队列创建作业仓储实例
func NewStructureJobRepositoryWithQueue(db *gorm.DB, queue taskqueue.Queue) StructureJobRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &jobRepository{
		db:        db,
		taskQueue: queue,
		ctx:       context.Background(),
	}
}

// Create 创建作业记录
func (r *jobRepository) Create(job *models.StructureJob) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}

	return r.db.Create(job).Error
}

// Update 更新作业记录
func (r *jobRepository) Update(job *models.StructureJob) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}

	return r.db.Save(job).Error
}

// GetByID 根据ID获取作业
func (r *jobRepository) GetByID(id string) (*models.StructureJob, error) {
	var job models.StructureJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// List 列出作业列表，支持分页和筛选
func (r *jobRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.StructureJob, int64, error) {
	var jobs []*models.StructureJob
	var total int64

	// 创建查询构造器
	query := r.db.Model(&models.StructureJob{})

	// 应用筛选条件
	if filters != nil {
		// 状态过滤
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.JobStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			default:
				statusStr := fmt.Sprintf("%v", status)
				if statusStr != "" {
					query = query.Where("status = ?", statusStr)
				}
			}
		}

		// 标签过滤
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}

		// 时间范围过滤
		if startTime, ok := filters["start_time"].(string); ok && startTime != "" {
			query = query.Where("uploaded_at >= ?", startTime)
		}

		if endTime, ok := filters["end_time"].(string); ok && endTime != "" {
			query = query.Where("uploaded_at <= ?", endTime)
		}

		// 文件名过滤
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
	}

	// 获取总数
	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	// 应用排序、分页并执行查询
	err = query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&jobs).Error

	if err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// Delete 删除作业记录
func (r *jobRepository) Delete(id string) error {
	// 开启事务
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 1. 删除作业任务关联
		if err := tx.Where("job_id = ?", id).Delete(&models.JobTask{}).Error; err != nil {
			return err
		}

		// 2. 删除作业记录
		if err := tx.Where("id = ?", id).Delete(&models.StructureJob{}).Error; err != nil {
			return err
		}

		// 3. 如果任务队列已初始化，尝试获取并删除相关任务
		if r.taskQueue != nil {
			ctx := r.getContext()
			tasks, err := r.taskQueue.GetTasksByJob(ctx, id)
			if err == nil && len(tasks) > 0 {
				for _, task := range tasks {
					// 忽略错误，因为任务可能已经被删除
					_ = r.taskQueue.DeleteTask(ctx, task.ID)
				}
			}
		}

		return nil
	})
}

// UpdateStatus 更新作业状态
func (r *jobRepository) UpdateStatus(id string, status models.JobStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	// 如果有错误消息，更新错误字段
	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	// 如果状态是已完成或失败，设置处理完成时间
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		now := time.Now()
		updates["processed_at"] = &now
	}

	return r.db.Model(&models.StructureJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateProgress 更新作业处理进度
func (r *jobRepository) UpdateProgress(id string, progress int) error {
	// 确保进度在0-100范围内
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	return r.db.Model(&models.StructureJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":   progress,
			"updated_at": time.Now(),
		}).Error
}

// SaveResult 保存结构化结果及统计
func (r *jobRepository) SaveResult(id string, result []byte, sectionCount, groupCount int) error {
	return r.db.Model(&models.StructureJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"result":        datatypes.JSON(result),
			"section_count": sectionCount,
			"group_count":   groupCount,
			"updated_at":    time.Now(),
		}).Error
}

// GetResult 获取作业的结构化结果
func (r *jobRepository) GetResult(id string) ([]byte, error) {
	job, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	if len(job.Result) == 0 {
		return nil, fmt.Errorf("job %s has no structure result", id)
	}

	return job.Result, nil
}

// WithContext 创建带有上下文的仓储
func (r *jobRepository) WithContext(ctx context.Context) StructureJobRepository {
	return &jobRepository{
		db:        r.db.WithContext(ctx),
		taskQueue: r.taskQueue,
		ctx:       ctx,
	}
}

// getContext 获取仓储的上下文，如果未设置则使用背景上下文
func (r *jobRepository) getContext() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}
