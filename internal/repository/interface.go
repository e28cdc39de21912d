package repository

import "github.com/fyerfyer/doc-structure-system/internal/models"

// StructureJobRepository 结构化作业仓储接口
// 负责作业元数据和结构化结果的存储和检索
type StructureJobRepository interface {
	// Create 创建作业记录
	Create(job *models.StructureJob) error

	// Update 更新作业记录
	Update(job *models.StructureJob) error

	// GetByID 根据ID获取作业
	GetByID(id string) (*models.StructureJob, error)

	// List 列出作业列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.StructureJob, int64, error)

	// Delete 删除作业
	Delete(id string) error

	// UpdateStatus 更新作业状态
	UpdateStatus(id string, status models.JobStatus, errorMsg string) error

	// UpdateProgress 更新作业处理进度
	UpdateProgress(id string, progress int) error

	// SaveResult 保存结构化结果及统计
	SaveResult(id string, result []byte, sectionCount, groupCount int) error

	// GetResult 获取作业的结构化结果
	GetResult(id string) ([]byte, error)
}
