package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus 结构化作业状态类型
type JobStatus string

const (
	// JobStatusUploaded 文档已上传，等待处理
	JobStatusUploaded JobStatus = "uploaded"
	// JobStatusProcessing 文档结构化处理中
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted 文档结构化完成
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed 文档结构化失败
	JobStatusFailed JobStatus = "failed"
)

// ProcessStage 结构化处理阶段
type ProcessStage string

const (
	// StageLoading 加载阶段
	StageLoading ProcessStage = "loading"
	// StageStructuring 结构化阶段
	StageStructuring ProcessStage = "structuring"
	// StageCompleted 处理完成
	StageCompleted ProcessStage = "completed"
)

// StructureJob 结构化作业数据模型
// 记录一次文档结构化处理的元数据和结果
type StructureJob struct {
	ID             string         `gorm:"primaryKey"`         // 作业ID，主键
	FileName       string         `gorm:"not null"`           // 文件名
	FileType       string         `gorm:"not null"`           // 文件类型
	FilePath       string         `gorm:"not null"`           // 文件路径
	FileSize       int64          `gorm:"not null"`           // 文件大小（字节）
	Status         JobStatus      `gorm:"not null;index"`     // 处理状态
	UploadedAt     time.Time      `gorm:"not null;index"`     // 上传时间
	ProcessedAt    *time.Time     `gorm:"index"`              // 处理完成时间
	UpdatedAt      time.Time      `gorm:"not null;index"`     // 更新时间
	Progress       int            `gorm:"not null;default:0"` // 处理进度（0-100）
	Error          string         `gorm:"type:text"`          // 错误信息
	SectionCount   int            `gorm:"not null;default:0"` // 章节数量（含子章节）
	GroupCount     int            `gorm:"not null;default:0"` // 功能分组数量
	Tags           string         `gorm:"type:varchar(255)"`  // 标签，逗号分隔
	Metadata       datatypes.JSON `gorm:"type:json"`          // 元数据，JSON格式
	Result         datatypes.JSON `gorm:"type:json"`          // 结构化结果，JSON格式
	CurrentStage   ProcessStage   `gorm:"size:20"`            // 当前处理阶段
	CurrentTaskID  string         `gorm:"size:50;index"`      // 当前关联的任务ID
	LastTaskStatus string         `gorm:"size:20"`            // 最后任务的状态
	RetryCount     int            `gorm:"default:0"`          // 重试次数
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (j *StructureJob) BeforeCreate(tx *gorm.DB) (err error) {
	// 如果上传时间为零值，设置为当前时间
	if j.UploadedAt.IsZero() {
		j.UploadedAt = time.Now()
	}
	// 设置更新时间
	j.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (j *StructureJob) BeforeUpdate(tx *gorm.DB) (err error) {
	j.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (StructureJob) TableName() string {
	return "structure_jobs"
}

// JobTask 作业任务关联模型
// 用于跟踪作业的异步处理任务
type JobTask struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	JobID     string         `gorm:"not null;index"`           // 作业ID
	TaskID    string         `gorm:"not null;uniqueIndex"`     // 任务ID
	TaskType  string         `gorm:"not null;size:50"`         // 任务类型
	Status    string         `gorm:"not null;size:20"`         // 任务状态
	CreatedAt time.Time      `gorm:"not null"`                 // 创建时间
	UpdatedAt time.Time      `gorm:"not null"`                 // 更新时间
	StartedAt *time.Time     `gorm:""`                         // 开始时间
	EndedAt   *time.Time     `gorm:""`                         // 结束时间
	Error     string         `gorm:"type:text"`                // 错误信息
	Result    datatypes.JSON `gorm:"type:json"`                // 任务结果
	Retries   int            `gorm:"default:0"`                // 重试次数
	Progress  int            `gorm:"default:0"`                // 进度（0-100）
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (jt *JobTask) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	jt.CreatedAt = now
	jt.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (jt *JobTask) BeforeUpdate(tx *gorm.DB) (err error) {
	jt.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (JobTask) TableName() string {
	return "job_tasks"
}
