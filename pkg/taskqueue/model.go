package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskStructureDocument 文档结构化任务
	TaskStructureDocument TaskType = "structure_document"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	JobID       string          `json:"job_id"`       // 关联的作业ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据，不同任务类型对应不同结构
	Result      json.RawMessage `json:"result"`       // 任务结果数据，不同任务类型对应不同结构
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// StructurePayload 文档结构化任务载荷
type StructurePayload struct {
	JobID    string            `json:"job_id"`            // 作业ID
	FilePath string            `json:"file_path"`         // 文件存储路径
	FileName string            `json:"file_name"`         // 文件名
	FileType string            `json:"file_type"`         // 文件类型
	Options  json.RawMessage   `json:"options,omitempty"` // 结构化引擎配置，JSON格式
	Metadata map[string]string `json:"metadata"`          // 元数据
}

// StructureResult 文档结构化任务结果
type StructureResult struct {
	JobID          string   `json:"job_id"`          // 作业ID
	SectionCount   int      `json:"section_count"`   // 章节数量（含子章节）
	GroupCount     int      `json:"group_count"`     // 功能分组数量
	PageCount      int      `json:"page_count"`      // 页数
	HeaderPatterns []string `json:"header_patterns"` // 被移除的页眉模式
	FooterPatterns []string `json:"footer_patterns"` // 被移除的页脚模式
	Warnings       []string `json:"warnings"`        // 处理警告
	Error          string   `json:"error"`           // 错误信息（如果有）
}

// TaskCallback 任务回调信息
type TaskCallback struct {
	TaskID    string          `json:"task_id"`   // 任务ID
	JobID     string          `json:"job_id"`    // 作业ID
	Status    TaskStatus      `json:"status"`    // 任务状态
	Type      TaskType        `json:"type"`      // 任务类型
	Result    json.RawMessage `json:"result"`    // 任务结果
	Error     string          `json:"error"`     // 错误信息
	Timestamp time.Time       `json:"timestamp"` // 回调时间戳
}
