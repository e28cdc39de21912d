package model

import (
	"time"

	"github.com/fyerfyer/doc-structure-system/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// JobUploadResponse 作业上传响应
type JobUploadResponse struct {
	JobID    string `json:"job_id"`   // 作业ID
	FileName string `json:"filename"` // 文件名
	Status   string `json:"status"`   // 作业状态：uploaded、processing、completed、failed
}

// JobStatusResponse 作业状态查询响应
type JobStatusResponse struct {
	JobID        string `json:"job_id"`                  // 作业ID
	Status       string `json:"status"`                  // 处理状态
	FileName     string `json:"filename"`                // 文件名
	Progress     int    `json:"progress"`                // 处理进度（0-100）
	Stage        string `json:"stage,omitempty"`         // 当前处理阶段
	SectionCount int    `json:"section_count,omitempty"` // 章节数量（处理完成后）
	GroupCount   int    `json:"group_count,omitempty"`   // 分组数量（处理完成后）
	Error        string `json:"error,omitempty"`         // 错误信息（如果有）
	CreatedAt    string `json:"created_at"`              // 创建时间
	UpdatedAt    string `json:"updated_at"`              // 更新时间
	ProcessedAt  string `json:"processed_at,omitempty"`  // 处理完成时间
}

// JobInfo 作业信息
type JobInfo struct {
	JobID        string    `json:"job_id"`        // 作业ID
	FileName     string    `json:"filename"`      // 文件名
	FileType     string    `json:"file_type"`     // 文件类型
	Status       string    `json:"status"`        // 状态
	Tags         string    `json:"tags"`          // 标签
	UploadTime   time.Time `json:"upload_time"`   // 上传时间
	Progress     int       `json:"progress"`      // 处理进度
	SectionCount int       `json:"section_count"` // 章节数量
	GroupCount   int       `json:"group_count"`   // 分组数量
}

// JobListResponse 作业列表响应
type JobListResponse struct {
	Total    int64     `json:"total"`     // 总数量
	Page     int       `json:"page"`      // 当前页码
	PageSize int       `json:"page_size"` // 每页大小
	Jobs     []JobInfo `json:"jobs"`      // 作业列表
}

// JobDeleteResponse 作业删除响应
type JobDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	JobID   string `json:"job_id"`  // 作业ID
}

// JobTagsResponse 作业标签更新响应
type JobTagsResponse struct {
	JobID string `json:"job_id"` // 作业ID
	Tags  string `json:"tags"`   // 更新后的标签
}

// ConvertToJobInfo 将作业模型转换为列表项
func ConvertToJobInfo(jobs []*models.StructureJob) []JobInfo {
	if len(jobs) == 0 {
		return []JobInfo{}
	}

	infos := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		infos[i] = JobInfo{
			JobID:        job.ID,
			FileName:     job.FileName,
			FileType:     job.FileType,
			Status:       string(job.Status),
			Tags:         job.Tags,
			UploadTime:   job.UploadedAt,
			Progress:     job.Progress,
			SectionCount: job.SectionCount,
			GroupCount:   job.GroupCount,
		}
	}
	return infos
}

// PaginationResponse 分页响应信息
type PaginationResponse struct {
	Total    int `json:"total"`     // 总记录数
	Page     int `json:"page"`      // 当前页码
	PageSize int `json:"page_size"` // 每页大小
}
