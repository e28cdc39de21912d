package model

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
	"github.com/go-playground/validator/v10"
)

// ValidateTagList 校验逗号分隔的标签列表
// 空值合法，非空时每个标签去除首尾空白后不能为空
func ValidateTagList(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	for _, tag := range strings.Split(value, ",") {
		if strings.TrimSpace(tag) == "" {
			return false
		}
	}
	return true
}

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// JobUploadRequest 结构化作业上传请求
type JobUploadRequest struct {
	File     *multipart.FileHeader `form:"file" binding:"required"`                      // 文件对象
	Tags     string                `form:"tags" json:"tags" binding:"omitempty,taglist"` // 作业标签，逗号分隔
	Options  string                `form:"options" json:"options" binding:"omitempty"`   // 结构化引擎配置，JSON字符串
	Metadata map[string]string     `form:"metadata" json:"metadata" binding:"omitempty"` // 作业元数据
}

// MarkdownStructureRequest 同步Markdown结构化请求
type MarkdownStructureRequest struct {
	Content string              `json:"content" binding:"required"`  // Markdown文本内容
	Options *preprocess.Options `json:"options" binding:"omitempty"` // 结构化引擎配置，缺省使用服务配置
}

// JobStatusRequest 作业状态查询请求
type JobStatusRequest struct {
	ID string `uri:"id" binding:"required"` // 作业ID
}

// JobResultRequest 作业结果查询请求
type JobResultRequest struct {
	ID string `uri:"id" binding:"required"` // 作业ID
}

// JobListRequest 作业列表请求
type JobListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" json:"start_time" binding:"omitempty"` // 开始时间
	EndTime   *time.Time `form:"end_time" json:"end_time" binding:"omitempty"`     // 结束时间
	Status    string     `form:"status" json:"status" binding:"omitempty"`         // 作业状态
	Tags      string     `form:"tags" json:"tags" binding:"omitempty"`             // 标签过滤
	FileName  string     `form:"file_name" json:"file_name" binding:"omitempty"`   // 文件名过滤
}

// JobDeleteRequest 作业删除请求
type JobDeleteRequest struct {
	ID string `uri:"id" binding:"required"` // 作业ID
}

// JobTagsRequest 作业标签更新请求
type JobTagsRequest struct {
	Tags string `json:"tags" binding:"required,taglist"` // 新标签，逗号分隔
}

// StructureRequest 内存跨度结构化请求
// 直接提交页面跨度，同步返回结构化结果
type StructureRequest struct {
	Pages   []preprocess.Page   `json:"pages" binding:"required"` // 页面跨度数据
	Options *preprocess.Options `json:"options" binding:"omitempty"`
}
