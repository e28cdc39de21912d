package storage

import (
	"errors"
	"io"
)

// ErrFileNotFound 按ID查找不到文档时返回
var ErrFileNotFound = errors.New("document file not found")

// FileInfo 已保存文档的元数据
// ID由存储层生成，同时作为结构化作业的作业ID使用
type FileInfo struct {
	ID       string // 文档唯一标识符
	Name     string // 上传时的原始文件名
	Size     int64  // 文档大小(字节)
	MimeType string // 文档MIME类型
	Path     string // 内部存储路径(实现相关)
}

// Storage 文档存储接口
// 保存待结构化的跨度文档(JSON)和Markdown文档，
// 可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Save 保存文档并返回文档信息
	Save(reader io.Reader, filename string) (FileInfo, error)

	// Get 按ID获取文档内容
	Get(id string) (io.ReadCloser, error)

	// Delete 按ID删除文档
	Delete(id string) error

	// List 列出所有文档
	List() ([]FileInfo, error)

	// Exists 检查文档是否存在
	Exists(id string) (bool, error)
}

// Factory 存储实现的工厂函数
type Factory func(cfg interface{}) (Storage, error)
