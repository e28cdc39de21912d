package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// documentPrefix 跨度文档在存储桶中的对象前缀
const documentPrefix = "documents"

// MinioStorage MinIO对象存储实现
// 文档以 documents/年/月/日/ID.扩展名 的形式存放，ID即作业ID
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例
// 存储桶不存在时自动创建
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Save 上传文档到MinIO
// 跨度文档和结构化产出的Markdown都走这里，内容类型按扩展名推断
func (s *MinioStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	ext := filepath.Ext(filename)

	// 按日期分目录，对象名中的ID用于后续按作业ID检索
	now := time.Now()
	objectName := fmt.Sprintf("%s/%04d/%02d/%02d/%s%s",
		documentPrefix, now.Year(), now.Month(), now.Day(), id, ext)

	// 文档先读入内存以确定大小
	// 跨度文档是单个请求体的JSON，尺寸可控，不需要流式上传
	content, err := io.ReadAll(reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read document content: %v", err)
	}

	size := int64(len(content))
	contentType := getMimeType(filename)

	_, err = s.client.PutObject(
		context.Background(),
		s.bucketName,
		objectName,
		bytes.NewReader(content),
		size,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload document: %v", err)
	}

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     size,
		MimeType: contentType,
		Path:     objectName,
	}, nil
}

// Get 按ID读取文档内容
func (s *MinioStorage) Get(id string) (io.ReadCloser, error) {
	objectName, err := s.findObjectByID(id)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(
		context.Background(),
		s.bucketName,
		objectName,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}

	return obj, nil
}

// Delete 按ID删除文档
func (s *MinioStorage) Delete(id string) error {
	objectName, err := s.findObjectByID(id)
	if err != nil {
		return err
	}

	err = s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		objectName,
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}

	return nil
}

// List 列出存储桶中的所有文档
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	objectCh := s.client.ListObjects(
		context.Background(),
		s.bucketName,
		minio.ListObjectsOptions{Prefix: documentPrefix + "/", Recursive: true},
	)

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}

		// 对象名形如 documents/2026/08/30/ID.json，去掉扩展名即为ID
		fileName := filepath.Base(object.Key)
		id := strings.TrimSuffix(fileName, filepath.Ext(fileName))

		files = append(files, FileInfo{
			ID:       id,
			Name:     fileName,
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
			Path:     object.Key,
		})
	}

	return files, nil
}

// Exists 检查指定ID的文档是否存在
func (s *MinioStorage) Exists(id string) (bool, error) {
	_, err := s.findObjectByID(id)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// findObjectByID 遍历存储桶，按ID定位对象名
// 对象按日期分目录，ID本身不含路径信息，只能通过列举查找
func (s *MinioStorage) findObjectByID(id string) (string, error) {
	files, err := s.List()
	if err != nil {
		return "", fmt.Errorf("failed to list documents: %v", err)
	}

	for _, file := range files {
		if file.ID == id {
			return file.Path, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
}
