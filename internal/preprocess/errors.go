package preprocess

import (
	"errors"
	"fmt"
)

// ErrInvalidContent 输入内容无效错误
// 没有任何页面或所有页面都没有文本段时返回
var ErrInvalidContent = errors.New("invalid content: no pages or no text spans")

// 预处理阶段名称
const (
	StageNormalization = "normalization" // 文本规范化阶段
	StageSegmentation  = "segmentation"  // 章节分段阶段
	StageGrouping      = "grouping"      // 功能分组阶段
)

// StageError 阶段错误
// 包装某个预处理阶段内部的意外失败，并标明失败的阶段
type StageError struct {
	Stage string // 失败的阶段名称
	Err   error  // 底层错误
}

// Error 实现error接口
func (e *StageError) Error() string {
	return fmt.Sprintf("preprocess stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap 支持errors.Is/errors.As解包
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError 创建阶段错误
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
