package taskqueue

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	callbackProcessor     *CallbackProcessor
	callbackProcessorOnce sync.Once
)

// GetSharedCallbackProcessor 返回进程级单例的回调处理器
// 回调端点和异步结构化服务共用一个实例，任一方注册的任务处理器对双方可见
// 首次调用的queue和logger生效，后续调用的参数被忽略
func GetSharedCallbackProcessor(queue Queue, logger *logrus.Logger) *CallbackProcessor {
	callbackProcessorOnce.Do(func() {
		callbackProcessor = NewCallbackProcessor(queue, logger)
	})
	return callbackProcessor
}
