package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest 设置一个miniredis实例用于测试
// 返回Redis地址和一个清理函数
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	return mr.Addr(), func() {
		mr.Close()
	}
}

// TestNewRedisQueue 测试创建Redis队列实例
func TestNewRedisQueue(t *testing.T) {
	// 使用miniredis进行测试
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, queue)

	err = queue.Close()
	assert.NoError(t, err)
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()
	payload := &StructurePayload{
		JobID:    "job-123",
		FilePath: "/path/to/document.json",
		FileName: "document.json",
		FileType: "spans",
	}

	// 测试基本入队
	taskID, err := queue.Enqueue(ctx, TaskStructureDocument, "job-123", payload)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	// 验证任务已入队
	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskStructureDocument, task.Type)
	assert.Equal(t, "job-123", task.JobID)
	assert.Equal(t, StatusPending, task.Status)
	assert.NotNil(t, task.Payload)
}

// TestRedisQueue_EnqueueAt 测试延时入队功能
func TestRedisQueue_EnqueueAt(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()
	payload := &StructurePayload{
		JobID:    "job-123",
		FilePath: "/path/to/document.json",
		FileName: "document.json",
		FileType: "spans",
	}

	// 测试延时入队
	processAt := time.Now().Add(time.Second)
	taskID, err := queue.EnqueueAt(ctx, TaskStructureDocument, "job-123", payload, processAt)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	// 验证任务已入队
	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskStructureDocument, task.Type)
	assert.Equal(t, StatusPending, task.Status)
}

// TestRedisQueue_EnqueueIn 测试延时入队功能
func TestRedisQueue_EnqueueIn(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()
	payload := &StructurePayload{
		JobID:    "job-123",
		FilePath: "/path/to/document.md",
		FileName: "document.md",
		FileType: "markdown",
	}

	// 测试延时入队
	delay := time.Second
	taskID, err := queue.EnqueueIn(ctx, TaskStructureDocument, "job-123", payload, delay)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	// 验证任务已入队
	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskStructureDocument, task.Type)
	assert.Equal(t, StatusPending, task.Status)
}

// TestRedisQueue_GetTasksByJob 测试获取作业相关任务
func TestRedisQueue_GetTasksByJob(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()
	jobID := "job-456"

	// 为同一个作业入队多个任务（重试场景）
	for i := 0; i < 3; i++ {
		payload := &StructurePayload{
			JobID:    jobID,
			FilePath: "/path/to/document.json",
			FileName: "document.json",
			FileType: "spans",
		}
		_, err := queue.Enqueue(ctx, TaskStructureDocument, jobID, payload)
		require.NoError(t, err)
	}

	// 获取作业相关的任务
	tasks, err := queue.GetTasksByJob(ctx, jobID)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(tasks))

	// 验证所有任务都关联到正确的作业
	for _, task := range tasks {
		assert.Equal(t, jobID, task.JobID)
	}

	// 测试获取不存在作业的任务
	emptyTasks, err := queue.GetTasksByJob(ctx, "non-existent")
	assert.NoError(t, err)
	assert.Empty(t, emptyTasks)
}

// TestRedisQueue_UpdateTaskStatus 测试更新任务状态
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	// 创建一个任务
	payload := &StructurePayload{
		JobID:    "job-789",
		FilePath: "/path/to/document.json",
		FileName: "document.json",
		FileType: "spans",
	}

	taskID, err := queue.Enqueue(ctx, TaskStructureDocument, "job-789", payload)
	require.NoError(t, err)

	// 更新任务状态到处理中
	err = queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, "")
	assert.NoError(t, err)

	// 验证状态已更新
	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt)

	// 更新任务状态到已完成，带结果
	result := &StructureResult{
		JobID:        "job-789",
		SectionCount: 12,
		GroupCount:   4,
		PageCount:    5,
	}
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, "")
	assert.NoError(t, err)

	// 验证状态和结果已更新
	task, err = queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.NotEmpty(t, task.Result)

	// 测试更新到失败状态
	failTaskID, err := queue.Enqueue(ctx, TaskStructureDocument, "job-789", payload)
	require.NoError(t, err)

	errorMsg := "invalid content: no pages or no text spans"
	err = queue.UpdateTaskStatus(ctx, failTaskID, StatusFailed, nil, errorMsg)
	assert.NoError(t, err)

	// 验证失败状态
	failTask, err := queue.GetTask(ctx, failTaskID)
	assert.NoError(t, err)
	assert.Equal(t, StatusFailed, failTask.Status)
	assert.Equal(t, errorMsg, failTask.Error)
	assert.NotNil(t, failTask.CompletedAt)
}

// TestRedisQueue_DeleteTask 测试删除任务
func TestRedisQueue_DeleteTask(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	// 创建一个任务
	payload := &StructurePayload{
		JobID:    "job-delete-test",
		FilePath: "/path/to/document.json",
		FileName: "document.json",
		FileType: "spans",
	}

	jobID := "job-delete-test"
	taskID, err := queue.Enqueue(ctx, TaskStructureDocument, jobID, payload)
	require.NoError(t, err)

	// 确认任务和作业关联存在
	tasks, err := queue.GetTasksByJob(ctx, jobID)
	assert.NoError(t, err)
	assert.Len(t, tasks, 1)

	// 删除任务
	err = queue.DeleteTask(ctx, taskID)
	assert.NoError(t, err)

	// 验证任务已被删除
	_, err = queue.GetTask(ctx, taskID)
	assert.Error(t, err)
	assert.Equal(t, ErrTaskNotFound, err)

	// 验证作业关联也被删除
	tasks, err = queue.GetTasksByJob(ctx, jobID)
	assert.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_NotifyTaskUpdate 测试任务更新通知
func TestRedisQueue_NotifyTaskUpdate(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	// 创建一个任务
	taskID, err := queue.Enqueue(ctx, TaskStructureDocument, "job-notify", &StructurePayload{})
	require.NoError(t, err)

	// 测试通知更新
	err = queue.NotifyTaskUpdate(ctx, taskID)
	assert.NoError(t, err)
}

// mockHandler 实现Handler接口，用于测试
type mockHandler struct {
	processFunc func(context.Context, *Task) error
	taskTypes   []TaskType
}

func (h *mockHandler) ProcessTask(ctx context.Context, task *Task) error {
	if h.processFunc != nil {
		return h.processFunc(ctx, task)
	}
	return nil
}

func (h *mockHandler) GetTaskTypes() []TaskType {
	return h.taskTypes
}

// TestRedisWorker 测试Redis工作者
func TestRedisWorker(t *testing.T) {
	// 使用本地Redis服务进行测试
	redisAddr := "localhost:6379"

	// 测试Redis连接
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		t.Skip("Skipping Redis worker test: Redis not available at localhost:6379")
		return
	}
	client.Close()

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	// 创建Redis队列
	redisQueue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer redisQueue.Close()

	rq, ok := redisQueue.(*RedisQueue)
	require.True(t, ok, "Failed to cast to RedisQueue")

	// 创建Redis工作者
	worker := NewRedisWorker(rq, cfg)
	require.NotNil(t, worker)

	// 注册一个简单的处理器
	processedTasks := make(map[string]bool)
	handler := &mockHandler{
		processFunc: func(ctx context.Context, task *Task) error {
			processedTasks[task.ID] = true
			// 模拟处理时间
			time.Sleep(100 * time.Millisecond)
			return nil
		},
		taskTypes: []TaskType{TaskStructureDocument},
	}

	worker.RegisterHandler(TaskStructureDocument, handler)

	// 启动工作者（在后台）
	errChan := make(chan error)
	go func() {
		errChan <- worker.Start()
	}()

	// 等待工作者启动
	time.Sleep(100 * time.Millisecond)

	// 测试入队任务
	ctx = context.Background()
	payload := &StructurePayload{
		JobID:    "job-worker-test",
		FilePath: "/path/to/document.json",
		FileName: "document.json",
		FileType: "spans",
	}

	taskID, err := redisQueue.Enqueue(ctx, TaskStructureDocument, "job-worker-test", payload)
	require.NoError(t, err)

	// 给工作者一些时间来处理任务
	time.Sleep(500 * time.Millisecond)

	// 停止工作者
	worker.Stop()

	// 检查任务是否已处理
	task, err := redisQueue.GetTask(ctx, taskID)
	if err == nil {
		t.Logf("Task status: %s", task.Status)
	}

	// 检查是否有错误发生
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Worker returned error: %v", err)
		}
	default:
		// 没有错误，这是好的
	}
}

// TestTaskInfo 测试TaskInfo生成
func TestTaskInfo(t *testing.T) {
	// 创建一个Task实例
	now := time.Now()
	startedAt := now.Add(-5 * time.Minute)
	completedAt := now.Add(-1 * time.Minute)

	task := &Task{
		ID:          "task-123",
		Type:        TaskStructureDocument,
		JobID:       "job-123",
		Status:      StatusCompleted,
		Error:       "",
		CreatedAt:   now.Add(-10 * time.Minute),
		UpdatedAt:   now,
		StartedAt:   &startedAt,
		CompletedAt: &completedAt,
		Attempts:    1,
		MaxRetries:  3,
	}

	// 生成TaskInfo
	info := NewTaskInfo(task)

	// 验证TaskInfo包含正确信息
	assert.Equal(t, task.ID, info.ID)
	assert.Equal(t, task.Type, info.Type)
	assert.Equal(t, task.JobID, info.JobID)
	assert.Equal(t, task.Status, info.Status)
	assert.Equal(t, task.Error, info.Error)
	assert.Equal(t, task.CreatedAt, info.CreatedAt)
	assert.Equal(t, task.StartedAt, info.StartedAt)
	assert.Equal(t, task.CompletedAt, info.CompletedAt)
	assert.Equal(t, 100.0, info.Progress) // 已完成状态进度为100%
}
