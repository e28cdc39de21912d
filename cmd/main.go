package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fyerfyer/doc-structure-system/api"
	"github.com/fyerfyer/doc-structure-system/api/middleware"

	"github.com/fyerfyer/doc-structure-system/api/handler"
	structconfig "github.com/fyerfyer/doc-structure-system/config"
	"github.com/fyerfyer/doc-structure-system/internal/cache"
	"github.com/fyerfyer/doc-structure-system/internal/database"
	"github.com/fyerfyer/doc-structure-system/internal/preprocess"
	"github.com/fyerfyer/doc-structure-system/internal/repository"
	"github.com/fyerfyer/doc-structure-system/internal/services"
	"github.com/fyerfyer/doc-structure-system/pkg/storage"
	"github.com/fyerfyer/doc-structure-system/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 配置选项
type config struct {
	Port         int           // 服务端口
	Mode         string        // 运行模式 (debug/release)
	StoragePath  string        // 文件存储路径
	StorageType  string        // 存储类型 (local/minio)
	CacheType    string        // 缓存类型
	LogLevel     string        // 日志级别
	LogFile      string        // 日志文件路径，空则仅输出到标准输出
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
	DataDir      string        // 数据目录路径
	ConfigFile   string        // 配置文件路径
	// 结构化引擎相关配置
	MinRepetition      int     // 页眉页脚最小重复页数
	MinHeadingFontSize float64 // 标题最小字体
	// 任务队列相关配置
	QueueEnabled     bool          // 是否启用任务队列
	QueueType        string        // 任务队列类型
	RedisAddr        string        // Redis 地址
	RedisPassword    string        // Redis 密码
	RedisDB          int           // Redis 数据库编号
	QueueConcurrency int           // 任务队列处理并发数
	QueueRetryLimit  int           // 任务重试次数
	QueueRetryDelay  time.Duration // 任务重试延迟
}

func main() {
	// 加载.env文件中的环境变量（如果存在）
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment variables from .env file")
	}

	// 解析命令行参数
	cfg := parseFlags()

	// 加载配置文件(如果指定)
	var appConfig *structconfig.Config
	var err error
	if cfg.ConfigFile != "" {
		appConfig, err = structconfig.Load(cfg.ConfigFile)
		if err != nil {
			log.Printf("Warning: Failed to load config file: %v, using command line args", err)
		} else {
			// 使用配置文件中的值更新相关设置
			updateConfigFromFile(&cfg, appConfig)
		}
	}

	// 设置Gin模式
	gin.SetMode(cfg.Mode)

	// 初始化日志
	logger := setupLogger(cfg.LogLevel, cfg.LogFile)
	logger.Info("Starting Document Structure System...")

	// 初始化数据库
	if err := setupDatabase(cfg, appConfig, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg, appConfig)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建缓存服务
	cacheService, err := setupCache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.QueueEnabled {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	// 初始化业务服务
	var repo repository.StructureJobRepository
	if queue != nil {
		// 如果启用了任务队列，使用带队列的仓储
		repo = repository.NewStructureJobRepositoryWithQueue(database.MustDB(), queue)
		logger.Info("Using structure job repository with task queue")
	} else {
		repo = repository.NewStructureJobRepository()
	}

	statusManager := services.NewJobStatusManager(repo, logger)

	// 创建结构化服务，根据配置装配引擎选项
	structureServiceOptions := []services.StructureOption{
		services.WithJobRepository(repo),
		services.WithStatusManager(statusManager),
		services.WithEngineOptions(engineOptions(cfg, appConfig)),
		services.WithLogger(logger),
	}

	if cacheService != nil {
		structureServiceOptions = append(structureServiceOptions,
			services.WithResultCache(cacheService),
		)
		if appConfig != nil && appConfig.Cache.TTL > 0 {
			structureServiceOptions = append(structureServiceOptions,
				services.WithCacheTTL(time.Duration(appConfig.Cache.TTL)*time.Second),
			)
		}
	}

	structureService := services.NewStructureService(fileStorage, structureServiceOptions...)
	if err := structureService.Init(); err != nil {
		logger.Fatalf("Failed to initialize structure service: %v", err)
	}

	// 如果启用了队列，开启异步处理并启动本地工作者
	var worker taskqueue.Worker
	if queue != nil {
		structureService.EnableAsyncProcessing(queue)
		logger.Info("Structure processing will use async task queue")

		worker, err = startWorker(queue, structureService, cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
	}

	// 初始化API处理器
	jobHandler := handler.NewJobHandler(structureService, fileStorage)
	structureHandler := handler.NewStructureHandler(structureService)
	var taskHandler *handler.TaskHandler
	if queue != nil {
		taskHandler = handler.NewTaskHandler(queue)
	}

	// 设置路由
	r := api.SetupRouter(jobHandler, structureHandler, taskHandler)

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		// 启动服务
		logger.Infof("Server is running on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() config {
	cfg := config{}

	// 服务配置
	flag.IntVar(&cfg.Port, "port", 8080, "Server port")
	flag.StringVar(&cfg.Mode, "mode", "debug", "Run mode (debug/release)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Log file path (rotated), empty for stdout only")
	flag.DurationVar(&cfg.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout")
	flag.DurationVar(&cfg.WriteTimeout, "write-timeout", 30*time.Second, "Write timeout")

	// 存储配置
	flag.StringVar(&cfg.StoragePath, "storage", "./data/files", "File storage path")
	flag.StringVar(&cfg.StorageType, "storage-type", "local", "Storage type (local/minio)")

	// 结构化引擎配置
	flag.IntVar(&cfg.MinRepetition, "min-repetition", 3, "Minimum page repetitions for header/footer detection")
	flag.Float64Var(&cfg.MinHeadingFontSize, "min-heading-font", 12.0, "Minimum font size for heading detection")

	// 缓存配置
	flag.StringVar(&cfg.CacheType, "cache", "memory", "Cache type (memory/redis)")

	// 数据目录配置
	flag.StringVar(&cfg.DataDir, "data-dir", "./data", "Data directory path")

	// 配置文件
	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to config file")

	// 任务队列配置
	flag.BoolVar(&cfg.QueueEnabled, "queue", false, "Enable task queue")
	flag.StringVar(&cfg.QueueType, "queue-type", "redis", "Task queue type (redis)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "Redis address for task queue")
	flag.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number")
	flag.IntVar(&cfg.QueueConcurrency, "queue-concurrency", 10, "Task queue concurrency")
	flag.IntVar(&cfg.QueueRetryLimit, "queue-retry", 3, "Max retry attempts for failed tasks")
	flag.DurationVar(&cfg.QueueRetryDelay, "queue-retry-delay", time.Minute, "Delay between retry attempts")

	// 从环境变量获取Redis连接信息（优先级高于命令行参数）
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}

	flag.Parse()
	return cfg
}

// updateConfigFromFile 从配置文件更新命令行参数
func updateConfigFromFile(cfg *config, appConfig *structconfig.Config) {
	// 只更新未在命令行上明确设置的参数

	// 存储配置
	if flag.Lookup("storage-type").DefValue == cfg.StorageType {
		cfg.StorageType = appConfig.Storage.Type
	}
	if flag.Lookup("storage").DefValue == cfg.StoragePath && appConfig.Storage.Path != "" {
		cfg.StoragePath = appConfig.Storage.Path
	}

	// 缓存配置
	if flag.Lookup("cache").DefValue == cfg.CacheType {
		cfg.CacheType = appConfig.Cache.Type
	}

	// 任务队列配置
	if flag.Lookup("queue").DefValue == fmt.Sprint(cfg.QueueEnabled) {
		cfg.QueueEnabled = appConfig.Queue.Enable
	}
	if flag.Lookup("queue-type").DefValue == cfg.QueueType {
		cfg.QueueType = appConfig.Queue.Type
	}
	if flag.Lookup("redis-addr").DefValue == cfg.RedisAddr {
		cfg.RedisAddr = appConfig.Queue.RedisAddr
	}
	if flag.Lookup("redis-password").DefValue == cfg.RedisPassword {
		cfg.RedisPassword = appConfig.Queue.RedisPassword
	}
	if flag.Lookup("redis-db").DefValue == fmt.Sprint(cfg.RedisDB) {
		cfg.RedisDB = appConfig.Queue.RedisDB
	}
	if flag.Lookup("queue-concurrency").DefValue == fmt.Sprint(cfg.QueueConcurrency) {
		cfg.QueueConcurrency = appConfig.Queue.Concurrency
	}
	if flag.Lookup("queue-retry").DefValue == fmt.Sprint(cfg.QueueRetryLimit) {
		cfg.QueueRetryLimit = appConfig.Queue.RetryLimit
	}
	if appConfig.Queue.RetryDelay > 0 {
		cfg.QueueRetryDelay = time.Duration(appConfig.Queue.RetryDelay) * time.Second
	}

	// 引擎阈值
	if flag.Lookup("min-repetition").DefValue == fmt.Sprint(cfg.MinRepetition) && appConfig.Engine.MinRepetition > 0 {
		cfg.MinRepetition = appConfig.Engine.MinRepetition
	}
	if flag.Lookup("min-heading-font").DefValue == fmt.Sprint(cfg.MinHeadingFontSize) && appConfig.Engine.MinHeadingFontSize > 0 {
		cfg.MinHeadingFontSize = appConfig.Engine.MinHeadingFontSize
	}
}

// engineOptions 装配预处理引擎配置
// 命令行参数覆盖默认值，配置文件提供完整阈值集
func engineOptions(cfg config, appConfig *structconfig.Config) preprocess.Options {
	options := preprocess.DefaultOptions()
	options.MinRepetition = cfg.MinRepetition
	options.MinHeadingFontSize = cfg.MinHeadingFontSize

	if appConfig == nil {
		return options
	}

	engine := appConfig.Engine
	options.NormalizeText = engine.NormalizeText
	options.RemoveHeadersFooters = engine.RemoveHeadersFooters
	options.SegmentSections = engine.SegmentSections
	options.GroupByFunction = engine.GroupByFunction
	if engine.PositionThreshold > 0 {
		options.PositionThreshold = engine.PositionThreshold
	}
	if engine.SimilarityThreshold > 0 {
		options.SimilarityThreshold = engine.SimilarityThreshold
	}
	if engine.FontSizeRatioThreshold > 0 {
		options.FontSizeRatioThreshold = engine.FontSizeRatioThreshold
	}
	if len(engine.CustomKeywords) > 0 {
		options.CustomKeywords = engine.CustomKeywords
	}

	return options
}

// setupLogger 设置日志系统
func setupLogger(level string, logFile string) *logrus.Logger {
	logger := middleware.GetLogger()

	// 配置日志文件滚动输出
	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // 天
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	// 设置日志级别
	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// setupStorage 设置文件存储服务
func setupStorage(cfg config, appConfig *structconfig.Config) (storage.Storage, error) {
	// MinIO存储需要配置文件提供凭证
	if cfg.StorageType == "minio" {
		if appConfig == nil {
			return nil, fmt.Errorf("minio storage requires a config file with credentials")
		}
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  appConfig.Storage.Endpoint,
			AccessKey: appConfig.Storage.AccessKey,
			SecretKey: appConfig.Storage.SecretKey,
			UseSSL:    appConfig.Storage.UseSSL,
			Bucket:    appConfig.Storage.Bucket,
		})
	}

	// 确保存储目录存在
	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	// 创建本地存储
	return storage.NewLocalStorage(storage.LocalConfig{
		Path: cfg.StoragePath,
	})
}

// setupCache 设置缓存服务
func setupCache(cfg config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.CacheType,
		DefaultTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}

	// 如果配置了Redis，添加Redis配置
	if cfg.CacheType == "redis" {
		cacheConfig.RedisAddr = cfg.RedisAddr
		cacheConfig.RedisPassword = cfg.RedisPassword
		// Redis数据库编号默认为0
	}

	return cache.NewCache(cacheConfig)
}

// setupDatabase 设置数据库
func setupDatabase(cfg config, appConfig *structconfig.Config, logger *logrus.Logger) error {
	dbConfig := &database.Config{
		Type: "sqlite",
		DSN:  filepath.Join(cfg.DataDir, "docstruct.db"),
	}

	// 配置文件可以指定其他数据库后端
	if appConfig != nil && appConfig.Database.DSN != "" {
		dbConfig.Type = appConfig.Database.Type
		dbConfig.DSN = appConfig.Database.DSN
	}

	// 确保数据目录存在
	if dbConfig.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(dbConfig.DSN), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %v", err)
		}
	}

	// 初始化数据库
	return database.Setup(dbConfig, logger)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg config, logger *logrus.Logger) (taskqueue.Queue, error) {
	if !cfg.QueueEnabled {
		return nil, nil
	}

	// 根据配置创建任务队列
	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.QueueConcurrency,
		RetryLimit:    cfg.QueueRetryLimit,
		RetryDelay:    cfg.QueueRetryDelay,
	}

	logger.WithFields(logrus.Fields{
		"type":        cfg.QueueType,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.QueueConcurrency,
		"retry_limit": cfg.QueueRetryLimit,
	}).Info("Setting up task queue")

	queue, err := taskqueue.NewQueue(cfg.QueueType, queueConfig)
	if err != nil {
		return nil, err
	}

	return queue, nil
}

// startWorker 启动本地任务工作者，处理结构化任务
func startWorker(queue taskqueue.Queue, service *services.StructureService, cfg config, logger *logrus.Logger) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("task worker requires a redis queue, got %T", queue)
	}

	workerConfig := &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.QueueConcurrency,
		RetryLimit:    cfg.QueueRetryLimit,
		RetryDelay:    cfg.QueueRetryDelay,
	}

	worker := taskqueue.NewRedisWorker(redisQueue, workerConfig)
	taskHandler := services.NewStructureTaskHandler(service, logger)
	for _, taskType := range taskHandler.GetTaskTypes() {
		worker.RegisterHandler(taskType, taskHandler)
	}

	if err := worker.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task worker: %v", err)
	}

	logger.WithField("concurrency", cfg.QueueConcurrency).Info("Task worker started")
	return worker, nil
}
