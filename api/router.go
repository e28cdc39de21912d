package api

import (
	"github.com/fyerfyer/doc-structure-system/api/handler"
	"github.com/fyerfyer/doc-structure-system/api/middleware"
	"github.com/fyerfyer/doc-structure-system/api/model"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	jobHandler *handler.JobHandler,
	structureHandler *handler.StructureHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	// 注册自定义参数校验
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("taglist", model.ValidateTagList)
	}

	// 创建默认的Gin路由引擎
	router := gin.Default()

	// 应用全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestLogger())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 作业管理API
		jobGroup := api.Group("/jobs")
		{
			// 上传文档并创建作业 - POST /api/jobs
			jobGroup.POST("", jobHandler.UploadJob)

			// 获取作业列表 - GET /api/jobs
			jobGroup.GET("", jobHandler.ListJobs)

			// 获取作业状态 - GET /api/jobs/:id/status
			jobGroup.GET("/:id/status", jobHandler.GetJobStatus)

			// 获取结构化结果 - GET /api/jobs/:id/result
			jobGroup.GET("/:id/result", jobHandler.GetJobResult)

			// 更新作业标签 - PUT /api/jobs/:id/tags
			jobGroup.PUT("/:id/tags", jobHandler.UpdateJobTags)

			// 删除作业 - DELETE /api/jobs/:id
			jobGroup.DELETE("/:id", jobHandler.DeleteJob)

			// 获取作业任务列表 - GET /api/jobs/:id/tasks
			if taskHandler != nil {
				jobGroup.GET("/:id/tasks", taskHandler.GetJobTasks)
			}
		}

		// 同步结构化API
		structureGroup := api.Group("/structure")
		{
			// 结构化页面跨度 - POST /api/structure
			structureGroup.POST("", structureHandler.StructureSpans)

			// 结构化Markdown文本 - POST /api/structure/markdown
			structureGroup.POST("/markdown", structureHandler.StructureMarkdown)
		}

		// 任务API
		if taskHandler != nil {
			taskGroup := api.Group("/tasks")
			{
				// 任务回调 - POST /api/tasks/callback
				taskGroup.POST("/callback", taskHandler.HandleCallback)

				// 获取任务状态 - GET /api/tasks/:id
				taskGroup.GET("/:id", taskHandler.GetTaskStatus)
			}
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 如果需要支持跨域请求，可以启用此中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
