// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"ragpro-go/internal/chunker"
	"ragpro-go/internal/config"
	"ragpro-go/internal/handler"
	"ragpro-go/internal/middleware"
	"ragpro-go/internal/pipeline"
	"ragpro-go/internal/repository"
	"ragpro-go/internal/service"
	"ragpro-go/internal/vectorindex"
	"ragpro-go/pkg/database"
	"ragpro-go/pkg/embedding"
	"ragpro-go/pkg/kafka"
	"ragpro-go/pkg/llm"
	"ragpro-go/pkg/lock"
	"ragpro-go/pkg/log"
	"ragpro-go/pkg/rerank"
	"ragpro-go/pkg/storage"
	"ragpro-go/pkg/tika"
	"ragpro-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施：MySQL、Redis、MinIO、Elasticsearch
	db := database.NewMySQL(cfg.Database.MySQL.DSN)
	rdb := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	store := storage.NewStore(cfg.MinIO)
	index, err := vectorindex.NewElastic(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("向量索引初始化失败: %v", err)
	}
	producer := kafka.NewProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	docRepo := repository.NewDocumentRepository(db)

	// 5. 初始化外部模型客户端与管道组件
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	rerankClient := rerank.NewClient(cfg.Rerank)
	llmClient := llm.NewClient(cfg.LLM)

	splitter, err := chunker.New(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap, cfg.Pipeline.Separators)
	if err != nil {
		log.Fatalf("分块器初始化失败: %v", err)
	}
	sem := semaphore.NewWeighted(int64(cfg.Pipeline.ModelWorkers))
	locker := lock.NewRedisLocker(rdb)

	indexer := pipeline.NewIndexer(embeddingClient, index, sem)
	coordinator := pipeline.NewCoordinator(
		tikaClient,
		indexer,
		index,
		store,
		docRepo,
		locker,
		producer,
		splitter,
		cfg.Pipeline,
	)

	// 6. 初始化 Service (依赖注入)
	userService := service.NewUserService(userRepo, jwtManager)
	documentService := service.NewDocumentService(coordinator, docRepo)
	chatService := service.NewChatService(indexer, index, rerankClient, llmClient, sem, cfg.Pipeline, cfg.LLM.Prompt)
	adminService := service.NewAdminService(userRepo, docRepo, coordinator)

	// 7. 启动后台 Kafka 消费者，负责补偿失败的向量清理
	go kafka.StartConsumer(cfg.Kafka, coordinator, rdb)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", handler.NewAuthHandler(userService).Register)
			auth.POST("/login", handler.NewAuthHandler(userService).Login)
			auth.POST("/refresh", handler.NewAuthHandler(userService).Refresh)

			authed := auth.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewAuthHandler(userService).Me)
			}
		}

		// Document 路由组，需要认证
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			documents.POST("", handler.NewDocumentHandler(documentService).Upload)
			documents.GET("", handler.NewDocumentHandler(documentService).List)
			documents.DELETE("/:id", handler.NewDocumentHandler(documentService).Delete)
		}

		// Chat 路由组，需要认证
		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chat.POST("", handler.NewChatHandler(chatService).Chat)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager, userService), middleware.AdminAuthMiddleware())
		{
			admin.GET("/stats", handler.NewAdminHandler(adminService).Stats)
			admin.GET("/users", handler.NewAdminHandler(adminService).ListUsers)
			admin.DELETE("/users/:id", handler.NewAdminHandler(adminService).DeleteUser)
			admin.GET("/documents", handler.NewAdminHandler(adminService).ListDocuments)
			admin.DELETE("/documents/:id", handler.NewAdminHandler(adminService).DeleteDocument)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Warnf("Kafka 生产者关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
