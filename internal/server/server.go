package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "aisuite/docs"
	"aisuite/internal/ai"
	"aisuite/internal/ai/chatcontext"
	"aisuite/internal/ai/cost"
	"aisuite/internal/ai/tokenizer"
	"aisuite/internal/config"
	"aisuite/internal/handler"
	authHandler "aisuite/internal/handler/auth"
	"aisuite/internal/model/workspace"
	"aisuite/internal/pkg/cache"
	"aisuite/internal/pkg/events"
	"aisuite/internal/pkg/jwt"
	"aisuite/internal/pkg/mongodb"
	"aisuite/internal/pkg/storagefactory"
	"aisuite/internal/repository"
	"aisuite/internal/server/middleware"
	"aisuite/internal/service"
)

const (
	defaultJWTSecret         = "default-secret-key-change-in-production"
	defaultAccessTokenExpiry = 24 * time.Hour
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
	api    *api // MongoDB 不可用时为空
}

// api 业务接口依赖
type api struct {
	jwt           *jwt.JWT
	limiter       *middleware.RateLimiter
	auth          *authHandler.Handler
	conversations *handler.ConversationHandler
	assistants    *handler.AssistantHandler
	workspaces    *handler.WorkspaceHandler
	generations   *handler.AIHandler
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 初始化 MongoDB (可选)
	var mongoClient *mongodb.Client
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, continuing without it")
		} else {
			mongoClient = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

			// 创建索引
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := mongodb.EnsureIndexes(ctx, mongoClient.Database()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure indexes")
			}
			cancel()
		}
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	srv := &Server{
		cfg:    cfg,
		engine: engine,
		mongo:  mongoClient,
		redis:  redisCache,
	}

	if mongoClient != nil {
		a, err := srv.buildAPI(context.Background())
		if err != nil {
			return nil, err
		}
		srv.api = a
	} else {
		log.Warn().Msg("MongoDB not configured, API endpoints disabled")
	}

	// 设置路由
	srv.setupRoutes()

	return srv, nil
}

// buildAPI 组装仓库、厂商与服务
func (s *Server) buildAPI(ctx context.Context) (*api, error) {
	db := s.mongo.Database()

	workspaceRepo := repository.NewWorkspaceRepo(db, s.redis)
	userRepo := repository.NewUserRepo(db)
	conversationRepo := repository.NewConversationRepo(db)
	assistantRepo := repository.NewAssistantRepo(db)
	libraryRepo := repository.NewLibraryRepo(db)

	store, err := storagefactory.NewStorage(ctx, &s.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	cdn := service.NewCDN(store)

	rates, err := s.cfg.Billing.ResolveRates()
	if err != nil {
		return nil, fmt.Errorf("failed to load billing rates: %w", err)
	}
	initialCredits, err := s.cfg.Billing.InitialCreditCount()
	if err != nil {
		return nil, err
	}

	calc := cost.NewCalculator(rates)
	tokens := tokenizer.Default()
	builder := chatcontext.NewBuilder(cdn, tokens)

	p, err := buildProviders(ctx, &s.cfg.AI, calc, builder, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to register AI providers: %w", err)
	}
	for _, capability := range ai.Capabilities {
		log.Debug().Str("capability", string(capability)).Interface("models", p.factory.Models(capability)).Msg("available models")
	}

	// 积分消耗事件
	dispatcher := events.NewDispatcher()
	if s.redis != nil && s.cfg.Billing.EventChannel != "" {
		dispatcher.Subscribe(workspace.CreditUsageEventName, events.PublishTo(s.redis, s.cfg.Billing.EventChannel))
	}
	billing := service.NewBilling(workspaceRepo, dispatcher)

	// 可为空的依赖以接口 nil 传入
	var voices service.VoiceCatalog
	if p.voices != nil {
		voices = p.voices
	}
	var voiceCache service.Cache
	if s.redis != nil {
		voiceCache = s.redis
	}

	jwtSecret := s.cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = defaultJWTSecret
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}
	accessTokenExpiry := s.cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = defaultAccessTokenExpiry
	}

	authSvc := service.NewAuthService(userRepo, workspaceRepo, jwtSecret, accessTokenExpiry, initialCredits)
	conversationSvc := service.NewConversationService(conversationRepo, assistantRepo, p.factory, billing, ai.Model(s.cfg.AI.TitleModel))
	messageSvc := service.NewMessageService(p.factory, billing, userRepo, conversationRepo, assistantRepo, cdn)
	librarySvc := service.NewLibraryService(p.factory, billing, libraryRepo, cdn, voices, voiceCache)

	return &api{
		jwt:           jwt.NewJWT(jwtSecret, accessTokenExpiry),
		limiter:       middleware.NewRateLimiter(s.cfg.RateLimit.RPS, s.cfg.RateLimit.Burst),
		auth:          authHandler.NewHandler(authSvc),
		conversations: handler.NewConversationHandler(conversationSvc, messageSvc),
		assistants:    handler.NewAssistantHandler(service.NewAssistantService(assistantRepo)),
		workspaces:    handler.NewWorkspaceHandler(service.NewWorkspaceService(workspaceRepo)),
		generations:   handler.NewAIHandler(librarySvc, p.factory),
	}, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	deps := map[string]handler.Pinger{"mongo": nil, "redis": nil}
	if s.mongo != nil {
		deps["mongo"] = s.mongo
	}
	if s.redis != nil {
		deps["redis"] = s.redis
	}
	healthHandler := handler.NewHealthHandler(deps)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 本地存储的文件
	if s.cfg.Storage.Type == "local" && s.cfg.Storage.Local != nil {
		if prefix := localFilePrefix(s.cfg.Storage.Local.BaseURL); prefix != "" {
			s.engine.Static(prefix, s.cfg.Storage.Local.BasePath)
		}
	}

	if s.api == nil {
		return
	}
	a := s.api

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 认证接口（公开）
		v1.POST("/auth/register", a.auth.Register)
		v1.POST("/auth/login", a.auth.Login)

		// 需要认证的接口
		authed := v1.Group("")
		authed.Use(middleware.Auth(a.jwt))
		{
			authed.GET("/auth/me", a.auth.GetMe)
			authed.GET("/workspace", a.workspaces.Current)

			authed.GET("/assistants", a.assistants.List)
			authed.POST("/assistants", a.assistants.Create)
			authed.GET("/assistants/:id", a.assistants.Get)

			authed.GET("/conversations", a.conversations.List)
			authed.POST("/conversations", a.conversations.Create)
			authed.GET("/conversations/:id", a.conversations.Get)
			authed.DELETE("/conversations/:id", a.conversations.Delete)

			authed.GET("/ai/models", a.generations.Models)
			authed.GET("/ai/voices", a.generations.Voices)

			authed.GET("/library", a.generations.ListLibrary)
			authed.GET("/library/:id", a.generations.GetLibraryItem)
			authed.DELETE("/library/:id", a.generations.DeleteLibraryItem)

			// 生成接口按用户限流
			generate := authed.Group("")
			generate.Use(middleware.RateLimit(a.limiter))
			{
				generate.POST("/conversations/:id/messages", a.conversations.GenerateMessage)
				generate.POST("/conversations/:id/title", a.conversations.GenerateTitle)

				generate.POST("/ai/completions", a.generations.Complete)
				generate.POST("/ai/code-completions", a.generations.CompleteCode)
				generate.POST("/ai/images", a.generations.GenerateImage)
				generate.POST("/ai/speeches", a.generations.GenerateSpeech)
				generate.POST("/ai/transcriptions", a.generations.Transcribe)
			}
		}
	}
}

// localFilePrefix 取本地存储 base_url 的路径部分作为静态文件路由
func localFilePrefix(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return ""
	}
	return u.Path
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		// 先停止接收请求，进行中的生成在超时内完成
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// 关闭连接
		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return err
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
