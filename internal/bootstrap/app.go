package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	httpHandler "idea-board/internal/handler/http"
	wsHandler "idea-board/internal/handler/websocket"
	"idea-board/internal/hub"
	gormpersistence "idea-board/internal/infra/persistence/gorm"
	mongopersistence "idea-board/internal/infra/persistence/mongo"
	"idea-board/internal/infra/setup"
	redisstate "idea-board/internal/infra/state/redis"
	"idea-board/internal/middleware"
	"idea-board/internal/repository"
	"idea-board/internal/service"
	"idea-board/internal/tasks"
	"idea-board/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB      // STORE_DRIVER=mongo 时为 nil
	MongoClient *mongo.Client // 仅 STORE_DRIVER=mongo
	RedisClient *redis.Client // 未配置 REDIS_ADDR 时为 nil
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	state  repository.StateRepository
	ctx    context.Context
	cancel context.CancelFunc
}

// repositories 是按存储驱动选出的一组仓库实现
type repositories struct {
	users  repository.UserRepository
	ideas  repository.IdeaRepository
	events repository.EventRepository
}

// NewApp 加载配置并初始化应用的所有组件
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		// logrus 还未按配置初始化
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig 按给定配置组装应用
func NewAppWithConfig(cfg *Config) (*App, error) {
	log := NewLogger(cfg)
	log.Info("Configuration loaded successfully")

	app := &App{Config: cfg, Log: log}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	// 1. 存储
	repos, err := app.initStore()
	if err != nil {
		app.closeInfra()
		return nil, err
	}

	// 2. Redis 相关的可选组件
	if cfg.RedisAddr != "" {
		if err := app.initRedis(repos.events); err != nil {
			app.closeInfra()
			return nil, err
		}
	} else {
		log.Warn("REDIS_ADDR not set: rate limiting, token revocation and cross-process live feed are disabled")
	}

	// 3. Services
	authService, err := service.NewAuthService(repos.users, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		app.closeInfra()
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	app.Hub = hub.NewHub()
	var publisher service.MultiPublisher
	if app.state != nil {
		authService.WithDenylist(app.state)
		// 活动日志走任务队列，实时推送走 Redis Pub/Sub，由 Start 中的订阅转发给 Hub
		publisher = service.MultiPublisher{tasks.NewQueuePublisher(app.AsynqClient), app.state}
	} else {
		publisher = service.MultiPublisher{service.StorePublisher{Events: repos.events}, app.Hub}
	}
	ideaService := service.NewIdeaService(repos.ideas, repos.events, publisher)
	log.Info("Services initialized")

	// 4. Router
	router := app.newRouter(authService, ideaService)
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

// NewLogger 按配置创建 logrus Logger，并同步到全局 logger
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	// 各层使用包级 logrus，保持同样的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	logrus.SetOutput(log.Out)
	return log
}

func (a *App) initStore() (repositories, error) {
	cfg := a.Config
	if cfg.StoreDriver == setup.DriverMongo {
		client, db, err := setup.InitMongo(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return repositories{}, fmt.Errorf("failed to init MongoDB: %w", err)
		}
		a.MongoClient = client
		a.Log.Info("MongoDB repositories initialized")
		return repositories{
			users:  mongopersistence.NewMongoUserRepository(db),
			ideas:  mongopersistence.NewMongoIdeaRepository(db),
			events: mongopersistence.NewMongoEventRepository(db),
		}, nil
	}

	db, err := setup.InitDB(cfg.DBConfig())
	if err != nil {
		return repositories{}, fmt.Errorf("failed to init DB: %w", err)
	}
	a.DB = db
	if err := setup.MigrateDB(db); err != nil {
		return repositories{}, fmt.Errorf("failed to migrate DB: %w", err)
	}
	a.Log.WithField("driver", cfg.StoreDriver).Info("SQL repositories initialized")
	return repositories{
		users:  gormpersistence.NewGormUserRepository(db),
		ideas:  gormpersistence.NewGormIdeaRepository(db),
		events: gormpersistence.NewGormEventRepository(db),
	}, nil
}

func (a *App) initRedis(events repository.EventRepository) error {
	cfg := a.Config
	client, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to init Redis: %w", err)
	}
	a.RedisClient = client
	a.state = redisstate.NewRedisStateRepository(client, cfg.KeyPrefix)

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	a.AsynqClient = asynq.NewClient(redisClientOpt)
	a.AsynqServer = worker.NewWorkerServer(redisClientOpt, events, a.Log)
	a.Log.Info("Redis state, asynq client and worker server initialized")
	return nil
}

func (a *App) newRouter(authService *service.AuthService, ideaService *service.IdeaService) *gin.Engine {
	cfg := a.Config
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(a.Log))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigin))
	if a.state != nil {
		router.Use(middleware.RateLimit(a.state, cfg.RateLimitMax, cfg.RateLimitWindow))
	}

	requireAuth := middleware.Auth(authService)
	httpHandler.RegisterRoutes(router,
		httpHandler.NewAuthHandler(authService),
		httpHandler.NewIdeaHandler(ideaService),
		requireAuth)

	ws := wsHandler.NewWebSocketHandler(a.Hub, ideaService, cfg.CORSAllowedOrigin)
	wsRoutes := router.Group("/ws", requireAuth)
	{
		wsRoutes.GET("/ideas", ws.HandleConnection)
		wsRoutes.GET("/ideas/:id", ws.HandleConnection)
	}
	router.GET("/ping", httpHandler.Ping)
	return router
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run(a.ctx)

	if a.state != nil {
		events, closeSub, err := a.state.SubscribeEvents(a.ctx)
		if err != nil {
			// 实时推送不可用不影响 REST 接口
			a.Log.WithError(err).Error("Failed to subscribe to idea events, live feed disabled")
		} else {
			go func() {
				a.Hub.Forward(a.ctx, events)
				_ = closeSub()
			}()
			a.Log.Info("Idea event subscription started")
		}
	}
	if a.AsynqServer != nil {
		go a.AsynqServer.Start()
		a.Log.Info("Asynq worker server routine started")
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 停止 Hub 和事件订阅
	a.cancel()

	// 3. 优雅关闭 Worker Server
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	a.closeInfra()
	a.Log.Info("Application shutdown complete.")
}

// closeInfra 关闭客户端连接，NewApp 中途失败时也会调用
func (a *App) closeInfra() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.MongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.MongoClient.Disconnect(ctx); err != nil {
			a.Log.Errorf("Error disconnecting MongoDB: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}
}
