package bootstrap

import (
	"context"
	"fmt"
	"log"

	"vision-assistant-be/internal/config"
	"vision-assistant-be/internal/controller"
	"vision-assistant-be/internal/handler"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/pkg/mailer"
	"vision-assistant-be/internal/pkg/metrics"
	"vision-assistant-be/internal/repository/memory"
	"vision-assistant-be/internal/repository/unitofwork"
	"vision-assistant-be/internal/service"
	"vision-assistant-be/internal/websocket"
	"vision-assistant-be/pkg/assistant"
	"vision-assistant-be/pkg/llm/factory"
	pktNats "vision-assistant-be/pkg/nats"
	"vision-assistant-be/pkg/storage"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	UserController     controller.IUserController
	SessionController  controller.ISessionController
	AnalysisController controller.IAnalysisController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	SocketHandler *handler.SessionSocketHandler
	WebSocketHub  *websocket.Hub

	MetricsRegistry *prometheus.Registry
	Logger          logger.ILogger

	closers []func()
}

// NewContainer wires every dependency. ctx bounds the background work that
// outlives single requests, such as socket turns.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	wsLogger := logger.NewIsolatedLogger(cfg.App.SocketLogFilePath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.MustNewMetrics(registry)

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		sysLogger,
	)

	c := &Container{
		MetricsRegistry: registry,
		Logger:          sysLogger,
	}
	c.closers = append(c.closers, func() {
		_ = sysLogger.Sync()
		_ = wsLogger.Sync()
	})

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	// NATS is optional; without it events stay in-process.
	var forwarder service.EventForwarder
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(ctx, cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			forwarder = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// Redis is optional; without it the hub only reaches local sockets.
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// 4. Providers
	assistantClient := assistant.NewOpenAIClient(assistant.OpenAIConfig{
		APIKey:  cfg.Assistant.APIKey,
		BaseURL: cfg.Assistant.BaseURL,
	})

	visionProvider, err := factory.NewVisionProvider(factory.Config{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.VisionModel,
		OpenAIKey:     cfg.Assistant.APIKey,
		OpenAIBaseURL: cfg.Assistant.BaseURL,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OllamaModel:   cfg.Ai.OllamaModel,
	})
	if err != nil {
		return nil, fmt.Errorf("init vision provider: %w", err)
	}
	log.Printf("[INFO] Using vision provider: %s", cfg.Ai.LLMProvider)

	imageStore := storage.NewLocalImageStore(
		cfg.Storage.UploadDir,
		cfg.App.BaseURL+cfg.Storage.PublicPath,
		cfg.Storage.MaxUploadBytes,
	)

	// 5. Services
	publisherService := service.NewPublisherService(cfg.App.ThreadEventsTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.ThreadEventsTopic,
		uowFactory,
		forwarder,
		sysLogger,
	)

	threadService := service.NewThreadService(
		uowFactory,
		assistantClient,
		memory.NewRunLockRepository(cfg.Assistant.RunLockTTL),
		publisherService,
		appMetrics,
		sysLogger,
		service.ThreadServiceConfig{
			AssistantID:       cfg.Assistant.AssistantID,
			PollInterval:      cfg.Assistant.PollInterval,
			RunTimeout:        cfg.Assistant.RunTimeout,
			DeleteThreadOnEnd: cfg.Assistant.DeleteThreadOnEnd,
		},
	)
	analysisService := service.NewAnalysisService(
		threadService,
		imageStore,
		visionProvider,
		cfg.Ai.VisionPrompt,
		sysLogger,
	)
	authService := service.NewAuthService(uowFactory, emailService, publisherService, sysLogger, service.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		JWTTTL:    cfg.Auth.JWTTTL,
	})

	// 6. WebSockets
	wsHub := websocket.NewHub(rdb, websocket.DefaultRedisChannel, wsLogger)
	dispatcher := websocket.NewDispatcher(threadService, analysisService, wsLogger)

	// 7. Controllers
	c.UserController = controller.NewUserController(authService, cfg.Auth.JWTSecret)
	c.SessionController = controller.NewSessionController(threadService, cfg.Auth.JWTSecret)
	c.AnalysisController = controller.NewAnalysisController(analysisService, cfg.Auth.JWTSecret)
	c.SocketHandler = handler.NewSessionSocketHandler(ctx, wsHub, dispatcher, cfg.Auth.JWTSecret, appMetrics, wsLogger)
	c.WebSocketHub = wsHub
	c.ConsumerService = consumerService

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
