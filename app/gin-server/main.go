package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/chromatech/advisor/config"
	"github.com/chromatech/advisor/internal/api/handlers"
	"github.com/chromatech/advisor/internal/api/middleware"
	"github.com/chromatech/advisor/internal/api/routes"
	"github.com/chromatech/advisor/internal/background"
	"github.com/chromatech/advisor/internal/cache"
	"github.com/chromatech/advisor/internal/encryption"
	"github.com/chromatech/advisor/internal/logger"
	"github.com/chromatech/advisor/internal/providers/llm"
	"github.com/chromatech/advisor/internal/queue"
	mongorepo "github.com/chromatech/advisor/internal/repositories/mongo"
	pgrepo "github.com/chromatech/advisor/internal/repositories/postgres"
	"github.com/chromatech/advisor/internal/services"
	"github.com/chromatech/advisor/internal/workers"
)

func main() {
	_ = godotenv.Load()

	settings, err := config.LoadSettings()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(settings.LogLevel)

	codec, err := encryption.NewCodec(settings.EncryptionSecret)
	if err != nil {
		log.WithError(err).Fatal("encryption init error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init PostgreSQL
	if err := config.InitPostgres(settings); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := pgrepo.AutoMigrate(config.PostgresDB); err != nil {
		log.WithError(err).Fatal("PostgreSQL migrate error")
	}
	log.Info("PostgreSQL connected")

	// Init Redis (optional hot tier)
	var hot cache.HotTier
	if err := config.InitRedis(settings); err != nil {
		log.WithError(err).Warn("Redis unavailable, hot cache tier disabled")
	} else if config.RedisClient != nil {
		hot = cache.NewRedisCache(config.RedisClient, cache.DefaultRedisPrefix)
		log.Info("Redis connected")
	}

	// Init MongoDB (optional trace log)
	var traces mongorepo.TraceRepository
	if err := config.InitMongo(settings); err != nil {
		log.WithError(err).Warn("MongoDB unavailable, chat traces disabled")
	} else if config.MongoClient != nil {
		if err := config.EnsureMongoIndexes(settings); err != nil {
			log.WithError(err).Warn("MongoDB index setup failed")
		}
		traces = mongorepo.NewTraceRepo(config.MongoClient.Database(settings.MongoDB), 0)
		log.Info("MongoDB connected")
	}

	provider, err := newProvider(ctx, settings.LLM)
	if err != nil {
		log.WithError(err).Fatal("LLM provider init error")
	}
	defer provider.Close()

	// Repositories
	db := config.PostgresDB
	conversations := pgrepo.NewConversationRepo(db)
	messages := pgrepo.NewMessageRepo(db)
	costs := pgrepo.NewCostRepo(db)
	users := pgrepo.NewUserRepo(db)

	bg := background.NewGroup(log, 10*time.Second)

	responses := cache.NewResponseCache(pgrepo.NewCacheRepo(db), cache.Options{
		TTL:        settings.Chat.CacheTTL,
		Hot:        hot,
		Logger:     log,
		Background: bg,
	})

	chatSvc := services.NewChatService(services.ChatDeps{
		Conversations: conversations,
		Messages:      messages,
		Costs:         costs,
		Users:         users,
		Cache:         responses,
		Queue:         queue.New(settings.Chat.QueueMaxConcurrent, settings.Chat.QueueTimeout),
		LLM:           provider,
		Codec:         codec,
		Traces:        traces,
		Background:    bg,
		Logger:        log,
	}, services.ChatOptions{
		MaxTokens:    settings.LLM.MaxTokens,
		Temperature:  settings.LLM.Temperature,
		HistoryLimit: settings.Chat.HistoryLimit,
		CostPerToken: settings.LLM.CostPerToken,
	})
	sessionSvc := services.NewSessionService(conversations, messages, codec, log)
	userSvc := services.NewUserService(users)
	insightsSvc := services.NewInsightsService(responses, costs, traces)

	retention := &workers.RetentionWorker{
		Conversations: conversations,
		Redis:         config.RedisClient,
		Interval:      settings.Chat.RetentionInterval,
		Logger:        log,
	}
	if err := retention.Start(ctx); err != nil {
		log.WithError(err).Fatal("retention worker init error")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	wsHandler := handlers.NewWSHandler(chatSvc, sessionSvc, log, settings.Chat.AllowedOrigins)
	routes.RegisterRoutes(r, routes.Deps{
		Chat:    handlers.NewChatHandler(chatSvc),
		Session: handlers.NewSessionHandler(sessionSvc, userSvc),
		Admin:   handlers.NewAdminHandler(insightsSvc),
		WS:      wsHandler,
		JWT: middleware.JWTConfig{
			Secret:   settings.JWTSecret,
			Issuer:   settings.JWTIssuer,
			Audience: settings.JWTAudience,
		},
	})

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":     settings.Port,
			"provider": settings.LLM.Provider,
			"model":    provider.Model(),
		}).Info("advisor listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	// hijacked websockets are not covered by srv.Shutdown
	if err := wsHandler.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("websocket drain")
	}

	// drain detached writes (assistant turns, costs, cache saves)
	bg.Close()

	if config.RedisClient != nil {
		_ = config.RedisClient.Close()
	}
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newProvider(ctx context.Context, s config.LLMSettings) (llm.Provider, error) {
	switch s.Provider {
	case config.ProviderVertex:
		return llm.NewVertexGemini(ctx, s.VertexProject, s.VertexLocation, s.Model, s.CredentialsFile)
	default:
		return llm.NewOpenAI(s.OpenAIKey, s.OpenAIBaseURL, s.Model), nil
	}
}
