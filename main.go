package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"safechat-service/internal/auth"
	"safechat-service/internal/config"
	"safechat-service/internal/db"
	"safechat-service/internal/handlers"
	"safechat-service/internal/middleware"
	"safechat-service/internal/moderation"
	"safechat-service/internal/notify"
	"safechat-service/internal/observability"
	"safechat-service/internal/rabbitmq"
	"safechat-service/internal/receipts"
	"safechat-service/internal/repositories"
	"safechat-service/internal/telemetry"
	"safechat-service/internal/ws"
)

const serviceName = "safechat-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background(), serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode: %s", rabbitmq.PublisherMode(publisher))

	tokens := auth.NewTokenManager(cfg.JWTSecret)

	userRepo := repositories.NewUserRepo(database)
	friendRepo := repositories.NewFriendshipRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	registry := ws.NewRegistry()
	dispatcher := ws.NewDispatcher(registry)
	registry.SetPresenceListener(ws.NewPresencePublisher(userRepo, friendRepo, dispatcher))

	reconciler := receipts.NewReconciler(chatRepo, messageRepo, dispatcher)
	notifier := notify.NewNotifier(notificationRepo, dispatcher)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Environment)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if cfg.AMQPURL != "" {
		consumer := moderation.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, messageRepo, notifier)
		go func() {
			if err := consumer.Start(consumerCtx); err != nil {
				log.Printf("moderation consumer stopped: %v", err)
			}
		}()
		defer consumer.Close()
	}

	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, friendRepo, reconciler, dispatcher, notifier, publisher, audit)
	friendHandler := handlers.NewFriendHandler(friendRepo, userRepo, notifier)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	wsHandler := ws.NewHandler(registry, tokens)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/chats/start", authMiddleware, chatHandler.StartChat)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostChatMessage)
	router.POST("/chats/:chat_id/messages/read", authMiddleware, chatHandler.MarkMessagesRead)

	router.GET("/friends", authMiddleware, friendHandler.ListFriends)
	router.POST("/friends/request", authMiddleware, friendHandler.SendFriendRequest)
	router.POST("/friends/:user_id/accept", authMiddleware, friendHandler.AcceptFriendRequest)

	router.GET("/notifications", authMiddleware, notificationHandler.ListNotifications)
	router.POST("/notifications/:notification_id/read", authMiddleware, notificationHandler.MarkNotificationRead)

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	log.Printf("listening on :%s (env=%s)", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
