package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-engine/internal/auth"
	"chat-engine/internal/db"
	"chat-engine/internal/delivery"
	"chat-engine/internal/gateway"
	"chat-engine/internal/handlers"
	"chat-engine/internal/middleware"
	"chat-engine/internal/observability"
	"chat-engine/internal/presence"
	"chat-engine/internal/rabbitmq"
	"chat-engine/internal/repositories"
	"chat-engine/internal/rooms"
	topicrouter "chat-engine/internal/router"
	"chat-engine/internal/telemetry"
)

func main() {
	ctx := context.Background()
	environment := getEnv("ENVIRONMENT", "development")

	shutdownTracing, err := telemetry.InitTracing(ctx, "chat-engine", environment, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "chat_engine.events")
	if amqpURL != "" {
		eventsPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange)
		if err != nil {
			log.Printf("amqp events disabled: %v", err)
		} else {
			observability.SetPublisher(eventsPublisher)
			defer eventsPublisher.Close()
		}
	}
	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit.chat_engine", "chat-engine", environment)

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	rt := topicrouter.New()
	directory := presence.NewDirectory(userRepo, messageRepo, rt)
	resolver := rooms.NewResolver(conversationRepo)
	tracker := delivery.NewTracker(messageRepo, rt)
	chatService := gateway.NewChatService(conversationRepo, messageRepo, rt, directory, tracker)

	verifier := auth.NewJWTVerifier(getEnv("JWT_SECRET", "change-me-in-production"))

	wsHandler := gateway.NewWebSocketHandler(gateway.Deps{
		Router:        rt,
		Directory:     directory,
		Service:       chatService,
		Tracker:       tracker,
		Conversations: conversationRepo,
	}, verifier, gateway.Config{
		Heartbeat: time.Duration(getEnvInt("HEARTBEAT_SECONDS", 60)) * time.Second,
	})

	usersHandler := handlers.NewUsersHandler(userRepo)
	messagesHandler := handlers.NewMessagesHandler(messageRepo)
	conversationsHandler := handlers.NewConversationsHandler(resolver, userRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-engine"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	api := router.Group("/api", authMiddleware)
	api.GET("/users", usersHandler.ListUsers)
	api.GET("/messages", messagesHandler.GetHistory)
	api.GET("/messages/unread-counts", messagesHandler.GetUnreadCounts)
	api.GET("/messages/last-messages", messagesHandler.GetLastMessages)
	api.GET("/conversations/private", conversationsHandler.ResolvePrivate)

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG", "") == "true")

	port := getEnv("PORT", "8080")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
