package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-core/internal/auth"
	"chat-core/internal/config"
	"chat-core/internal/db"
	grpcserver "chat-core/internal/grpc"
	"chat-core/internal/guard"
	"chat-core/internal/handlers"
	"chat-core/internal/media"
	"chat-core/internal/middleware"
	"chat-core/internal/observability"
	"chat-core/internal/presence"
	"chat-core/internal/rabbitmq"
	"chat-core/internal/realtime"
	"chat-core/internal/repositories"
	"chat-core/internal/services"
	"chat-core/internal/telemetry"
	"chat-core/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.New(cfg.AMQPURL, cfg.AMQPExchange, cfg.ServiceName)
	defer publisher.Close()
	log.Printf("event publisher mode=%s reason=%q", publisher.Mode(), publisher.Reason())
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	presenceStore := presence.NewStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if closer, ok := presenceStore.(io.Closer); ok {
		defer closer.Close()
	}

	mediaStore, err := media.NewDiskStore(cfg.MediaDir, cfg.MediaBaseURL, cfg.MediaMaxBytes)
	if err != nil {
		log.Fatalf("failed to prepare media dir: %v", err)
	}

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authz := guard.New(chatRepo, userRepo)

	hub := realtime.NewHub()
	dispatcher := realtime.NewDispatcher(hub, chatRepo)

	chatService := services.NewChatService(chatRepo, userRepo, authz, dispatcher, mediaStore)
	messageService := services.NewMessageService(messageRepo, authz, dispatcher, mediaStore)
	accountService := services.NewAccountService(userRepo, tokens, presenceStore, hub, mediaStore)

	gateway := ws.NewGateway(hub, dispatcher, tokens, chatService, messageService, presenceStore)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(handlers.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", observability.MetricsHandler())
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.Static(cfg.MediaBaseURL, mediaStore.Dir())
	router.GET("/ws", gateway.Handle)

	handlers.Register(router, handlers.Handlers{
		Accounts: handlers.NewAccountHandler(accountService, mediaStore, cfg.MediaMaxBytes),
		Chats:    handlers.NewChatHandler(chatService, audit),
		Messages: handlers.NewMessageHandler(messageService),
	}, middleware.AuthMiddleware(tokens))
	handlers.RegisterDebugRoutes(router, handlers.Debug{Audit: audit, Online: hub}, cfg.DebugRoutes)

	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("http listening port=%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	health := grpcserver.NewHealthServer(database)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("failed to listen grpc: %v", err)
	}
	go health.Watch(ctx, 15*time.Second)
	go func() {
		log.Printf("grpc listening port=%s", cfg.GRPCPort)
		if err := health.Serve(lis); err != nil {
			log.Printf("grpc server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	health.GracefulStop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "X-Request-Id", "X-Device-Id")
	cfg.ExposeHeaders = []string{"X-Request-Id"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
