package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-service/cache"
	apperrors "marketplace-service/common/errors"
	"marketplace-service/common/logger"
	"marketplace-service/common/middleware"
	"marketplace-service/consumer"
	"marketplace-service/controllers"
	"marketplace-service/database"
	"marketplace-service/events"
	authmw "marketplace-service/middleware"
	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"
	dynamopkg "marketplace-service/pkg/dynamodb"
	"marketplace-service/pkg/rabbitmq"
	"marketplace-service/repository"
	"marketplace-service/routes"
	"marketplace-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "marketplace-service"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	// AWS (optional)
	var awsCfg sdkaws.Config
	awsReady := false
	if cfg.needsAWS() {
		if awsCfg, err = awspkg.LoadAWSConfig(context.Background()); err != nil {
			panic("aws config load failed: " + err.Error())
		}
		awsReady = true
	}

	// Logger, tee'd to CloudWatch Logs when enabled
	var cwWriter io.Writer
	if awsReady && cfg.CloudWatchEnabled {
		w, err := awspkg.NewCloudWatchLogsWriter(context.Background(), awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			panic("cloudwatch logs writer init failed: " + err.Error())
		}
		cwWriter = w
	}
	log, err := logger.New(cfg.AppEnv, cwWriter)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Storage
	var (
		notificationRepo repository.NotificationRepository
		refundRepo       repository.RefundRepository
		gormDB           *gorm.DB
		mongoClient      *mongo.Client
	)
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		gormDB, err = database.ConnectPostgres(cfg.Postgres, log, &models.Notification{}, &models.Refund{})
		if err != nil {
			log.Fatal("DB connection failed", zap.Error(err))
		}
		notificationRepo = repository.NewGormNotificationRepository(gormDB)
		refundRepo = repository.NewGormRefundRepository(gormDB)
	case StoreDriverMongo:
		var db *mongo.Database
		mongoClient, db, err = database.ConnectMongo(cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			log.Fatal("MongoDB connection failed", zap.Error(err))
		}
		mongoNotifications := repository.NewMongoNotificationRepository(db)
		mongoRefunds := repository.NewMongoRefundRepository(db)
		indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := mongoNotifications.EnsureIndexes(indexCtx); err != nil {
			log.Fatal("Failed to create notification indexes", zap.Error(err))
		}
		if err := mongoRefunds.EnsureIndexes(indexCtx); err != nil {
			log.Fatal("Failed to create refund indexes", zap.Error(err))
		}
		cancel()
		notificationRepo = mongoNotifications
		refundRepo = mongoRefunds
	default:
		log.Warn("Using in-memory store; data is lost on restart")
		notificationRepo = repository.NewMemoryNotificationRepository()
		refundRepo = repository.NewMemoryRefundRepository()
	}

	// Unread summary cache (optional)
	var unreadCache services.UnreadCache
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		unreadCache = cache.NewRedisUnreadCache(redisClient, cfg.UnreadCacheTTL, log)
		log.Info("Unread summary cache enabled", zap.Duration("ttl", cfg.UnreadCacheTTL))
	}

	// CloudWatch metrics (disabled client records nothing)
	metricsClient := awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, awsReady && cfg.MetricsEnabled)

	// Refund event bus
	var publisher events.Publisher = events.NoopPublisher{}
	var producer *rabbitmq.EventProducer
	switch cfg.EventBus {
	case EventBusSNS:
		publisher = events.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.RefundSNSTopicARN)
	case EventBusRabbitMQ:
		producer, err = rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal("RabbitMQ connection failed", zap.Error(err))
		}
		publisher = events.NewRabbitMQPublisher(producer, cfg.RabbitMQExchange)
	}
	log.Info("Refund event bus configured", zap.String("bus", cfg.EventBus))

	// Dependency injection
	notificationService := services.NewNotificationService(notificationRepo, unreadCache, metricsClient, log)
	aggregator := services.NewAggregator(notificationRepo, unreadCache, metricsClient, log)
	tracker := services.NewReadTracker(notificationService, log)
	refundService := services.NewRefundService(refundRepo, notificationService, publisher, metricsClient, log)

	var presigner controllers.Presigner
	if cfg.AttachmentBucket != "" {
		presigner = awspkg.NewS3Presigner(awsCfg, cfg.AttachmentBucket, cfg.AttachmentURLExpiry)
	}

	refundController := controllers.NewRefundController(refundService, tracker, log)
	attachmentController := controllers.NewAttachmentController(presigner, log)
	notificationController := controllers.NewNotificationController(notificationService, tracker, aggregator, log)

	// SQS consumer for upstream domain events
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	if cfg.NotificationQueueURL != "" {
		var dedupe consumer.Deduper
		if cfg.EventDedupeTable != "" {
			dedupe = dynamopkg.NewIdempotencyStore(dynamopkg.NewClientFromConfig(awsCfg), cfg.EventDedupeTable, cfg.EventDedupeTTL)
		}
		handler := consumer.NewEventHandler(notificationService, dedupe, metricsClient, log)
		sqsConsumer := awspkg.NewSQSConsumer(awsCfg, cfg.NotificationQueueURL, log)
		go sqsConsumer.StartPolling(consumerCtx, handler.Handle)
		log.Info("SQS consumer started", zap.String("queue", cfg.NotificationQueueURL))
	}

	// Router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.MetricsMiddleware(metricsClient, serviceName),
		middleware.SecurityHeaders(),
		middleware.CORSMiddleware(cfg.AllowedOrigins),
		middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst),
		middleware.Timeout(30*time.Second),
		apperrors.ErrorMiddleware(log),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	authCfg := authmw.AuthConfig{JWTSecret: []byte(cfg.JWTSecret), GatewaySecret: cfg.GatewaySecret}
	routes.RegisterRefundRoutes(r, refundController, attachmentController, authCfg)
	routes.RegisterNotificationRoutes(r, notificationController, authCfg)

	// HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Marketplace service started", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	consumerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if producer != nil {
		producer.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Redis close error", zap.Error(err))
		}
	}
	if err := database.ClosePostgres(gormDB); err != nil {
		log.Error("Database close error", zap.Error(err))
	}
	if err := database.DisconnectMongo(mongoClient); err != nil {
		log.Error("MongoDB close error", zap.Error(err))
	}

	log.Info("Marketplace service stopped gracefully")
}
