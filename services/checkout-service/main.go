package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	aws_pkg "github.com/yashrajoria/beacon-market/pkg/aws"
	ddb "github.com/yashrajoria/beacon-market/pkg/dynamodb"
	"github.com/yashrajoria/beacon-market/services/checkout-service/controllers"
	"github.com/yashrajoria/beacon-market/services/checkout-service/database"
	"github.com/yashrajoria/beacon-market/services/checkout-service/kafka"
	"github.com/yashrajoria/beacon-market/services/checkout-service/middleware"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"github.com/yashrajoria/beacon-market/services/checkout-service/routes"
	"github.com/yashrajoria/beacon-market/services/checkout-service/services"
	"github.com/yashrajoria/beacon-market/services/common/auth"
	"github.com/yashrajoria/beacon-market/services/common/logger"
	commonmw "github.com/yashrajoria/beacon-market/services/common/middleware"
	"go.uber.org/zap"
)

const serviceName = "checkout-service"

func main() {
	bootLogger := logger.Initialize(os.Getenv("APP_ENV"))
	database.LoadEnv(bootLogger)

	cfg, err := LoadConfig()
	if err != nil {
		bootLogger.Fatal("Config load failed", zap.Error(err))
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- AWS setup ---
	awsCfg, err := aws_pkg.LoadAWSConfig(rootCtx)
	if err != nil {
		bootLogger.Fatal("Failed to load AWS config", zap.Error(err))
	}

	// --- Logging (CloudWatch sink is optional) ---
	appLogger := bootLogger
	if cfg.CloudWatchEnabled {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(rootCtx, serviceName)
		if err != nil {
			bootLogger.Warn("CloudWatch Logs init failed (non-fatal)", zap.Error(err))
		} else {
			appLogger = logger.InitializeWithWriter(cfg.AppEnv, cwLogs)
		}
	}
	defer appLogger.Sync()

	metricsClient, err := aws_pkg.NewMetricsClient(rootCtx)
	if err != nil {
		appLogger.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	// --- Database ---
	db, err := database.ConnectPostgres(cfg.Postgres, appLogger)
	if err != nil {
		appLogger.Fatal("DB connection failed", zap.Error(err))
	}
	store := repository.NewGormStore(db)

	// --- Inventory backend ---
	var reserver repository.InventoryReserver = repository.NewGormInventoryReserver()
	if cfg.InventoryBackend == InventoryBackendDynamoDB {
		reserver = repository.NewDynamoInventoryReserver(ddb.NewClientFromConfig(awsCfg), cfg.InventoryTable, appLogger)
		appLogger.Info("Using DynamoDB inventory", zap.String("table", cfg.InventoryTable))
	}

	// --- Checkout guard (optional) ---
	opts := services.CheckoutOptions{
		LockTTL:   cfg.CheckoutLockTTL,
		ResultTTL: cfg.IdempotencyTTL,
		Metrics:   metricsClient,
	}
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(rootCtx, cfg.RedisURL)
		if err != nil {
			appLogger.Warn("Redis unavailable, checkout guard disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			opts.Guard = repository.NewRedisCheckoutGuard(redisClient)
		}
	}

	// --- Events ---
	var producer kafka.ProducerAPI
	if len(cfg.KafkaBrokers) > 0 {
		p := kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic, appLogger)
		defer p.Close()
		producer = p
	}
	var snsClient aws_pkg.SNSPublisher
	if cfg.OrderSNSTopicARN != "" {
		snsClient = aws_pkg.NewSNSClient(awsCfg).WithEventType(models.EventOrderCreated)
	}
	var receipts aws_pkg.ObjectWriter
	if cfg.ReceiptsBucket != "" {
		receipts = aws_pkg.NewS3ObjectWriter(awsCfg, cfg.ReceiptsBucket)
	}
	opts.Events = services.NewOrderEventPublisher(snsClient, cfg.OrderSNSTopicARN, producer, receipts, metricsClient, appLogger)

	// --- Dependency injection ---
	notificationService := services.NewNotificationService(store.Notifications(), appLogger)
	opts.Notifier = notificationService
	checkoutService := services.NewCheckoutService(store, reserver, opts, appLogger)

	ctrls := routes.Controllers{
		Checkout:      controllers.NewCheckoutController(checkoutService),
		Cart:          controllers.NewCartController(services.NewCartService(store.Carts(), store.Products(), appLogger)),
		Orders:        controllers.NewOrderController(services.NewOrderService(store.Orders(), appLogger)),
		Accounts:      controllers.NewAccountController(services.NewAccountService(store.Accounts(), appLogger)),
		Notifications: controllers.NewNotificationController(notificationService),
	}

	// --- Checkout queue consumer (optional) ---
	if cfg.CheckoutQueueURL != "" {
		consumer := services.NewSQSCheckoutConsumer(aws_pkg.NewSQSConsumer(awsCfg, cfg.CheckoutQueueURL), checkoutService, metricsClient, appLogger)
		go consumer.Start(rootCtx)
	}

	// --- HTTP router ---
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(commonmw.MetricsMiddleware(metricsClient, serviceName))
	r.Use(commonmw.RequestLogger(appLogger))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORSMiddleware())
	r.Use(commonmw.RateLimitMiddleware(cfg.RateLimitPerMin, cfg.RateLimitBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})
	verifier := auth.NewTokenVerifier(cfg.JWTSecret)
	if cfg.TrustGatewayHeaders && verifier.Enabled() {
		appLogger.Warn("TRUST_GATEWAY_HEADERS ignored because JWT_SECRET is set")
	}
	routes.RegisterRoutes(r, middleware.AuthMiddleware(verifier, cfg.TrustGatewayHeaders), ctrls, cfg.CheckoutTimeout)

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		appLogger.Info("Checkout Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Initiating graceful shutdown...")
	stop()

	httpShutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(httpShutdownCtx); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}

	if err := database.Close(db); err != nil {
		appLogger.Error("Database close error", zap.Error(err))
	}

	log.Println("Checkout Service stopped gracefully")
}
