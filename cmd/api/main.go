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

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
	"github.com/imrishuroy/go-order-lifecycle/internal/config"
	orderevents "github.com/imrishuroy/go-order-lifecycle/internal/events"
	"github.com/imrishuroy/go-order-lifecycle/internal/handlers"
	"github.com/imrishuroy/go-order-lifecycle/internal/idempotency"
	"github.com/imrishuroy/go-order-lifecycle/internal/inventory"
	"github.com/imrishuroy/go-order-lifecycle/internal/lifecycle"
	"github.com/imrishuroy/go-order-lifecycle/internal/logging"
	"github.com/imrishuroy/go-order-lifecycle/internal/money"
	"github.com/imrishuroy/go-order-lifecycle/internal/ordernumber"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
	"github.com/imrishuroy/go-order-lifecycle/internal/pricing"
)

func setupRouter(cfg *config.Config, clients *aws.AWSClients, logger *zap.Logger) (*gin.Engine, error) {
	tolerance, err := cfg.Tolerance()
	if err != nil {
		return nil, err
	}
	numbers, err := ordernumber.NewAllocator(clients.DynamoDB, cfg.CountersTable, cfg.OrderNumberPrefix)
	if err != nil {
		return nil, err
	}

	var notifier orderevents.Notifier = orderevents.NopNotifier{}
	if cfg.OrderEventsQueueURL != "" {
		notifier = orderevents.NewSQSNotifier(aws.NewPublisher(clients.SQS, cfg.OrderEventsQueueURL))
	} else {
		logger.Warn("ORDER_EVENTS_QUEUE_URL not set, order events are dropped")
	}

	svc, err := lifecycle.NewService(lifecycle.Deps{
		DynamoDB:  clients.DynamoDB,
		Orders:    orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.RefundRequestIndex),
		Inventory: inventory.NewStore(clients.DynamoDB, cfg.ProductsTable),
		Numbers:   numbers,
		Pricing:   pricing.NewValidator(money.New(tolerance)),
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return handlers.NewRouter(handlers.HandlerConfig{
		Engine:      svc,
		Idempotency: idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL, cfg.IdempotencyLease),
		Logger:      logger,
	}), nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	r, err := setupRouter(cfg, clients, logger)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.RunLocal {
		runLocal(r, cfg.Port, logger)
		return
	}

	// lambda adapter
	gin.SetMode(gin.ReleaseMode)
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func runLocal(r *gin.Engine, port string, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("running local server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("local server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down local server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
