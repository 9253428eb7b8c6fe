package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"payment-service/config"
	"payment-service/controllers"
	"payment-service/database"
	"payment-service/kafka"
	"payment-service/logger"
	"payment-service/models"
	"payment-service/repository"
	"payment-service/routes"
	"payment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[PaymentService] failed to load config: ", err)
	}

	zlog := logger.Initialize(cfg.Env)
	defer zlog.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		zlog.Fatal("Failed to connect to DB", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&models.Payment{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.PayoutRequest{},
	); err != nil {
		zlog.Fatal("Failed to migrate models", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paymentRepo := repository.NewGormPaymentRepo(db)
	walletRepo := repository.NewGormWalletRepo(db)

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	brokers := strings.Split(cfg.KafkaBrokers, ",")
	producer := kafka.NewProducer(brokers, zlog)
	defer producer.Close()

	paymentSvc := services.NewPaymentService(paymentRepo, stripeSvc, producer, cfg.PlatformFeeRate, zlog)
	walletSvc := services.NewWalletService(walletRepo, cfg.MinWithdrawAmount, zlog)

	groupID := "payment-service-group"
	consumers := []*kafka.Consumer{
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     brokers,
			Topic:       cfg.OrderCreatedTopic,
			GroupID:     groupID,
			DLQTopic:    cfg.PaymentEventsDLQ,
			MaxAttempts: cfg.ConsumerMaxAttempts,
		}, producer, services.NewOrderCreatedConsumer(paymentSvc, zlog).Handle, zlog),
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     brokers,
			Topic:       cfg.OrderCompletedTopic,
			GroupID:     groupID,
			DLQTopic:    cfg.PaymentEventsDLQ,
			MaxAttempts: cfg.ConsumerMaxAttempts,
		}, producer, services.NewSettlementConsumer(walletRepo, paymentRepo, zlog).Handle, zlog),
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     brokers,
			Topic:       cfg.OrderCancelledTopic,
			GroupID:     groupID,
			DLQTopic:    cfg.PaymentEventsDLQ,
			MaxAttempts: cfg.ConsumerMaxAttempts,
		}, producer, services.NewRefundConsumer(paymentSvc, zlog).Handle, zlog),
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     brokers,
			Topic:       cfg.GatewayEventsTopic,
			GroupID:     groupID,
			DLQTopic:    cfg.PaymentEventsDLQ,
			MaxAttempts: cfg.ConsumerMaxAttempts,
		}, producer, services.NewGatewayEventConsumer(paymentSvc, zlog).Handle, zlog),
	}
	for _, c := range consumers {
		c := c
		go c.Run(ctx)
		defer c.Close()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(zlog))

	routes.Register(r, routes.Controllers{
		Payment: &controllers.PaymentController{Payments: paymentSvc, Logger: zlog},
		Webhook: &controllers.WebhookController{Stripe: stripeSvc, Publisher: producer, Topic: cfg.GatewayEventsTopic, Logger: zlog},
		Wallet:  &controllers.WalletController{Wallets: walletSvc, Payments: paymentRepo, Logger: zlog},
		Payout:  &controllers.PayoutController{Wallets: walletSvc, Logger: zlog},
	}, cfg.InternalAPIKey, cfg.JWTSecret)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		zlog.Info("Payment service running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server shutdown failed", zap.Error(err))
	}
}
