package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/Kariqs/greenleaf-api/events"
	"github.com/Kariqs/greenleaf-api/geo"
	"github.com/Kariqs/greenleaf-api/initializers"
	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/payments"
	"github.com/Kariqs/greenleaf-api/realtime"
	"github.com/Kariqs/greenleaf-api/routes"
	"github.com/Kariqs/greenleaf-api/services"
	"github.com/Kariqs/greenleaf-api/storage"
	"github.com/Kariqs/greenleaf-api/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := initializers.LoadEnv()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := initializers.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := initializers.ConnectToDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := initializers.SyncDatabase(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	var publisher events.Publisher = events.NopPublisher{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		publisher = kafka
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	images, err := storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Endpoint)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure image storage")
	}

	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		logger.Warn("Payment gateway keys are not set, card payments will fail")
	}

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	mailer := utils.NewMailer(utils.SMTPConfig{
		From:     cfg.FromEmail,
		Password: cfg.FromEmailPassword,
		Host:     cfg.FromEmailSMTP,
		Address:  cfg.SMTPAddress,
	})

	pricing := services.Pricing{DeliveryFee: cfg.DeliveryFee, TaxRate: cfg.TaxRate}
	orders := services.NewOrderService(db, pricing, publisher, logger)
	deliveries := services.NewDeliveryService(db, publisher, logger, cfg.AverageSpeedKmh)
	paymentService := &services.PaymentService{
		DB:        db,
		Orders:    orders,
		Gateway:   payments.NewStripeClient(cfg.StripeAPIBase, cfg.StripeSecretKey, logger),
		Currency:  cfg.PaymentCurrency,
		Publisher: publisher,
		Notifier:  mailer,
		Logger:    logger,
	}

	hub := realtime.NewHub(deliveries, logger)
	deliveries.Broadcaster = hub
	go hub.Run(ctx)

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := gin.New()
	server.MaxMultipartMemory = storage.MaxImageSize + 1<<20
	server.Use(gin.Recovery(), middlewares.RequestLogger(logger))
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURLs,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.Register(server, tokens, routes.Controllers{
		Auth:    &controllers.AuthController{Auth: &services.AuthService{DB: db, Tokens: tokens, Logger: logger}, Logger: logger},
		Product: &controllers.ProductController{DB: db, Images: images, Logger: logger},
		Order:   &controllers.OrderController{Orders: orders, Deliveries: deliveries, Logger: logger},
		Payment: &controllers.PaymentController{
			Payments:      paymentService,
			WebhookSecret: cfg.StripeWebhookSecret,
			Logger:        logger,
		},
		Delivery: &controllers.DeliveryController{Deliveries: deliveries, Logger: logger},
		Default: &controllers.DefaultController{
			Zone: geo.Zone{
				Center:   geo.Point{Lat: cfg.ZoneCenterLat, Lng: cfg.ZoneCenterLng},
				RadiusKm: cfg.ZoneRadiusKm,
			},
			AverageSpeedKmh: cfg.AverageSpeedKmh,
		},
		Hub: hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	cancel()

	logger.Info("Server gracefully stopped")
}
