package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"terretahub/config"
	"terretahub/controllers"
	"terretahub/db"
	"terretahub/internal/xpevents"
	"terretahub/logging"
	"terretahub/middlewares"
	"terretahub/routes"
	"terretahub/services"
	"terretahub/store"
	"terretahub/utils"
	"terretahub/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Debug)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	utils.SetJWTSecret(cfg.JWT.Secret)
	utils.SetJWTExpiry(time.Duration(cfg.JWT.Expiry) * time.Minute)

	if err := db.ConnectMongoDB(cfg.Database.URI, logger); err != nil {
		return err
	}
	defer db.DisconnectMongoDB(context.Background())

	mongoStore := store.NewMongo(db.MongoClient, db.MongoDatabase, cfg.Database.Transactions)
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		return err
	}

	hub := websocket.NewHub(logger)
	defer hub.Close()

	// Without Redis the hub is notified directly and awards are not rate limited.
	var notifier services.Notifier = hub
	var limiter services.RateLimiter
	health := map[string]controllers.Pinger{
		"mongo": func(ctx context.Context) error { return db.MongoClient.Ping(ctx, nil) },
	}
	if cfg.Redis.Addr != "" {
		if err := db.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			return err
		}
		defer db.RedisClient.Close()

		notifier = xpevents.NewPublisher(db.RedisClient, cfg.XP.EventStream)
		limiter = xpevents.NewRateLimiter(db.RedisClient, cfg.XP.RateLimitMax, cfg.XP.RateLimitWindow)
		go xpevents.NewConsumer(db.RedisClient, cfg.XP.EventStream, hub, logger).Run(ctx)
		health["redis"] = func(ctx context.Context) error { return db.RedisClient.Ping(ctx).Err() }
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	identity, err := services.NewCognitoProvider(ctx, cfg.Cognito.Region, cfg.Cognito.AppClientId, cfg.Cognito.AppClientSecret)
	if err != nil {
		return err
	}

	policyURI := ""
	if cfg.RBAC.Persist {
		policyURI = cfg.Database.URI
	}
	enforcer, err := middlewares.NewEnforcer(cfg.RBAC.Policies, policyURI, logger)
	if err != nil {
		return err
	}

	ledger := services.NewXpLedger(mongoStore)
	levelSync := services.NewProfileLevelSync(mongoStore, notifier, logger)
	rewarder := services.NewProfileChangeRewarder(ledger, levelSync, logger)
	profiles := services.NewProfileService(mongoStore, rewarder, logger)
	admins := services.NewAdminService(mongoStore)

	router := setupRouter(cfg, logger)
	routes.Register(router, routes.Handlers{
		Auth: &controllers.AuthController{
			Identity: identity,
			Profiles: profiles,
			Admins:   admins,
			Logger:   logger,
		},
		XP: &controllers.XPController{
			Profiles: profiles,
			Sync:     levelSync,
			Activity: services.NewActivityService(levelSync, limiter, logger),
			Ledger:   ledger,
			Audit:    mongoStore,
		},
		Admin:    &controllers.AdminController{Admins: admins},
		Hub:      hub,
		Admins:   mongoStore,
		Enforcer: enforcer,
		Health:   health,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupRouter(cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestLogger(logger))

	// Set trusted proxies (adjust as needed)
	router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middlewares.RequestIDHeader},
		AllowCredentials: true,
	}))
	router.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	return router
}
