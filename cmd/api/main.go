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

	"editorial-workflow-api/config"
	"editorial-workflow-api/controllers"
	"editorial-workflow-api/middleware"
	"editorial-workflow-api/models"
	"editorial-workflow-api/routes"
	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := config.InitTracing(ctx, "editorial-workflow-api")
	if err != nil {
		log.Printf("Warning: tracing disabled: %v", err)
	}

	config.InitDB()
	if config.AutoMigrateEnabled() {
		if err := models.AutoMigrate(config.DB); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
		log.Println("Database schema migrated")
	}

	workflowCfg, err := config.LoadWorkflowConfig()
	if err != nil {
		log.Fatalf("invalid workflow configuration: %v", err)
	}

	store := services.NewGormStore(config.DB)
	notifier := services.FanoutNotifier{
		services.NewInboxNotifier(config.DB),
		services.NewMailNotifier(config.DB, config.LoadMailSettings()),
	}
	engine := services.NewWorkflowEngine(store, store, notifier, workflowCfg)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(config.LogWriter))
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	})
	router.Use(middleware.CORSMiddleware())

	routes.SetupRoutes(router, routes.Handlers{
		Auth:          controllers.NewAuthController(config.DB),
		Workflow:      controllers.NewWorkflowController(engine),
		Notifications: controllers.NewNotificationController(config.DB),
		Users:         store.GetUser,
		Audit:         engine,
		DB:            config.DB,
	})

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	engine.Close()
	if incidents := engine.AuditIncidents(); incidents > 0 {
		log.Printf("audit incident: %d records could not be written during this run", incidents)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
