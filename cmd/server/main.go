package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storyforge-backend/internal/config"
	"storyforge-backend/internal/database"
	"storyforge-backend/internal/handlers"
	"storyforge-backend/internal/kie"
	"storyforge-backend/internal/middleware"
	"storyforge-backend/internal/openrouter"
	"storyforge-backend/internal/services"
	"storyforge-backend/internal/supabase"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to initialize database client: %v", err)
	}
	defer dbClient.Close()

	migrator, err := database.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := migrator.Run(); err != nil {
		migrator.Close()
		logger.Fatalf("Migration failed: %v", err)
	}
	migrator.Close()

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		logger.Fatalf("Failed to initialize storage client: %v", err)
	}

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)

	kieClient := kie.NewClient(cfg.KieAPIBaseURL, cfg.KieAPIKey)
	llmClient := openrouter.NewClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey)

	taskService := services.NewTaskService(dbClient, kieClient, logger)
	callbackService := services.NewCallbackService(dbClient, dbClient, storageClient, realtimeClient, logger)
	pollService := services.NewPollService(dbClient, kieClient, callbackService, logger)
	storyService := services.NewStoryService(dbClient, llmClient, taskService, cfg, logger)

	healthHandler := handlers.NewHealthHandler()
	projectsHandler := handlers.NewProjectsHandler(dbClient, storageClient, storyService, logger)
	charactersHandler := handlers.NewCharactersHandler(cfg, dbClient, taskService, logger)
	storyboardsHandler := handlers.NewStoryboardsHandler(cfg, dbClient, storyService, taskService, logger)
	webhookHandler := handlers.NewWebhookHandler(cfg, dbClient, callbackService, logger)
	pollHandler := handlers.NewPollHandler(cfg, pollService, logger)

	router := gin.Default()
	router.Use(gin.Recovery())

	router.GET("/health", healthHandler.HealthCheck)

	// Provider callbacks and the cron sweep authenticate with shared
	// secrets instead of user JWTs.
	router.POST("/api/callback/kie/image", webhookHandler.HandleImageCallback)
	router.POST("/api/callback/kie/video", webhookHandler.HandleVideoCallback)
	router.POST("/api/task/poll", pollHandler.PollTasks)
	router.GET("/api/task/poll", pollHandler.PollTasks)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/projects", projectsHandler.CreateProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.PATCH("/projects/:project_id", projectsHandler.UpdateProject)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)
	api.POST("/projects/:project_id/init-story", projectsHandler.InitStory)
	api.GET("/projects/:project_id/init-status", projectsHandler.InitStatus)

	api.GET("/projects/:project_id/characters", charactersHandler.ListCharacters)
	api.PATCH("/characters/:character_id", charactersHandler.UpdateCharacter)
	api.POST("/characters/:character_id/regenerate-image", charactersHandler.RegenerateImage)
	api.DELETE("/characters/:character_id", charactersHandler.DeleteCharacter)

	api.POST("/projects/:project_id/storyboards/generate", storyboardsHandler.GenerateStoryboards)
	api.GET("/projects/:project_id/storyboards", storyboardsHandler.ListStoryboards)
	api.PATCH("/storyboards/:storyboard_id", storyboardsHandler.UpdateStoryboard)
	api.DELETE("/storyboards/:storyboard_id", storyboardsHandler.DeleteStoryboard)
	api.POST("/storyboards/:storyboard_id/generate-image", storyboardsHandler.GenerateImage)
	api.POST("/storyboards/:storyboard_id/generate-video", storyboardsHandler.GenerateVideo)

	logger.WithField("port", cfg.Port).Info("Server starting")
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
