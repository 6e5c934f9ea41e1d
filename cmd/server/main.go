package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/a360/curation-service/internal/api"
	"github.com/a360/curation-service/internal/gl"
	"github.com/a360/curation-service/internal/logging"
	"github.com/a360/curation-service/internal/promotion"
	"github.com/a360/curation-service/internal/staging"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	log.SetOutput(os.Stdout)
	log.Printf("Curation Service starting (GIT_SHA=%s BUILD_TIME=%s)", os.Getenv("GIT_SHA"), os.Getenv("BUILD_TIME"))

	// The staging store is the system of record for review state; without it
	// there is nothing to serve.
	stagingCfg, err := staging.ConfigFromEnv()
	if err != nil {
		log.Fatalf("Staging store configuration error: %v", err)
	}
	stagingClient, err := staging.NewClient(stagingCfg)
	if err != nil {
		log.Fatalf("Failed to create staging store client: %v", err)
	}

	// Catalog connection is non-fatal at startup; /live stays up and
	// promotion reports the store unavailable until it connects.
	database, err := gl.NewDatabase()
	if err != nil {
		log.Printf("[WARN] Catalog store initialization failed at startup: %v", err)
	}
	if database != nil {
		defer database.Close()
	}

	var promoter api.Promoter
	if database != nil {
		promoter = promotion.NewService(stagingClient, promotion.BeginFunc(
			func(ctx context.Context) (promotion.CatalogTx, error) {
				return database.Begin(ctx)
			},
		))
	}

	handler := api.NewHandler(stagingClient, database, promoter)
	router := setupRouter(handler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
}

func setupRouter(handler *api.Handler) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(logging.JSONLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health and readiness endpoints
	router.GET("/live", func(c *gin.Context) { c.Status(200) })
	router.GET("/ready", handler.Health)
	router.GET("/health", handler.Health)

	v1 := router.Group("/api/v1")
	v1.Use(api.ActorMiddleware())
	{
		v1.GET("/products", handler.GetProducts)
		v1.GET("/products/:id", handler.GetProduct)
		v1.PATCH("/products/:id", handler.UpdateProduct)
		v1.POST("/products/:id/review", handler.SetReviewStatus)
		v1.POST("/products/:id/promote", handler.PromoteProduct)
		v1.PATCH("/assets/:id", handler.UpdateAsset)
		v1.GET("/dashboard", handler.GetDashboard)
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "curation-service",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	return router
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Actor")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
