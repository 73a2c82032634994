package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/party-queue-system/internal/auth"
	"github.com/party-queue-system/internal/hub"
	"github.com/party-queue-system/internal/queue"
	"github.com/party-queue-system/internal/room"
	"github.com/party-queue-system/internal/spotify"
	"github.com/party-queue-system/internal/ws"
	"github.com/party-queue-system/pkg/database"
	"github.com/party-queue-system/pkg/events"
	"github.com/party-queue-system/pkg/redis"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "party-queue",
	})

	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found")
	}

	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewMySQL(
		os.Getenv("MYSQL_HOST"),
		os.Getenv("MYSQL_PORT"),
		os.Getenv("MYSQL_USER"),
		os.Getenv("MYSQL_PASSWORD"),
		os.Getenv("MYSQL_DATABASE"),
	)
	if err != nil {
		logger.Fatal("failed to connect to database", "err", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     os.Getenv("REDIS_HOST") + ":" + os.Getenv("REDIS_PORT"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	var kafkaClient *events.KafkaClient
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaClient = events.NewKafkaClient(strings.Split(brokers, ","), "room-events")
		defer kafkaClient.Close()
	} else {
		logger.Warn("KAFKA_BROKERS not set, event mirroring disabled")
	}

	spotifyClient := spotify.NewClient(
		os.Getenv("SPOTIFY_CLIENT_ID"),
		os.Getenv("SPOTIFY_CLIENT_SECRET"),
		os.Getenv("SPOTIFY_REDIRECT_URI"),
	)

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	broadcastHub := hub.New(logger)
	coordinator := queue.NewCoordinator(db, broadcastHub, spotifyClient, kafkaClient, logger)
	roomService := room.NewService(db, redis.NewRoomCache(redisClient), coordinator, baseURL, logger)

	authHandler := auth.NewHandler(spotifyClient, redis.NewTokenStore(redisClient), redis.NewStateStore(redisClient), logger)
	roomHandler := room.NewHandler(roomService)
	queueHandler := queue.NewHandler(coordinator)
	wsHandler := ws.NewHandler(broadcastHub, db, logger)

	router := gin.Default()

	corsOrigins := []string{"http://localhost:5173"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	roomHandler.RegisterPublicRoutes(v1)
	authHandler.RegisterPublicRoutes(v1)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(auth.Middleware(db))
	{
		roomHandler.RegisterRoutes(protected)
		queueHandler.RegisterRoutes(protected)
		authHandler.RegisterRoutes(protected)

		protected.GET("/ws", wsHandler.HandleWebSocket)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("server starting", "port", port)
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("failed to start server", "err", err)
	}
}
