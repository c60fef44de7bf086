package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"pingpal/backend/internal/auth"
	"pingpal/backend/internal/chat"
	"pingpal/backend/internal/config"
	"pingpal/backend/internal/database"
	"pingpal/backend/internal/handler"
	"pingpal/backend/internal/media"
	"pingpal/backend/internal/presence"
	"pingpal/backend/internal/registry"
	"pingpal/backend/internal/relationship"
	"pingpal/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	// Swagger imports
	_ "pingpal/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           PingPal API
// @version         1.0
// @description     This is the API for the PingPal messaging service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx := context.Background()

	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)
	store := storage.New(database.DB)

	// Redis backs the refresh-token sessions.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPass,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	// MinIO backs attachment and avatar uploads.
	mediaStore, err := media.NewMinIO(ctx, media.Options{
		Endpoint:  config.AppConfig.MinIOEndpoint,
		AccessKey: config.AppConfig.MinIOAccessKey,
		SecretKey: config.AppConfig.MinIOSecretKey,
		Bucket:    config.AppConfig.MinIOBucket,
		UseSSL:    config.AppConfig.MinIOUseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to connect to media storage: %v", err)
	}

	// Wire the coordinators.
	reg := registry.New()
	presenceBroadcaster := presence.New(reg, store.Relationships, store.Users)
	relations := relationship.New(store.Relationships, store.Users, reg)
	chatCoordinator := chat.New(store.Messages, store.Relationships, store.Users, reg)

	handler.Setup(handler.Deps{
		Registry:  reg,
		Presence:  presenceBroadcaster,
		Relations: relations,
		Chat:      chatCoordinator,
		Sessions:  auth.NewRedisSessionStore(redisClient),
		Media:     mediaStore,
	})

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Real-time event stream (token is carried as a query param)
	router.GET("/ws", handler.ServeWS)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", handler.RegisterUser)
			authRoutes.POST("/login", handler.LoginUser)
			authRoutes.POST("/refresh", handler.RefreshToken)
			authRoutes.POST("/logout", handler.LogoutUser)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("", handler.SearchUsers) // Must be before /:id
			userRoutes.GET("/me", handler.GetMe)
			userRoutes.PUT("/me/profile", handler.UpdateProfile)
			userRoutes.GET("/me/invites", handler.GetInvites)
			userRoutes.GET("/me/suggestions", handler.GetSuggestions)

			// Friendship routes
			userRoutes.POST("/:id/request", handler.SendFriendRequest)
			userRoutes.POST("/:id/accept", handler.AcceptFriendRequest)
			userRoutes.POST("/:id/decline", handler.DeclineFriendRequest)
			userRoutes.POST("/:id/block", handler.BlockUser)
		}

		// Message routes (protected)
		messageRoutes := apiV1.Group("/messages")
		messageRoutes.Use(auth.AuthMiddleware())
		{
			messageRoutes.GET("/sidebar", handler.GetSidebar) // Must be before /:id
			messageRoutes.GET("/:id", handler.GetMessages)
			messageRoutes.POST("/:id", handler.SendMessage)
			messageRoutes.PUT("/:id/seen", handler.MarkMessagesSeen)
			messageRoutes.DELETE("/:id", handler.DeleteConversation)
		}
	}

	fmt.Printf("Server is running on %s\n", config.AppConfig.ServerAddr)
	fmt.Println("Swagger UI is available at http://localhost:8080/swagger/index.html")
	log.Fatal(router.Run(config.AppConfig.ServerAddr))
}
