package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "chatcoach/internal/app"
	"chatcoach/internal/bootstrap"
	"chatcoach/internal/cache"
	"chatcoach/internal/platform/rabbitmq"
	"chatcoach/internal/repository"
	"chatcoach/internal/transport/http/handler"
	"chatcoach/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	characterRepo := repository.NewCharacterRepository(app.MySQL)
	episodeRepo := repository.NewEpisodeRepository(app.MySQL)
	roomRepo := repository.NewChatRoomRepository(app.MySQL)
	messageRepo := repository.NewChatMessageRepository(app.MySQL)
	taskRepo := repository.NewTaskRepository(app.MySQL)

	sessionCache := cache.NewSessionCache(app.Redis)
	taskPublisher := rabbitmq.NewTaskPublisher(app.MQConn, app.Config.RabbitMQ.TaskQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		sessionCache,
		app.Config.Auth.AccessSecret,
		app.Config.Auth.RefreshSecret,
		time.Duration(app.Config.Auth.AccessExpireMinute)*time.Minute,
		time.Duration(app.Config.Auth.RefreshExpireDay)*24*time.Hour,
	)
	catalogService := appsvc.NewCatalogService(characterRepo, episodeRepo)
	chatService := appsvc.NewChatService(roomRepo, messageRepo, userRepo, sessionCache)
	llmService := appsvc.NewLLMService(
		userRepo,
		roomRepo,
		taskRepo,
		sessionCache,
		taskPublisher,
		time.Duration(app.Config.Task.ResultWaitSecond)*time.Second,
	)

	authHandler := handler.NewAuthHandler(authService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	chatHandler := handler.NewChatHandler(chatService)
	llmHandler := handler.NewLLMHandler(llmService, sessionCache)

	authRequired := middleware.AuthJWT(app.Config.Auth.AccessSecret)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.GET("/check-email", authHandler.CheckEmail)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authRequired, authHandler.Logout)
	authGroup.GET("/me", authRequired, authHandler.Me)

	catalogGroup := v1.Group("/catalog")
	catalogGroup.Use(authRequired)
	catalogGroup.GET("/characters", catalogHandler.ListCharacters)
	catalogGroup.GET("/characters/:character_id", catalogHandler.GetCharacter)
	catalogGroup.GET("/episodes", catalogHandler.ListEpisodes)
	catalogGroup.GET("/episodes/:episode_id", catalogHandler.GetEpisode)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(authRequired)
	chatGroup.POST("/rooms", chatHandler.CreateRoom)
	chatGroup.GET("/rooms", chatHandler.ListRooms)
	chatGroup.DELETE("/rooms/:room_id", chatHandler.DeleteRoom)
	chatGroup.POST("/messages", chatHandler.SaveMessage)
	chatGroup.GET("/rooms/:room_id/messages", chatHandler.ListMessages)
	chatGroup.GET("/results", chatHandler.ListResults)
	chatGroup.GET("/results/:room_id", chatHandler.GetResult)
	chatGroup.DELETE("/results/:room_id", chatHandler.DeleteResult)

	llmGroup := v1.Group("/llm")
	llmGroup.Use(authRequired)
	llmGroup.POST("/message", llmHandler.SubmitMessage)
	llmGroup.GET("/feedbacks", llmHandler.RequestFeedback)
	llmGroup.GET("/results", llmHandler.FetchResult)
	llmGroup.GET("/tasks/:task_id", llmHandler.TaskStatus)
	llmGroup.GET("/stream", llmHandler.Stream)

	return router
}
