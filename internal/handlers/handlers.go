package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mythweaver/api/internal/config"
	"mythweaver/api/internal/middleware"
	"mythweaver/api/internal/models"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, req models.ImageRequest) (string, error)
}

type ImageReader interface {
	GetByID(ctx context.Context, id int64) (models.GeneratedImage, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.GeneratedImage, error)
	ListByLinking(ctx context.Context, userID int64, linking models.Linking, limit, offset int) ([]models.GeneratedImage, error)
}

type SocketHub interface {
	Serve(w http.ResponseWriter, r *http.Request, userID int64, opts *websocket.AcceptOptions) error
}

type Dependencies struct {
	DB      Pinger
	Cache   *redis.Client
	Jobs    JobQueue
	Images  ImageReader
	Sockets SocketHub
}

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	db      Pinger
	cache   *redis.Client
	jobs    JobQueue
	images  ImageReader
	sockets SocketHub
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Dependencies) HandlerSet {
	return HandlerSet{
		log:     log,
		cfg:     cfg,
		db:      deps.DB,
		cache:   deps.Cache,
		jobs:    deps.Jobs,
		images:  deps.Images,
		sockets: deps.Sockets,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(h.cfg.Security.JWTAccessSecret))
	{
		images := v1.Group("/images")
		images.POST("/generate", h.GenerateImages)
		images.GET("", h.ListImages)
		images.GET("/:id", h.GetImage)

		v1.GET("/ws", h.Notifications)
	}
}

func currentUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return userID, ok
}
