package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/devlog/devblog/config"
	"github.com/devlog/devblog/controllers"
	"github.com/devlog/devblog/middleware"
	"github.com/devlog/devblog/storage"
	"github.com/devlog/devblog/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, images *storage.ImageManager) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db, images)
	commentController := controllers.NewCommentController(db)
	imageController := controllers.NewImageController(images)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.GET("/github", authController.GithubRedirect)
	authGroup.POST("/github/login", authController.GithubLogin)
	authGroup.POST("/token", authController.TokenObtain)
	authGroup.POST("/token/refresh", authController.TokenRefresh)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/:id", postController.GetPost)
	postsGroup.GET("/:id/comments", postController.ListPostComments)

	staff := api.Group("/posts")
	staff.Use(middleware.AuthRequired(), middleware.StaffRequired(db))
	staff.POST("", postController.CreatePost)
	staff.PUT("/:id", postController.UpdatePost)
	staff.DELETE("/:id", postController.DeletePost)

	comments := api.Group("/comments")
	comments.Use(middleware.AuthOptional())
	comments.POST("", commentController.CreateComment)
	comments.PUT("/:id", commentController.UpdateComment)
	comments.DELETE("/:id", commentController.DeleteComment)

	imagesGroup := api.Group("/images")
	imagesGroup.POST("/presign", imageController.PresignUpload)
	imagesGroup.POST("/resize", imageController.Resize)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
