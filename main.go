package main

import (
	"github.com/devlog/devblog/config"
	"github.com/devlog/devblog/models"
	"github.com/devlog/devblog/routes"
	"github.com/devlog/devblog/storage"
	"github.com/devlog/devblog/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Tag{}, &models.Post{}, &models.Comment{})

	store, err := storage.NewS3Store(cfg)
	if err != nil {
		utils.Sugar.Fatalf("object storage init failed: %v", err)
	}
	images := storage.NewImageManager(store, cfg.CloudFrontDomain)

	r := routes.SetupRouter(db, images)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
