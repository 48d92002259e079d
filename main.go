package main

import (
	"DedupVault/config"
	"DedupVault/internal/repo"
	"DedupVault/internal/storage"
	"DedupVault/router"
)

// main initializes services and starts the HTTP server.
func main() {
	config.InitConfig()
	repo.InitMysql()
	repo.InitRedis()
	initStorage()

	router := router.InitRouter()

	router.Run(":8000")
}

func initStorage() {
	switch config.AppConfig.StorageBackend {
	case "fs":
		storage.InitFSStore()
	default:
		storage.InitMinio()
	}
}
