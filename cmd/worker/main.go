package main

import (
	"DedupVault/config"
	"DedupVault/internal/repo"
	"DedupVault/internal/storage"
	"DedupVault/internal/worker"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	config.InitConfig()
	repo.InitMysql()
	repo.InitRedis()
	switch config.AppConfig.StorageBackend {
	case "fs":
		storage.InitFSStore()
	default:
		storage.InitMinio()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go worker.RunSweepLoop(ctx, config.AppConfig.SweepInterval)

	log.Println("reclaim worker started")
	if err := worker.RunReclaimWorker(ctx); err != nil {
		log.Fatalf("reclaim worker stopped: %v", err)
	}
}
