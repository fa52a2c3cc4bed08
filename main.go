package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"nyayachat/internal/api"
	"nyayachat/internal/auth"
	"nyayachat/internal/config"
	"nyayachat/internal/llm"
	"nyayachat/internal/redis"
	"nyayachat/internal/service/assistant"
	"nyayachat/internal/storage"
	"nyayachat/internal/worker"
)

const defaultTokenTTL = 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env skipped: %v", err)
	}

	cfg, err := config.Load(os.Getenv("NYAYACHAT_CONFIG"))
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	dbType := os.Getenv("NYAYACHAT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database failed: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database failed: %v", err)
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, caching disabled: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	service := assistant.NewService(db)

	evidenceTTL := assistant.DefaultEvidenceTTL
	if cfg.BasicConfig.EvidenceTTL > 0 {
		evidenceTTL = time.Duration(cfg.BasicConfig.EvidenceTTL) * time.Minute
	}
	cleanTick := assistant.DefaultEvidenceCleanupInterval
	if cfg.BasicConfig.EvidenceCleanTick > 0 {
		cleanTick = time.Duration(cfg.BasicConfig.EvidenceCleanTick) * time.Minute
	}
	service.StartEvidenceCleaner(context.Background(), cleanTick)

	authService := auth.NewService(db, rdb, defaultTokenTTL)
	gateway := llm.NewClient(cfg.Upstream)

	workerCfg := worker.DispatcherConfig{
		MinWorkers:        cfg.BasicConfig.MinWorkers,
		MaxWorkers:        cfg.BasicConfig.MaxWorkers,
		QueueSize:         cfg.BasicConfig.QueueSize,
		WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}
	if workerCfg.MinWorkers <= 0 {
		workerCfg.MinWorkers = 2
	}
	if workerCfg.MaxWorkers < workerCfg.MinWorkers {
		workerCfg.MaxWorkers = workerCfg.MinWorkers * 4
	}
	if workerCfg.WorkerIdleTimeout <= 0 {
		workerCfg.WorkerIdleTimeout = 5 * time.Minute
	}

	fileBase := cfg.BasicConfig.FileBaseDir
	if fileBase == "" {
		fileBase = "data/evidence"
	}
	if err := os.MkdirAll(fileBase, 0o755); err != nil {
		log.Fatalf("create evidence directory failed: %v", err)
	}

	handler := api.NewHandler(service, authService, gateway, workerCfg, fileBase, evidenceTTL, rdb)

	router := gin.Default()
	handler.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("nyayachat listening on %s (db=%s)", addr, dbType)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
