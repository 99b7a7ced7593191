package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"docshare/config"
	"docshare/internal/attachments"
	"docshare/internal/auth"
	"docshare/internal/directory"
	"docshare/internal/handler"
	"docshare/internal/messagelog"
	"docshare/internal/realtime"
	"docshare/internal/search"
	"docshare/internal/server"
	"docshare/internal/session"
	"docshare/internal/storage"
	"docshare/internal/store"
	"docshare/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	feed := store.NewRedisFeed(rdb)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	entityStore, err := store.NewPostgres(ctx, dsn, feed, l)
	if err != nil {
		log.Fatalf("Failed to connect to the entity store: %v", err)
	}
	defer entityStore.Close()

	objects, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
	})
	if err != nil {
		log.Fatalf("Failed to configure object storage: %v", err)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, rdb)

	dir := directory.New(entityStore)
	msgLog := messagelog.New(entityStore)
	pipeline := attachments.New(objects, msgLog)
	resolver := search.New(entityStore, 0)

	notifier := server.NewNotifier(l)
	registry := session.NewRegistry(func(userID, token string) *session.Session {
		s := session.New(userID, token, session.Deps{
			Directory:  dir,
			Log:        msgLog,
			Pipeline:   pipeline,
			Reconciler: realtime.New(entityStore, msgLog, l),
			Resolver:   resolver,
			Auth:       verifier,
			Logger:     l,
		})
		s.SetOnChange(func() { notifier.Notify(userID) })
		return s
	})
	defer registry.Close()

	srv := server.New(cfg, l)
	srv.SetupRoutes(handler.NewSessionHandler(registry), verifier, notifier)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
