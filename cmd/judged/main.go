// Command judged is the judge worker process: it consumes submission jobs
// from the queue and runs each through the judging pipeline until killed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"judgecore/internal/cache"
	"judgecore/internal/checker"
	"judgecore/internal/config"
	"judgecore/internal/datapack"
	"judgecore/internal/db"
	"judgecore/internal/executor"
	"judgecore/internal/judge"
	"judgecore/internal/profile"
	"judgecore/internal/queue"
	"judgecore/internal/sandbox/engine"
	"judgecore/internal/storage"
	"judgecore/internal/store"
	"judgecore/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("judged: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "judged", Env: cfg.Env}); err != nil {
		_, _ = os.Stderr.WriteString("judged: logger init failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.OpenMySQL(ctx, cfg.DatastoreDSN, 10, 5, time.Hour)
	if err != nil {
		logger.Fatal(ctx, "connect to datastore failed", zap.Error(err))
		os.Exit(1)
	}
	defer database.Close()

	appCache := cache.NewRedisCache(cfg.CacheAddr, cfg.CachePassword, cfg.CacheDB)
	defer appCache.Close()
	if err := appCache.Ping(ctx); err != nil {
		logger.Fatal(ctx, "connect to cache failed", zap.Error(err))
		os.Exit(1)
	}

	queueClient := redis.NewClient(&redis.Options{
		Addr:     cfg.QueueAddr,
		Password: cfg.QueuePassword,
		DB:       cfg.QueueDB,
	})
	defer queueClient.Close()
	if err := queueClient.Ping(ctx).Err(); err != nil {
		logger.Fatal(ctx, "connect to queue failed", zap.Error(err))
		os.Exit(1)
	}

	registry := profile.NewRegistry()
	resolver := profile.NewIsolationResolver(registry, "default-seccomp.json")

	sandboxEngine, err := engine.NewEngine(engine.Config{
		CgroupRoot: cfg.CgroupRoot,
		SeccompDir: cfg.SeccompDir,
		HelperPath: cfg.SandboxHelper,

		EnableSeccomp:    true,
		EnableCgroup:     true,
		EnableNamespaces: true,
	}, resolver)
	if err != nil {
		logger.Fatal(ctx, "sandbox engine init failed", zap.Error(err))
		os.Exit(1)
	}

	exec := executor.New(sandboxEngine, registry, cfg.SandboxWorkDir)
	check := checker.New(exec)

	var packs *datapack.Cache
	if cfg.StorageEndpoint != "" {
		objectStorage, err := storage.NewMinIOStorage(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageUseSSL)
		if err != nil {
			logger.Fatal(ctx, "object storage init failed", zap.Error(err))
			os.Exit(1)
		}
		packs = datapack.NewCache(objectStorage, appCache, cfg.StorageBucket, cfg.DataPackLocalDir, cfg.DataPackMaxBytes)
	}

	submissions := store.NewSubmissionRepository(database)
	problems := store.NewProblemRepository(database, appCache, packs, cfg.StorageBucket)

	pipeline := judge.New(submissions, problems, exec, check)
	consumer := queue.NewConsumer(queueClient, cfg.QueueKey)

	logger.Info(ctx, "judge worker starting", zap.String("queue_key", cfg.QueueKey))
	if err := consumer.Run(ctx, pipeline.Judge); err != nil && ctx.Err() == nil {
		logger.Fatal(ctx, "queue consumer exited", zap.Error(err))
		os.Exit(1)
	}
	logger.Info(ctx, "judge worker shutting down")
}
