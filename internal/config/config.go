// Package config loads worker configuration strictly from environment
// variables; the worker takes no command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds everything cmd/judged needs to wire up the worker.
type Config struct {
	QueueAddr     string
	QueuePassword string
	QueueDB       int
	QueueKey      string

	DatastoreDSN string

	CacheAddr     string
	CachePassword string
	CacheDB       int

	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageUseSSL    bool
	StorageBucket    string

	DataPackLocalDir string
	DataPackMaxBytes int64

	CgroupRoot     string
	SeccompDir     string
	SandboxHelper  string
	SandboxWorkDir string

	LogLevel  string
	LogFormat string
	Env       string
}

// Load reads Config from the process environment. It returns an error for
// every variable required to reach the queue or the store at startup —
// those failures are the only ones the worker treats as fatal.
func Load() (Config, error) {
	cfg := Config{
		QueueAddr:     getenv("JUDGE_QUEUE_ADDR", "127.0.0.1:6379"),
		QueuePassword: os.Getenv("JUDGE_QUEUE_PASSWORD"),
		QueueKey:      getenv("JUDGE_QUEUE_KEY", "judge_queue"),

		DatastoreDSN: os.Getenv("JUDGE_DATASTORE_DSN"),

		CacheAddr:     getenv("JUDGE_CACHE_ADDR", "127.0.0.1:6379"),
		CachePassword: os.Getenv("JUDGE_CACHE_PASSWORD"),

		StorageEndpoint:  os.Getenv("JUDGE_STORAGE_ENDPOINT"),
		StorageAccessKey: os.Getenv("JUDGE_STORAGE_ACCESS_KEY"),
		StorageSecretKey: os.Getenv("JUDGE_STORAGE_SECRET_KEY"),
		StorageBucket:    getenv("JUDGE_STORAGE_BUCKET", "judge-data-packs"),

		DataPackLocalDir: getenv("JUDGE_DATAPACK_DIR", "/var/lib/judgecore/datapacks"),

		CgroupRoot:     getenv("JUDGE_CGROUP_ROOT", "/sys/fs/cgroup/judgecore"),
		SeccompDir:     getenv("JUDGE_SECCOMP_DIR", "/etc/judgecore/seccomp"),
		SandboxHelper:  getenv("JUDGE_SANDBOX_HELPER", "sandbox-init"),
		SandboxWorkDir: getenv("JUDGE_SANDBOX_WORKDIR", "/var/lib/judgecore/runs"),

		LogLevel:  getenv("JUDGE_LOG_LEVEL", "info"),
		LogFormat: getenv("JUDGE_LOG_FORMAT", "json"),
		Env:       getenv("JUDGE_ENV", "production"),
	}

	if cfg.DatastoreDSN == "" {
		return Config{}, fmt.Errorf("JUDGE_DATASTORE_DSN is required")
	}

	cfg.QueueDB = getenvInt("JUDGE_QUEUE_DB", 0)
	cfg.CacheDB = getenvInt("JUDGE_CACHE_DB", 0)
	cfg.StorageUseSSL = getenvBool("JUDGE_STORAGE_USE_SSL", true)
	cfg.DataPackMaxBytes = getenvInt64("JUDGE_DATAPACK_MAX_BYTES", 10<<30)

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
