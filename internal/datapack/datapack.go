// Package datapack caches large problem test-case bundles fetched from
// object storage as zstd-compressed tar archives, so a worker that judges
// the same heavy problem repeatedly doesn't re-download and re-decompress
// its test data on every submission.
package datapack

import (
	"archive/tar"
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"judgecore/internal/cache"
	"judgecore/internal/storage"
	"judgecore/pkg/logger"

	"go.uber.org/zap"
)

const (
	lockTTL      = 30 * time.Second
	lockWaitStep = 100 * time.Millisecond
)

// Cache downloads, verifies, and locally extracts data-pack archives,
// evicting the least-recently-used extracted pack once capacity is hit.
type Cache struct {
	storage   storage.ObjectStorage
	locks     cache.Cache
	bucket    string
	localRoot string
	maxBytes  int64

	mu      sync.Mutex
	lru     *list.List
	entries map[string]*list.Element
	usedBytes int64
}

type lruEntry struct {
	key  string
	path string
	size int64
	etag string
}

func NewCache(objectStorage storage.ObjectStorage, locks cache.Cache, bucket, localRoot string, maxBytes int64) *Cache {
	return &Cache{
		storage:   objectStorage,
		locks:     locks,
		bucket:    bucket,
		localRoot: localRoot,
		maxBytes:  maxBytes,
		lru:       list.New(),
		entries:   make(map[string]*list.Element),
	}
}

// Ensure returns the local directory holding the extracted contents of the
// archive at objectKey with the given expected sha256 digest, downloading
// and extracting it if not already cached. A cached copy is trusted only if
// the object's current ETag still matches the one recorded at extraction
// time; a problem re-uploaded under the same key invalidates it. Concurrent
// callers across workers on the same host coordinate through a Redis lock so
// only one extracts a given pack at a time.
func (c *Cache) Ensure(ctx context.Context, objectKey, expectedSHA256 string) (string, error) {
	if dir, fresh := c.freshLookup(ctx, objectKey); fresh {
		return dir, nil
	}

	lockKey := "datapack-lock:" + objectKey
	if err := c.acquireLock(ctx, lockKey); err != nil {
		return "", err
	}
	defer c.locks.Unlock(ctx, lockKey)

	// Re-check after acquiring the lock: another worker may have populated
	// it while this one waited.
	if dir, fresh := c.freshLookup(ctx, objectKey); fresh {
		return dir, nil
	}

	stat, statErr := c.storage.StatObject(ctx, c.bucket, objectKey)
	if statErr != nil {
		logger.Warn(ctx, "data pack stat failed, extracting without freshness tracking", zap.String("key", objectKey), zap.Error(statErr))
	}

	dir, size, err := c.downloadAndExtract(ctx, objectKey, expectedSHA256)
	if err != nil {
		return "", err
	}

	c.insert(objectKey, dir, size, stat.ETag)
	return dir, nil
}

// freshLookup returns a cached extraction directory only if the object's
// current ETag still matches the one recorded when it was extracted. A stat
// failure doesn't invalidate the cache — it just means this call can't prove
// freshness, so the existing local copy is served as-is.
func (c *Cache) freshLookup(ctx context.Context, key string) (string, bool) {
	dir, etag, ok := c.lookup(key)
	if !ok {
		return "", false
	}
	stat, err := c.storage.StatObject(ctx, c.bucket, key)
	if err != nil {
		return dir, true
	}
	if stat.ETag != etag {
		return "", false
	}
	return dir, true
}

func (c *Cache) acquireLock(ctx context.Context, lockKey string) error {
	deadline := time.Now().Add(lockTTL)
	for time.Now().Before(deadline) {
		ok, err := c.locks.TryLock(ctx, lockKey, lockTTL)
		if err != nil {
			return fmt.Errorf("acquire data pack lock: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockWaitStep):
		}
	}
	return fmt.Errorf("acquire data pack lock: timed out")
}

func (c *Cache) downloadAndExtract(ctx context.Context, objectKey, expectedSHA256 string) (string, int64, error) {
	reader, err := c.storage.GetObject(ctx, c.bucket, objectKey)
	if err != nil {
		return "", 0, fmt.Errorf("download data pack: %w", err)
	}
	defer reader.Close()

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	zr, err := zstd.NewReader(tee)
	if err != nil {
		return "", 0, fmt.Errorf("open zstd stream: %w", err)
	}
	defer zr.Close()

	destDir := filepath.Join(c.localRoot, sanitizeKey(objectKey))
	tmpDir := destDir + ".tmp"
	_ = os.RemoveAll(tmpDir)
	if err := os.MkdirAll(tmpDir, 0750); err != nil {
		return "", 0, fmt.Errorf("create extract dir: %w", err)
	}

	var totalSize int64
	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = os.RemoveAll(tmpDir)
			return "", 0, fmt.Errorf("read tar entry: %w", err)
		}
		target, err := sanitizedEntryPath(tmpDir, header.Name)
		if err != nil {
			_ = os.RemoveAll(tmpDir)
			return "", 0, fmt.Errorf("tar entry %q: %w", header.Name, err)
		}
		if header.Typeflag == tar.TypeDir {
			if err := os.MkdirAll(target, 0750); err != nil {
				return "", 0, fmt.Errorf("mkdir tar entry: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
			return "", 0, fmt.Errorf("mkdir tar entry parent: %w", err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
		if err != nil {
			return "", 0, fmt.Errorf("create tar entry file: %w", err)
		}
		n, err := io.Copy(out, tr)
		_ = out.Close()
		if err != nil {
			_ = os.RemoveAll(tmpDir)
			return "", 0, fmt.Errorf("write tar entry: %w", err)
		}
		totalSize += n
	}

	// Drain any trailing bytes so the hash covers the whole object, not
	// just what the tar reader consumed before hitting EOF.
	_, _ = io.Copy(io.Discard, tee)

	actualSHA256 := hex.EncodeToString(hasher.Sum(nil))
	if expectedSHA256 != "" && actualSHA256 != expectedSHA256 {
		_ = os.RemoveAll(tmpDir)
		return "", 0, fmt.Errorf("data pack checksum mismatch: want %s got %s", expectedSHA256, actualSHA256)
	}

	_ = os.RemoveAll(destDir)
	if err := os.Rename(tmpDir, destDir); err != nil {
		return "", 0, fmt.Errorf("finalize extract dir: %w", err)
	}
	return destDir, totalSize, nil
}

// sanitizedEntryPath joins name onto dstDir and rejects any tar entry that
// would escape it — an absolute path, a "../" component, or a symlink-style
// name that resolves outside dstDir once cleaned.
func sanitizedEntryPath(dstDir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "../") || name == ".." {
		return "", fmt.Errorf("illegal path traversal in tar entry")
	}
	cleanDstDir := filepath.Clean(dstDir)
	target := filepath.Join(cleanDstDir, filepath.Clean(name))
	if target != cleanDstDir && !strings.HasPrefix(target, cleanDstDir+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal path traversal in tar entry")
	}
	return target, nil
}

func (c *Cache) lookup(key string) (string, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return "", "", false
	}
	c.lru.MoveToFront(elem)
	entry := elem.Value.(*lruEntry)
	return entry.path, entry.etag, true
}

func (c *Cache) insert(key, path string, size int64, etag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem := c.lru.PushFront(&lruEntry{key: key, path: path, size: size, etag: etag})
	c.entries[key] = elem
	c.usedBytes += size

	for c.maxBytes > 0 && c.usedBytes > c.maxBytes && c.lru.Len() > 1 {
		back := c.lru.Back()
		if back == elem {
			break
		}
		evicted := back.Value.(*lruEntry)
		c.lru.Remove(back)
		delete(c.entries, evicted.key)
		c.usedBytes -= evicted.size
		if err := os.RemoveAll(evicted.path); err != nil {
			logger.Warn(context.Background(), "evict data pack cleanup failed", zap.String("path", evicted.path), zap.Error(err))
		}
	}
}

func sanitizeKey(key string) string {
	out := make([]byte, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, byte(r))
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
