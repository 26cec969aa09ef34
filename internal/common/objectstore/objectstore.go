// Package objectstore fetches model archives from an S3-compatible store into
// a local cache directory.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hazard-service/internal/common/config"
	"hazard-service/internal/common/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrObjectNotFound = errors.New("object not found")

// Client is a thin read-only wrapper around a MinIO client.
type Client struct {
	mc       *minio.Client
	cacheDir string
	log      logger.Logger
}

// Validate reports configuration errors before a client is built.
func Validate(cfg config.ObjectStoreConfig) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return errors.New("object_store.endpoint is required")
	}
	if strings.Contains(cfg.Endpoint, "://") {
		return fmt.Errorf("object_store.endpoint must not include scheme: %q", cfg.Endpoint)
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return errors.New("object_store access and secret keys are required")
	}
	return nil
}

func New(cfg config.ObjectStoreConfig, log logger.Logger) (*Client, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "hazard-models")
	}

	return &Client{mc: mc, cacheDir: cacheDir, log: log}, nil
}

// Exists reports whether bucket/key is present.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
}

// Fetch downloads bucket/key into the cache directory and returns the local
// path. A cached copy with a matching size and ETag is reused.
func (c *Client) Fetch(ctx context.Context, bucket, key string) (string, error) {
	info, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		return "", fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	local := c.CachePath(bucket, key, info.ETag)
	if st, err := os.Stat(local); err == nil && st.Size() == info.Size {
		c.log.Debug("object cache hit", map[string]interface{}{"bucket": bucket, "key": key, "path": local})
		return local, nil
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	if err := c.mc.FGetObject(ctx, bucket, key, local, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}

	c.log.Info("object downloaded", map[string]interface{}{
		"bucket": bucket,
		"key":    key,
		"size":   info.Size,
		"path":   local,
	})
	return local, nil
}

// CachePath is the local file an object version is downloaded to.
func (c *Client) CachePath(bucket, key, etag string) string {
	name := filepath.Base(key)
	if etag != "" {
		name = strings.Trim(etag, `"`) + "-" + name
	}
	return filepath.Join(c.cacheDir, bucket, filepath.Dir(filepath.FromSlash(key)), name)
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket" || code == "NotFound"
}
