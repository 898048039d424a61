package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// CacheForever is the cache directive applied to every published media
// object. Keys are never rewritten in place, so clients may cache
// indefinitely.
const CacheForever = "public, max-age=31536000, immutable"

// Config contains the information required to talk to an object store.
type Config struct {
	Provider      string
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
}

// Version identifies one historical version of an object in a
// version-enabled bucket. Delete markers are reported as versions too.
type Version struct {
	Key            string
	VersionID      string
	IsDeleteMarker bool
}

// Client represents the storage capabilities the media pipeline expects.
// Every operation is independently retryable; callers aggregate failures
// rather than aborting on the first one.
type Client interface {
	// PutFile uploads a local file under key, overwriting any current
	// version.
	PutFile(ctx context.Context, localPath, key, contentType, cacheControl string) error
	// Put uploads from a reader. Size may be -1 when unknown.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType, cacheControl string) error
	// ListKeys returns the keys of all live objects under prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// ListVersions returns every object version and delete marker under
	// prefix, fully drained.
	ListVersions(ctx context.Context, prefix string) ([]Version, error)
	// RemoveVersion permanently deletes a single version or delete marker.
	RemoveVersion(ctx context.Context, key, versionID string) error
	// RemoveCurrent deletes the live object. On a version-enabled bucket
	// this records a delete marker rather than destroying history.
	RemoveCurrent(ctx context.Context, key string) error
	// PublicURL maps a key to its externally served URL.
	PublicURL(key string) string
	Close() error
}

// New creates an object store client based on the given configuration.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "minio", "s3":
		return newMinioClient(cfg)
	case "memory":
		return NewMemory(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}

type minioClient struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func newMinioClient(cfg Config) (Client, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &minioClient{
		client:  cl,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (m *minioClient) PutFile(ctx context.Context, localPath, key, contentType, cacheControl string) error {
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	}
	if _, err := m.client.FPutObject(ctx, m.bucket, key, localPath, opts); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (m *minioClient) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType, cacheControl string) error {
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, reader, size, opts); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (m *minioClient) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return keys, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *minioClient) ListVersions(ctx context.Context, prefix string) ([]Version, error) {
	var versions []Version
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithVersions: true,
	}) {
		if obj.Err != nil {
			return versions, fmt.Errorf("list versions %s: %w", prefix, obj.Err)
		}
		versions = append(versions, Version{
			Key:            obj.Key,
			VersionID:      obj.VersionID,
			IsDeleteMarker: obj.IsDeleteMarker,
		})
	}
	return versions, nil
}

func (m *minioClient) RemoveVersion(ctx context.Context, key, versionID string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{VersionID: versionID})
	if err != nil {
		return fmt.Errorf("remove %s@%s: %w", key, versionID, err)
	}
	return nil
}

func (m *minioClient) RemoveCurrent(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (m *minioClient) PublicURL(key string) string {
	return m.baseURL + "/" + strings.TrimLeft(key, "/")
}

func (m *minioClient) Close() error {
	return nil
}
