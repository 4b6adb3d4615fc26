package minio

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/pkg/errors"
)

// Scheme prefixes object locations.
const Scheme = "s3://"

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid object location")
)

// ObjectLocation addresses one object.
type ObjectLocation struct {
	Bucket string
	Key    string
}

func (l ObjectLocation) String() string { return Scheme + l.Bucket + "/" + l.Key }

// IsObjectURI reports whether s uses the s3:// scheme.
func IsObjectURI(s string) bool { return strings.HasPrefix(s, Scheme) }

// ParseObjectURI splits "s3://bucket/key". Both parts are required.
func ParseObjectURI(uri string) (ObjectLocation, error) {
	if !IsObjectURI(uri) {
		return ObjectLocation{}, ErrInvalidRequest.WithDetail(uri)
	}
	rest := strings.TrimPrefix(uri, Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return ObjectLocation{}, ErrInvalidRequest.WithDetail(uri)
	}
	return ObjectLocation{Bucket: bucket, Key: key}, nil
}

// ObjectStorageRepository reads and writes reaction and feature tables.
type ObjectStorageRepository interface {
	Open(ctx context.Context, loc ObjectLocation) (io.ReadCloser, error)
	Put(ctx context.Context, loc ObjectLocation, data []byte, contentType string) (*UploadResult, error)
	PutStream(ctx context.Context, loc ObjectLocation, r io.Reader, contentType string) (*UploadResult, error)
	Exists(ctx context.Context, loc ObjectLocation) (bool, error)
	List(ctx context.Context, bucket, prefix string) ([]*ObjectMetadata, error)
}

type UploadResult struct {
	Location   ObjectLocation
	ETag       string
	Size       int64
	UploadedAt time.Time
}

type ObjectMetadata struct {
	Location     ObjectLocation
	Size         int64
	ETag         string
	LastModified time.Time
}

type minioRepository struct {
	client   *MinIOClient
	logger   logging.Logger
	partSize int64
}

func NewMinIORepository(client *MinIOClient, log logging.Logger) ObjectStorageRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &minioRepository{
		client:   client,
		logger:   log,
		partSize: client.config.PartSize,
	}
}

func (r *minioRepository) Open(ctx context.Context, loc ObjectLocation) (io.ReadCloser, error) {
	if r.client.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	rc, err := r.client.GetClient().OpenObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetail(loc.String())
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "open object failed").WithDetail(loc.String())
	}
	return rc, nil
}

func (r *minioRepository) Put(ctx context.Context, loc ObjectLocation, data []byte, contentType string) (*UploadResult, error) {
	return r.put(ctx, loc, bytes.NewReader(data), int64(len(data)), contentType)
}

func (r *minioRepository) PutStream(ctx context.Context, loc ObjectLocation, rd io.Reader, contentType string) (*UploadResult, error) {
	return r.put(ctx, loc, rd, -1, contentType)
}

func (r *minioRepository) put(ctx context.Context, loc ObjectLocation, rd io.Reader, size int64, contentType string) (*UploadResult, error) {
	if r.client.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	if loc.Bucket == "" || loc.Key == "" {
		return nil, ErrInvalidRequest
	}
	if contentType == "" {
		contentType = "text/tab-separated-values"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if size < 0 {
		opts.PartSize = uint64(r.partSize)
	}
	info, err := r.client.GetClient().PutObject(ctx, loc.Bucket, loc.Key, rd, size, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "upload failed").WithDetail(loc.String())
	}
	r.logger.Debug("object uploaded",
		logging.String("location", loc.String()),
		logging.Int64("size", info.Size))
	return &UploadResult{
		Location:   loc,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now(),
	}, nil
}

func (r *minioRepository) Exists(ctx context.Context, loc ObjectLocation) (bool, error) {
	_, err := r.client.GetClient().StatObject(ctx, loc.Bucket, loc.Key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "stat object failed").WithDetail(loc.String())
	}
	return true, nil
}

func (r *minioRepository) List(ctx context.Context, bucket, prefix string) ([]*ObjectMetadata, error) {
	var out []*ObjectMetadata
	for obj := range r.client.GetClient().ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "list objects failed")
		}
		out = append(out, &ObjectMetadata{
			Location:     ObjectLocation{Bucket: bucket, Key: obj.Key},
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
