package classify

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/model"
)

// MinIOStore keeps the artifact as a single object in an S3-compatible bucket.
// A PUT replaces the object atomically.
type MinIOStore struct {
	client *minio.Client
	bucket string
	object string
}

// NewMinIOStore creates a client for cfg. No request is made until Load or Save.
func NewMinIOStore(cfg model.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	object := cfg.ObjectName
	if object == "" {
		object = "model.json"
	}
	return &MinIOStore{client: client, bucket: cfg.BucketName, object: object}, nil
}

// Load downloads the artifact
func (s *MinIOStore) Load(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err)
	}
	defer func() { _ = obj.Close() }()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, s.translate(err)
	}
	return buf.Bytes(), nil
}

// Save uploads the artifact, creating the bucket on first use
func (s *MinIOStore) Save(ctx context.Context, data []byte) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		log.Infof("bucket '%s' does not exist, creating", s.bucket)
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}
	return nil
}

// Location returns the bucket/object address
func (s *MinIOStore) Location() string {
	return fmt.Sprintf("minio://%s/%s", s.bucket, s.object)
}

func (s *MinIOStore) translate(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrArtifactNotFound
	}
	return fmt.Errorf("download artifact: %w", err)
}

// NewStore picks the artifact backend named in cfg
func NewStore(cfg model.ModelConfig) (Store, error) {
	switch cfg.Store {
	case "", "file":
		return NewFileStore(cfg.ArtifactPath), nil
	case "minio", "s3":
		return NewMinIOStore(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown model store: %s (supported: file, minio)", cfg.Store)
	}
}
