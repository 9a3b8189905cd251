// Package objstore serves file-based datasets kept in an S3 compatible bucket
// under {prefix}{handle}/.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
	"github.com/alexanderjulianmartinez/dsroute/pkg/types"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// objectLister is the subset of *minio.Client the store needs.
type objectLister interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

type Store struct {
	client objectLister
	bucket string
	prefix string
}

var (
	_ backend.FileLister  = (*Store)(nil)
	_ backend.FileFetcher = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	useSSL := cfg.UseSSL
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return newStore(client, bucket, cfg.Prefix), nil
}

func newStore(client objectLister, bucket, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) datasetPrefix(handle string) string {
	return s.prefix + strings.Trim(handle, "/") + "/"
}

func (s *Store) ListFiles(ctx context.Context, handle string) ([]types.FileDescriptor, error) {
	prefix := s.datasetPrefix(handle)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var files []types.FileDescriptor
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, classify(ctx, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		// Directory markers.
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		files = append(files, types.FileDescriptor{
			Name:        name,
			Size:        obj.Size,
			ContentType: obj.ContentType,
			ModifiedAt:  obj.LastModified,
			ETag:        strings.Trim(obj.ETag, `"`),
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Store) Download(ctx context.Context, handle, name string, w io.Writer) (int64, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != strings.TrimPrefix(name, "/") {
		return 0, backend.Errorf(backend.CodeInvalidRequest, "invalid file name %q", name)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.datasetPrefix(handle)+clean, minio.GetObjectOptions{})
	if err != nil {
		return 0, classify(ctx, err)
	}
	defer obj.Close()
	n, err := io.Copy(w, obj)
	if err != nil {
		return n, classify(ctx, err)
	}
	return n, nil
}

// classify converts minio-go errors to backend errors.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey":
		return backend.NewError(backend.CodeNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return backend.NewError(backend.CodePermissionDenied, err)
	case "SlowDown", "SlowDownRead", "RequestLimitExceeded", "TooManyRequests":
		return backend.NewError(backend.CodeRateLimited, err)
	case "ServiceUnavailable", "InternalError", "XMinioServerNotInitialized":
		return backend.NewError(backend.CodeUnavailable, err)
	case "RequestTimeout":
		return backend.NewError(backend.CodeTimeout, err)
	}
	switch {
	case resp.StatusCode == 429:
		return backend.NewError(backend.CodeRateLimited, err)
	case resp.StatusCode >= 500:
		return backend.NewError(backend.CodeUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(msg, "timeout"):
		return backend.NewError(backend.CodeTimeout, err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "connection reset"):
		return backend.NewError(backend.CodeUnavailable, err)
	case strings.Contains(msg, "access denied"):
		return backend.NewError(backend.CodePermissionDenied, err)
	}
	return backend.NewError(backend.CodeMalformedResponse, err)
}
