package zarr

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
	"gocloud.dev/gcp"
)

// StoreOptions configure how OpenStore reaches remote object storage
type StoreOptions struct {
	// Anonymous skips credential lookup, for public buckets
	Anonymous bool
	// Region is the S3 region. Defaults to us-east-1.
	Region string
	// Endpoint overrides the S3 endpoint for S3-compatible storage
	Endpoint string
}

// DefaultStoreOptions reads public buckets without credentials
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{Anonymous: true, Region: "us-east-1"}
}

// BlobStore adapts a gocloud bucket to the Store interface
type BlobStore struct {
	bucket *blob.Bucket
	ref    string
}

var (
	_ Store     = (*BlobStore)(nil)
	_ io.Closer = (*BlobStore)(nil)
)

// NewBlobStore wraps an open bucket. The store takes ownership and closes the
// bucket on Close.
func NewBlobStore(bucket *blob.Bucket, ref string) *BlobStore {
	return &BlobStore{bucket: bucket, ref: ref}
}

func (s *BlobStore) Type() string { return BlobStoreType }

func (s *BlobStore) String() string { return s.ref }

func (s *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotfound, key)
		}
		return nil, err
	}
	return r, nil
}

func (s *BlobStore) Put(ctx context.Context, key string, val io.Reader) error {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, val); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *BlobStore) ListDirs(ctx context.Context, prefix string) ([]string, error) {
	prefix = dirPrefix(prefix)
	it := s.bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var dirs []string
	for {
		obj, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !obj.IsDir {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
		if name != "" {
			dirs = append(dirs, name)
		}
	}
	return dirs, nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

// OpenStore returns a store for a location of the form
//
//	s3://<bucket>/<prefix>
//	gs://<bucket>/<prefix>
//	file://<path> or a plain filesystem path
//
// Opening a bucket performs no I/O. Reachability is established by the first
// read, see OpenHierarchy.
func OpenStore(ctx context.Context, location string, opts StoreOptions) (Store, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty store location", ErrInvalidInput)
	}

	if !strings.Contains(location, "://") {
		return OpenLocalStore(location)
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	switch u.Scheme {
	case "file":
		return OpenLocalStore(filepath.FromSlash(u.Host + u.Path))
	case "s3":
		bucket, err := openS3Bucket(ctx, u.Host, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrStoreUnreachable, location, err)
		}
		return NewBlobStore(prefixed(bucket, u.Path), location), nil
	case "gs", "gcs":
		bucket, err := openGCSBucket(ctx, u.Host, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrStoreUnreachable, location, err)
		}
		return NewBlobStore(prefixed(bucket, u.Path), location), nil
	default:
		return nil, fmt.Errorf("%w: unsupported store scheme %q", ErrInvalidInput, u.Scheme)
	}
}

func prefixed(bucket *blob.Bucket, path string) *blob.Bucket {
	prefix := dirPrefix(path)
	if prefix == "" {
		return bucket
	}
	return blob.PrefixedBucket(bucket, prefix)
}

func openS3Bucket(ctx context.Context, name string, opts StoreOptions) (*blob.Bucket, error) {
	if name == "" {
		return nil, fmt.Errorf("missing bucket name")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	cfg := aws.Config{Region: aws.String(region)}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	var (
		sess *session.Session
		err  error
	)
	if opts.Anonymous {
		cfg.Credentials = credentials.AnonymousCredentials
		sess, err = session.NewSession(&cfg)
	} else {
		sess, err = session.NewSessionWithOptions(session.Options{
			Config:            cfg,
			SharedConfigState: session.SharedConfigEnable,
		})
	}
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, sess, name, nil)
}

func openGCSBucket(ctx context.Context, name string, opts StoreOptions) (*blob.Bucket, error) {
	if name == "" {
		return nil, fmt.Errorf("missing bucket name")
	}
	if opts.Anonymous {
		client := gcp.NewAnonymousHTTPClient(gcp.DefaultTransport())
		return gcsblob.OpenBucket(ctx, client, name, nil)
	}

	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	client, err := gcp.NewHTTPClient(
		gcp.DefaultTransport(),
		gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, client, name, nil)
}
