// Package storage_manager gives components namespaced file storage on the
// local disk or in an S3 bucket. The bot keeps its example logs, uploaded
// files and session history snapshots here.
package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BackendType selects where files live.
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendS3    BackendType = "s3"
)

// Well-known namespaces.
const (
	NamespaceExamples = "examples"
	NamespaceUploads  = "uploads"
	NamespaceHistory  = "history"
)

// ErrNotFound is returned by Read when the file does not exist.
var ErrNotFound = errors.New("object not found")

// FileProvider is the minimal file API the bot needs.
type FileProvider interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	// List returns paths under prefix relative to the provider root.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config describes the backend.
type Config struct {
	Backend BackendType
	BaseDir string
	Bucket  string
	Prefix  string
	Region  string
	// Client overrides the S3 client built from the default AWS credential chain.
	Client S3Client
}

// StorageManager hands out prefix-scoped providers over one backend.
type StorageManager struct {
	backend  BackendType
	provider FileProvider
}

// New builds the backend described by cfg.
func New(ctx context.Context, cfg Config) (*StorageManager, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		if cfg.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		return &StorageManager{backend: BackendLocal, provider: NewLocalFileProvider(cfg.BaseDir)}, nil

	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		client := cfg.Client
		if client == nil {
			var opts []func(*awsconfig.LoadOptions) error
			if cfg.Region != "" {
				opts = append(opts, awsconfig.WithRegion(cfg.Region))
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			client = NewAWSS3Client(s3.NewFromConfig(awsCfg))
		}
		return &StorageManager{
			backend:  BackendS3,
			provider: NewS3FileProvider(cfg.Bucket, cfg.Prefix, client),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Backend)
	}
}

// NewWithProvider wraps an existing provider, mostly for tests.
func NewWithProvider(p FileProvider) *StorageManager {
	return &StorageManager{provider: p}
}

// GetProvider returns a provider rooted at namespace.
func (m *StorageManager) GetProvider(namespace string) FileProvider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedFileProvider(m.provider, namespace)
}

// Backend reports the configured backend.
func (m *StorageManager) Backend() BackendType {
	return m.backend
}

// Append adds data to the end of path, creating it if needed. Providers have
// no native append, so this is a read-modify-write and callers must not race
// on the same path.
func Append(ctx context.Context, p FileProvider, path string, data []byte) error {
	existing, err := p.Read(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return p.Write(ctx, path, append(existing, data...))
}

func joinKey(prefix, path string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return path
	}
	return prefix + "/" + path
}
