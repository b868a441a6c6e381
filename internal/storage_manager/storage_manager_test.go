package storage_manager

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memS3 is an in-memory S3Client.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemS3() *memS3 { return &memS3{objects: map[string][]byte{}} }

func (m *memS3) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memS3) PutObject(_ context.Context, bucket, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (m *memS3) HeadObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[bucket+"/"+key]; !ok {
		return ErrNotFound
	}
	return nil
}

func (m *memS3) DeleteObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memS3) ListObjects(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if key, ok := strings.CutPrefix(k, bucket+"/"); ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func exerciseProvider(t *testing.T, p FileProvider) {
	t.Helper()
	ctx := context.Background()

	ok, err := p.Exists(ctx, "conversas.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Read(ctx, "conversas.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Append(ctx, p, "conversas.txt", []byte("cliente: oi\n\n")))
	require.NoError(t, Append(ctx, p, "conversas.txt", []byte("cliente: tchau\n\n")))
	data, err := p.Read(ctx, "conversas.txt")
	require.NoError(t, err)
	assert.Equal(t, "cliente: oi\n\ncliente: tchau\n\n", string(data))

	require.NoError(t, p.Write(ctx, "docs/manual.md", []byte("# manual")))
	files, err := p.List(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/manual.md"}, files)

	require.NoError(t, p.Delete(ctx, "docs/manual.md"))
	ok, err = p.Exists(ctx, "docs/manual.md")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, p.Delete(ctx, "docs/manual.md"))
}

func TestLocalNamespace(t *testing.T) {
	m, err := New(context.Background(), Config{Backend: BackendLocal, BaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, m.Backend())
	exerciseProvider(t, m.GetProvider(NamespaceExamples))
}

func TestS3Namespace(t *testing.T) {
	client := newMemS3()
	m, err := New(context.Background(), Config{Backend: BackendS3, Bucket: "bot", Prefix: "prod/", Client: client})
	require.NoError(t, err)
	exerciseProvider(t, m.GetProvider(NamespaceExamples))

	require.NoError(t, m.GetProvider(NamespaceUploads).Write(context.Background(), "a.txt", []byte("x")))
	_, ok := client.objects["bot/prod/uploads/a.txt"]
	assert.True(t, ok)
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewWithProvider(NewLocalFileProvider(t.TempDir()))

	require.NoError(t, m.GetProvider(NamespaceHistory).Write(ctx, "sessions.json", []byte("{}")))
	ok, err := m.GetProvider(NamespaceExamples).Exists(ctx, "sessions.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewValidation(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, Config{Backend: BackendLocal})
	assert.Error(t, err)
	_, err = New(ctx, Config{Backend: BackendS3})
	assert.Error(t, err)
	_, err = New(ctx, Config{Backend: "ftp"})
	assert.Error(t, err)
}
