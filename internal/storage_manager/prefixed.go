package storage_manager

import (
	"context"
	"strings"
)

// PrefixedFileProvider scopes another provider to a sub-path.
type PrefixedFileProvider struct {
	provider FileProvider
	prefix   string
}

func NewPrefixedFileProvider(provider FileProvider, prefix string) *PrefixedFileProvider {
	return &PrefixedFileProvider{provider: provider, prefix: strings.Trim(prefix, "/")}
}

func (p *PrefixedFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.provider.Read(ctx, joinKey(p.prefix, path))
}

func (p *PrefixedFileProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.provider.Write(ctx, joinKey(p.prefix, path), data)
}

func (p *PrefixedFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	return p.provider.Exists(ctx, joinKey(p.prefix, path))
}

func (p *PrefixedFileProvider) Delete(ctx context.Context, path string) error {
	return p.provider.Delete(ctx, joinKey(p.prefix, path))
}

func (p *PrefixedFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	files, err := p.provider.List(ctx, joinKey(p.prefix, prefix))
	if err != nil {
		return nil, err
	}
	root := p.prefix + "/"
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, strings.TrimPrefix(f, root))
	}
	return out, nil
}
