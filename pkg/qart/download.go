package qart

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DownloadDir writes every artifact under prefix into dest, keeping the key
// layout below prefix. It is the inverse of UploadDir.
func DownloadDir(ctx context.Context, store Store, fs afero.Fs, prefix, dest string) ([]*Artifact, error) {
	artifacts, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel := path.Clean(strings.TrimPrefix(a.Key, prefix))
		if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
			return nil, fmt.Errorf("artifact key %s escapes %s", a.Key, prefix)
		}
		if err := downloadOne(ctx, store, fs, a.Key, filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
			return nil, err
		}
	}
	return artifacts, nil
}

func downloadOne(ctx context.Context, store Store, fs afero.Fs, key, target string) error {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	defer rc.Close()

	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	f, err := fs.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return f.Close()
}
