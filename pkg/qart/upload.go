package qart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// UploadDir uploads every regular file below dir to
// BatchKey(batchID, label, <path relative to dir>).
func UploadDir(ctx context.Context, store Store, fs afero.Fs, dir, batchID, label string) ([]*Artifact, error) {
	var artifacts []*Artifact
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := fs.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()

		artifact, err := store.Upload(ctx, BatchKey(batchID, label, filepath.ToSlash(rel)), f, info.Size(), ContentType(rel), map[string]string{
			"batch_id": batchID,
			"label":    label,
		})
		if err != nil {
			return fmt.Errorf("uploading %s: %w", path, err)
		}
		artifacts = append(artifacts, artifact)
		return nil
	})
	return artifacts, err
}
