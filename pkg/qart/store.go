// Package qart uploads batch outputs to S3-compatible storage.
package qart

import (
	"context"
	"io"
	"path"
	"time"
)

// Artifact represents a stored artifact with metadata.
type Artifact struct {
	Key          string            `json:"key"` // e.g. "batches/<id>/<label>/<file>"
	Bucket       string            `json:"bucket"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	URL          string            `json:"url,omitempty"` // Presigned URL (when requested)
}

// Store defines the interface for artifact storage operations.
type Store interface {
	// Upload stores reader under key. size may be -1 when unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (*Artifact, error)

	// Download retrieves an artifact by key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetPresignedURL generates a presigned URL for downloading an artifact.
	GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// List lists all artifacts with the given prefix.
	List(ctx context.Context, prefix string) ([]*Artifact, error)

	// EnsureBucket ensures the bucket exists, creating it if necessary.
	EnsureBucket(ctx context.Context) error
}

// BatchPrefix returns the key prefix of everything uploaded for one job run.
func BatchPrefix(batchID, label string) string {
	return "batches/" + batchID + "/" + label + "/"
}

// BatchKey returns the full key of one output file.
func BatchKey(batchID, label, relPath string) string {
	return BatchPrefix(batchID, label) + path.Clean(relPath)
}

// ContentType guesses a MIME type from smr's output extensions.
func ContentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".log", ".smr", ".msmr", ".txt", ".list":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
