package qart

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

type memStore struct {
	objects map[string]string
}

func (m *memStore) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string, _ map[string]string) (*Artifact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[key] = string(data)
	return &Artifact{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (m *memStore) GetPresignedURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]*Artifact, error) {
	var out []*Artifact
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, &Artifact{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) EnsureBucket(context.Context) error { return nil }

func TestUploadDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "out/HMGCR_eQTLGEN/HMGCR_rs12916_formatted_TG_peqtl_1_SMR.smr", []byte("probeID\tb_SMR\n"), 0o644)
	afero.WriteFile(fs, "out/HMGCR_eQTLGEN/HMGCR_rs12916_formatted_TG_peqtl_1_SMR.log", []byte("done\n"), 0o644)

	store := &memStore{objects: map[string]string{}}
	artifacts, err := UploadDir(context.Background(), store, fs, "out/HMGCR_eQTLGEN", "b1", "HMGCR_eQTLGEN")
	if err != nil {
		t.Fatalf("UploadDir failed: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}

	var keys []string
	for k := range store.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{
		"batches/b1/HMGCR_eQTLGEN/HMGCR_rs12916_formatted_TG_peqtl_1_SMR.log",
		"batches/b1/HMGCR_eQTLGEN/HMGCR_rs12916_formatted_TG_peqtl_1_SMR.smr",
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestContentType(t *testing.T) {
	if ContentType("x.smr") != "text/plain" {
		t.Errorf("smr results are text")
	}
	if ContentType("report.json") != "application/json" {
		t.Errorf("json should be detected")
	}
	if ContentType("blob.bin") != "application/octet-stream" {
		t.Errorf("unknown extensions default to octet-stream")
	}
}

func TestDownloadDir_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := afero.NewMemMapFs()
	afero.WriteFile(src, "out/HMGCR_eQTLGEN/HMGCR_rs12916_formatted_TG_peqtl_1_SMR.smr", []byte("probeID\tb_SMR\n"), 0o644)
	afero.WriteFile(src, "out/HMGCR_eQTLGEN/logs/run.log", []byte("done\n"), 0o644)

	store := &memStore{objects: map[string]string{}}
	if _, err := UploadDir(ctx, store, src, "out/HMGCR_eQTLGEN", "b1", "HMGCR_eQTLGEN"); err != nil {
		t.Fatalf("UploadDir failed: %v", err)
	}
	store.objects["batches/b2/HMGCR_eQTLGEN/other.smr"] = "not mine"

	dst := afero.NewMemMapFs()
	got, err := DownloadDir(ctx, store, dst, BatchPrefix("b1", "HMGCR_eQTLGEN"), "fetched")
	if err != nil {
		t.Fatalf("DownloadDir failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(got))
	}

	data, err := afero.ReadFile(dst, "fetched/logs/run.log")
	if err != nil || string(data) != "done\n" {
		t.Errorf("unexpected nested file %q %v", data, err)
	}
	if ok, _ := afero.Exists(dst, "fetched/other.smr"); ok {
		t.Error("artifacts of another batch must not be downloaded")
	}
}

func TestDownloadDir_RejectsEscapingKeys(t *testing.T) {
	store := &memStore{objects: map[string]string{"batches/b1/L/../../../etc/passwd": "x"}}
	if _, err := DownloadDir(context.Background(), store, afero.NewMemMapFs(), "batches/b1/L/", "fetched"); err == nil {
		t.Error("expected an escaping key to be rejected")
	}
}
