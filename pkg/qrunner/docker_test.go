package qrunner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeDocker struct {
	exitCode int64
	stdout   string
	stderr   string
	waitErr  error

	created *container.Config
	host    *container.HostConfig
	name    string
	removed []string
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.created, f.host, f.name = cfg, host, name
	return container.CreateResponse{ID: "c-1"}, nil
}

func (f *fakeDocker) ContainerStart(context.Context, string, container.StartOptions) error {
	return nil
}

func (f *fakeDocker) ContainerWait(context.Context, string, container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	if f.waitErr != nil {
		errCh <- f.waitErr
	} else {
		statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	}
	return statusCh, errCh
}

func (f *fakeDocker) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	return io.NopCloser(&buf), nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDocker) Close() error { return nil }

func TestDockerRunner_Invoke(t *testing.T) {
	fake := &fakeDocker{exitCode: 0, stdout: "Analysis completed", stderr: "warning: 3 SNPs excluded"}
	cfg := DefaultContainerConfig()
	cfg.Mounts = []Mount{{Type: "bind", Source: "/data", Destination: "/data", ReadOnly: true}}
	runner := newDockerRunner(fake, cfg)

	result, err := runner.Invoke(context.Background(), Spec{
		ID:         "0199-abc",
		Name:       "HMGCR rs12916",
		Args:       []string{"/opt/smr", "--bfile", "/data/ref"},
		WorkingDir: "/work",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !result.Succeeded() {
		t.Errorf("expected success, got %+v", result)
	}
	if result.Stdout != "Analysis completed" || result.Stderr != "warning: 3 SNPs excluded" {
		t.Errorf("logs not demultiplexed: %q / %q", result.Stdout, result.Stderr)
	}

	if fake.name != "qsmr-0199-abc" {
		t.Errorf("unexpected container name %s", fake.name)
	}
	if !reflect.DeepEqual([]string(fake.created.Entrypoint), []string{"/opt/smr"}) {
		t.Errorf("unexpected entrypoint %v", fake.created.Entrypoint)
	}
	if !reflect.DeepEqual([]string(fake.created.Cmd), []string{"--bfile", "/data/ref"}) {
		t.Errorf("unexpected cmd %v", fake.created.Cmd)
	}
	if fake.created.WorkingDir != "/work" {
		t.Errorf("unexpected working dir %s", fake.created.WorkingDir)
	}
	if len(fake.host.Mounts) != 2 || fake.host.Mounts[0].Target != "/work" || fake.host.Mounts[1].Type != mount.TypeBind || !fake.host.Mounts[1].ReadOnly {
		t.Errorf("unexpected mounts %+v", fake.host.Mounts)
	}
	if fake.host.Resources.NanoCPUs != 20_000_000_000 {
		t.Errorf("expected 20 CPUs, got %d nano", fake.host.Resources.NanoCPUs)
	}
	if fake.host.Resources.Memory != 32<<30 {
		t.Errorf("expected 32Gi, got %d", fake.host.Resources.Memory)
	}
	if len(fake.removed) != 1 {
		t.Errorf("expected container removal, got %v", fake.removed)
	}
}

func TestDockerRunner_NonZeroExit(t *testing.T) {
	fake := &fakeDocker{exitCode: 1, stderr: "Error: can not open the file"}
	runner := newDockerRunner(fake, DefaultContainerConfig())

	result, err := runner.Invoke(context.Background(), Spec{Args: []string{"smr"}, WorkingDir: "/w"})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if result.Status != RunStatusFailed || result.ExitCode != 1 {
		t.Errorf("expected failed/1, got %s/%d", result.Status, result.ExitCode)
	}
}

func TestDockerRunner_WaitError(t *testing.T) {
	fake := &fakeDocker{waitErr: errors.New("daemon went away")}
	runner := newDockerRunner(fake, DefaultContainerConfig())

	_, err := runner.Invoke(context.Background(), Spec{Args: []string{"smr"}, WorkingDir: "/w"})
	if err == nil {
		t.Fatal("expected wait error")
	}
	if len(fake.removed) != 1 {
		t.Errorf("container must be removed even on failure")
	}
}

func TestDockerRunner_BadQuantity(t *testing.T) {
	cfg := DefaultContainerConfig()
	cfg.Resources.CPULimit = "lots"
	runner := newDockerRunner(&fakeDocker{}, cfg)

	if _, err := runner.Invoke(context.Background(), Spec{Args: []string{"smr"}, WorkingDir: "/w"}); err == nil {
		t.Fatal("expected quantity parse error")
	}
}

func TestContainerName(t *testing.T) {
	if got := containerName("HMGCR/rs1 x"); got != "qsmr-HMGCR-rs1-x" {
		t.Errorf("unexpected name %s", got)
	}
	if containerName("") != "" {
		t.Errorf("empty id should let docker pick a name")
	}
}

// TestDockerRunnerDaemon exercises a real daemon.
func TestDockerRunnerDaemon(t *testing.T) {
	t.Skip("Requires Docker daemon and an image with the smr binary - run manually")

	runner, err := NewDockerRunner(DefaultContainerConfig())
	if err != nil {
		t.Fatalf("Failed to create DockerRunner: %v", err)
	}
	defer runner.Close()

	result, err := runner.Invoke(context.Background(), Spec{Args: []string{"echo", "hello"}})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	t.Logf("finished with status %s", result.Status)
}
