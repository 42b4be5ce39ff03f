package qrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// dockerAPI is the subset of the Docker Engine client the runner uses.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// DockerRunner runs each invocation in a fresh container and removes it
// afterwards. The working directory is bind-mounted at the same path so
// relative output prefixes land on the host.
type DockerRunner struct {
	client      dockerAPI
	config      ContainerConfig
	outputLimit int
}

// NewDockerRunner connects to the daemon named by DOCKER_HOST (or the default socket).
func NewDockerRunner(config ContainerConfig) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return newDockerRunner(cli, config), nil
}

func newDockerRunner(api dockerAPI, config ContainerConfig) *DockerRunner {
	return &DockerRunner{client: api, config: config, outputLimit: OutputLimit}
}

func (r *DockerRunner) Name() string {
	return BackendDocker
}

// Close releases the daemon connection.
func (r *DockerRunner) Close() error {
	return r.client.Close()
}

func (r *DockerRunner) Invoke(ctx context.Context, spec Spec) (*Result, error) {
	if len(spec.Args) == 0 {
		return nil, errors.New("empty command")
	}

	containerCfg, hostCfg, err := r.buildContainerConfig(spec)
	if err != nil {
		return nil, err
	}

	created, err := r.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, containerName(spec.ID))
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	defer func() {
		// Cleanup must outlive a cancelled invocation.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		_ = r.client.ContainerRemove(cleanupCtx, created.ID, container.RemoveOptions{Force: true})
	}()

	result := &Result{
		Backend:   BackendDocker,
		StartedAt: time.Now(),
	}

	if err := r.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	statusCh, errCh := r.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		result.FinishedAt = time.Now()
		result.ExitCode = -1
		if ctx.Err() != nil {
			result.Status = RunStatusCancelled
			return result, ctx.Err()
		}
		result.Status = RunStatusFailed
		return result, fmt.Errorf("waiting for container: %w", err)
	case status := <-statusCh:
		result.FinishedAt = time.Now()
		result.ExitCode = int(status.StatusCode)
		result.Status = statusForExit(result.ExitCode)
		if status.Error != nil && status.Error.Message != "" {
			result.Status = RunStatusFailed
			result.Stderr = status.Error.Message
		}
	}

	if err := r.collectLogs(ctx, created.ID, result); err != nil {
		// The exit code is known; missing logs do not change the outcome.
		result.Stderr = strings.TrimSpace(result.Stderr + "\n" + err.Error())
	}
	return result, nil
}

func (r *DockerRunner) collectLogs(ctx context.Context, containerID string, result *Result) error {
	logs, err := r.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return fmt.Errorf("reading container logs: %w", err)
	}
	defer logs.Close()

	stdout := newTailBuffer(r.outputLimit)
	stderr := newTailBuffer(r.outputLimit)
	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
		return fmt.Errorf("demultiplexing container logs: %w", err)
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String() + result.Stderr
	return nil
}

// buildContainerConfig translates the shared ContainerConfig into Docker types.
func (r *DockerRunner) buildContainerConfig(spec Spec) (*container.Config, *container.HostConfig, error) {
	workDir := spec.WorkingDir
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving working directory: %w", err)
		}
		workDir = cwd
	}

	mounts := []mount.Mount{
		{
			Type:   mount.TypeBind,
			Source: workDir,
			Target: workDir,
		},
	}
	for _, m := range r.config.Mounts {
		mountType := mount.TypeBind
		if m.Type == "volume" {
			mountType = mount.TypeVolume
		}
		mounts = append(mounts, mount.Mount{
			Type:     mountType,
			Source:   m.Source,
			Target:   m.Destination,
			ReadOnly: m.ReadOnly,
		})
	}

	env := []string{"QSMR_BACKEND=docker"}
	if spec.ID != "" {
		env = append(env, "QSMR_INVOCATION_ID="+spec.ID)
	}
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	cpus, err := nanoCPUs(r.config.Resources.CPULimit)
	if err != nil {
		return nil, nil, err
	}
	mem, err := memoryBytes(r.config.Resources.MemoryLimit)
	if err != nil {
		return nil, nil, err
	}

	containerCfg := &container.Config{
		Image:      r.config.Image,
		Entrypoint: []string{spec.Args[0]},
		Cmd:        spec.Args[1:],
		Env:        env,
		WorkingDir: workDir,
		Labels: map[string]string{
			"qsmr.dev/invocation-id": spec.ID,
			"qsmr.dev/name":          spec.Name,
		},
	}
	hostCfg := &container.HostConfig{
		Mounts:      mounts,
		NetworkMode: container.NetworkMode(r.config.NetworkMode),
		Resources: container.Resources{
			NanoCPUs: cpus,
			Memory:   mem,
		},
	}
	return containerCfg, hostCfg, nil
}

// containerName keeps Docker's [a-zA-Z0-9_.-] alphabet.
func containerName(id string) string {
	if id == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("qsmr-")
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '.', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

var _ Invoker = (*DockerRunner)(nil)
