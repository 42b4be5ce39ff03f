package qrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

const (
	// KueueQueueLabel is the label key for Kueue queue name
	KueueQueueLabel = "kueue.x-k8s.io/queue-name"

	InvocationIDLabel = "qsmr.dev/invocation-id"
	ContainerName     = "smr"
	DataVolumeName    = "data"
)

// K8sConfig configures where invocations run as Kubernetes Jobs.
type K8sConfig struct {
	Namespace    string          `mapstructure:"namespace"`
	QueueName    string          `mapstructure:"queue"`      // Kueue LocalQueue, optional
	Kubeconfig   string          `mapstructure:"kubeconfig"` // optional
	DataClaim    string          `mapstructure:"dataClaim"`  // PVC holding references, eQTL, GWAS and outputs
	DataPath     string          `mapstructure:"dataPath"`   // mount path of DataClaim
	PollInterval time.Duration   `mapstructure:"pollInterval"`
	Container    ContainerConfig `mapstructure:",squash"`
}

// DefaultDataPath is where DataClaim is mounted when DataPath is empty.
const DefaultDataPath = "/data"

func (c K8sConfig) dataPath() string {
	if c.DataPath == "" {
		return DefaultDataPath
	}
	return filepath.Clean(c.DataPath)
}

// CheckSharedDir fails unless dir lies under DataPath with DataClaim set.
// Pods only see the claim, so the host must mount it at the same path for
// directories it creates to exist inside the pod.
func (c K8sConfig) CheckSharedDir(dir string) error {
	if c.DataClaim == "" {
		return errors.New("k8s.dataClaim is required: smr reads inputs and writes outputs on the claim")
	}
	if dir == "" || !filepath.IsAbs(dir) {
		return fmt.Errorf("directory %q must be an absolute path under k8s.dataPath %s", dir, c.dataPath())
	}
	rel, err := filepath.Rel(c.dataPath(), filepath.Clean(dir))
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return fmt.Errorf("directory %s is outside k8s.dataPath %s and would not exist inside the pod", dir, c.dataPath())
	}
	return nil
}

// K8sRunner executes each invocation as a batch/v1 Job and waits for it.
type K8sRunner struct {
	client kubernetes.Interface
	config K8sConfig
}

// NewK8sRunner creates a new Kubernetes runner
func NewK8sRunner(client kubernetes.Interface, config K8sConfig) *K8sRunner {
	if config.Namespace == "" {
		config.Namespace = "default"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	return &K8sRunner{client: client, config: config}
}

func (r *K8sRunner) Name() string {
	return BackendK8s
}

func (r *K8sRunner) Invoke(ctx context.Context, spec Spec) (*Result, error) {
	if len(spec.Args) == 0 {
		return nil, errors.New("empty command")
	}
	if spec.ID == "" {
		return nil, errors.New("k8s invocations need an ID")
	}
	if err := r.config.CheckSharedDir(spec.WorkingDir); err != nil {
		return nil, err
	}

	job, err := r.buildJob(spec)
	if err != nil {
		return nil, err
	}

	jobs := r.client.BatchV1().Jobs(r.config.Namespace)
	created, err := jobs.Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	result := &Result{
		Backend:   BackendK8s,
		StartedAt: time.Now(),
	}

	var finished *batchv1.Job
	err = wait.PollUntilContextCancel(ctx, r.config.PollInterval, true, func(ctx context.Context) (bool, error) {
		current, err := jobs.Get(ctx, created.Name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		if jobFinished(current) {
			finished = current
			return true, nil
		}
		return false, nil
	})
	result.FinishedAt = time.Now()
	if err != nil {
		result.ExitCode = -1
		if ctx.Err() != nil {
			result.Status = RunStatusCancelled
			r.deleteJob(ctx, created.Name)
			return result, ctx.Err()
		}
		result.Status = RunStatusFailed
		return result, fmt.Errorf("waiting for job %s: %w", created.Name, err)
	}

	result.Status = RunStatusFailed
	result.ExitCode = -1
	if jobSucceeded(finished) {
		result.Status = RunStatusSucceeded
		result.ExitCode = 0
	}

	// The pod carries the real exit code and logs.
	pods, err := r.client.CoreV1().Pods(r.config.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("job-name=%s", created.Name),
	})
	if err != nil || len(pods.Items) == 0 {
		return result, nil
	}
	pod := &pods.Items[0]
	for _, status := range pod.Status.ContainerStatuses {
		if status.Name == ContainerName && status.State.Terminated != nil {
			result.ExitCode = int(status.State.Terminated.ExitCode)
			result.Status = statusForExit(result.ExitCode)
		}
	}
	if logs, err := r.podLogs(ctx, pod.Name); err == nil {
		result.Stdout = logs
	}
	return result, nil
}

func (r *K8sRunner) buildJob(spec Spec) (*batchv1.Job, error) {
	resources, err := r.resourceRequirements()
	if err != nil {
		return nil, err
	}

	labels := map[string]string{
		InvocationIDLabel: spec.ID,
		"qsmr.dev/type":   "smr",
	}
	suspend := false
	if r.config.QueueName != "" {
		labels[KueueQueueLabel] = r.config.QueueName
		// Start suspended, Kueue will unsuspend
		suspend = true
	}

	podSpec := corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyNever,
		Containers: []corev1.Container{
			{
				Name:       ContainerName,
				Image:      r.config.Container.Image,
				Command:    []string{spec.Args[0]},
				Args:       spec.Args[1:],
				WorkingDir: spec.WorkingDir,
				Env:        envMapToEnvVars(spec.Env, spec.ID),
				Resources:  resources,
			},
		},
	}
	if r.config.DataClaim != "" {
		mountPath := r.config.dataPath()
		podSpec.Volumes = []corev1.Volume{
			{
				Name: DataVolumeName,
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
						ClaimName: r.config.DataClaim,
					},
				},
			},
		}
		podSpec.Containers[0].VolumeMounts = []corev1.VolumeMount{
			{Name: DataVolumeName, MountPath: mountPath},
		}
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName(spec.ID),
			Namespace: r.config.Namespace,
			Labels:    labels,
			Annotations: map[string]string{
				"qsmr.dev/name": spec.Name,
			},
		},
		Spec: batchv1.JobSpec{
			Parallelism:             ptr.To(int32(1)),
			Completions:             ptr.To(int32(1)),
			Suspend:                 ptr.To(suspend),
			BackoffLimit:            ptr.To(int32(0)), // retries belong to the batch policy
			TTLSecondsAfterFinished: ptr.To(int32(300)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       podSpec,
			},
		},
	}, nil
}

func (r *K8sRunner) resourceRequirements() (corev1.ResourceRequirements, error) {
	req := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{},
		Limits:   corev1.ResourceList{},
	}
	res := r.config.Container.Resources
	entries := []struct {
		value string
		name  corev1.ResourceName
		list  corev1.ResourceList
	}{
		{res.CPURequest, corev1.ResourceCPU, req.Requests},
		{res.MemoryRequest, corev1.ResourceMemory, req.Requests},
		{res.CPULimit, corev1.ResourceCPU, req.Limits},
		{res.MemoryLimit, corev1.ResourceMemory, req.Limits},
	}
	for _, e := range entries {
		if e.value == "" {
			continue
		}
		q, err := resource.ParseQuantity(e.value)
		if err != nil {
			return req, fmt.Errorf("invalid quantity %q for %s: %w", e.value, e.name, err)
		}
		e.list[e.name] = q
	}
	return req, nil
}

func (r *K8sRunner) podLogs(ctx context.Context, podName string) (string, error) {
	req := r.client.CoreV1().Pods(r.config.Namespace).GetLogs(podName, &corev1.PodLogOptions{
		Container: ContainerName,
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("opening log stream: %w", err)
	}
	defer stream.Close()

	buf := newTailBuffer(OutputLimit)
	if _, err := io.Copy(buf, stream); err != nil {
		return "", fmt.Errorf("reading logs: %w", err)
	}
	return buf.String(), nil
}

func (r *K8sRunner) deleteJob(ctx context.Context, name string) {
	deletePolicy := metav1.DeletePropagationForeground
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	_ = r.client.BatchV1().Jobs(r.config.Namespace).Delete(cleanupCtx, name, metav1.DeleteOptions{
		PropagationPolicy: &deletePolicy,
	})
}

// Helper functions

func envMapToEnvVars(envMap map[string]string, id string) []corev1.EnvVar {
	envVars := make([]corev1.EnvVar, 0, len(envMap)+2)
	envVars = append(envVars,
		corev1.EnvVar{Name: "QSMR_BACKEND", Value: BackendK8s},
		corev1.EnvVar{Name: "QSMR_INVOCATION_ID", Value: id},
	)
	for k, v := range envMap {
		envVars = append(envVars, corev1.EnvVar{Name: k, Value: v})
	}
	return envVars
}

// jobName yields a DNS-1123 label of at most 63 characters.
func jobName(id string) string {
	name := "qsmr-" + strings.ToLower(id)
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, name)
	if len(name) > 63 {
		name = name[:63]
	}
	return strings.TrimRight(name, "-")
}

func jobFinished(job *batchv1.Job) bool {
	for _, condition := range job.Status.Conditions {
		if (condition.Type == batchv1.JobComplete || condition.Type == batchv1.JobFailed) &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func jobSucceeded(job *batchv1.Job) bool {
	for _, condition := range job.Status.Conditions {
		if condition.Type == batchv1.JobComplete && condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

var _ Invoker = (*K8sRunner)(nil)
