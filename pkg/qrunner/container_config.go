package qrunner

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ContainerConfig is shared by the container-based invokers (Docker, K8s).
type ContainerConfig struct {
	// Image must contain the smr binary at the configured path.
	Image string `mapstructure:"image"`

	Resources ResourceRequirements `mapstructure:"resources"`

	// Mounts expose reference panels, eQTL and GWAS files inside the container.
	Mounts []Mount `mapstructure:"mounts"`

	// NetworkMode is Docker-only ("none", "bridge", "host").
	NetworkMode string `mapstructure:"networkMode"`
}

// ResourceRequirements uses Kubernetes quantity syntax for both backends.
type ResourceRequirements struct {
	CPURequest    string `mapstructure:"cpuRequest"`    // e.g. "2", "500m"
	MemoryRequest string `mapstructure:"memoryRequest"` // e.g. "4Gi"
	CPULimit      string `mapstructure:"cpuLimit"`
	MemoryLimit   string `mapstructure:"memoryLimit"`
}

// Mount represents a volume mount for containers
type Mount struct {
	// Type is "bind" for host paths or "volume" for named volumes (Docker),
	// "pvc" for a PersistentVolumeClaim (K8s).
	Type string `mapstructure:"type"`

	// Source is the host path, volume name or claim name.
	Source string `mapstructure:"source"`

	// Destination is the target path inside the container
	Destination string `mapstructure:"destination"`

	ReadOnly bool `mapstructure:"readOnly"`
}

// DefaultContainerConfig sizes the container for smr's default 20 threads.
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		Image: "qsmr-smr:latest",
		Resources: ResourceRequirements{
			CPURequest:    "20",
			MemoryRequest: "16Gi",
			CPULimit:      "20",
			MemoryLimit:   "32Gi",
		},
		NetworkMode: "none",
	}
}

// nanoCPUs converts a quantity such as "1500m" to Docker's NanoCPUs.
func nanoCPUs(q string) (int64, error) {
	if q == "" {
		return 0, nil
	}
	parsed, err := resource.ParseQuantity(q)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu quantity %q: %w", q, err)
	}
	return parsed.MilliValue() * 1_000_000, nil
}

// memoryBytes converts a quantity such as "4Gi" to bytes.
func memoryBytes(q string) (int64, error) {
	if q == "" {
		return 0, nil
	}
	parsed, err := resource.ParseQuantity(q)
	if err != nil {
		return 0, fmt.Errorf("invalid memory quantity %q: %w", q, err)
	}
	return parsed.Value(), nil
}
