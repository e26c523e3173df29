package stage

import (
	"fmt"
	"os/exec"
)

// Health summarizes the readiness of a workflow stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// CheckBinary reports stage readiness based on whether the configured
// external tool resolves to an executable.
func CheckBinary(stageName, binary string) Health {
	if binary == "" {
		return Unhealthy(stageName, "binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return Unhealthy(stageName, fmt.Sprintf("%s not found in PATH", binary))
	}
	return Healthy(stageName)
}
