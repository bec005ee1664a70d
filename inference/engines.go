package inference

import (
	"fmt"
	"strings"
)

// ExecutionProvider selects the ONNX Runtime backend a session runs on.
type ExecutionProvider string

const (
	// ExecutionProviderCPU is the default CPU backend.
	ExecutionProviderCPU ExecutionProvider = "cpu"
	// ExecutionProviderCoreML runs on Apple CoreML.
	ExecutionProviderCoreML ExecutionProvider = "coreml"
	// ExecutionProviderOpenVINO runs on Intel OpenVINO.
	ExecutionProviderOpenVINO ExecutionProvider = "openvino"
	// ExecutionProviderCUDA runs on NVIDIA CUDA.
	ExecutionProviderCUDA ExecutionProvider = "cuda"
)

// ExecutionProviders is a list of all supported providers.
var ExecutionProviders = []ExecutionProvider{
	ExecutionProviderCPU,
	ExecutionProviderCoreML,
	ExecutionProviderOpenVINO,
	ExecutionProviderCUDA,
}

// ParseExecutionProvider parses a provider name, case-insensitively. An empty name is the CPU.
func ParseExecutionProvider(name string) (ExecutionProvider, error) {
	if name == "" {
		return ExecutionProviderCPU, nil
	}
	p := ExecutionProvider(strings.ToLower(name))
	for _, known := range ExecutionProviders {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown execution provider %q", name)
}
