package renderer

import (
	"fmt"
	"os"

	"github.com/vulkan-go/vulkan"
)

// loadShaderModule reads a compiled SPIR-V file and wraps it in a
// shader module. The caller owns the module.
func (r *Renderer) loadShaderModule(path string) (vulkan.ShaderModule, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("read shader %s: %w", path, err)
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("shader %s: invalid SPIR-V length %d", path, len(code))
	}

	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    bytesToUint32(code),
	}
	var module vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(r.device, &createInfo, nil, &module); res != vulkan.Success {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("create shader module %s: %w", path, vulkan.Error(res))
	}
	return module, nil
}

// bytesToUint32 reinterprets SPIR-V bytes as the word slice the create
// info expects. len(b) must be a multiple of 4.
func bytesToUint32(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
	}
	return words
}
