package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func TestDeviceScorePrefersDiscreteGpu(t *testing.T) {
	discrete := deviceScore(vulkan.PhysicalDeviceTypeDiscreteGpu, 4096)
	integrated := deviceScore(vulkan.PhysicalDeviceTypeIntegratedGpu, 16384)

	require.Greater(t, discrete, integrated,
		"a discrete GPU outranks an integrated one with a larger max image dimension")
}

func TestDeviceScoreBreaksTiesOnImageDimension(t *testing.T) {
	small := deviceScore(vulkan.PhysicalDeviceTypeDiscreteGpu, 4096)
	large := deviceScore(vulkan.PhysicalDeviceTypeDiscreteGpu, 16384)

	require.Greater(t, large, small)
}

func TestRequiredExtensionsPresent(t *testing.T) {
	available := []string{
		"VK_KHR_swapchain",
		"VK_KHR_shader_draw_parameters",
		"VK_EXT_descriptor_indexing",
	}

	require.True(t, requiredExtensionsPresent(available, []string{"VK_KHR_swapchain"}))
	require.True(t, requiredExtensionsPresent(available, deviceExtensions))
	require.True(t, requiredExtensionsPresent(available, nil))

	require.False(t, requiredExtensionsPresent(available, []string{"VK_KHR_ray_tracing_pipeline"}))
	require.False(t, requiredExtensionsPresent(nil, []string{"VK_KHR_swapchain"}))
}

func TestRequiredExtensionsPresentIgnoresDuplicates(t *testing.T) {
	available := []string{"VK_KHR_swapchain", "VK_KHR_swapchain"}

	require.True(t, requiredExtensionsPresent(available, []string{"VK_KHR_swapchain"}))
	require.False(t, requiredExtensionsPresent(available, []string{"VK_KHR_swapchain", "VK_KHR_maintenance1"}))
}
