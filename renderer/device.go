package renderer

import (
	"errors"
	"fmt"

	"github.com/vulkan-go/vulkan"
)

// swapchainSupport records what a device can present to the surface.
type swapchainSupport struct {
	capabilities vulkan.SurfaceCapabilities
	formats      []vulkan.SurfaceFormat
	presentModes []vulkan.PresentMode
}

// selectedDevice is the outcome of physical device selection.
type selectedDevice struct {
	device      vulkan.PhysicalDevice
	properties  vulkan.PhysicalDeviceProperties
	queueFamily uint32
	support     swapchainSupport
}

// selectPhysicalDevice enumerates GPUs, filters out devices that cannot
// render and present to the surface, and picks the highest scoring
// candidate. Ties keep the first device found.
func (r *Renderer) selectPhysicalDevice() (selectedDevice, error) {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(r.instance, &count, nil); res != vulkan.Success {
		return selectedDevice{}, fmt.Errorf("enumerate physical devices: %w", vulkan.Error(res))
	}
	if count == 0 {
		return selectedDevice{}, errors.New("no Vulkan-capable GPU found")
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(r.instance, &count, devices); res != vulkan.Success {
		return selectedDevice{}, fmt.Errorf("enumerate physical devices list: %w", vulkan.Error(res))
	}

	var best selectedDevice
	bestScore := 0
	found := false
	for _, dev := range devices {
		family, ok := r.findQueueFamily(dev)
		if !ok {
			continue
		}
		if !deviceExtensionsSupported(dev) {
			continue
		}
		support, ok := r.querySwapchainSupport(dev)
		if !ok {
			continue
		}

		var props vulkan.PhysicalDeviceProperties
		vulkan.GetPhysicalDeviceProperties(dev, &props)
		props.Deref()
		props.Limits.Deref()

		var features vulkan.PhysicalDeviceFeatures
		vulkan.GetPhysicalDeviceFeatures(dev, &features)
		features.Deref()
		if features.GeometryShader != vulkan.True {
			continue
		}
		if props.ApiVersion < vulkan.MakeVersion(1, 1, 0) {
			continue
		}

		score := deviceScore(props.DeviceType, props.Limits.MaxImageDimension2D)
		if score > bestScore {
			bestScore = score
			best = selectedDevice{
				device:      dev,
				properties:  props,
				queueFamily: family,
				support:     support,
			}
			found = true
		}
	}
	if !found {
		return selectedDevice{}, errors.New("no suitable GPU found")
	}
	return best, nil
}

// deviceScore rates a candidate GPU. Discrete GPUs get a flat bonus;
// the maximum 2D image dimension stands in for overall capability.
func deviceScore(deviceType vulkan.PhysicalDeviceType, maxImageDimension2D uint32) int {
	score := 0
	if deviceType == vulkan.PhysicalDeviceTypeDiscreteGpu {
		score += 1000
	}
	score += int(maxImageDimension2D)
	return score
}

// findQueueFamily returns a queue family index supporting both graphics
// and presentation on the target surface.
func (r *Renderer) findQueueFamily(device vulkan.PhysicalDevice) (uint32, bool) {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) == 0 {
			continue
		}
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(device, uint32(i), r.surface, &present)
		if present == vulkan.True {
			return uint32(i), true
		}
	}
	return 0, false
}

func deviceExtensionsSupported(device vulkan.PhysicalDevice) bool {
	var count uint32
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vulkan.Success {
		return false
	}
	available := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		available = append(available, vulkan.ToString(props[i].ExtensionName[:]))
	}
	return requiredExtensionsPresent(available, deviceExtensions)
}

// requiredExtensionsPresent reports whether every required extension
// name appears in the available set.
func requiredExtensionsPresent(available, required []string) bool {
	supported := make(map[string]bool, len(available))
	for _, name := range available {
		supported[name] = true
	}
	for _, name := range required {
		if !supported[name] {
			return false
		}
	}
	return true
}

// querySwapchainSupport returns false when the device advertises no
// surface formats or present modes.
func (r *Renderer) querySwapchainSupport(device vulkan.PhysicalDevice) (swapchainSupport, bool) {
	var details swapchainSupport
	vulkan.GetPhysicalDeviceSurfaceCapabilities(device, r.surface, &details.capabilities)
	details.capabilities.Deref()

	var formatCount uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(device, r.surface, &formatCount, nil)
	if formatCount == 0 {
		return swapchainSupport{}, false
	}
	details.formats = make([]vulkan.SurfaceFormat, formatCount)
	vulkan.GetPhysicalDeviceSurfaceFormats(device, r.surface, &formatCount, details.formats)
	for i := range details.formats {
		details.formats[i].Deref()
	}

	var presentCount uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(device, r.surface, &presentCount, nil)
	if presentCount == 0 {
		return swapchainSupport{}, false
	}
	details.presentModes = make([]vulkan.PresentMode, presentCount)
	vulkan.GetPhysicalDeviceSurfacePresentModes(device, r.surface, &presentCount, details.presentModes)

	return details, true
}
