package renderer

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/vulkan-go/vulkan"
)

// allocatedBuffer pairs a buffer handle with its backing memory. The
// owner releases both exactly once through the teardown stack.
type allocatedBuffer struct {
	buffer vulkan.Buffer
	memory vulkan.DeviceMemory
}

// allocatedImage is the image equivalent of allocatedBuffer. Views are
// tracked separately by whoever creates them.
type allocatedImage struct {
	image  vulkan.Image
	memory vulkan.DeviceMemory
}

func (r *Renderer) createBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, properties vulkan.MemoryPropertyFlagBits) (allocatedBuffer, error) {
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var buffer vulkan.Buffer
	if res := vulkan.CreateBuffer(r.device, &bufferInfo, nil, &buffer); res != vulkan.Success {
		return allocatedBuffer{}, fmt.Errorf("create buffer (%d bytes): %w", size, vulkan.Error(res))
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(r.device, buffer, &memReq)
	memReq.Deref()

	memoryType, err := r.findMemoryType(memReq.MemoryTypeBits, properties)
	if err != nil {
		vulkan.DestroyBuffer(r.device, buffer, nil)
		return allocatedBuffer{}, err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(r.device, &allocInfo, nil, &memory); res != vulkan.Success {
		vulkan.DestroyBuffer(r.device, buffer, nil)
		return allocatedBuffer{}, fmt.Errorf("allocate buffer memory: %w", vulkan.Error(res))
	}
	if res := vulkan.BindBufferMemory(r.device, buffer, memory, 0); res != vulkan.Success {
		vulkan.FreeMemory(r.device, memory, nil)
		vulkan.DestroyBuffer(r.device, buffer, nil)
		return allocatedBuffer{}, fmt.Errorf("bind buffer memory: %w", vulkan.Error(res))
	}
	return allocatedBuffer{buffer: buffer, memory: memory}, nil
}

func (r *Renderer) destroyBuffer(b allocatedBuffer) {
	if b.buffer != vulkan.Buffer(vulkan.NullHandle) {
		vulkan.DestroyBuffer(r.device, b.buffer, nil)
	}
	if b.memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(r.device, b.memory, nil)
	}
}

func (r *Renderer) createImage(width, height uint32, format vulkan.Format, usage vulkan.ImageUsageFlags) (allocatedImage, error) {
	createInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vulkan.ImageTilingOptimal,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vulkan.SampleCount1Bit,
		SharingMode:   vulkan.SharingModeExclusive,
	}

	var image vulkan.Image
	if res := vulkan.CreateImage(r.device, &createInfo, nil, &image); res != vulkan.Success {
		return allocatedImage{}, fmt.Errorf("create image: %w", vulkan.Error(res))
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(r.device, image, &memReq)
	memReq.Deref()

	memoryType, err := r.findMemoryType(memReq.MemoryTypeBits, vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vulkan.DestroyImage(r.device, image, nil)
		return allocatedImage{}, err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(r.device, &allocInfo, nil, &memory); res != vulkan.Success {
		vulkan.DestroyImage(r.device, image, nil)
		return allocatedImage{}, fmt.Errorf("allocate image memory: %w", vulkan.Error(res))
	}
	if res := vulkan.BindImageMemory(r.device, image, memory, 0); res != vulkan.Success {
		vulkan.FreeMemory(r.device, memory, nil)
		vulkan.DestroyImage(r.device, image, nil)
		return allocatedImage{}, fmt.Errorf("bind image memory: %w", vulkan.Error(res))
	}
	return allocatedImage{image: image, memory: memory}, nil
}

func (r *Renderer) destroyImage(img allocatedImage) {
	if img.image != vulkan.Image(vulkan.NullHandle) {
		vulkan.DestroyImage(r.device, img.image, nil)
	}
	if img.memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(r.device, img.memory, nil)
	}
}

func (r *Renderer) findMemoryType(typeFilter uint32, properties vulkan.MemoryPropertyFlagBits) (uint32, error) {
	var memProps vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(r.gpu, &memProps)
	memProps.Deref()

	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memoryType := memProps.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&vulkan.MemoryPropertyFlags(properties) == vulkan.MemoryPropertyFlags(properties) {
			return i, nil
		}
	}
	return 0, errors.New("no suitable memory type found")
}

// writeMemory maps the buffer's memory, copies data into it and unmaps.
// The memory is never left mapped across a submission.
func (r *Renderer) writeMemory(memory vulkan.DeviceMemory, offset vulkan.DeviceSize, data []byte) error {
	size := vulkan.DeviceSize(len(data))
	var ptr unsafe.Pointer
	if res := vulkan.MapMemory(r.device, memory, offset, size, 0, &ptr); res != vulkan.Success {
		return fmt.Errorf("map memory: %w", vulkan.Error(res))
	}
	dst := (*[1 << 30]byte)(ptr)[:size:size]
	copy(dst, data)
	vulkan.UnmapMemory(r.device, memory)
	return nil
}

// alignUp rounds size up to the next multiple of align. align must be a
// power of two, which Vulkan guarantees for buffer offset alignments.
func alignUp(size, align vulkan.DeviceSize) vulkan.DeviceSize {
	if align == 0 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}

// alignedUniformSize pads size to the device's minimum uniform buffer
// offset alignment, for use as a dynamic uniform buffer stride.
func (r *Renderer) alignedUniformSize(size vulkan.DeviceSize) vulkan.DeviceSize {
	return alignUp(size, vulkan.DeviceSize(r.gpuProperties.Limits.MinUniformBufferOffsetAlignment))
}
