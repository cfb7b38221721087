package renderer

import (
	"fmt"
	"unsafe"

	"github.com/vulkan-go/vulkan"
)

// initDescriptors creates the descriptor pool and set layouts, the
// shared scene-parameter buffer and the per-frame camera and object
// buffers, then allocates and writes one global and one object set per
// frame slot.
func (r *Renderer) initDescriptors() error {
	poolSizes := []vulkan.DescriptorPoolSize{
		{Type: vulkan.DescriptorTypeUniformBuffer, DescriptorCount: 10},
		{Type: vulkan.DescriptorTypeUniformBufferDynamic, DescriptorCount: 10},
		{Type: vulkan.DescriptorTypeStorageBuffer, DescriptorCount: 10},
	}
	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       10,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if res := vulkan.CreateDescriptorPool(r.device, &poolInfo, nil, &r.descriptorPool); res != vulkan.Success {
		return fmt.Errorf("create descriptor pool: %w", vulkan.Error(res))
	}
	pool := r.descriptorPool
	r.deletionStack.Push(func() {
		vulkan.DestroyDescriptorPool(r.device, pool, nil)
	})

	globalBindings := []vulkan.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
		},
		{
			Binding:         1,
			DescriptorType:  vulkan.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: 1,
			StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit | vulkan.ShaderStageFragmentBit),
		},
	}
	globalLayoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(globalBindings)),
		PBindings:    globalBindings,
	}
	if res := vulkan.CreateDescriptorSetLayout(r.device, &globalLayoutInfo, nil, &r.globalSetLayout); res != vulkan.Success {
		return fmt.Errorf("create global set layout: %w", vulkan.Error(res))
	}
	globalLayout := r.globalSetLayout
	r.deletionStack.Push(func() {
		vulkan.DestroyDescriptorSetLayout(r.device, globalLayout, nil)
	})

	objectBindings := []vulkan.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vulkan.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
		},
	}
	objectLayoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(objectBindings)),
		PBindings:    objectBindings,
	}
	if res := vulkan.CreateDescriptorSetLayout(r.device, &objectLayoutInfo, nil, &r.objectSetLayout); res != vulkan.Success {
		return fmt.Errorf("create object set layout: %w", vulkan.Error(res))
	}
	objectLayout := r.objectSetLayout
	r.deletionStack.Push(func() {
		vulkan.DestroyDescriptorSetLayout(r.device, objectLayout, nil)
	})

	// One scene block per frame slot, packed at the device's dynamic
	// uniform alignment.
	sceneSize := frameOverlap * r.alignedUniformSize(vulkan.DeviceSize(unsafe.Sizeof(gpuSceneData{})))
	sceneBuffer, err := r.createBuffer(sceneSize,
		vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit),
		vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return fmt.Errorf("create scene buffer: %w", err)
	}
	r.sceneParametersBuffer = sceneBuffer
	r.deletionStack.Push(func() {
		r.destroyBuffer(sceneBuffer)
	})

	for i := range r.frames {
		frame := &r.frames[i]

		cameraBuffer, err := r.createBuffer(vulkan.DeviceSize(unsafe.Sizeof(gpuCameraData{})),
			vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit),
			vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
		if err != nil {
			return fmt.Errorf("create frame %d camera buffer: %w", i, err)
		}
		frame.cameraBuffer = cameraBuffer
		r.deletionStack.Push(func() {
			r.destroyBuffer(cameraBuffer)
		})

		objectBuffer, err := r.createBuffer(vulkan.DeviceSize(maxObjects*unsafe.Sizeof(gpuObjectData{})),
			vulkan.BufferUsageFlags(vulkan.BufferUsageStorageBufferBit),
			vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
		if err != nil {
			return fmt.Errorf("create frame %d object buffer: %w", i, err)
		}
		frame.objectBuffer = objectBuffer
		r.deletionStack.Push(func() {
			r.destroyBuffer(objectBuffer)
		})

		globalAlloc := vulkan.DescriptorSetAllocateInfo{
			SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     r.descriptorPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vulkan.DescriptorSetLayout{r.globalSetLayout},
		}
		if res := vulkan.AllocateDescriptorSets(r.device, &globalAlloc, &frame.globalDescriptor); res != vulkan.Success {
			return fmt.Errorf("allocate frame %d global descriptor: %w", i, vulkan.Error(res))
		}

		objectAlloc := vulkan.DescriptorSetAllocateInfo{
			SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     r.descriptorPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vulkan.DescriptorSetLayout{r.objectSetLayout},
		}
		if res := vulkan.AllocateDescriptorSets(r.device, &objectAlloc, &frame.objectDescriptor); res != vulkan.Success {
			return fmt.Errorf("allocate frame %d object descriptor: %w", i, vulkan.Error(res))
		}

		cameraInfo := vulkan.DescriptorBufferInfo{
			Buffer: frame.cameraBuffer.buffer,
			Offset: 0,
			Range:  vulkan.DeviceSize(unsafe.Sizeof(gpuCameraData{})),
		}
		// The dynamic binding's offset comes from the bind call, so the
		// range here covers a single scene block.
		sceneInfo := vulkan.DescriptorBufferInfo{
			Buffer: r.sceneParametersBuffer.buffer,
			Offset: 0,
			Range:  vulkan.DeviceSize(unsafe.Sizeof(gpuSceneData{})),
		}
		objectInfo := vulkan.DescriptorBufferInfo{
			Buffer: frame.objectBuffer.buffer,
			Offset: 0,
			Range:  vulkan.DeviceSize(maxObjects * unsafe.Sizeof(gpuObjectData{})),
		}

		writes := []vulkan.WriteDescriptorSet{
			{
				SType:           vulkan.StructureTypeWriteDescriptorSet,
				DstSet:          frame.globalDescriptor,
				DstBinding:      0,
				DescriptorCount: 1,
				DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
				PBufferInfo:     []vulkan.DescriptorBufferInfo{cameraInfo},
			},
			{
				SType:           vulkan.StructureTypeWriteDescriptorSet,
				DstSet:          frame.globalDescriptor,
				DstBinding:      1,
				DescriptorCount: 1,
				DescriptorType:  vulkan.DescriptorTypeUniformBufferDynamic,
				PBufferInfo:     []vulkan.DescriptorBufferInfo{sceneInfo},
			},
			{
				SType:           vulkan.StructureTypeWriteDescriptorSet,
				DstSet:          frame.objectDescriptor,
				DstBinding:      0,
				DescriptorCount: 1,
				DescriptorType:  vulkan.DescriptorTypeStorageBuffer,
				PBufferInfo:     []vulkan.DescriptorBufferInfo{objectInfo},
			},
		}
		vulkan.UpdateDescriptorSets(r.device, uint32(len(writes)), writes, 0, nil)
	}
	return nil
}
