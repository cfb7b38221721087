package renderer

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"
)

// gpuCameraData is the per-frame camera uniform block. Field order
// matches the shader declaration.
type gpuCameraData struct {
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	ViewProj mgl32.Mat4
}

// gpuSceneData is the dynamic-uniform scene block shared by all
// objects. One aligned copy per frame slot lives in a single buffer.
type gpuSceneData struct {
	FogColor          mgl32.Vec4
	FogDistances      mgl32.Vec4
	AmbientColor      mgl32.Vec4
	SunlightDirection mgl32.Vec4
	SunlightColor     mgl32.Vec4
}

// gpuObjectData is one element of the per-frame object storage buffer,
// indexed in the vertex shader by gl_BaseInstance.
type gpuObjectData struct {
	Model mgl32.Mat4
}

// meshPushConstants is pushed to the vertex stage per object.
type meshPushConstants struct {
	Data   mgl32.Vec4
	Matrix mgl32.Mat4
}

// frameData is one slot of the frame ring. Its fence starts signaled so
// the first Draw on the slot does not block; the semaphores order
// acquire → render → present on the GPU timeline.
type frameData struct {
	imageAcquired  vulkan.Semaphore
	renderComplete vulkan.Semaphore
	renderFence    vulkan.Fence

	commandPool   vulkan.CommandPool
	commandBuffer vulkan.CommandBuffer

	cameraBuffer     allocatedBuffer
	globalDescriptor vulkan.DescriptorSet

	objectBuffer     allocatedBuffer
	objectDescriptor vulkan.DescriptorSet
}

// currentFrame selects the slot for the frame about to be recorded.
func (r *Renderer) currentFrame() *frameData {
	return &r.frames[r.frameNumber%frameOverlap]
}

// initFrames creates each slot's command pool/buffer and sync objects.
// The per-frame GPU buffers are created later by initDescriptors.
func (r *Renderer) initFrames() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: r.graphicsQueueFamily,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	semInfo := vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}
	fenceInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
		Flags: vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit),
	}

	for i := range r.frames {
		frame := &r.frames[i]

		if res := vulkan.CreateCommandPool(r.device, &poolInfo, nil, &frame.commandPool); res != vulkan.Success {
			return fmt.Errorf("create frame %d command pool: %w", i, vulkan.Error(res))
		}
		pool := frame.commandPool
		r.deletionStack.Push(func() {
			vulkan.DestroyCommandPool(r.device, pool, nil)
		})

		allocInfo := vulkan.CommandBufferAllocateInfo{
			SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
			CommandPool:        frame.commandPool,
			Level:              vulkan.CommandBufferLevelPrimary,
			CommandBufferCount: 1,
		}
		buffers := make([]vulkan.CommandBuffer, 1)
		if res := vulkan.AllocateCommandBuffers(r.device, &allocInfo, buffers); res != vulkan.Success {
			return fmt.Errorf("allocate frame %d command buffer: %w", i, vulkan.Error(res))
		}
		frame.commandBuffer = buffers[0]

		if res := vulkan.CreateFence(r.device, &fenceInfo, nil, &frame.renderFence); res != vulkan.Success {
			return fmt.Errorf("create frame %d fence: %w", i, vulkan.Error(res))
		}
		fence := frame.renderFence
		r.deletionStack.Push(func() {
			vulkan.DestroyFence(r.device, fence, nil)
		})

		if res := vulkan.CreateSemaphore(r.device, &semInfo, nil, &frame.imageAcquired); res != vulkan.Success {
			return fmt.Errorf("create frame %d acquire semaphore: %w", i, vulkan.Error(res))
		}
		acquired := frame.imageAcquired
		r.deletionStack.Push(func() {
			vulkan.DestroySemaphore(r.device, acquired, nil)
		})

		if res := vulkan.CreateSemaphore(r.device, &semInfo, nil, &frame.renderComplete); res != vulkan.Success {
			return fmt.Errorf("create frame %d render semaphore: %w", i, vulkan.Error(res))
		}
		complete := frame.renderComplete
		r.deletionStack.Push(func() {
			vulkan.DestroySemaphore(r.device, complete, nil)
		})
	}
	return nil
}

// Draw runs one pass of the frame state machine: wait, acquire, record
// and submit, present. Any failure is a dropped frame; the function
// returns without advancing the frame counter and the next call retries
// the same slot.
func (r *Renderer) Draw() {
	if !r.initialized {
		return
	}
	frame := r.currentFrame()

	// Wait until the GPU has drained this slot's previous frame.
	if vulkan.WaitForFences(r.device, 1, []vulkan.Fence{frame.renderFence}, vulkan.True, frameFenceTimeout) != vulkan.Success {
		return
	}
	if vulkan.ResetFences(r.device, 1, []vulkan.Fence{frame.renderFence}) != vulkan.Success {
		return
	}

	var imageIndex uint32
	if vulkan.AcquireNextImage(r.device, r.swapchain, frameFenceTimeout, frame.imageAcquired,
		vulkan.Fence(vulkan.NullHandle), &imageIndex) != vulkan.Success {
		return
	}

	if vulkan.ResetCommandBuffer(frame.commandBuffer, 0) != vulkan.Success {
		return
	}
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if vulkan.BeginCommandBuffer(frame.commandBuffer, &beginInfo) != vulkan.Success {
		return
	}

	clearColor := vulkan.NewClearValue([]float32{0.1, 0.2, 0.3, 1.0})
	clearDepth := vulkan.NewClearDepthStencil(1.0, 0)
	clearValues := []vulkan.ClearValue{clearColor, clearDepth}

	renderPassInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  r.renderPass,
		Framebuffer: r.framebuffers[imageIndex],
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: r.swapchainExtent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vulkan.CmdBeginRenderPass(frame.commandBuffer, &renderPassInfo, vulkan.SubpassContentsInline)

	sceneOffset := uint32(r.alignedUniformSize(vulkan.DeviceSize(unsafe.Sizeof(gpuSceneData{}))) *
		vulkan.DeviceSize(r.frameNumber%frameOverlap))
	if err := r.updateFrameBuffers(frame, sceneOffset); err != nil {
		// The pass must still be closed before bailing out.
		vulkan.CmdEndRenderPass(frame.commandBuffer)
		vulkan.EndCommandBuffer(frame.commandBuffer)
		return
	}

	drawObjects(&vkEncoder{cmd: frame.commandBuffer}, r.renderables, frame, sceneOffset)

	vulkan.CmdEndRenderPass(frame.commandBuffer)
	if vulkan.EndCommandBuffer(frame.commandBuffer) != vulkan.Success {
		return
	}

	waitStages := []vulkan.PipelineStageFlags{
		vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
	}
	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{frame.imageAcquired},
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{frame.commandBuffer},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{frame.renderComplete},
	}
	if vulkan.QueueSubmit(r.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, frame.renderFence) != vulkan.Success {
		return
	}

	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{frame.renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{r.swapchain},
		PImageIndices:      []uint32{imageIndex},
	}
	if vulkan.QueuePresent(r.graphicsQueue, &presentInfo) != vulkan.Success {
		return
	}

	r.frameNumber++
}

// updateFrameBuffers writes the camera uniform, the scene block at its
// per-frame aligned offset and the object storage array. The slot's
// fence has already signaled, so the GPU no longer reads these buffers.
func (r *Renderer) updateFrameBuffers(frame *frameData, sceneOffset uint32) error {
	cameraPosition := mgl32.Vec3{0, -6, -10}
	view := mgl32.Translate3D(cameraPosition.X(), cameraPosition.Y(), cameraPosition.Z())
	proj := mgl32.Perspective(mgl32.DegToRad(70),
		float32(r.swapchainExtent.Width)/float32(r.swapchainExtent.Height), 0.1, 200.0)
	proj[5] *= -1 // Vulkan clip space

	camera := gpuCameraData{
		View:     view,
		Proj:     proj,
		ViewProj: proj.Mul4(view),
	}
	if err := r.writeMemory(frame.cameraBuffer.memory, 0, structBytes(unsafe.Pointer(&camera), unsafe.Sizeof(camera))); err != nil {
		return err
	}

	framed := float32(r.frameNumber) / 120
	r.sceneParameters.AmbientColor = mgl32.Vec4{
		float32(math.Sin(float64(framed))), 1, float32(math.Cos(float64(framed))), 1,
	}
	scene := r.sceneParameters
	if err := r.writeMemory(r.sceneParametersBuffer.memory, vulkan.DeviceSize(sceneOffset),
		structBytes(unsafe.Pointer(&scene), unsafe.Sizeof(scene))); err != nil {
		return err
	}

	objects := make([]gpuObjectData, len(r.renderables))
	for i := range r.renderables {
		objects[i].Model = r.renderables[i].Transform
	}
	if len(objects) > 0 {
		size := uintptr(len(objects)) * unsafe.Sizeof(gpuObjectData{})
		if err := r.writeMemory(frame.objectBuffer.memory, 0, structBytes(unsafe.Pointer(&objects[0]), size)); err != nil {
			return err
		}
	}
	return nil
}

// drawObjects encodes one draw per object, rebinding pipeline and
// descriptor sets only when the material changes and vertex/index
// buffers only when the mesh changes. firstInstance carries the object
// index so the shader can address its storage-buffer slot.
func drawObjects(enc commandEncoder, objects []RenderObject, frame *frameData, sceneOffset uint32) {
	var lastMesh *Mesh
	var lastMaterial *Material

	for i := range objects {
		object := &objects[i]
		if object.Mesh == nil || object.Material == nil {
			continue
		}

		if object.Material != lastMaterial {
			enc.bindPipeline(object.Material.pipeline)
			enc.bindDescriptorSets(object.Material.layout, 0,
				[]vulkan.DescriptorSet{frame.globalDescriptor}, []uint32{sceneOffset})
			enc.bindDescriptorSets(object.Material.layout, 1,
				[]vulkan.DescriptorSet{frame.objectDescriptor}, nil)
			lastMaterial = object.Material
		}

		constants := meshPushConstants{Matrix: object.Transform}
		enc.pushConstants(object.Material.layout,
			vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
			structBytes(unsafe.Pointer(&constants), unsafe.Sizeof(constants)))

		indexed := len(object.Mesh.Indices) > 0
		if object.Mesh != lastMesh {
			enc.bindVertexBuffer(object.Mesh.vertexBuffer.buffer)
			if indexed {
				enc.bindIndexBuffer(object.Mesh.indexBuffer.buffer)
			}
			lastMesh = object.Mesh
		}

		if indexed {
			enc.drawIndexed(uint32(len(object.Mesh.Indices)), uint32(i))
		} else {
			enc.draw(uint32(len(object.Mesh.Vertices)), uint32(i))
		}
	}
}
