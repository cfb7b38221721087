package renderer

import (
	"fmt"
	"log"

	"github.com/vulkan-go/vulkan"
)

// uploadContext holds the command resources dedicated to out-of-band
// immediate submissions. They are disjoint from the frame ring's
// command pools so that upload work never contaminates in-flight frame
// recording.
type uploadContext struct {
	fence         vulkan.Fence
	commandPool   vulkan.CommandPool
	commandBuffer vulkan.CommandBuffer
}

// queueSubmitter executes short-lived command sequences on the graphics
// queue and blocks until the GPU signals completion. At most one
// immediate submission is outstanding per instance: SubmitImmediate is
// synchronous and the submitter is confined to a single goroutine.
type queueSubmitter struct {
	device vulkan.Device
	queue  vulkan.Queue
	ctx    uploadContext
}

// SubmitImmediate begins the dedicated one-shot command buffer, lets
// record encode commands into it, submits with the dedicated fence and
// blocks until the fence signals, then resets the fence and the pool.
//
// Failures here are unrecoverable: a partially recorded one-shot
// command buffer cannot be safely resumed, so the process aborts.
func (q *queueSubmitter) SubmitImmediate(record func(cmd vulkan.CommandBuffer)) {
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vulkan.BeginCommandBuffer(q.ctx.commandBuffer, &beginInfo); res != vulkan.Success {
		log.Fatalf("immediate submit: begin command buffer: %v", vulkan.Error(res))
	}

	record(q.ctx.commandBuffer)

	if res := vulkan.EndCommandBuffer(q.ctx.commandBuffer); res != vulkan.Success {
		log.Fatalf("immediate submit: end command buffer: %v", vulkan.Error(res))
	}

	submit := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vulkan.CommandBuffer{q.ctx.commandBuffer},
	}
	if res := vulkan.QueueSubmit(q.queue, 1, []vulkan.SubmitInfo{submit}, q.ctx.fence); res != vulkan.Success {
		log.Fatalf("immediate submit: queue submit: %v", vulkan.Error(res))
	}

	if res := vulkan.WaitForFences(q.device, 1, []vulkan.Fence{q.ctx.fence}, vulkan.True, uploadFenceTimeout); res != vulkan.Success {
		log.Fatalf("immediate submit: fence wait: %v", vulkan.Error(res))
	}
	vulkan.ResetFences(q.device, 1, []vulkan.Fence{q.ctx.fence})
	vulkan.ResetCommandPool(q.device, q.ctx.commandPool, 0)
}

// initUploadContext creates the immediate-submit pool, buffer and
// fence. The fence is created unsignaled; it is only ever waited on
// after a submission.
func (r *Renderer) initUploadContext() error {
	var ctx uploadContext

	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: r.graphicsQueueFamily,
	}
	if res := vulkan.CreateCommandPool(r.device, &poolInfo, nil, &ctx.commandPool); res != vulkan.Success {
		return fmt.Errorf("create upload command pool: %w", vulkan.Error(res))
	}
	r.deletionStack.Push(func() {
		vulkan.DestroyCommandPool(r.device, ctx.commandPool, nil)
	})

	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        ctx.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vulkan.CommandBuffer, 1)
	if res := vulkan.AllocateCommandBuffers(r.device, &allocInfo, buffers); res != vulkan.Success {
		return fmt.Errorf("allocate upload command buffer: %w", vulkan.Error(res))
	}
	ctx.commandBuffer = buffers[0]

	fenceInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
	}
	if res := vulkan.CreateFence(r.device, &fenceInfo, nil, &ctx.fence); res != vulkan.Success {
		return fmt.Errorf("create upload fence: %w", vulkan.Error(res))
	}
	r.deletionStack.Push(func() {
		vulkan.DestroyFence(r.device, ctx.fence, nil)
	})

	r.submitter = &queueSubmitter{
		device: r.device,
		queue:  r.graphicsQueue,
		ctx:    ctx,
	}
	return nil
}
