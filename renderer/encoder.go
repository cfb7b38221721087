package renderer

import (
	"unsafe"

	"github.com/vulkan-go/vulkan"
)

// commandEncoder is the subset of command-buffer recording used by
// drawObjects, kept behind an interface so draw ordering and bind
// minimization can be exercised without a device.
type commandEncoder interface {
	bindPipeline(pipeline vulkan.Pipeline)
	bindDescriptorSets(layout vulkan.PipelineLayout, firstSet uint32, sets []vulkan.DescriptorSet, dynamicOffsets []uint32)
	pushConstants(layout vulkan.PipelineLayout, stages vulkan.ShaderStageFlags, data []byte)
	bindVertexBuffer(buffer vulkan.Buffer)
	bindIndexBuffer(buffer vulkan.Buffer)
	drawIndexed(indexCount, firstInstance uint32)
	draw(vertexCount, firstInstance uint32)
}

// vkEncoder records into a live command buffer.
type vkEncoder struct {
	cmd vulkan.CommandBuffer
}

func (e *vkEncoder) bindPipeline(pipeline vulkan.Pipeline) {
	vulkan.CmdBindPipeline(e.cmd, vulkan.PipelineBindPointGraphics, pipeline)
}

func (e *vkEncoder) bindDescriptorSets(layout vulkan.PipelineLayout, firstSet uint32, sets []vulkan.DescriptorSet, dynamicOffsets []uint32) {
	vulkan.CmdBindDescriptorSets(e.cmd, vulkan.PipelineBindPointGraphics, layout,
		firstSet, uint32(len(sets)), sets, uint32(len(dynamicOffsets)), dynamicOffsets)
}

func (e *vkEncoder) pushConstants(layout vulkan.PipelineLayout, stages vulkan.ShaderStageFlags, data []byte) {
	vulkan.CmdPushConstants(e.cmd, layout, stages, 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (e *vkEncoder) bindVertexBuffer(buffer vulkan.Buffer) {
	offsets := []vulkan.DeviceSize{0}
	vulkan.CmdBindVertexBuffers(e.cmd, 0, 1, []vulkan.Buffer{buffer}, offsets)
}

func (e *vkEncoder) bindIndexBuffer(buffer vulkan.Buffer) {
	vulkan.CmdBindIndexBuffer(e.cmd, buffer, 0, vulkan.IndexTypeUint32)
}

func (e *vkEncoder) drawIndexed(indexCount, firstInstance uint32) {
	vulkan.CmdDrawIndexed(e.cmd, indexCount, 1, 0, 0, firstInstance)
}

func (e *vkEncoder) draw(vertexCount, firstInstance uint32) {
	vulkan.CmdDraw(e.cmd, vertexCount, 1, 0, firstInstance)
}

// structBytes views size bytes starting at p as a slice. The caller
// must keep the backing value alive for the duration of the slice.
func structBytes(p unsafe.Pointer, size uintptr) []byte {
	return (*[1 << 30]byte)(p)[:size:size]
}
