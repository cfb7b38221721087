package renderer

import (
	"fmt"

	"github.com/vulkan-go/vulkan"

	"github.com/SahilMadan/vk-renderer/tasks"
)

// Texture is a sampled image in shader-read-only layout.
type Texture struct {
	image allocatedImage
	view  vulkan.ImageView
}

// createTexture uploads RGBA pixel data through a staging buffer,
// transitioning the image undefined → transfer-dst → shader-read-only
// on the graphics queue. The staging buffer is destroyed on return.
func (r *Renderer) createTexture(pixels []byte, width, height int, format vulkan.Format) (Texture, error) {
	if len(pixels) != width*height*4 {
		return Texture{}, fmt.Errorf("create texture: %d bytes for %dx%d RGBA", len(pixels), width, height)
	}

	var staging tasks.Stack
	defer staging.Flush()

	size := vulkan.DeviceSize(len(pixels))
	stagingBuffer, err := r.createBuffer(size,
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit),
		vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return Texture{}, fmt.Errorf("create texture: staging: %w", err)
	}
	staging.Push(func() {
		r.destroyBuffer(stagingBuffer)
	})
	if err := r.writeMemory(stagingBuffer.memory, 0, pixels); err != nil {
		return Texture{}, fmt.Errorf("create texture: %w", err)
	}

	extent := vulkan.Extent3D{Width: uint32(width), Height: uint32(height), Depth: 1}
	image, err := r.createImage(uint32(width), uint32(height), format,
		vulkan.ImageUsageFlags(vulkan.ImageUsageSampledBit|vulkan.ImageUsageTransferDstBit))
	if err != nil {
		return Texture{}, fmt.Errorf("create texture: image: %w", err)
	}

	subresourceRange := vulkan.ImageSubresourceRange{
		AspectMask: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}

	r.submitter.SubmitImmediate(func(cmd vulkan.CommandBuffer) {
		toTransfer := vulkan.ImageMemoryBarrier{
			SType:            vulkan.StructureTypeImageMemoryBarrier,
			OldLayout:        vulkan.ImageLayoutUndefined,
			NewLayout:        vulkan.ImageLayoutTransferDstOptimal,
			Image:            image.image,
			SubresourceRange: subresourceRange,
			SrcAccessMask:    0,
			DstAccessMask:    vulkan.AccessFlags(vulkan.AccessTransferWriteBit),
		}
		vulkan.CmdPipelineBarrier(cmd,
			vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit),
			vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
			0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{toTransfer})

		copyRegion := vulkan.BufferImageCopy{
			ImageSubresource: vulkan.ImageSubresourceLayers{
				AspectMask: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: extent,
		}
		vulkan.CmdCopyBufferToImage(cmd, stagingBuffer.buffer, image.image,
			vulkan.ImageLayoutTransferDstOptimal, 1, []vulkan.BufferImageCopy{copyRegion})

		toShader := vulkan.ImageMemoryBarrier{
			SType:            vulkan.StructureTypeImageMemoryBarrier,
			OldLayout:        vulkan.ImageLayoutTransferDstOptimal,
			NewLayout:        vulkan.ImageLayoutShaderReadOnlyOptimal,
			Image:            image.image,
			SubresourceRange: subresourceRange,
			SrcAccessMask:    vulkan.AccessFlags(vulkan.AccessTransferWriteBit),
			DstAccessMask:    vulkan.AccessFlags(vulkan.AccessShaderReadBit),
		}
		vulkan.CmdPipelineBarrier(cmd,
			vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
			vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit),
			0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{toShader})
	})

	view, err := r.createImageView(image.image, format, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit))
	if err != nil {
		r.destroyImage(image)
		return Texture{}, fmt.Errorf("create texture: view: %w", err)
	}
	return Texture{image: image, view: view}, nil
}

func (r *Renderer) destroyTexture(texture Texture) {
	if texture.view != vulkan.ImageView(vulkan.NullHandle) {
		vulkan.DestroyImageView(r.device, texture.view, nil)
	}
	r.destroyImage(texture.image)
}
