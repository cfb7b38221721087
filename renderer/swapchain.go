package renderer

import (
	"fmt"
	"math"

	"github.com/vulkan-go/vulkan"
)

// selectSwapSurfaceFormat prefers non-linear sRGB 8-bit BGRA and falls
// back to the first advertised format.
func selectSwapSurfaceFormat(available []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	for _, f := range available {
		if f.Format == vulkan.FormatB8g8r8a8Srgb && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return available[0]
}

// selectSwapPresentMode prefers mailbox and falls back to FIFO, which
// every implementation supports.
func selectSwapPresentMode(available []vulkan.PresentMode) vulkan.PresentMode {
	for _, m := range available {
		if m == vulkan.PresentModeMailbox {
			return m
		}
	}
	return vulkan.PresentModeFifo
}

// selectSwapExtent uses the surface's current extent when defined;
// otherwise it clamps the requested size into the supported range. A
// current extent width of MaxUint32 is the "undefined" sentinel.
func selectSwapExtent(caps vulkan.SurfaceCapabilities, width, height uint32) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vulkan.Extent2D{
		Width:  clampUint32(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// selectImageCount requests one image over the minimum, clamped to the
// supported maximum. A maximum of zero means unbounded.
func selectImageCount(caps vulkan.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clampUint32(val, min, max uint32) uint32 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func (r *Renderer) createSwapchain(support swapchainSupport, width, height int) error {
	surfaceFormat := selectSwapSurfaceFormat(support.formats)
	presentMode := selectSwapPresentMode(support.presentModes)
	extent := selectSwapExtent(support.capabilities, uint32(width), uint32(height))
	imageCount := selectImageCount(support.capabilities)

	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          r.surface,
		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		// Graphics and present share one queue family.
		ImageSharingMode: vulkan.SharingModeExclusive,
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vulkan.True,
		OldSwapchain:     vulkan.Swapchain(vulkan.NullHandle),
	}

	if res := vulkan.CreateSwapchain(r.device, &createInfo, nil, &r.swapchain); res != vulkan.Success {
		return fmt.Errorf("create swapchain: %w", vulkan.Error(res))
	}
	r.deletionStack.Push(func() {
		vulkan.DestroySwapchain(r.device, r.swapchain, nil)
	})

	var count uint32
	vulkan.GetSwapchainImages(r.device, r.swapchain, &count, nil)
	r.swapchainImages = make([]vulkan.Image, count)
	vulkan.GetSwapchainImages(r.device, r.swapchain, &count, r.swapchainImages)
	r.swapchainImageFormat = surfaceFormat.Format
	r.swapchainExtent = extent

	r.swapchainImageViews = make([]vulkan.ImageView, len(r.swapchainImages))
	for i, img := range r.swapchainImages {
		view, err := r.createImageView(img, r.swapchainImageFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit))
		if err != nil {
			return fmt.Errorf("create swapchain image view %d: %w", i, err)
		}
		r.swapchainImageViews[i] = view
		r.deletionStack.Push(func() {
			vulkan.DestroyImageView(r.device, view, nil)
		})
	}
	return nil
}

func (r *Renderer) createDepthResources() error {
	r.depthFormat = vulkan.FormatD32Sfloat

	image, err := r.createImage(r.swapchainExtent.Width, r.swapchainExtent.Height, r.depthFormat,
		vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit))
	if err != nil {
		return fmt.Errorf("create depth image: %w", err)
	}
	r.depthImage = image
	r.deletionStack.Push(func() {
		r.destroyImage(image)
	})

	view, err := r.createImageView(image.image, r.depthFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit))
	if err != nil {
		return fmt.Errorf("create depth image view: %w", err)
	}
	r.depthImageView = view
	r.deletionStack.Push(func() {
		vulkan.DestroyImageView(r.device, view, nil)
	})
	return nil
}

func (r *Renderer) createImageView(image vulkan.Image, format vulkan.Format, aspectFlags vulkan.ImageAspectFlags) (vulkan.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(r.device, &viewInfo, nil, &view); res != vulkan.Success {
		return vulkan.ImageView(vulkan.NullHandle), fmt.Errorf("create image view: %w", vulkan.Error(res))
	}
	return view, nil
}

func (r *Renderer) createRenderPass() error {
	colorAttachment := vulkan.AttachmentDescription{
		Format:         r.swapchainImageFormat,
		Samples:        vulkan.SampleCount1Bit,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
	depthAttachment := vulkan.AttachmentDescription{
		Format:         r.depthFormat,
		Samples:        vulkan.SampleCount1Bit,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpClear,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorRef := vulkan.AttachmentReference{
		Attachment: 0,
		Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
	}
	depthRef := vulkan.AttachmentReference{
		Attachment: 1,
		Layout:     vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:       vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vulkan.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}

	colorDependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit),
	}
	depthDependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageEarlyFragmentTestsBit | vulkan.PipelineStageLateFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageEarlyFragmentTestsBit | vulkan.PipelineStageLateFragmentTestsBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessDepthStencilAttachmentWriteBit),
	}

	attachments := []vulkan.AttachmentDescription{colorAttachment, depthAttachment}
	dependencies := []vulkan.SubpassDependency{colorDependency, depthDependency}
	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	if res := vulkan.CreateRenderPass(r.device, &createInfo, nil, &r.renderPass); res != vulkan.Success {
		return fmt.Errorf("create render pass: %w", vulkan.Error(res))
	}
	r.deletionStack.Push(func() {
		vulkan.DestroyRenderPass(r.device, r.renderPass, nil)
	})
	return nil
}

func (r *Renderer) createFramebuffers() error {
	r.framebuffers = make([]vulkan.Framebuffer, len(r.swapchainImageViews))
	for i := range r.swapchainImageViews {
		attachments := []vulkan.ImageView{r.swapchainImageViews[i], r.depthImageView}
		createInfo := vulkan.FramebufferCreateInfo{
			SType:           vulkan.StructureTypeFramebufferCreateInfo,
			RenderPass:      r.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           r.swapchainExtent.Width,
			Height:          r.swapchainExtent.Height,
			Layers:          1,
		}
		if res := vulkan.CreateFramebuffer(r.device, &createInfo, nil, &r.framebuffers[i]); res != vulkan.Success {
			return fmt.Errorf("create framebuffer %d: %w", i, vulkan.Error(res))
		}
		framebuffer := r.framebuffers[i]
		r.deletionStack.Push(func() {
			vulkan.DestroyFramebuffer(r.device, framebuffer, nil)
		})
	}
	return nil
}
