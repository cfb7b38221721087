package renderer

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"github.com/vulkan-go/vulkan"
)

// pipelineBuilder accumulates the fixed-function state for one graphics
// pipeline. States are plain values so a builder can be reused with a
// different shader set between build calls.
type pipelineBuilder struct {
	shaderStages  []vulkan.PipelineShaderStageCreateInfo
	vertexInput   vulkan.PipelineVertexInputStateCreateInfo
	inputAssembly vulkan.PipelineInputAssemblyStateCreateInfo
	viewport      vulkan.Viewport
	scissor       vulkan.Rect2D
	rasterizer    vulkan.PipelineRasterizationStateCreateInfo
	colorBlend    vulkan.PipelineColorBlendAttachmentState
	multisampling vulkan.PipelineMultisampleStateCreateInfo
	depthStencil  vulkan.PipelineDepthStencilStateCreateInfo
	layout        vulkan.PipelineLayout
}

func shaderStageCreateInfo(stage vulkan.ShaderStageFlagBits, module vulkan.ShaderModule) vulkan.PipelineShaderStageCreateInfo {
	return vulkan.PipelineShaderStageCreateInfo{
		SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: module,
		PName:  "main\x00",
	}
}

func vertexInputStateCreateInfo(desc vertexInputDescription) vulkan.PipelineVertexInputStateCreateInfo {
	return vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(desc.bindings)),
		PVertexBindingDescriptions:      desc.bindings,
		VertexAttributeDescriptionCount: uint32(len(desc.attributes)),
		PVertexAttributeDescriptions:    desc.attributes,
	}
}

func inputAssemblyCreateInfo(topology vulkan.PrimitiveTopology) vulkan.PipelineInputAssemblyStateCreateInfo {
	return vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology,
		PrimitiveRestartEnable: vulkan.False,
	}
}

func rasterizationStateCreateInfo(mode vulkan.PolygonMode) vulkan.PipelineRasterizationStateCreateInfo {
	return vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             mode,
		LineWidth:               1.0,
		CullMode:                vulkan.CullModeFlags(vulkan.CullModeNone),
		FrontFace:               vulkan.FrontFaceClockwise,
		DepthBiasEnable:         vulkan.False,
	}
}

func multisampleStateCreateInfo() vulkan.PipelineMultisampleStateCreateInfo {
	return vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vulkan.False,
		RasterizationSamples: vulkan.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
}

func colorBlendAttachmentState() vulkan.PipelineColorBlendAttachmentState {
	return vulkan.PipelineColorBlendAttachmentState{
		ColorWriteMask: vulkan.ColorComponentFlags(
			vulkan.ColorComponentRBit | vulkan.ColorComponentGBit |
				vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
		BlendEnable: vulkan.False,
	}
}

func depthStencilCreateInfo(depthTest, depthWrite bool, compareOp vulkan.CompareOp) vulkan.PipelineDepthStencilStateCreateInfo {
	info := vulkan.PipelineDepthStencilStateCreateInfo{
		SType:                 vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp:        vulkan.CompareOpAlways,
		DepthBoundsTestEnable: vulkan.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
		StencilTestEnable:     vulkan.False,
	}
	if depthTest {
		info.DepthTestEnable = vulkan.True
		info.DepthCompareOp = compareOp
	}
	if depthWrite {
		info.DepthWriteEnable = vulkan.True
	}
	return info
}

// build assembles the accumulated state into a graphics pipeline.
func (b *pipelineBuilder) build(device vulkan.Device, renderPass vulkan.RenderPass) (vulkan.Pipeline, error) {
	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vulkan.Viewport{b.viewport},
		ScissorCount:  1,
		PScissors:     []vulkan.Rect2D{b.scissor},
	}
	colorBlending := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vulkan.False,
		LogicOp:         vulkan.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vulkan.PipelineColorBlendAttachmentState{b.colorBlend},
	}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(b.shaderStages)),
		PStages:             b.shaderStages,
		PVertexInputState:   &b.vertexInput,
		PInputAssemblyState: &b.inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &b.rasterizer,
		PMultisampleState:   &b.multisampling,
		PColorBlendState:    &colorBlending,
		PDepthStencilState:  &b.depthStencil,
		Layout:              b.layout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  vulkan.Pipeline(vulkan.NullHandle),
	}

	pipelines := make([]vulkan.Pipeline, 1)
	res := vulkan.CreateGraphicsPipelines(device, vulkan.PipelineCache(vulkan.NullHandle),
		1, []vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines)
	if res != vulkan.Success {
		return vulkan.Pipeline(vulkan.NullHandle), fmt.Errorf("create graphics pipeline: %w", vulkan.Error(res))
	}
	return pipelines[0], nil
}

// initPipelines builds the shared mesh pipeline layout and the lit and
// unlit pipelines, registering them as the "default" and "unlit"
// materials. Shader modules are destroyed once the pipelines exist.
func (r *Renderer) initPipelines(shaderDir string) error {
	vertModule, err := r.loadShaderModule(filepath.Join(shaderDir, "mesh.vert.spv"))
	if err != nil {
		return err
	}
	defer vulkan.DestroyShaderModule(r.device, vertModule, nil)

	litModule, err := r.loadShaderModule(filepath.Join(shaderDir, "default_lit.frag.spv"))
	if err != nil {
		return err
	}
	defer vulkan.DestroyShaderModule(r.device, litModule, nil)

	unlitModule, err := r.loadShaderModule(filepath.Join(shaderDir, "unlit.frag.spv"))
	if err != nil {
		return err
	}
	defer vulkan.DestroyShaderModule(r.device, unlitModule, nil)

	pushConstantRange := vulkan.PushConstantRange{
		StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(meshPushConstants{})),
	}
	layoutInfo := vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         2,
		PSetLayouts:            []vulkan.DescriptorSetLayout{r.globalSetLayout, r.objectSetLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vulkan.PushConstantRange{pushConstantRange},
	}
	if res := vulkan.CreatePipelineLayout(r.device, &layoutInfo, nil, &r.meshPipelineLayout); res != vulkan.Success {
		return fmt.Errorf("create mesh pipeline layout: %w", vulkan.Error(res))
	}
	layout := r.meshPipelineLayout
	r.deletionStack.Push(func() {
		vulkan.DestroyPipelineLayout(r.device, layout, nil)
	})

	builder := pipelineBuilder{
		vertexInput:   vertexInputStateCreateInfo(meshVertexInputDescription()),
		inputAssembly: inputAssemblyCreateInfo(vulkan.PrimitiveTopologyTriangleList),
		viewport: vulkan.Viewport{
			X: 0, Y: 0,
			Width:    float32(r.swapchainExtent.Width),
			Height:   float32(r.swapchainExtent.Height),
			MinDepth: 0.0,
			MaxDepth: 1.0,
		},
		scissor: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: r.swapchainExtent,
		},
		rasterizer:    rasterizationStateCreateInfo(vulkan.PolygonModeFill),
		colorBlend:    colorBlendAttachmentState(),
		multisampling: multisampleStateCreateInfo(),
		depthStencil:  depthStencilCreateInfo(true, true, vulkan.CompareOpLessOrEqual),
		layout:        r.meshPipelineLayout,
	}

	builder.shaderStages = []vulkan.PipelineShaderStageCreateInfo{
		shaderStageCreateInfo(vulkan.ShaderStageVertexBit, vertModule),
		shaderStageCreateInfo(vulkan.ShaderStageFragmentBit, litModule),
	}
	litPipeline, err := builder.build(r.device, r.renderPass)
	if err != nil {
		return fmt.Errorf("lit pipeline: %w", err)
	}
	r.deletionStack.Push(func() {
		vulkan.DestroyPipeline(r.device, litPipeline, nil)
	})
	r.CreateMaterial("default", litPipeline, r.meshPipelineLayout)

	builder.shaderStages = []vulkan.PipelineShaderStageCreateInfo{
		shaderStageCreateInfo(vulkan.ShaderStageVertexBit, vertModule),
		shaderStageCreateInfo(vulkan.ShaderStageFragmentBit, unlitModule),
	}
	unlitPipeline, err := builder.build(r.device, r.renderPass)
	if err != nil {
		return fmt.Errorf("unlit pipeline: %w", err)
	}
	r.deletionStack.Push(func() {
		vulkan.DestroyPipeline(r.device, unlitPipeline, nil)
	})
	r.CreateMaterial("unlit", unlitPipeline, r.meshPipelineLayout)

	return nil
}
