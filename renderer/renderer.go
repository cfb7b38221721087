// Package renderer implements a Vulkan forward renderer: device and
// swapchain bootstrap, a double-buffered frame ring, a synchronous
// upload path for mesh and texture data, and the per-frame draw loop.
//
// All GPU handles are released through a single tasks.Stack in exact
// reverse-creation order; Shutdown is the only teardown entry point.
// The Renderer is confined to the thread that created it.
package renderer

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"github.com/SahilMadan/vk-renderer/assets"
	"github.com/SahilMadan/vk-renderer/tasks"
)

const (
	// frameOverlap is the number of frames the CPU may record ahead of
	// the GPU. Buffer counts and descriptor sets are sized against it
	// at initialization; it is not runtime-configurable.
	frameOverlap = 2

	// maxObjects bounds the per-frame object storage buffer.
	maxObjects = 10000

	// frameFenceTimeout bounds the per-frame fence wait. Expiry is a
	// dropped frame, not an error.
	frameFenceTimeout = 1_000_000_000 // 1s in ns

	// uploadFenceTimeout bounds immediate-submit waits. Large enough
	// for big asset uploads; expiry is fatal.
	uploadFenceTimeout = 9_999_999_999
)

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain", "VK_KHR_shader_draw_parameters"}
)

// Event is an input signal delivered by the windowing collaborator.
type Event int

const (
	// EventToggleShader swaps every renderable between the lit and
	// unlit materials.
	EventToggleShader Event = iota
)

// Material pairs a pipeline with its layout. Materials are named,
// created once and immutable afterwards.
type Material struct {
	pipeline vulkan.Pipeline
	layout   vulkan.PipelineLayout
}

// RenderObject ties a mesh to a material with a model transform. It
// holds weak references; meshes and materials are owned by the
// renderer's registries.
type RenderObject struct {
	Mesh      *Mesh
	Material  *Material
	Transform mgl32.Mat4
}

// InitParams configures Init. Width and Height must be positive and
// Window non-nil; Extensions lists the instance extensions the
// windowing layer requires.
type InitParams struct {
	Width           int
	Height          int
	ApplicationName string
	Window          *glfw.Window
	Extensions      []string

	// ModelPath optionally names a glTF scene to load at startup.
	ModelPath string
	// ShaderDir holds the compiled SPIR-V modules. Defaults to
	// "shaders".
	ShaderDir string
}

type Renderer struct {
	initialized bool
	frameNumber int

	deletionStack tasks.Stack

	enableValidation bool
	window           *glfw.Window

	instance      vulkan.Instance
	debugCallback vulkan.DebugReportCallback
	surface       vulkan.Surface
	gpu           vulkan.PhysicalDevice
	gpuProperties vulkan.PhysicalDeviceProperties
	device        vulkan.Device

	graphicsQueue       vulkan.Queue
	graphicsQueueFamily uint32

	swapchain            vulkan.Swapchain
	swapchainImageFormat vulkan.Format
	swapchainExtent      vulkan.Extent2D
	swapchainImages      []vulkan.Image
	swapchainImageViews  []vulkan.ImageView

	depthFormat    vulkan.Format
	depthImage     allocatedImage
	depthImageView vulkan.ImageView

	renderPass   vulkan.RenderPass
	framebuffers []vulkan.Framebuffer

	frames [frameOverlap]frameData

	globalSetLayout vulkan.DescriptorSetLayout
	objectSetLayout vulkan.DescriptorSetLayout
	descriptorPool  vulkan.DescriptorPool

	sceneParameters       gpuSceneData
	sceneParametersBuffer allocatedBuffer

	meshPipelineLayout vulkan.PipelineLayout

	submitter *queueSubmitter

	meshes      map[string]*Mesh
	materials   map[string]*Material
	textures    []Texture
	renderables []RenderObject
}

// Initialized reports whether Init completed successfully.
func (r *Renderer) Initialized() bool { return r.initialized }

// FrameNumber returns the count of fully presented frames.
func (r *Renderer) FrameNumber() int { return r.frameNumber }

// Init creates the instance, device, swapchain, frame ring, upload
// context, pipelines and initial scene. Every created handle is pushed
// onto the teardown stack immediately, so the caller must invoke
// Shutdown even when Init returns an error.
func (r *Renderer) Init(params InitParams) error {
	if params.Window == nil {
		return errors.New("init: nil window")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return fmt.Errorf("init: invalid dimensions %dx%d", params.Width, params.Height)
	}
	if params.ShaderDir == "" {
		params.ShaderDir = "shaders"
	}
	r.window = params.Window
	r.enableValidation = validationEnabled()
	r.meshes = make(map[string]*Mesh)
	r.materials = make(map[string]*Material)

	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vulkan.Init(); err != nil {
		return fmt.Errorf("vulkan init: %w", err)
	}

	if err := r.createInstance(params); err != nil {
		return err
	}
	if err := vulkan.InitInstance(r.instance); err != nil {
		return fmt.Errorf("vkInitInstance: %w", err)
	}
	if err := r.setupDebugCallback(); err != nil {
		return err
	}
	if err := r.createSurface(); err != nil {
		return err
	}

	selected, err := r.selectPhysicalDevice()
	if err != nil {
		return err
	}
	if err := r.createLogicalDevice(selected); err != nil {
		return err
	}
	if err := r.createSwapchain(selected.support, params.Width, params.Height); err != nil {
		return err
	}
	if err := r.createDepthResources(); err != nil {
		return err
	}
	if err := r.createRenderPass(); err != nil {
		return err
	}
	if err := r.createFramebuffers(); err != nil {
		return err
	}
	if err := r.initFrames(); err != nil {
		return err
	}
	if err := r.initUploadContext(); err != nil {
		return err
	}
	if err := r.initDescriptors(); err != nil {
		return err
	}
	if err := r.initPipelines(params.ShaderDir); err != nil {
		return err
	}
	if err := r.loadMeshes(params.ModelPath); err != nil {
		return err
	}
	r.initScene()

	r.initialized = true
	return nil
}

// Shutdown waits for outstanding GPU work on each frame slot, then
// unwinds the teardown stack. Safe to call after a failed Init and
// idempotent: a second call observes an empty stack and returns.
func (r *Renderer) Shutdown() {
	if r.device != vulkan.Device(vulkan.NullHandle) {
		for i := range r.frames {
			fence := r.frames[i].renderFence
			if fence == vulkan.Fence(vulkan.NullHandle) {
				continue
			}
			if vulkan.GetFenceStatus(r.device, fence) != vulkan.Success {
				if vulkan.WaitForFences(r.device, 1, []vulkan.Fence{fence}, vulkan.True, frameFenceTimeout) != vulkan.Success {
					return
				}
			}
		}
	}
	r.deletionStack.Flush()
	r.device = vulkan.Device(vulkan.NullHandle)
	r.frames = [frameOverlap]frameData{}
	r.initialized = false
}

// HandleEvent dispatches an input signal from the windowing layer.
func (r *Renderer) HandleEvent(e Event) {
	switch e {
	case EventToggleShader:
		r.toggleShader()
	}
}

func (r *Renderer) toggleShader() {
	lit := r.Material("default")
	unlit := r.Material("unlit")
	if lit == nil || unlit == nil {
		return
	}
	for i := range r.renderables {
		switch r.renderables[i].Material {
		case lit:
			r.renderables[i].Material = unlit
		case unlit:
			r.renderables[i].Material = lit
		}
	}
}

// CreateMaterial registers a named pipeline/layout pair.
func (r *Renderer) CreateMaterial(name string, pipeline vulkan.Pipeline, layout vulkan.PipelineLayout) *Material {
	material := &Material{pipeline: pipeline, layout: layout}
	r.materials[name] = material
	return material
}

// Material returns the named material, or nil.
func (r *Renderer) Material(name string) *Material {
	return r.materials[name]
}

// MeshByName returns the named mesh, or nil.
func (r *Renderer) MeshByName(name string) *Mesh {
	return r.meshes[name]
}

func validationEnabled() bool {
	switch os.Getenv("VK_VALIDATION") {
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}

func (r *Renderer) createInstance(params InitParams) error {
	if r.enableValidation && !validationLayersSupported() {
		log.Printf("validation layers unavailable, continuing without")
		r.enableValidation = false
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   safeString(params.ApplicationName),
		ApplicationVersion: vulkan.MakeVersion(1, 0, 0),
		PEngineName:        "vk-renderer\x00",
		EngineVersion:      vulkan.MakeVersion(1, 0, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions := append([]string{}, params.Extensions...)
	if r.enableValidation {
		extensions = append(extensions, "VK_EXT_debug_report")
	}

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if r.enableValidation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	if res := vulkan.CreateInstance(&createInfo, nil, &r.instance); res != vulkan.Success {
		return fmt.Errorf("create instance: %w", vulkan.Error(res))
	}
	r.deletionStack.Push(func() {
		vulkan.DestroyInstance(r.instance, nil)
	})
	return nil
}

func validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[l] {
			return false
		}
	}
	return true
}

func (r *Renderer) setupDebugCallback() error {
	if !r.enableValidation {
		return nil
	}
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
			log.Printf("[VK][%s][0x%x] %s (code=%d)", layerPrefix, flags, message, messageCode)
			return vulkan.False
		},
	}
	if res := vulkan.CreateDebugReportCallback(r.instance, &createInfo, nil, &r.debugCallback); res != vulkan.Success {
		return fmt.Errorf("create debug callback: %w", vulkan.Error(res))
	}
	r.deletionStack.Push(func() {
		vulkan.DestroyDebugReportCallback(r.instance, r.debugCallback, nil)
	})
	return nil
}

func (r *Renderer) createSurface() error {
	surfacePtr, err := r.window.CreateWindowSurface(r.instance, nil)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	r.surface = vulkan.SurfaceFromPointer(surfacePtr)
	r.deletionStack.Push(func() {
		vulkan.DestroySurface(r.instance, r.surface, nil)
	})
	return nil
}

func (r *Renderer) createLogicalDevice(selected selectedDevice) error {
	r.gpu = selected.device
	r.gpuProperties = selected.properties
	r.graphicsQueueFamily = selected.queueFamily

	priority := float32(1.0)
	queueInfo := vulkan.DeviceQueueCreateInfo{
		SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: selected.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{priority},
	}

	deviceFeatures := vulkan.PhysicalDeviceFeatures{
		GeometryShader: vulkan.True,
	}
	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vulkan.DeviceQueueCreateInfo{queueInfo},
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
	}
	if r.enableValidation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	if res := vulkan.CreateDevice(r.gpu, &createInfo, nil, &r.device); res != vulkan.Success {
		return fmt.Errorf("create logical device: %w", vulkan.Error(res))
	}
	r.deletionStack.Push(func() {
		vulkan.DestroyDevice(r.device, nil)
	})

	vulkan.GetDeviceQueue(r.device, r.graphicsQueueFamily, 0, &r.graphicsQueue)
	return nil
}

func (r *Renderer) loadMeshes(modelPath string) error {
	triangle := &Mesh{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{1, 1, 0}, Color: mgl32.Vec3{1, 1, 1}},
			{Position: mgl32.Vec3{-1, 1, 0}, Color: mgl32.Vec3{1, 1, 1}},
			{Position: mgl32.Vec3{0, -1, 0}, Color: mgl32.Vec3{1, 1, 1}},
		},
	}
	if err := r.UploadMesh("triangle", triangle); err != nil {
		return err
	}

	if modelPath == "" {
		return nil
	}
	model, err := assets.Load(modelPath)
	if err != nil {
		return fmt.Errorf("load model %s: %w", modelPath, err)
	}
	for i, data := range model.Meshes {
		name := fmt.Sprintf("%s_%d", modelName(modelPath), i+1)
		if err := r.UploadMesh(name, meshFromAsset(data)); err != nil {
			return err
		}
	}
	for _, tex := range model.Textures {
		texture, err := r.createTexture(tex.Pixels, tex.Width, tex.Height, vulkan.FormatR8g8b8a8Srgb)
		if err != nil {
			return err
		}
		r.deletionStack.Push(func() {
			r.destroyTexture(texture)
		})
		r.textures = append(r.textures, texture)
	}
	return nil
}

func modelName(path string) string {
	base := filepath.Base(filepath.Dir(path))
	if base == "." || base == string(filepath.Separator) {
		return "model"
	}
	return base
}

// initScene rebuilds the renderables list: every loaded model mesh plus
// a grid of scaled triangles, all sharing the default material.
func (r *Renderer) initScene() {
	defaultMaterial := r.Material("default")

	for name, mesh := range r.meshes {
		if name == "triangle" {
			continue
		}
		r.renderables = append(r.renderables, RenderObject{
			Mesh:      mesh,
			Material:  defaultMaterial,
			Transform: mgl32.Ident4(),
		})
	}

	triangle := r.MeshByName("triangle")
	for x := -20; x <= 20; x++ {
		for z := -20; z <= 20; z++ {
			translation := mgl32.Translate3D(float32(x), 0, float32(z))
			scale := mgl32.Scale3D(0.2, 0.2, 0.2)
			r.renderables = append(r.renderables, RenderObject{
				Mesh:      triangle,
				Material:  defaultMaterial,
				Transform: translation.Mul4(scale),
			})
		}
	}
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}
