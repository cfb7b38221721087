package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func newTestRenderer() *Renderer {
	return &Renderer{
		meshes:    make(map[string]*Mesh),
		materials: make(map[string]*Material),
	}
}

func TestMaterialRegistry(t *testing.T) {
	r := newTestRenderer()

	created := r.CreateMaterial("default", vulkan.Pipeline(vulkan.NullHandle), vulkan.PipelineLayout(vulkan.NullHandle))
	require.NotNil(t, created)
	require.Same(t, created, r.Material("default"))
	require.Nil(t, r.Material("missing"))
}

func TestMeshRegistry(t *testing.T) {
	r := newTestRenderer()

	mesh := testMesh(3)
	r.meshes["triangle"] = mesh
	require.Same(t, mesh, r.MeshByName("triangle"))
	require.Nil(t, r.MeshByName("missing"))
}

func TestToggleShaderSwapsMaterials(t *testing.T) {
	r := newTestRenderer()
	lit := r.CreateMaterial("default", vulkan.Pipeline(vulkan.NullHandle), vulkan.PipelineLayout(vulkan.NullHandle))
	unlit := r.CreateMaterial("unlit", vulkan.Pipeline(vulkan.NullHandle), vulkan.PipelineLayout(vulkan.NullHandle))
	other := &Material{}

	mesh := testMesh(3)
	r.renderables = []RenderObject{
		{Mesh: mesh, Material: lit, Transform: mgl32.Ident4()},
		{Mesh: mesh, Material: unlit, Transform: mgl32.Ident4()},
		{Mesh: mesh, Material: other, Transform: mgl32.Ident4()},
	}

	r.HandleEvent(EventToggleShader)
	require.Same(t, unlit, r.renderables[0].Material)
	require.Same(t, lit, r.renderables[1].Material)
	// Materials outside the lit/unlit pair are untouched.
	require.Same(t, other, r.renderables[2].Material)

	r.HandleEvent(EventToggleShader)
	require.Same(t, lit, r.renderables[0].Material)
	require.Same(t, unlit, r.renderables[1].Material)
}

func TestToggleShaderWithoutMaterialsIsNoOp(t *testing.T) {
	r := newTestRenderer()
	r.renderables = []RenderObject{{Mesh: testMesh(3), Material: &Material{}}}

	before := r.renderables[0].Material
	r.HandleEvent(EventToggleShader)
	require.Same(t, before, r.renderables[0].Material)
}

func TestShutdownBeforeInit(t *testing.T) {
	r := &Renderer{}

	// No device, no stack entries: both calls are safe no-ops.
	r.Shutdown()
	r.Shutdown()
	require.False(t, r.Initialized())
	require.Zero(t, r.FrameNumber())
}

func TestShutdownRunsTeardownInReverseOrder(t *testing.T) {
	r := &Renderer{}
	var order []string
	r.deletionStack.Push(func() { order = append(order, "instance") })
	r.deletionStack.Push(func() { order = append(order, "device") })
	r.deletionStack.Push(func() { order = append(order, "swapchain") })

	r.Shutdown()
	require.Equal(t, []string{"swapchain", "device", "instance"}, order)

	r.Shutdown()
	require.Len(t, order, 3, "a second shutdown must not re-run teardown")
}

func TestDrawBeforeInitIsNoOp(t *testing.T) {
	r := &Renderer{}
	r.Draw()
	require.Zero(t, r.FrameNumber())
}

func TestSafeString(t *testing.T) {
	require.Equal(t, "app\x00", safeString("app"))
	require.Equal(t, "app\x00", safeString("app\x00"))
	require.Equal(t, "\x00", safeString(""))
}

func TestValidationEnabled(t *testing.T) {
	t.Setenv("VK_VALIDATION", "")
	require.True(t, validationEnabled())

	t.Setenv("VK_VALIDATION", "0")
	require.False(t, validationEnabled())

	t.Setenv("VK_VALIDATION", "false")
	require.False(t, validationEnabled())

	t.Setenv("VK_VALIDATION", "1")
	require.True(t, validationEnabled())
}
