package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

// recordingEncoder captures the command stream drawObjects produces.
type recordingEncoder struct {
	pipelineBinds     int
	descriptorBinds   int
	vertexBufferBinds int
	indexBufferBinds  int
	pushes            int
	firstInstances    []uint32
	indexedDraws      int
	plainDraws        int
	dynamicOffsets    []uint32
}

func (e *recordingEncoder) bindPipeline(vulkan.Pipeline) { e.pipelineBinds++ }

func (e *recordingEncoder) bindDescriptorSets(_ vulkan.PipelineLayout, _ uint32, _ []vulkan.DescriptorSet, offsets []uint32) {
	e.descriptorBinds++
	e.dynamicOffsets = append(e.dynamicOffsets, offsets...)
}

func (e *recordingEncoder) pushConstants(_ vulkan.PipelineLayout, _ vulkan.ShaderStageFlags, _ []byte) {
	e.pushes++
}

func (e *recordingEncoder) bindVertexBuffer(vulkan.Buffer) { e.vertexBufferBinds++ }
func (e *recordingEncoder) bindIndexBuffer(vulkan.Buffer)  { e.indexBufferBinds++ }

func (e *recordingEncoder) drawIndexed(_, firstInstance uint32) {
	e.indexedDraws++
	e.firstInstances = append(e.firstInstances, firstInstance)
}

func (e *recordingEncoder) draw(_, firstInstance uint32) {
	e.plainDraws++
	e.firstInstances = append(e.firstInstances, firstInstance)
}

func testMesh(vertices int) *Mesh {
	mesh := &Mesh{Vertices: make([]Vertex, vertices)}
	return mesh
}

func TestDrawObjectsSharedStateBindsOnce(t *testing.T) {
	mesh := testMesh(3)
	material := &Material{}
	objects := []RenderObject{
		{Mesh: mesh, Material: material, Transform: mgl32.Ident4()},
		{Mesh: mesh, Material: material, Transform: mgl32.Translate3D(1, 0, 0)},
	}

	enc := &recordingEncoder{}
	drawObjects(enc, objects, &frameData{}, 0)

	require.Equal(t, 1, enc.pipelineBinds)
	require.Equal(t, 2, enc.descriptorBinds, "global and object sets bound once each")
	require.Equal(t, 1, enc.vertexBufferBinds)
	require.Equal(t, 2, enc.plainDraws)
	require.Equal(t, 2, enc.pushes, "push constants are per object even when state is shared")
	require.Equal(t, []uint32{0, 1}, enc.firstInstances)
}

func TestDrawObjectsRebindsOnMaterialChange(t *testing.T) {
	mesh := testMesh(3)
	lit := &Material{}
	unlit := &Material{}
	objects := []RenderObject{
		{Mesh: mesh, Material: lit, Transform: mgl32.Ident4()},
		{Mesh: mesh, Material: unlit, Transform: mgl32.Ident4()},
		{Mesh: mesh, Material: lit, Transform: mgl32.Ident4()},
	}

	enc := &recordingEncoder{}
	drawObjects(enc, objects, &frameData{}, 0)

	// Alternating materials defeat the cache on every object.
	require.Equal(t, 3, enc.pipelineBinds)
	// The mesh stays bound across material changes.
	require.Equal(t, 1, enc.vertexBufferBinds)
	require.Equal(t, []uint32{0, 1, 2}, enc.firstInstances)
}

func TestDrawObjectsRebindsOnMeshChange(t *testing.T) {
	meshA := testMesh(3)
	meshB := testMesh(6)
	material := &Material{}
	objects := []RenderObject{
		{Mesh: meshA, Material: material, Transform: mgl32.Ident4()},
		{Mesh: meshB, Material: material, Transform: mgl32.Ident4()},
	}

	enc := &recordingEncoder{}
	drawObjects(enc, objects, &frameData{}, 0)

	require.Equal(t, 1, enc.pipelineBinds)
	require.Equal(t, 2, enc.vertexBufferBinds)
}

func TestDrawObjectsIndexedPath(t *testing.T) {
	mesh := testMesh(4)
	mesh.Indices = []uint32{0, 1, 2, 2, 3, 0}
	material := &Material{}
	objects := []RenderObject{
		{Mesh: mesh, Material: material, Transform: mgl32.Ident4()},
	}

	enc := &recordingEncoder{}
	drawObjects(enc, objects, &frameData{}, 0)

	require.Equal(t, 1, enc.indexBufferBinds)
	require.Equal(t, 1, enc.indexedDraws)
	require.Zero(t, enc.plainDraws)
}

func TestDrawObjectsSkipsIncompleteObjects(t *testing.T) {
	mesh := testMesh(3)
	material := &Material{}
	objects := []RenderObject{
		{Mesh: nil, Material: material},
		{Mesh: mesh, Material: nil},
		{Mesh: mesh, Material: material, Transform: mgl32.Ident4()},
	}

	enc := &recordingEncoder{}
	drawObjects(enc, objects, &frameData{}, 0)

	require.Equal(t, 1, enc.plainDraws)
	// firstInstance still carries the object's index in the full list,
	// matching the storage-buffer slot written for it.
	require.Equal(t, []uint32{2}, enc.firstInstances)
}

func TestDrawObjectsPassesSceneOffset(t *testing.T) {
	mesh := testMesh(3)
	material := &Material{}
	objects := []RenderObject{
		{Mesh: mesh, Material: material, Transform: mgl32.Ident4()},
	}

	enc := &recordingEncoder{}
	drawObjects(enc, objects, &frameData{}, 256)

	require.Equal(t, []uint32{256}, enc.dynamicOffsets)
}

func TestCurrentFrameCyclesThroughRing(t *testing.T) {
	r := &Renderer{}

	first := r.currentFrame()
	require.Same(t, &r.frames[0], first)

	r.frameNumber = 1
	require.Same(t, &r.frames[1], r.currentFrame())

	r.frameNumber = 2
	require.Same(t, &r.frames[0], r.currentFrame())

	r.frameNumber = 7
	require.Same(t, &r.frames[1], r.currentFrame())
}
