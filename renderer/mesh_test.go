package renderer

import (
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"github.com/SahilMadan/vk-renderer/assets"
)

func TestVertexLayoutMatchesInputDescription(t *testing.T) {
	desc := meshVertexInputDescription()

	require.Len(t, desc.bindings, 1)
	require.Equal(t, uint32(unsafe.Sizeof(Vertex{})), desc.bindings[0].Stride)

	require.Len(t, desc.attributes, 3)
	for _, attr := range desc.attributes {
		require.Equal(t, vulkan.FormatR32g32b32Sfloat, attr.Format)
		require.Equal(t, uint32(0), attr.Binding)
	}
	require.Equal(t, uint32(0), desc.attributes[0].Offset)
	require.Equal(t, uint32(12), desc.attributes[1].Offset)
	require.Equal(t, uint32(24), desc.attributes[2].Offset)
}

func TestBufferSizes(t *testing.T) {
	// Three float32 vectors per vertex.
	require.Equal(t, vulkan.DeviceSize(36), vertexBufferSize(1))
	require.Equal(t, vulkan.DeviceSize(108), vertexBufferSize(3))
	require.Equal(t, vulkan.DeviceSize(0), vertexBufferSize(0))

	require.Equal(t, vulkan.DeviceSize(4), indexBufferSize(1))
	require.Equal(t, vulkan.DeviceSize(24), indexBufferSize(6))
}

func TestVerticesToBytes(t *testing.T) {
	vertices := []Vertex{
		{Position: mgl32.Vec3{1, 2, 3}},
		{Position: mgl32.Vec3{4, 5, 6}},
	}

	raw := verticesToBytes(vertices)
	require.Len(t, raw, int(vertexBufferSize(len(vertices))))

	require.Nil(t, verticesToBytes(nil))
}

func TestIndicesToBytesLittleEndian(t *testing.T) {
	raw := indicesToBytes([]uint32{0x01020304})
	require.Len(t, raw, 4)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, raw)
}

func TestMeshFromAsset(t *testing.T) {
	src := assets.Mesh{
		Vertices: []assets.Vertex{
			{Position: mgl32.Vec3{1, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec3{0, 1, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		},
		Indices: []uint32{0, 1, 0},
	}

	mesh := meshFromAsset(src)
	require.Len(t, mesh.Vertices, 2)
	require.Equal(t, src.Vertices[0].Position, mesh.Vertices[0].Position)
	require.Equal(t, src.Vertices[0].Normal, mesh.Vertices[0].Normal)
	// Color mirrors the normal until materials carry color.
	require.Equal(t, src.Vertices[0].Normal, mesh.Vertices[0].Color)
	require.Equal(t, src.Indices, mesh.Indices)

	// The copy must not alias the source slice.
	mesh.Indices[0] = 99
	require.Equal(t, uint32(0), src.Indices[0])
}
