package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"

	"github.com/SahilMadan/vk-renderer/assets"
	"github.com/SahilMadan/vk-renderer/tasks"
)

// Vertex is the interleaved CPU-side vertex layout. The GPU layout in
// meshVertexInputDescription must match field for field.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Color    mgl32.Vec3
}

// Mesh owns device-local vertex and index buffers once uploaded. A mesh
// with no indices is drawn non-indexed.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32

	vertexBuffer allocatedBuffer
	indexBuffer  allocatedBuffer
}

type vertexInputDescription struct {
	bindings   []vulkan.VertexInputBindingDescription
	attributes []vulkan.VertexInputAttributeDescription
}

func meshVertexInputDescription() vertexInputDescription {
	return vertexInputDescription{
		bindings: []vulkan.VertexInputBindingDescription{
			{
				Binding:   0,
				Stride:    uint32(unsafe.Sizeof(Vertex{})),
				InputRate: vulkan.VertexInputRateVertex,
			},
		},
		attributes: []vulkan.VertexInputAttributeDescription{
			{
				Location: 0,
				Binding:  0,
				Format:   vulkan.FormatR32g32b32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.Position)),
			},
			{
				Location: 1,
				Binding:  0,
				Format:   vulkan.FormatR32g32b32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.Normal)),
			},
			{
				Location: 2,
				Binding:  0,
				Format:   vulkan.FormatR32g32b32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
			},
		},
	}
}

// vertexBufferSize returns the byte size of n interleaved vertices.
func vertexBufferSize(n int) vulkan.DeviceSize {
	return vulkan.DeviceSize(uintptr(n) * unsafe.Sizeof(Vertex{}))
}

// indexBufferSize returns the byte size of n uint32 indices.
func indexBufferSize(n int) vulkan.DeviceSize {
	return vulkan.DeviceSize(uintptr(n) * unsafe.Sizeof(uint32(0)))
}

func verticesToBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	size := uintptr(len(vertices)) * unsafe.Sizeof(Vertex{})
	return structBytes(unsafe.Pointer(&vertices[0]), size)
}

func indicesToBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	size := uintptr(len(indices)) * unsafe.Sizeof(uint32(0))
	return structBytes(unsafe.Pointer(&indices[0]), size)
}

// UploadMesh stages the mesh's vertex and index data in host-visible
// buffers, copies them into device-local buffers on the graphics queue
// and registers the mesh under name. The staging buffers are destroyed
// before returning; the device-local buffers live until Shutdown.
func (r *Renderer) UploadMesh(name string, mesh *Mesh) error {
	if len(mesh.Vertices) == 0 {
		return fmt.Errorf("upload mesh %q: no vertices", name)
	}

	var staging tasks.Stack
	defer staging.Flush()

	vertexSize := vertexBufferSize(len(mesh.Vertices))
	vertexStaging, err := r.createBuffer(vertexSize,
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit),
		vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return fmt.Errorf("upload mesh %q: vertex staging: %w", name, err)
	}
	staging.Push(func() {
		r.destroyBuffer(vertexStaging)
	})
	if err := r.writeMemory(vertexStaging.memory, 0, verticesToBytes(mesh.Vertices)); err != nil {
		return fmt.Errorf("upload mesh %q: %w", name, err)
	}

	vertexBuffer, err := r.createBuffer(vertexSize,
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferDstBit|vulkan.BufferUsageVertexBufferBit),
		vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return fmt.Errorf("upload mesh %q: vertex buffer: %w", name, err)
	}
	mesh.vertexBuffer = vertexBuffer
	r.deletionStack.Push(func() {
		r.destroyBuffer(vertexBuffer)
	})

	indexed := len(mesh.Indices) > 0
	var indexStaging, indexBuffer allocatedBuffer
	var indexSize vulkan.DeviceSize
	if indexed {
		indexSize = indexBufferSize(len(mesh.Indices))
		indexStaging, err = r.createBuffer(indexSize,
			vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit),
			vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
		if err != nil {
			return fmt.Errorf("upload mesh %q: index staging: %w", name, err)
		}
		staging.Push(func() {
			r.destroyBuffer(indexStaging)
		})
		if err := r.writeMemory(indexStaging.memory, 0, indicesToBytes(mesh.Indices)); err != nil {
			return fmt.Errorf("upload mesh %q: %w", name, err)
		}

		indexBuffer, err = r.createBuffer(indexSize,
			vulkan.BufferUsageFlags(vulkan.BufferUsageTransferDstBit|vulkan.BufferUsageIndexBufferBit),
			vulkan.MemoryPropertyDeviceLocalBit)
		if err != nil {
			return fmt.Errorf("upload mesh %q: index buffer: %w", name, err)
		}
		mesh.indexBuffer = indexBuffer
		r.deletionStack.Push(func() {
			r.destroyBuffer(indexBuffer)
		})
	}

	r.submitter.SubmitImmediate(func(cmd vulkan.CommandBuffer) {
		vertexCopy := vulkan.BufferCopy{SrcOffset: 0, DstOffset: 0, Size: vertexSize}
		vulkan.CmdCopyBuffer(cmd, vertexStaging.buffer, vertexBuffer.buffer, 1, []vulkan.BufferCopy{vertexCopy})
		if indexed {
			indexCopy := vulkan.BufferCopy{SrcOffset: 0, DstOffset: 0, Size: indexSize}
			vulkan.CmdCopyBuffer(cmd, indexStaging.buffer, indexBuffer.buffer, 1, []vulkan.BufferCopy{indexCopy})
		}
	})

	r.meshes[name] = mesh
	return nil
}

// meshFromAsset converts a loaded asset mesh into the renderer's vertex
// layout. Vertex color mirrors the normal until materials carry color.
func meshFromAsset(src assets.Mesh) *Mesh {
	mesh := &Mesh{
		Vertices: make([]Vertex, len(src.Vertices)),
		Indices:  append([]uint32(nil), src.Indices...),
	}
	for i, v := range src.Vertices {
		mesh.Vertices[i] = Vertex{
			Position: v.Position,
			Normal:   v.Normal,
			Color:    v.Normal,
		}
	}
	return mesh
}
