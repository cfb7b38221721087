// Package assets loads glTF 2.0 scenes into plain CPU-side mesh and
// texture data, with no GPU dependencies.
package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"golang.org/x/image/draw"
)

// Vertex carries the attributes read from a glTF primitive.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// Mesh is one glTF primitive's geometry. Indices may be empty for
// non-indexed primitives.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Texture holds decoded RGBA pixels, 4 bytes per pixel in row order.
type Texture struct {
	Pixels []byte
	Width  int
	Height int
}

// Model is a fully loaded scene.
type Model struct {
	Meshes   []Mesh
	Textures []Texture
}

// Load reads a .gltf or .glb file and returns its meshes and textures.
// Relative image URIs resolve against the model's directory.
func Load(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf %s: %w", path, err)
	}
	return loadDocument(doc, filepath.Dir(path))
}

func loadDocument(doc *gltf.Document, dir string) (*Model, error) {
	model := &Model{}

	for mi, mesh := range doc.Meshes {
		for pi, primitive := range mesh.Primitives {
			parsed, err := loadPrimitive(doc, primitive)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			model.Meshes = append(model.Meshes, parsed)
		}
	}

	for i, img := range doc.Images {
		texture, err := loadImage(doc, img, dir)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		model.Textures = append(model.Textures, texture)
	}
	return model, nil
}

func loadPrimitive(doc *gltf.Document, primitive *gltf.Primitive) (Mesh, error) {
	posIndex, ok := primitive.Attributes[gltf.POSITION]
	if !ok {
		return Mesh{}, fmt.Errorf("primitive has no %s attribute", gltf.POSITION)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIndex], nil)
	if err != nil {
		return Mesh{}, fmt.Errorf("read positions: %w", err)
	}

	var normals [][3]float32
	if normalIndex, ok := primitive.Attributes[gltf.NORMAL]; ok {
		normals, err = modeler.ReadNormal(doc, doc.Accessors[normalIndex], nil)
		if err != nil {
			return Mesh{}, fmt.Errorf("read normals: %w", err)
		}
		if len(normals) != len(positions) {
			return Mesh{}, fmt.Errorf("normal count %d != position count %d", len(normals), len(positions))
		}
	}

	mesh := Mesh{Vertices: make([]Vertex, len(positions))}
	for i, p := range positions {
		mesh.Vertices[i].Position = mgl32.Vec3{p[0], p[1], p[2]}
		if normals != nil {
			n := normals[i]
			mesh.Vertices[i].Normal = mgl32.Vec3{n[0], n[1], n[2]}
		}
	}

	if primitive.Indices != nil {
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*primitive.Indices], nil)
		if err != nil {
			return Mesh{}, fmt.Errorf("read indices: %w", err)
		}
		mesh.Indices = indices
	}
	return mesh, nil
}

func loadImage(doc *gltf.Document, img *gltf.Image, dir string) (Texture, error) {
	var data []byte
	switch {
	case img.BufferView != nil:
		raw, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err != nil {
			return Texture{}, fmt.Errorf("read buffer view: %w", err)
		}
		data = raw
	case img.URI != "":
		raw, err := os.ReadFile(filepath.Join(dir, img.URI))
		if err != nil {
			return Texture{}, fmt.Errorf("read image file: %w", err)
		}
		data = raw
	default:
		return Texture{}, fmt.Errorf("image has neither buffer view nor URI")
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Texture{}, fmt.Errorf("decode image: %w", err)
	}
	return textureFromImage(decoded), nil
}

// textureFromImage converts any decoded image to tightly packed RGBA.
func textureFromImage(src image.Image) Texture {
	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	return Texture{
		Pixels: rgba.Pix,
		Width:  rgba.Rect.Dx(),
		Height: rgba.Rect.Dy(),
	}
}
