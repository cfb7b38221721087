package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/require"
)

func TestLoadDocumentReadsGeometry(t *testing.T) {
	doc := gltf.NewDocument()
	positions := modeler.WritePosition(doc, [][3]float32{
		{1, 1, 0}, {-1, 1, 0}, {0, -1, 0},
	})
	normals := modeler.WriteNormal(doc, [][3]float32{
		{0, 0, 1}, {0, 0, 1}, {0, 0, 1},
	})
	indices := modeler.WriteIndices(doc, []uint32{0, 1, 2})
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Primitives: []*gltf.Primitive{{
			Attributes: gltf.Attribute{gltf.POSITION: positions, gltf.NORMAL: normals},
			Indices:    gltf.Index(indices),
		}},
	})

	model, err := loadDocument(doc, t.TempDir())
	require.NoError(t, err)
	require.Len(t, model.Meshes, 1)

	mesh := model.Meshes[0]
	require.Len(t, mesh.Vertices, 3)
	require.Equal(t, mgl32.Vec3{1, 1, 0}, mesh.Vertices[0].Position)
	require.Equal(t, mgl32.Vec3{0, -1, 0}, mesh.Vertices[2].Position)
	require.Equal(t, mgl32.Vec3{0, 0, 1}, mesh.Vertices[1].Normal)
	require.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
}

func TestLoadDocumentNonIndexedPrimitive(t *testing.T) {
	doc := gltf.NewDocument()
	positions := modeler.WritePosition(doc, [][3]float32{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0},
	})
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Primitives: []*gltf.Primitive{{
			Attributes: gltf.Attribute{gltf.POSITION: positions},
		}},
	})

	model, err := loadDocument(doc, t.TempDir())
	require.NoError(t, err)
	require.Len(t, model.Meshes, 1)
	require.Empty(t, model.Meshes[0].Indices)
	// Missing normals read back as zero vectors.
	require.Equal(t, mgl32.Vec3{}, model.Meshes[0].Vertices[0].Normal)
}

func TestLoadDocumentRejectsMissingPositions(t *testing.T) {
	doc := gltf.NewDocument()
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Primitives: []*gltf.Primitive{{Attributes: gltf.Attribute{}}},
	})

	_, err := loadDocument(doc, t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "POSITION")
}

func TestLoadDocumentFlattensPrimitives(t *testing.T) {
	doc := gltf.NewDocument()
	a := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	b := modeler.WritePosition(doc, [][3]float32{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}})
	doc.Meshes = append(doc.Meshes,
		&gltf.Mesh{Primitives: []*gltf.Primitive{
			{Attributes: gltf.Attribute{gltf.POSITION: a}},
			{Attributes: gltf.Attribute{gltf.POSITION: b}},
		}},
		&gltf.Mesh{Primitives: []*gltf.Primitive{
			{Attributes: gltf.Attribute{gltf.POSITION: a}},
		}},
	)

	model, err := loadDocument(doc, t.TempDir())
	require.NoError(t, err)
	require.Len(t, model.Meshes, 3)
}

func TestLoadDocumentDecodesImageURI(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{B: 255, A: 255})

	f, err := os.Create(filepath.Join(dir, "tex.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	doc := gltf.NewDocument()
	doc.Images = append(doc.Images, &gltf.Image{URI: "tex.png"})

	model, err := loadDocument(doc, dir)
	require.NoError(t, err)
	require.Len(t, model.Textures, 1)

	tex := model.Textures[0]
	require.Equal(t, 2, tex.Width)
	require.Equal(t, 2, tex.Height)
	require.Len(t, tex.Pixels, 2*2*4)
	require.Equal(t, byte(255), tex.Pixels[0], "top-left red channel")
	require.Equal(t, byte(255), tex.Pixels[3], "top-left alpha channel")
}

func TestLoadDocumentRejectsImageWithoutSource(t *testing.T) {
	doc := gltf.NewDocument()
	doc.Images = append(doc.Images, &gltf.Image{})

	_, err := loadDocument(doc, t.TempDir())
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.gltf"))
	require.Error(t, err)
}
