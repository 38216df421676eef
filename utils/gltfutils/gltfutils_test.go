package gltfutils

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/skinned_mesh/skeleton"
)

func appendMat4Accessor(doc *gltf.Document, mats []mgl32.Mat4) uint32 {
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	}
	buffer := doc.Buffers[0]
	offset := len(buffer.Data)

	data := make([]byte, len(mats)*64)
	for i, m := range mats {
		for j, f := range m {
			binary.LittleEndian.PutUint32(data[i*64+j*4:], math.Float32bits(f))
		}
	}
	buffer.Data = append(buffer.Data, data...)
	buffer.ByteLength = uint32(len(buffer.Data))

	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(offset),
		ByteLength: uint32(len(data)),
	})
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(uint32(len(doc.BufferViews) - 1)),
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorMat4,
		Count:         uint32(len(mats)),
	})
	return uint32(len(doc.Accessors) - 1)
}

// two joints listed child first, the child has no name
func skinnedDocument() *gltf.Document {
	doc := NewDocument()

	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(doc, [][3]float32{{0, 1, 0}, {0, 2, 0}, {1, 2, 0}}),
		"NORMAL":   modeler.WriteNormal(doc, [][3]float32{{1, 0, 0}, {1, 0, 0}, {0, 0, 1}}),
		"JOINTS_0": modeler.WriteJoints(doc, [][4]uint8{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 0, 0}}),
		"WEIGHTS_0": modeler.WriteWeights(doc, [][4]float32{
			{1, 0, 0, 0}, {0.5, 0.5, 0, 0}, {1, 0, 0, 0},
		}),
	}
	indices := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	ibm := appendMat4Accessor(doc, []mgl32.Mat4{
		mgl32.Translate3D(0, -2, 0),
		mgl32.Translate3D(0, -1, 0),
	})

	doc.Meshes = []*gltf.Mesh{{
		Name: "body",
		Primitives: []*gltf.Primitive{
			{Attributes: attributes, Indices: gltf.Index(indices)},
			{Attributes: attributes, Indices: gltf.Index(indices)},
		},
	}}
	doc.Skins = []*gltf.Skin{{
		Name:                "rig",
		Joints:              []uint32{2, 1},
		InverseBindMatrices: gltf.Index(ibm),
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "Armature", Children: []uint32{1, 3}},
		{Name: "hips", Children: []uint32{2}},
		{},
		{Name: "body", Mesh: gltf.Index(0), Skin: gltf.Index(0)},
	}
	return doc
}

func TestReadSkinnedMesh(t *testing.T) {
	var glb bytes.Buffer
	require.NoError(t, ExportBinary(&glb, skinnedDocument()))

	doc, err := Decode(&glb)
	require.NoError(t, err)

	md, err := ReadSkinnedMesh(doc)
	require.NoError(t, err)

	require.Len(t, md.Bones, 2)
	assert.NotEmpty(t, md.Bones[0].Name)
	assert.Equal(t, "hips", md.Bones[0].Parent)
	assert.Equal(t, mgl32.Translate3D(0, -2, 0), md.Bones[0].BindPose)
	assert.Equal(t, "hips", md.Bones[1].Name)
	assert.Equal(t, "", md.Bones[1].Parent)

	require.Len(t, md.Vertices, 6)
	require.Len(t, md.Normals, 6)
	assert.Equal(t, mgl32.Vec3{0, 2, 0}, md.Vertices[4])
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, md.Indices)
	assert.Equal(t, skeleton.Influence{Bone: 1, Weight: 1}, md.Influences[0][0])
	assert.Equal(t, skeleton.Influence{Bone: 1, Weight: 0.5}, md.Influences[4][1])

	s, err := skeleton.Build(md)
	require.NoError(t, err)
	assert.Equal(t, "hips", s.Root().Name())

	vertices, _ := s.Deform()
	for i := range vertices {
		assert.True(t, md.Vertices[i].ApproxEqualThreshold(vertices[i], 1e-5), "vertex %d", i)
	}
}

func TestReadSkinnedMeshErrors(t *testing.T) {
	doc := skinnedDocument()
	doc.Nodes[3].Skin = nil
	_, err := ReadSkinnedMesh(doc)
	assert.Error(t, err)

	doc = skinnedDocument()
	delete(doc.Meshes[0].Primitives[1].Attributes, "WEIGHTS_0")
	_, err = ReadSkinnedMesh(doc)
	assert.Error(t, err)

	doc = skinnedDocument()
	doc.Skins[0].Joints = append(doc.Skins[0].Joints, 42)
	_, err = ReadSkinnedMesh(doc)
	assert.Error(t, err)
}

func TestExportPosed(t *testing.T) {
	vertices := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	normals := []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}

	var glb bytes.Buffer
	require.NoError(t, ExportPosed(&glb, "frame", vertices, normals, []uint32{0, 1, 2}))

	doc, err := Decode(&glb)
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 1)
	assert.Equal(t, "frame", doc.Meshes[0].Name)

	primitive := doc.Meshes[0].Primitives[0]
	positions, err := modeler.ReadPosition(doc, doc.Accessors[primitive.Attributes["POSITION"]], nil)
	require.NoError(t, err)
	assert.Equal(t, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, positions)

	indices, err := modeler.ReadIndices(doc, doc.Accessors[*primitive.Indices], nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, indices)
	assert.Contains(t, primitive.Attributes, "NORMAL")
}
