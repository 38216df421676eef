package fbxutils

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mogaika/fbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/skinned_mesh/skeleton"
)

func chainBones(t *testing.T) []*skeleton.Bone {
	bones, _, err := skeleton.BuildBones([]skeleton.BoneBind{
		{Name: "root", BindPose: mgl32.Ident4()},
		{Name: "child", Parent: "root", BindPose: mgl32.Translate3D(0, -1, 0)},
	})
	require.NoError(t, err)
	return bones
}

func objectsByName(f interface{ Objects() []*fbx.Node }, name string) []*fbx.Node {
	var result []*fbx.Node
	for _, o := range f.Objects() {
		if o.Name == name {
			result = append(result, o)
		}
	}
	return result
}

func TestBuildPosed(t *testing.T) {
	vertices := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	normals := []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	bones := chainBones(t)
	bones[1].SetPosition(mgl32.Vec3{0, 2, 0})

	f, err := BuildPosed("frame", vertices, normals, []uint32{0, 1, 2}, bones)
	require.NoError(t, err)

	geometries := objectsByName(f, "Geometry")
	require.Len(t, geometries, 1)
	geometry := geometries[0]
	assert.Equal(t, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}, geometry.GetNode("Vertices").Properties[0])
	assert.Equal(t, []int32{0, 1, -3}, geometry.GetNode("PolygonVertexIndex").Properties[0])
	require.NotNil(t, geometry.GetNode("LayerElementNormal"))
	assert.Equal(t, []float64{0, 0, 1, 0, 0, 1, 0, 0, 1},
		geometry.GetNode("LayerElementNormal").GetNode("Normals").Properties[0])

	assert.Len(t, objectsByName(f, "Model"), 3)
	assert.Len(t, objectsByName(f, "NodeAttribute"), 2)

	root := f.GetCached("root")
	child := f.GetCached("child")
	require.NotNil(t, root)
	require.NotNil(t, child)

	rootId := root.Properties[0].(int64)
	childId := child.Properties[0].(int64)
	parents := make(map[int64]int64)
	for _, c := range f.Connections() {
		parents[c.Properties[1].(int64)] = c.Properties[2].(int64)
	}
	assert.Equal(t, int64(0), parents[rootId])
	assert.Equal(t, rootId, parents[childId])

	var translation *fbx.Node
	for _, p := range child.GetNode("Properties70").GetNodes("P") {
		if p.Properties[0] == "Lcl Translation" {
			translation = p
		}
	}
	require.NotNil(t, translation)
	assert.Equal(t, []interface{}{float64(0), float64(2), float64(0)}, translation.Properties[4:])
}

func TestBuildPosedWithoutNormals(t *testing.T) {
	vertices := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	f, err := BuildPosed("frame", vertices, nil, []uint32{2, 1, 0}, chainBones(t))
	require.NoError(t, err)

	geometry := objectsByName(f, "Geometry")[0]
	assert.Nil(t, geometry.GetNode("LayerElementNormal"))
	assert.Equal(t, []int32{2, 1, -1}, geometry.GetNode("PolygonVertexIndex").Properties[0])
}

func TestExportPosed(t *testing.T) {
	vertices := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	var buf bytes.Buffer
	require.NoError(t, ExportPosed(&buf, "frame", vertices, nil, []uint32{0, 1, 2}, chainBones(t)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("Kaydara FBX Binary")))
}

func TestExportPosedInvalidIndices(t *testing.T) {
	vertices := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	var buf bytes.Buffer
	assert.Error(t, ExportPosed(&buf, "frame", vertices, nil, []uint32{0, 1}, chainBones(t)))
	assert.Error(t, ExportPosed(&buf, "frame", vertices, nil, []uint32{0, 1, 3}, chainBones(t)))
	assert.Zero(t, buf.Len())
}
