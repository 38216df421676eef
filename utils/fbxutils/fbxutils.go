package fbxutils

import (
	"io"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"

	"github.com/mogaika/skinned_mesh/skeleton"
	"github.com/mogaika/skinned_mesh/utils"
	"github.com/mogaika/skinned_mesh/utils/fbxbuilder"
)

// BuildPosed creates a scene with one deformed frame as a static mesh and
// the bones at their current local pose as a LimbNode hierarchy.
// bones must be parent first, as skeleton.Bones returns them.
func BuildPosed(name string, vertices, normals []mgl32.Vec3, indices []uint32, bones []*skeleton.Bone) (*fbxbuilder.FBXBuilder, error) {
	f := fbxbuilder.NewFBXBuilder(name + ".fbx")

	modelId, err := exportGeometry(f, name, vertices, normals, indices)
	if err != nil {
		return nil, err
	}
	f.AddConnections(bfbx73.C("OO", modelId, int64(0)))

	for _, b := range bones {
		exportBone(f, b)
	}
	return f, nil
}

func ExportPosed(w io.Writer, name string, vertices, normals []mgl32.Vec3, indices []uint32, bones []*skeleton.Bone) error {
	f, err := BuildPosed(name, vertices, normals, indices, bones)
	if err != nil {
		return err
	}
	return f.Write(w)
}

func exportGeometry(f *fbxbuilder.FBXBuilder, name string, vertices, normals []mgl32.Vec3, indices []uint32) (int64, error) {
	if len(indices)%3 != 0 {
		return 0, errors.Errorf("Index count %d is not a multiple of 3", len(indices))
	}

	flatVertices := make([]float64, 0, len(vertices)*3)
	for _, v := range vertices {
		flatVertices = append(flatVertices, float64(v[0]), float64(v[1]), float64(v[2]))
	}

	// last index of every polygon is stored as -(index)-1
	polygons := make([]int32, len(indices))
	for i, index := range indices {
		if int(index) >= len(vertices) {
			return 0, errors.Errorf("Index %d out of %d vertices", index, len(vertices))
		}
		polygons[i] = int32(index)
		if i%3 == 2 {
			polygons[i] = -int32(index) - 1
		}
	}

	geometryId := f.GenerateId()
	geometryLayer := bfbx73.Layer(0).AddNodes(
		bfbx73.Version(100),
	)
	geometry := bfbx73.Geometry(geometryId, name+"\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.Properties70(),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(flatVertices),
		bfbx73.PolygonVertexIndex(polygons),
		geometryLayer,
	)

	if len(normals) == len(vertices) && len(normals) != 0 {
		flatNormals := make([]float64, 0, len(normals)*3)
		for _, n := range normals {
			flatNormals = append(flatNormals, float64(n[0]), float64(n[1]), float64(n[2]))
		}
		geometry.AddNode(
			bfbx73.LayerElementNormal(0).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("ByVertice"),
				bfbx73.ReferenceInformationType("Direct"),
				bfbx73.Normals(flatNormals),
			),
		)
		geometryLayer.AddNode(
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementNormal"),
				bfbx73.TypedIndex(0),
			),
		)
	}

	modelId := f.GenerateId()
	model := bfbx73.Model(modelId, name+"\x00\x01Model", "Mesh").AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70(),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)

	f.AddObjects(model, geometry)
	f.AddConnections(bfbx73.C("OO", geometryId, modelId))
	f.AddCache(name, model)
	return modelId, nil
}

func exportBone(f *fbxbuilder.FBXBuilder, b *skeleton.Bone) {
	pos := b.Position()
	rotation := utils.QuatToEuler(b.Rotation().Normalize()).Mul(180.0 / math.Pi)
	scale := b.Scale()

	modelId := f.GenerateId()
	model := bfbx73.Model(modelId, b.Name()+"\x00\x01Model", "LimbNode").AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Lcl Translation", "Lcl Translation", "", "A+",
				float64(pos[0]), float64(pos[1]), float64(pos[2])),
			bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A+",
				float64(rotation[0]), float64(rotation[1]), float64(rotation[2])),
			bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A+",
				float64(scale[0]), float64(scale[1]), float64(scale[2])),
		),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)

	attributeId := f.GenerateId()
	attribute := bfbx73.NodeAttribute(attributeId, b.Name()+"\x00\x01NodeAttribute", "LimbNode").AddNodes(
		bfbx73.TypeFlags("Skeleton"),
	)

	f.AddObjects(model, attribute)
	f.AddConnections(bfbx73.C("OO", attributeId, modelId))

	parentId := int64(0)
	if !b.IsRoot() {
		if parent := f.GetCached(b.Parent()); parent != nil {
			parentId = parent.Properties[0].(int64)
		} else {
			log.Printf("[fbx] bone %q exported before its parent %q", b.Name(), b.Parent())
		}
	}
	f.AddConnections(bfbx73.C("OO", modelId, parentId))
	f.AddCache(b.Name(), model)
}
