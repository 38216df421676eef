package skeleton

import (
	"github.com/go-gl/mathgl/mgl32"
)

const INFLUENCES_PER_VERTEX = 4

// BoneBind describes one bone of the reference mesh.
// BindPose maps object space into the bone space at bind time
// (glTF inverseBindMatrices convention). Parent is empty for the root.
type BoneBind struct {
	Name     string
	Parent   string
	BindPose mgl32.Mat4
}

// Influence is one of the four bone slots of a vertex.
// Bone indexes MeshData.Bones.
type Influence struct {
	Bone   int
	Weight float32
}

type MeshData struct {
	Vertices   []mgl32.Vec3
	Normals    []mgl32.Vec3
	Indices    []uint32
	Bones      []BoneBind
	Influences [][INFLUENCES_PER_VERTEX]Influence
}

func (md *MeshData) BoneNames() []string {
	names := make([]string, len(md.Bones))
	for i := range md.Bones {
		names[i] = md.Bones[i].Name
	}
	return names
}
