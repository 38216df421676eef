package skeleton

import (
	"log"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Skeleton is a skinned mesh that can be re-posed and deformed every tick.
//
// Bones are mutated only through Bone/Tick between Deform calls; the
// skeleton does no locking of its own.
type Skeleton struct {
	bones  []*Bone
	byName map[string]int

	// inverse bind world transform per bone, object space -> bone space
	bindPoses []mgl32.Mat4

	table   *WeightTable
	indices []int
	weights []float32

	vertices []mgl32.Vec3
	normals  []mgl32.Vec3

	workers int

	world []mgl32.Mat4
	skin  []mgl32.Mat4
	nskin []mgl32.Mat3
}

// PoseUpdate changes the local pose of one bone. Rotation is x, y, z, w.
// With Compose set, the rotation is multiplied onto the current one and the
// position is added to the current one; otherwise both replace it.
type PoseUpdate struct {
	Bone     string      `json:"bone"`
	Rotation *[4]float32 `json:"rotation,omitempty"`
	Position *[3]float32 `json:"position,omitempty"`
	Compose  bool        `json:"compose,omitempty"`
}

// Build constructs a skeleton from reference mesh data.
// Nothing is returned unless every bone and influence is valid.
func Build(md *MeshData) (*Skeleton, error) {
	bones, order, err := BuildBones(md.Bones)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build bones")
	}

	inputToSorted := make([]int, len(order))
	bindPoses := make([]mgl32.Mat4, len(order))
	names := make([]string, len(order))
	for sorted, input := range order {
		inputToSorted[input] = sorted
		bindPoses[sorted] = md.Bones[input].BindPose
		names[sorted] = md.Bones[input].Name
	}

	influences := make([][INFLUENCES_PER_VERTEX]Influence, len(md.Influences))
	for iVertex, slots := range md.Influences {
		for iSlot, inf := range slots {
			if inf.Bone >= 0 && inf.Bone < len(inputToSorted) {
				inf.Bone = inputToSorted[inf.Bone]
			}
			influences[iVertex][iSlot] = inf
		}
	}

	table, err := BuildWeightTable(names, influences)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build weight table")
	}

	s, err := New(bones, bindPoses, table, md.Vertices, md.Normals)
	if err != nil {
		return nil, err
	}
	log.Printf("[skeleton] built %d bones (root %q), %d vertices", len(bones), bones[0].name, len(md.Vertices))
	return s, nil
}

// New assembles a skeleton from already built parts. bones must be parent
// first as returned by BuildBones, bindPoses and table must follow the same
// bone order. The base pose is copied.
func New(bones []*Bone, bindPoses []mgl32.Mat4, table *WeightTable, vertices, normals []mgl32.Vec3) (*Skeleton, error) {
	if len(bones) == 0 {
		return nil, ErrNoBones
	}
	if len(normals) != 0 && len(normals) != len(vertices) {
		return nil, errors.Wrapf(ErrBasePoseLength, "%d vertices, %d normals", len(vertices), len(normals))
	}

	byName := make(map[string]int, len(bones))
	for i, b := range bones {
		if _, exists := byName[b.name]; exists {
			return nil, errors.Wrapf(ErrDuplicateBone, "bone %q", b.name)
		}
		byName[b.name] = i

		if b.index != i {
			return nil, errors.Wrapf(ErrBoneOrder, "bone %q has index %d at position %d", b.name, b.index, i)
		}
		if i == 0 {
			if b.pIndex != BONE_PARENT_NONE {
				return nil, errors.Wrapf(ErrMissingRoot, "first bone %q has a parent", b.name)
			}
		} else if b.pIndex == BONE_PARENT_NONE {
			return nil, errors.Wrapf(ErrMultipleRoots, "bone %q", b.name)
		} else if b.pIndex >= i {
			return nil, errors.Wrapf(ErrBoneOrder, "bone %q parent index %d", b.name, b.pIndex)
		}
	}

	if len(bindPoses) != len(bones) {
		return nil, errors.Wrapf(ErrInconsistentWeightTable, "%d bind poses for %d bones", len(bindPoses), len(bones))
	}
	if table.BoneCount != len(bones) {
		return nil, errors.Wrapf(ErrInconsistentWeightTable, "table built for %d bones, skeleton has %d", table.BoneCount, len(bones))
	}
	if table.VertexCount() != len(vertices) ||
		len(table.Indices) != len(vertices)*INFLUENCES_PER_VERTEX ||
		len(table.Weights) != len(table.Indices) {
		return nil, errors.Wrapf(ErrInconsistentWeightTable, "table has %d vertices, mesh has %d", table.VertexCount(), len(vertices))
	}
	for i, bi := range table.Indices {
		if bi < 0 || bi >= len(bones) {
			return nil, errors.Wrapf(ErrInconsistentWeightTable, "vertex %d slot %d references bone %d",
				i/INFLUENCES_PER_VERTEX, i%INFLUENCES_PER_VERTEX, bi)
		}
	}

	s := &Skeleton{
		bones:     bones,
		byName:    byName,
		bindPoses: append([]mgl32.Mat4(nil), bindPoses...),
		table:     table,
		indices:   append([]int(nil), table.Indices...),
		weights:   append([]float32(nil), table.Weights...),
		vertices:  append([]mgl32.Vec3(nil), vertices...),
		workers:   1,
		world:     make([]mgl32.Mat4, len(bones)),
		skin:      make([]mgl32.Mat4, len(bones)),
		nskin:     make([]mgl32.Mat3, len(bones)),
	}
	if len(normals) != 0 {
		s.normals = append([]mgl32.Vec3(nil), normals...)
	}
	return s, nil
}

// Bone looks a bone up by name.
func (s *Skeleton) Bone(name string) (*Bone, bool) {
	if i, ok := s.byName[name]; ok {
		return s.bones[i], true
	}
	return nil, false
}

// Bones returns the bones parent first. The slice must not be modified.
func (s *Skeleton) Bones() []*Bone { return s.bones }

func (s *Skeleton) Root() *Bone { return s.bones[0] }

func (s *Skeleton) WeightTable() *WeightTable { return s.table }

func (s *Skeleton) VertexCount() int { return len(s.vertices) }

func (s *Skeleton) HasNormals() bool { return s.normals != nil }

// BasePose returns copies of the bind pose vertices and normals.
func (s *Skeleton) BasePose() ([]mgl32.Vec3, []mgl32.Vec3) {
	var normals []mgl32.Vec3
	if s.normals != nil {
		normals = append(normals, s.normals...)
	}
	return append([]mgl32.Vec3(nil), s.vertices...), normals
}

// SetWorkers sets how many goroutines share vertex deformation.
func (s *Skeleton) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

// Reset puts every bone back into its bind pose.
func (s *Skeleton) Reset() {
	for _, b := range s.bones {
		b.Reset()
	}
}

// Apply mutates bone local poses. All bone names are checked before any
// bone is touched.
func (s *Skeleton) Apply(updates []PoseUpdate) error {
	for _, u := range updates {
		if _, ok := s.byName[u.Bone]; !ok {
			return errors.Wrapf(ErrUnknownBone, "%q", u.Bone)
		}
	}
	for _, u := range updates {
		b := s.bones[s.byName[u.Bone]]
		if u.Position != nil {
			p := mgl32.Vec3(*u.Position)
			if u.Compose {
				b.Translate(p)
			} else {
				b.SetPosition(p)
			}
		}
		if u.Rotation != nil {
			r := *u.Rotation
			q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize()
			if u.Compose {
				b.Rotate(q)
			} else {
				b.SetRotation(q)
			}
		}
	}
	return nil
}

// Tick applies pose updates and deforms the mesh.
func (s *Skeleton) Tick(updates []PoseUpdate) ([]mgl32.Vec3, []mgl32.Vec3, error) {
	if err := s.Apply(updates); err != nil {
		return nil, nil, err
	}
	vertices, normals := s.Deform()
	return vertices, normals, nil
}
