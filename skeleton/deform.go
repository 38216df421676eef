package skeleton

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const MIN_VERTICES_PER_WORKER = 1024

// WorldTransforms runs forward kinematics over the current local poses.
// world[root] = local[root], world[b] = world[parent(b)] * local[b].
func (s *Skeleton) WorldTransforms() []mgl32.Mat4 {
	world := make([]mgl32.Mat4, len(s.bones))
	s.forwardKinematics(world)
	return world
}

// bones are parent first, so a parent's world transform is always written
// before any child reads it
func (s *Skeleton) forwardKinematics(world []mgl32.Mat4) {
	for i, b := range s.bones {
		if b.pIndex == BONE_PARENT_NONE {
			world[i] = b.Local()
		} else {
			world[i] = world[b.pIndex].Mul4(b.Local())
		}
	}
}

func (s *Skeleton) prepareSkinning() {
	s.forwardKinematics(s.world)
	for i := range s.bones {
		s.skin[i] = s.world[i].Mul4(s.bindPoses[i])
		if s.normals != nil {
			s.nskin[i] = normalMatrix(s.skin[i])
		}
	}
}

// normalMatrix is the inverse transpose of the rotation/scale block, which
// keeps normals perpendicular under non-uniform scale.
func normalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	m3 := m.Mat3()
	if mgl32.Abs(m3.Det()) < 1e-12 {
		return m3
	}
	return m3.Inv().Transpose()
}

// Deform returns the mesh deformed by the current pose as new slices.
//
// Vertices are linear blend skinned. Normals are blended the same way with
// each bone's normal matrix and renormalised, which is only an approximation
// of the true deformed surface normal.
func (s *Skeleton) Deform() ([]mgl32.Vec3, []mgl32.Vec3) {
	vertices := make([]mgl32.Vec3, len(s.vertices))
	var normals []mgl32.Vec3
	if s.normals != nil {
		normals = make([]mgl32.Vec3, len(s.normals))
	}
	s.deformInto(vertices, normals)
	return vertices, normals
}

// DeformInto writes the deformed mesh into caller owned buffers.
// normals may be nil to skip normal deformation.
func (s *Skeleton) DeformInto(vertices, normals []mgl32.Vec3) error {
	if len(vertices) != len(s.vertices) {
		return errors.Errorf("Vertex buffer has %d entries, mesh has %d", len(vertices), len(s.vertices))
	}
	if normals != nil {
		if s.normals == nil {
			return errors.Errorf("Normal buffer given for a mesh without normals")
		}
		if len(normals) != len(s.normals) {
			return errors.Errorf("Normal buffer has %d entries, mesh has %d", len(normals), len(s.normals))
		}
	}
	s.deformInto(vertices, normals)
	return nil
}

func (s *Skeleton) deformInto(vertices, normals []mgl32.Vec3) {
	s.prepareSkinning()

	count := len(s.vertices)
	workers := s.workers
	if workers > count/MIN_VERTICES_PER_WORKER {
		workers = count / MIN_VERTICES_PER_WORKER
	}
	if workers <= 1 {
		s.deformRange(0, count, vertices, normals)
		return
	}

	chunk := (count + workers - 1) / workers
	var wg sync.WaitGroup
	for from := 0; from < count; from += chunk {
		to := from + chunk
		if to > count {
			to = count
		}
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			s.deformRange(from, to, vertices, normals)
		}(from, to)
	}
	wg.Wait()
}

func (s *Skeleton) deformRange(from, to int, vertices, normals []mgl32.Vec3) {
	if s.normals == nil {
		normals = nil
	}
	for i := from; i < to; i++ {
		base := s.vertices[i]
		v4 := base.Vec4(1)

		var pos, nrm mgl32.Vec3
		var sum float32
		for slot := i * INFLUENCES_PER_VERTEX; slot < (i+1)*INFLUENCES_PER_VERTEX; slot++ {
			w := s.weights[slot]
			if w == 0 {
				continue
			}
			bone := s.indices[slot]
			pos = pos.Add(s.skin[bone].Mul4x1(v4).Vec3().Mul(w))
			if normals != nil {
				nrm = nrm.Add(s.nskin[bone].Mul3x1(s.normals[i]).Mul(w))
			}
			sum += w
		}

		if sum == 0 {
			// unweighted vertices stay in the base pose
			vertices[i] = base
			if normals != nil {
				normals[i] = s.normals[i]
			}
			continue
		}
		if sum != 1 {
			pos = pos.Mul(1 / sum)
		}
		vertices[i] = pos

		if normals != nil {
			if nrm.Len() > 1e-12 {
				normals[i] = nrm.Normalize()
			} else {
				normals[i] = s.normals[i]
			}
		}
	}
}
