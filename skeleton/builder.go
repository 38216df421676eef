package skeleton

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/skinned_mesh/utils"
)

// BuildBones derives parent-relative local transforms from bind poses.
//
// The returned bones are ordered so that every parent precedes its children;
// order[i] is the index in binds of the i-th returned bone. When binds is
// already parent-first the input order is kept as is.
func BuildBones(binds []BoneBind) (bones []*Bone, order []int, err error) {
	if len(binds) == 0 {
		return nil, nil, ErrNoBones
	}

	byName := make(map[string]int, len(binds))
	for i := range binds {
		if _, exists := byName[binds[i].Name]; exists {
			return nil, nil, errors.Wrapf(ErrDuplicateBone, "bone %d %q", i, binds[i].Name)
		}
		byName[binds[i].Name] = i
	}

	parents := make([]int, len(binds))
	root := BONE_PARENT_NONE
	for i := range binds {
		b := &binds[i]
		if b.Parent == "" {
			if root != BONE_PARENT_NONE {
				return nil, nil, errors.Wrapf(ErrMultipleRoots, "%q and %q", binds[root].Name, b.Name)
			}
			root = i
			parents[i] = BONE_PARENT_NONE
			continue
		}
		if b.Parent == b.Name {
			return nil, nil, errors.Wrapf(ErrCyclicHierarchy, "bone %q is its own parent", b.Name)
		}
		p, ok := byName[b.Parent]
		if !ok {
			return nil, nil, errors.Wrapf(ErrOrphanBone, "bone %q references parent %q", b.Name, b.Parent)
		}
		parents[i] = p
	}
	if root == BONE_PARENT_NONE {
		return nil, nil, ErrMissingRoot
	}

	order, err = parentFirstOrder(binds, parents)
	if err != nil {
		return nil, nil, err
	}

	inputToSorted := make([]int, len(binds))
	for sorted, input := range order {
		inputToSorted[input] = sorted
	}

	bones = make([]*Bone, len(binds))
	for sorted, input := range order {
		b := &binds[input]
		if b.BindPose.Det() == 0 {
			return nil, nil, errors.Wrapf(ErrSingularBind, "bone %q", b.Name)
		}

		var local mgl32.Mat4
		pIndex := BONE_PARENT_NONE
		if parents[input] == BONE_PARENT_NONE {
			// root is expressed directly in object space
			local = b.BindPose.Inv()
		} else {
			local = binds[parents[input]].BindPose.Mul4(b.BindPose.Inv())
			pIndex = inputToSorted[parents[input]]
		}

		pos := local.Col(3).Vec3()
		rot := utils.RotationFromMat4(local)
		bones[sorted] = &Bone{
			LocalPosition: pos,
			LocalRotation: rot,
			name:          b.Name,
			parent:        b.Parent,
			index:         sorted,
			pIndex:        pIndex,
			bindPosition:  pos,
			bindRotation:  rot,
			shape:         bindShape(local, rot),
		}
	}

	return bones, order, nil
}

// parentFirstOrder places bones in input order, deferring any bone whose
// parent has not been placed yet. Bones that can never be placed form a cycle.
func parentFirstOrder(binds []BoneBind, parents []int) ([]int, error) {
	placed := make([]bool, len(binds))
	order := make([]int, 0, len(binds))

	pending := make([]int, len(binds))
	for i := range pending {
		pending[i] = i
	}

	for len(pending) != 0 {
		rest := pending[:0]
		for _, i := range pending {
			if p := parents[i]; p == BONE_PARENT_NONE || placed[p] {
				placed[i] = true
				order = append(order, i)
			} else {
				rest = append(rest, i)
			}
		}
		if len(rest) == len(pending) {
			return nil, errors.Wrapf(ErrCyclicHierarchy, "bone %q is not reachable from root", binds[rest[0]].Name)
		}
		pending = rest
	}
	return order, nil
}

// bindShape is what remains of local after removing its translation and rot.
// Rigid binds snap to exact identity so their Local stays a pure T*R.
func bindShape(local mgl32.Mat4, rot mgl32.Quat) mgl32.Mat4 {
	basis := local
	basis.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	shape := rot.Inverse().Mat4().Mul4(basis)
	if shape.ApproxEqualThreshold(mgl32.Ident4(), 1e-5) {
		return mgl32.Ident4()
	}
	return shape
}
