package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const BONE_PARENT_NONE = -1

// Bone is a joint of the skeleton. LocalPosition and LocalRotation are
// relative to the parent bone (object space for the root) and are the only
// state a pose driver is expected to change between Deform calls.
type Bone struct {
	LocalPosition mgl32.Vec3
	LocalRotation mgl32.Quat

	name   string
	parent string
	index  int
	pIndex int

	bindPosition mgl32.Vec3
	bindRotation mgl32.Quat
	// scale and shear left in the bind local matrix once translation and
	// rotation are taken out, identity for rigid binds
	shape mgl32.Mat4
}

func (b *Bone) Name() string   { return b.name }
func (b *Bone) Parent() string { return b.parent }
func (b *Bone) IsRoot() bool   { return b.pIndex == BONE_PARENT_NONE }

// Index is the position of the bone in the skeleton's traversal order.
func (b *Bone) Index() int { return b.index }

// ParentIndex is BONE_PARENT_NONE for the root.
func (b *Bone) ParentIndex() int { return b.pIndex }

func (b *Bone) Position() mgl32.Vec3 { return b.LocalPosition }
func (b *Bone) Rotation() mgl32.Quat { return b.LocalRotation }

func (b *Bone) SetPosition(p mgl32.Vec3) { b.LocalPosition = p }
func (b *Bone) SetRotation(q mgl32.Quat) { b.LocalRotation = q }

func (b *Bone) Translate(d mgl32.Vec3) { b.LocalPosition = b.LocalPosition.Add(d) }

// Rotate composes q on the right of the current local rotation.
func (b *Bone) Rotate(q mgl32.Quat) { b.LocalRotation = b.LocalRotation.Mul(q) }

// BindPosition and BindRotation are the local pose derived at construction.
func (b *Bone) BindPosition() mgl32.Vec3 { return b.bindPosition }
func (b *Bone) BindRotation() mgl32.Quat { return b.bindRotation }

// Reset restores the local pose derived from the bind pose.
func (b *Bone) Reset() {
	b.LocalPosition = b.bindPosition
	b.LocalRotation = b.bindRotation
}

// Scale is the length of each bind local basis vector, 1 for rigid binds.
func (b *Bone) Scale() mgl32.Vec3 {
	return mgl32.Vec3{b.shape.Col(0).Vec3().Len(), b.shape.Col(1).Vec3().Len(), b.shape.Col(2).Vec3().Len()}
}

// Local returns translate(LocalPosition) * rotate(LocalRotation) * bind shape.
// Pose updates never touch the shape.
func (b *Bone) Local() mgl32.Mat4 {
	local := mgl32.Translate3D(b.LocalPosition[0], b.LocalPosition[1], b.LocalPosition[2]).
		Mul4(b.LocalRotation.Normalize().Mat4())
	if b.shape != mgl32.Ident4() {
		local = local.Mul4(b.shape)
	}
	return local
}

func (b *Bone) String() string {
	return fmt.Sprintf("bone %q <= %q pos %v rot %v", b.name, b.parent, b.LocalPosition, b.LocalRotation)
}
