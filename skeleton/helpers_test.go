package skeleton

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

const epsilon = 1e-4

func assertVec3(t *testing.T, expected, actual mgl32.Vec3, msgAndArgs ...interface{}) bool {
	t.Helper()
	if expected.ApproxEqualThreshold(actual, epsilon) {
		return true
	}
	return assert.Fail(t, "vectors differ", append([]interface{}{"expected %v, got %v", expected, actual}, msgAndArgs...)...)
}

func assertMat4(t *testing.T, expected, actual mgl32.Mat4, msgAndArgs ...interface{}) bool {
	t.Helper()
	if expected.ApproxEqualThreshold(actual, epsilon) {
		return true
	}
	return assert.Fail(t, "matrices differ", append([]interface{}{"expected\n%v\ngot\n%v", expected, actual}, msgAndArgs...)...)
}

func rotZ(deg float32) mgl32.Quat {
	return mgl32.QuatRotate(mgl32.DegToRad(deg), mgl32.Vec3{0, 0, 1})
}

// rigidWorld builds a bind world transform and returns it with its inverse,
// the latter being what meshes store as the bind pose.
func rigidWorld(pos mgl32.Vec3, rot mgl32.Quat) (world, bindPose mgl32.Mat4) {
	world = mgl32.Translate3D(pos[0], pos[1], pos[2]).Mul4(rot.Mat4())
	return world, world.Inv()
}

// twoBoneChain is a root at the origin and a child at (0,1,0) with a single
// vertex fully bound to the child at (0,2,0).
func twoBoneChain() *MeshData {
	_, rootBind := rigidWorld(mgl32.Vec3{}, mgl32.QuatIdent())
	_, childBind := rigidWorld(mgl32.Vec3{0, 1, 0}, mgl32.QuatIdent())
	return &MeshData{
		Vertices: []mgl32.Vec3{{0, 2, 0}},
		Normals:  []mgl32.Vec3{{1, 0, 0}},
		Bones: []BoneBind{
			{Name: "root", BindPose: rootBind},
			{Name: "child", Parent: "root", BindPose: childBind},
		},
		Influences: [][INFLUENCES_PER_VERTEX]Influence{
			{{Bone: 1, Weight: 1}, {0, 0}, {0, 0}, {0, 0}},
		},
	}
}

// armMesh is a four bone skeleton with rotated bind poses and vertices
// shared between neighbouring bones.
func armMesh() *MeshData {
	rot := func(deg float32, axis mgl32.Vec3) mgl32.Quat {
		return mgl32.QuatRotate(mgl32.DegToRad(deg), axis.Normalize())
	}
	worlds := []struct {
		name, parent string
		pos          mgl32.Vec3
		rot          mgl32.Quat
	}{
		{"hips", "", mgl32.Vec3{0, 1, 0}, rot(10, mgl32.Vec3{0, 1, 0})},
		{"spine", "hips", mgl32.Vec3{0, 1.5, 0.1}, rot(-20, mgl32.Vec3{1, 0, 0})},
		{"Upper arm.R", "spine", mgl32.Vec3{-0.4, 1.8, 0}, rot(80, mgl32.Vec3{0, 0, 1})},
		{"Lower arm.R", "Upper arm.R", mgl32.Vec3{-0.9, 1.8, 0.05}, rot(75, mgl32.Vec3{0.1, 0, 1})},
	}

	md := &MeshData{}
	for _, w := range worlds {
		_, bind := rigidWorld(w.pos, w.rot)
		md.Bones = append(md.Bones, BoneBind{Name: w.name, Parent: w.parent, BindPose: bind})
	}
	for i := 0; i < 12; i++ {
		f := float32(i)
		md.Vertices = append(md.Vertices, mgl32.Vec3{-f * 0.1, 1 + f*0.07, 0.05 * f})
		md.Normals = append(md.Normals, mgl32.Vec3{0.2, 1, f * 0.1}.Normalize())
		a := i % 4
		b := (i + 1) % 4
		md.Influences = append(md.Influences, [INFLUENCES_PER_VERTEX]Influence{
			{Bone: a, Weight: 0.7}, {Bone: b, Weight: 0.3}, {0, 0}, {0, 0},
		})
	}
	return md
}

// scaledChain is twoBoneChain under an armature scaled to 0.01, the child
// sitting 100 units up in root space.
func scaledChain() *MeshData {
	rootWorld := mgl32.Scale3D(0.01, 0.01, 0.01)
	childWorld := rootWorld.Mul4(mgl32.Translate3D(0, 100, 0))
	md := twoBoneChain()
	md.Bones[0].BindPose = rootWorld.Inv()
	md.Bones[1].BindPose = childWorld.Inv()
	return md
}
