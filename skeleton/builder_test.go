package skeleton

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBonesRootLocalIsInverseBindPose(t *testing.T) {
	md := armMesh()
	bones, order, err := BuildBones(md.Bones)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, order)

	root := bones[0]
	assert.True(t, root.IsRoot())
	assertMat4(t, md.Bones[0].BindPose.Inv(), root.Local())
}

func TestBuildBonesChainReconstructsBindWorld(t *testing.T) {
	md := armMesh()
	bones, order, err := BuildBones(md.Bones)
	require.NoError(t, err)

	for i, b := range bones {
		m := b.Local()
		for p := b.ParentIndex(); p != BONE_PARENT_NONE; p = bones[p].ParentIndex() {
			m = bones[p].Local().Mul4(m)
		}
		assertMat4(t, md.Bones[order[i]].BindPose.Inv(), m, "bone %q", b.Name())
	}
}

func TestBuildBonesChildBeforeParent(t *testing.T) {
	md := armMesh()
	binds := []BoneBind{md.Bones[3], md.Bones[1], md.Bones[0], md.Bones[2]}
	original := append([]BoneBind(nil), binds...)

	bones, order, err := BuildBones(binds)
	require.NoError(t, err)
	assert.Equal(t, original, binds, "input must not be mutated")

	names := make([]string, len(bones))
	for i, b := range bones {
		names[i] = b.Name()
		assert.Equal(t, i, b.Index())
		assert.Less(t, b.ParentIndex(), i)
		assert.Equal(t, binds[order[i]].Name, b.Name())
	}
	assert.Equal(t, []string{"hips", "spine", "Upper arm.R", "Lower arm.R"}, names)
}

func TestBuildBonesLocalOffset(t *testing.T) {
	bones, _, err := BuildBones(twoBoneChain().Bones)
	require.NoError(t, err)

	child := bones[1]
	assert.Equal(t, "root", child.Parent())
	assertVec3(t, mgl32.Vec3{0, 1, 0}, child.Position())
	assert.True(t, child.Rotation().ApproxEqualThreshold(mgl32.QuatIdent(), epsilon))
	assert.Equal(t, child.Position(), child.BindPosition())
}

func TestBuildBonesErrors(t *testing.T) {
	ident := mgl32.Ident4()
	var zero mgl32.Mat4

	tests := []struct {
		name  string
		binds []BoneBind
		err   error
	}{
		{"empty", nil, ErrNoBones},
		{"orphan", []BoneBind{
			{Name: "root", BindPose: ident},
			{Name: "hand", Parent: "arm", BindPose: ident},
		}, ErrOrphanBone},
		{"duplicate", []BoneBind{
			{Name: "root", BindPose: ident},
			{Name: "arm", Parent: "root", BindPose: ident},
			{Name: "arm", Parent: "root", BindPose: ident},
		}, ErrDuplicateBone},
		{"no root", []BoneBind{
			{Name: "a", Parent: "b", BindPose: ident},
			{Name: "b", Parent: "a", BindPose: ident},
		}, ErrMissingRoot},
		{"two roots", []BoneBind{
			{Name: "a", BindPose: ident},
			{Name: "b", BindPose: ident},
		}, ErrMultipleRoots},
		{"self parent", []BoneBind{
			{Name: "root", BindPose: ident},
			{Name: "a", Parent: "a", BindPose: ident},
		}, ErrCyclicHierarchy},
		{"cycle", []BoneBind{
			{Name: "root", BindPose: ident},
			{Name: "a", Parent: "b", BindPose: ident},
			{Name: "b", Parent: "a", BindPose: ident},
		}, ErrCyclicHierarchy},
		{"singular", []BoneBind{
			{Name: "root", BindPose: zero},
		}, ErrSingularBind},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bones, order, err := BuildBones(test.binds)
			assert.Nil(t, bones)
			assert.Nil(t, order)
			assert.True(t, errors.Is(err, test.err), "got %v", err)
			assert.True(t, IsConstructionError(err))
		})
	}
}

func TestBuildOrphanReturnsNoSkeleton(t *testing.T) {
	md := twoBoneChain()
	md.Bones[1].Parent = "pelvis"

	s, err := Build(md)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOrphanBone))
	assert.True(t, IsConstructionError(err))
	assert.False(t, IsWeightTableError(err))
}

func TestBuildBonesScaledBind(t *testing.T) {
	stretched := scaledChain()
	stretched.Bones[0].BindPose = mgl32.HomogRotate3DY(0.4).Mul4(mgl32.Scale3D(1, 3, 0.5)).Inv()
	stretched.Bones[1].BindPose = stretched.Bones[0].BindPose.Inv().
		Mul4(mgl32.Translate3D(0, 1, 0)).Mul4(mgl32.HomogRotate3DZ(0.3)).Inv()

	for _, md := range []*MeshData{scaledChain(), stretched} {
		bones, order, err := BuildBones(md.Bones)
		require.NoError(t, err)
		for i, b := range bones {
			m := b.Local()
			for p := b.ParentIndex(); p != BONE_PARENT_NONE; p = bones[p].ParentIndex() {
				m = bones[p].Local().Mul4(m)
			}
			assertMat4(t, md.Bones[order[i]].BindPose.Inv(), m, "bone %q", b.Name())
		}
	}

	bones, _, err := BuildBones(scaledChain().Bones)
	require.NoError(t, err)
	assertVec3(t, mgl32.Vec3{0.01, 0.01, 0.01}, bones[0].Scale())
	assertVec3(t, mgl32.Vec3{1, 1, 1}, bones[1].Scale())
	assertVec3(t, mgl32.Vec3{0, 100, 0}, bones[1].Position())
}
