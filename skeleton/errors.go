package skeleton

import (
	"github.com/pkg/errors"
)

// ConstructionError reports malformed bind-pose or hierarchy input.
// It is only ever returned while building a skeleton.
type ConstructionError struct {
	reason string
}

func (e *ConstructionError) Error() string { return e.reason }

// WeightTableError reports a per-vertex influence that cannot be resolved.
type WeightTableError struct {
	reason string
}

func (e *WeightTableError) Error() string { return e.reason }

var (
	ErrNoBones         = &ConstructionError{"no bones"}
	ErrOrphanBone      = &ConstructionError{"orphan bone"}
	ErrDuplicateBone   = &ConstructionError{"duplicate bone name"}
	ErrMissingRoot     = &ConstructionError{"missing root bone"}
	ErrMultipleRoots   = &ConstructionError{"multiple root bones"}
	ErrCyclicHierarchy = &ConstructionError{"cyclic bone hierarchy"}
	ErrSingularBind    = &ConstructionError{"bind pose matrix is not invertible"}
	ErrBoneOrder       = &ConstructionError{"bone precedes its parent"}
	ErrBasePoseLength  = &ConstructionError{"base pose vertices and normals differ in length"}

	ErrBoneIndexOutOfRange = &WeightTableError{"bone index out of range"}
)

var (
	// ErrInconsistentWeightTable means the weight table and the skeleton
	// were built from different hierarchies or meshes.
	ErrInconsistentWeightTable = errors.New("weight table does not match skeleton")
	ErrUnknownBone             = errors.New("unknown bone")
)

// IsConstructionError reports whether err is (or wraps) a *ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

// IsWeightTableError reports whether err is (or wraps) a *WeightTableError.
func IsWeightTableError(err error) bool {
	var we *WeightTableError
	return errors.As(err, &we)
}
