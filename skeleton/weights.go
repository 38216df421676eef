package skeleton

import (
	"log"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

const DEFAULT_WEIGHT_SUM_TOLERANCE = 0.01

// WeightSumTolerance is how far a raw per-vertex weight sum may drift from 1
// before BuildWeightTable reports it as a warning.
var WeightSumTolerance float32 = DEFAULT_WEIGHT_SUM_TOLERANCE

// WeightTable maps every vertex to up to four weighted bones.
//
// Indices and Weights are flat, INFLUENCES_PER_VERTEX entries per vertex, in
// the slot order of the source influences. Indices refer to the bone list the
// table was built against. ByName sums slots that resolve to the same bone.
type WeightTable struct {
	ByName  []map[string]float32
	Indices []int
	Weights []float32

	BoneCount int
	// Warnings counts vertices whose raw weights did not sum to 1.
	Warnings int
}

func (wt *WeightTable) VertexCount() int {
	return len(wt.ByName)
}

// VertexWeights returns the bone name to weight mapping of vertex i.
func (wt *WeightTable) VertexWeights(i int) map[string]float32 {
	return wt.ByName[i]
}

// BuildWeightTable resolves bone indexes to names and normalises weights.
// Slots resolving to the same bone are summed, so padding slots
// (bone 0, weight 0) never hide a real influence of bone 0.
func BuildWeightTable(names []string, influences [][INFLUENCES_PER_VERTEX]Influence) (*WeightTable, error) {
	wt := &WeightTable{
		ByName:    make([]map[string]float32, len(influences)),
		Indices:   make([]int, len(influences)*INFLUENCES_PER_VERTEX),
		Weights:   make([]float32, len(influences)*INFLUENCES_PER_VERTEX),
		BoneCount: len(names),
	}

	for iVertex, slots := range influences {
		var sum float32
		negative := false
		for iSlot := range slots {
			inf := &slots[iSlot]
			if inf.Bone < 0 || inf.Bone >= len(names) {
				return nil, errors.Wrapf(ErrBoneIndexOutOfRange,
					"vertex %d slot %d references bone %d of %d", iVertex, iSlot, inf.Bone, len(names))
			}
			// negative weights are clamped to 0
			if inf.Weight < 0 {
				inf.Weight = 0
				negative = true
			}
			wt.Indices[iVertex*INFLUENCES_PER_VERTEX+iSlot] = inf.Bone
			wt.Weights[iVertex*INFLUENCES_PER_VERTEX+iSlot] = inf.Weight
			sum += inf.Weight
		}

		if negative || !mgl32.FloatEqualThreshold(sum, 1, WeightSumTolerance) {
			wt.Warnings++
			if wt.Warnings <= 8 {
				log.Printf("[skeleton] vertex %d weights sum to %f (negative weights clamped: %v)", iVertex, sum, negative)
			}
		}

		scale := float32(1)
		if sum > 0 && sum != 1 {
			scale = 1 / sum
		}

		byName := make(map[string]float32, INFLUENCES_PER_VERTEX)
		for iSlot, inf := range slots {
			w := inf.Weight * scale
			wt.Weights[iVertex*INFLUENCES_PER_VERTEX+iSlot] = w
			if w == 0 {
				continue
			}
			byName[names[inf.Bone]] += w
		}
		wt.ByName[iVertex] = byName
	}

	if wt.Warnings > 8 {
		log.Printf("[skeleton] %d vertices have weights not summing to 1", wt.Warnings)
	}

	return wt, nil
}
