package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// result in radians
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

// EulerDegreesToQuat rotates around z, then x, then y (the order Unity
// uses for Quaternion.Euler). Input in degrees.
func EulerDegreesToQuat(v mgl32.Vec3) mgl32.Quat {
	x := mgl32.QuatRotate(mgl32.DegToRad(v[0]), mgl32.Vec3{1, 0, 0})
	y := mgl32.QuatRotate(mgl32.DegToRad(v[1]), mgl32.Vec3{0, 1, 0})
	z := mgl32.QuatRotate(mgl32.DegToRad(v[2]), mgl32.Vec3{0, 0, 1})
	return y.Mul(x).Mul(z).Normalize()
}

// RotationFromMat4 extracts the rotation of an affine matrix, ignoring
// translation and any scale stored in the basis vectors.
func RotationFromMat4(m mgl32.Mat4) mgl32.Quat {
	var r mgl32.Mat4
	for col := 0; col < 3; col++ {
		axis := m.Col(col).Vec3()
		if l := axis.Len(); l > 1e-8 {
			axis = axis.Mul(1 / l)
		}
		r.SetCol(col, axis.Vec4(0))
	}
	r.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	return mgl32.Mat4ToQuat(r).Normalize()
}

// BoundingBox returns min and max corners of points. Empty input gives zero vectors.
func BoundingBox(points []mgl32.Vec3) (min, max mgl32.Vec3) {
	if len(points) == 0 {
		return
	}
	min, max = points[0], points[0]
	for _, p := range points[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	return
}

func Vec3Array(in []mgl32.Vec3) [][3]float32 {
	out := make([][3]float32, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
