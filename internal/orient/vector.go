package orient

import "math"

// Vec4 is a homogeneous 3-vector. Only X, Y and Z take part in any
// operation; W is carried along untouched.
type Vec4 struct {
	X, Y, Z, W float64
}

func (v Vec4) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec4) Scale(k float64) Vec4 {
	return Vec4{X: v.X * k, Y: v.Y * k, Z: v.Z * k, W: v.W}
}

// Normalize divides x/y/z by length. The caller owns the zero check.
func (v Vec4) Normalize(length float64) Vec4 {
	return Vec4{X: v.X / length, Y: v.Y / length, Z: v.Z / length, W: v.W}
}

func (v Vec4) Dot(o Vec4) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec4) Cross(o Vec4) Vec4 {
	return Vec4{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Lerp moves v toward `to` by fraction t on each axis: v + (to - v) * t.
func (v Vec4) Lerp(to Vec4, t float64) Vec4 {
	return Vec4{
		X: v.X + (to.X-v.X)*t,
		Y: v.Y + (to.Y-v.Y)*t,
		Z: v.Z + (to.Z-v.Z)*t,
		W: v.W,
	}
}

// Mat4 is a 4x4 matrix stored column-major: cell (row, col) lives at
// index col*4+row.
type Mat4 [16]float64

func (m Mat4) At(row, col int) float64 {
	return m[col*4+row]
}

// Col returns column i as a vector; the fourth row lands in W.
func (m Mat4) Col(i int) Vec4 {
	return Vec4{X: m[i*4], Y: m[i*4+1], Z: m[i*4+2], W: m[i*4+3]}
}

func (m *Mat4) SetCol(i int, v Vec4) {
	m[i*4] = v.X
	m[i*4+1] = v.Y
	m[i*4+2] = v.Z
	m[i*4+3] = v.W
}
