// Package orient turns a stream of raw accelerometer samples (in g) into a
// smoothed force vector, pitch/roll angles and a 4x4 basis aligned with the
// sensed gravity direction.
package orient

import "math"

const (
	// DefaultForceSmoothing favours responsiveness for the displayed force.
	DefaultForceSmoothing = 0.1
	// DefaultOrientationSmoothing damps the vector the angles and basis use.
	DefaultOrientationSmoothing = 0.9

	// MinBlend keeps the filter moving even for smoothing values near 1.
	MinBlend = 0.01
	// MaxBlend is the blend of a smoothing value of 0 or below: the sample
	// replaces the state.
	MaxBlend = 1.0

	// MinBasisLength is the shortest smoothed orientation vector a basis is
	// built from. Shorter vectors leave the previous transform in place.
	MinBasisLength = 0.1

	// ZeroZEpsilon is the |z| below which WithZeroZGuard switches to the
	// fallback perpendicular axis.
	ZeroZEpsilon = 1e-12

	radToDeg = 180 / math.Pi
)

// Option configures an Estimator at construction.
type Option func(*Estimator)

// WithZeroZGuard makes the transform use (0, 0, 1) as the perpendicular
// axis when the smoothed z component is (near) zero. Without it the
// (0, 1, -y/z) construction divides by zero and Inf/NaN reach columns 1
// and 2 of the transform.
func WithZeroZGuard() Option {
	return func(e *Estimator) { e.guardZeroZ = true }
}

// WithSmoothing overrides the default smoothing factors.
func WithSmoothing(force, orientation float64) Option {
	return func(e *Estimator) {
		e.forceSmoothing = force
		e.orientationSmoothing = orientation
	}
}

// Estimator is not safe for concurrent use; see Locked.
//
// Orientation and Transform recompute lazily: Update marks both derived
// values dirty and the next read (or Refresh) rebuilds them.
type Estimator struct {
	forceSmoothing       float64
	orientationSmoothing float64
	guardZeroZ           bool

	raw      Vec4 // latest sample, verbatim
	force    Vec4 // smoothed for display
	tracking Vec4 // smoothed for orientation

	angles    Vec4 // x: pitch, y: roll, z: always 0 (degrees)
	transform Mat4

	orientationDirty bool
	transformDirty   bool
}

// New returns an Estimator with default smoothing, zero vectors and both
// derived values marked dirty.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		forceSmoothing:       DefaultForceSmoothing,
		orientationSmoothing: DefaultOrientationSmoothing,
		orientationDirty:     true,
		transformDirty:       true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BlendFactor maps a smoothing amount (0: none, 1: very smooth) to the lerp
// fraction applied per sample, clamped to [MinBlend, MaxBlend].
func BlendFactor(smoothing float64) float64 {
	b := 1.0 - smoothing
	if b > MaxBlend {
		return MaxBlend
	}
	if b < MinBlend {
		return MinBlend
	}
	return b
}

// SetForceSmoothing takes effect on the next Update. Out-of-range values are
// accepted and clamped by BlendFactor at use.
func (e *Estimator) SetForceSmoothing(v float64) { e.forceSmoothing = v }

func (e *Estimator) SetOrientationSmoothing(v float64) { e.orientationSmoothing = v }

func (e *Estimator) ForceSmoothing() float64 { return e.forceSmoothing }

func (e *Estimator) OrientationSmoothing() float64 { return e.orientationSmoothing }

// Update feeds one raw sample in g.
func (e *Estimator) Update(x, y, z float64) {
	e.orientationDirty = true
	e.transformDirty = true

	e.raw.X, e.raw.Y, e.raw.Z = x, y, z
	e.force = smooth(e.force, e.raw, e.forceSmoothing)
	e.tracking = smooth(e.tracking, e.raw, e.orientationSmoothing)
}

func smooth(cur, sample Vec4, smoothing float64) Vec4 {
	if smoothing == 0 {
		cur.X, cur.Y, cur.Z = sample.X, sample.Y, sample.Z
		return cur
	}
	return cur.Lerp(sample, BlendFactor(smoothing))
}

// Force is the smoothed acceleration. It is maintained eagerly.
func (e *Estimator) Force() Vec4 { return e.force }

// RawAcceleration is the most recent sample as passed to Update.
func (e *Estimator) RawAcceleration() Vec4 { return e.raw }

// Orientation returns pitch (X) and roll (Y) in degrees, recomputing them
// first if an Update happened since the last read. Z is always 0.
func (e *Estimator) Orientation() Vec4 {
	e.refreshOrientation()
	return e.angles
}

// Transform returns the gravity-aligned basis, recomputing it first if an
// Update happened since the last successful build. While the smoothed
// orientation vector is shorter than MinBasisLength the previous matrix is
// returned and the rebuild is retried on the next call.
func (e *Estimator) Transform() Mat4 {
	e.refreshTransform()
	return e.transform
}

// Refresh recomputes every dirty derived value without reading them.
func (e *Estimator) Refresh() {
	e.refreshOrientation()
	e.refreshTransform()
}

// Snapshot refreshes the estimator and copies out every output.
func (e *Estimator) Snapshot() Snapshot {
	e.Refresh()
	return Snapshot{
		Force:                e.force,
		RawAcceleration:      e.raw,
		Orientation:          e.angles,
		Transform:            e.transform,
		TransformValid:       !e.transformDirty,
		ForceSmoothing:       e.forceSmoothing,
		OrientationSmoothing: e.orientationSmoothing,
	}
}

func (e *Estimator) refreshOrientation() {
	if !e.orientationDirty {
		return
	}
	e.orientationDirty = false

	// 0 - z rather than -z: a zero component must stay +0 so that
	// atan2(0, 0) reads 0 instead of 180.
	nz := 0 - e.tracking.Z
	e.angles = Vec4{
		X: math.Atan2(e.tracking.Y, nz) * radToDeg,
		Y: math.Atan2(e.tracking.X, nz) * radToDeg,
	}
}

func (e *Estimator) refreshTransform() {
	if !e.transformDirty {
		return
	}
	length := e.tracking.Len()
	if length < MinBasisLength {
		return
	}
	e.transformDirty = false

	g := e.tracking.Normalize(length)
	g.W = 0

	// Arbitrary axis in the plane Gx*x + Gy*y + Gz*z = 0 with x=0, y=1.
	p := Vec4{X: 0, Y: 1, Z: -e.tracking.Y / e.tracking.Z}
	if e.guardZeroZ && math.Abs(e.tracking.Z) < ZeroZEpsilon {
		p = Vec4{X: 0, Y: 0, Z: 1}
	}
	p = p.Normalize(p.Len())

	var m Mat4
	m.SetCol(0, g)
	m.SetCol(1, p)
	m.SetCol(2, g.Cross(p))
	m.SetCol(3, Vec4{W: 1})
	e.transform = m
}
