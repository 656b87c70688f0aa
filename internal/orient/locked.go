package orient

import "sync"

// Snapshot is a consistent copy of every estimator output.
type Snapshot struct {
	Force           Vec4
	RawAcceleration Vec4
	Orientation     Vec4
	Transform       Mat4
	// TransformValid is false while the smoothed vector is too short to
	// build a basis from; Transform then holds the last good matrix (or
	// zeros if none was ever built).
	TransformValid bool

	ForceSmoothing       float64
	OrientationSmoothing float64
}

// Locked guards an Estimator with a single mutex so that a dirty flag and
// the value it protects are always observed together.
type Locked struct {
	mu sync.Mutex
	e  *Estimator
}

func NewLocked(opts ...Option) *Locked {
	return &Locked{e: New(opts...)}
}

func (l *Locked) Update(x, y, z float64) {
	l.mu.Lock()
	l.e.Update(x, y, z)
	l.mu.Unlock()
}

func (l *Locked) SetForceSmoothing(v float64) {
	l.mu.Lock()
	l.e.SetForceSmoothing(v)
	l.mu.Unlock()
}

func (l *Locked) SetOrientationSmoothing(v float64) {
	l.mu.Lock()
	l.e.SetOrientationSmoothing(v)
	l.mu.Unlock()
}

func (l *Locked) Force() Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Force()
}

func (l *Locked) RawAcceleration() Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.RawAcceleration()
}

func (l *Locked) Orientation() Vec4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Orientation()
}

func (l *Locked) Transform() Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Transform()
}

func (l *Locked) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Snapshot()
}

func (l *Locked) Refresh() {
	l.mu.Lock()
	l.e.Refresh()
	l.mu.Unlock()
}

func (l *Locked) ForceSmoothing() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.ForceSmoothing()
}

func (l *Locked) OrientationSmoothing() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.OrientationSmoothing()
}
