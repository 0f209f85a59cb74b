// Package stencil defines the data model shared by the rank-level stencil
// execution engine: indices, the four spatial dimensions, grid and kernel
// capability interfaces, and the per-rank StencilContext.
package stencil

// Idx is the signed index type used for all spatial and temporal
// coordinates. Negative values are legal only for halo-relative offsets.
type Idx = int64

// Dims carries one value per spatial dimension, conventionally named
// (n,x,y,z). The N axis may be runtime-elided via Constants.UsingDimN;
// Go has no equivalent of the original's compile-time USING_DIM_N macro,
// so the field always exists; when UsingDimN is false,
// config.Parameters.ToContext sets the N sizes to 1 and the N halo to 0.
type Dims struct {
	N, X, Y, Z Idx
}

// Add returns the elementwise sum of d and o.
func (d Dims) Add(o Dims) Dims {
	return Dims{d.N + o.N, d.X + o.X, d.Y + o.Y, d.Z + o.Z}
}

// Sub returns the elementwise difference d-o.
func (d Dims) Sub(o Dims) Dims {
	return Dims{d.N - o.N, d.X - o.X, d.Y - o.Y, d.Z - o.Z}
}

// Mul returns the elementwise product of d and o.
func (d Dims) Mul(o Dims) Dims {
	return Dims{d.N * o.N, d.X * o.X, d.Y * o.Y, d.Z * o.Z}
}

// Volume returns the product of all four components.
func (d Dims) Volume() Idx {
	return d.N * d.X * d.Y * d.Z
}

// DivVec converts an element-index tuple to a vector-index tuple by exact
// integer division. Indices are non-negative by construction at call sites.
func (d Dims) DivVec(vlen Dims) Dims {
	return Dims{d.N / vlen.N, d.X / vlen.X, d.Y / vlen.Y, d.Z / vlen.Z}
}

// RoundUp rounds each component of d up to the next multiple of the
// matching component of m. Used for computing wavefront skew angles from
// halo widths.
func (d Dims) RoundUp(m Dims) Dims {
	return Dims{
		roundUp(d.N, m.N),
		roundUp(d.X, m.X),
		roundUp(d.Y, m.Y),
		roundUp(d.Z, m.Z),
	}
}

func roundUp(v, m Idx) Idx {
	if m <= 0 {
		return v
	}
	if r := v % m; r != 0 {
		return v + (m - r)
	}
	return v
}

// Vec is an opaque SIMD-width vector of scalar values, as produced/consumed
// by a Grid's vector-aligned read/write methods. Its width is a property of
// the grid/kernel binding, not of this package.
type Vec []float64

// Constants are the compile-time-ish stencil binding parameters that
// spec.md treats as opaque per-binding inputs: per-dimension vector and
// cluster length, time-cluster size, alignment, and max exchange distance.
type Constants struct {
	VLen          Dims // per-dimension vector length
	CLen          Dims // cluster length in vectors
	CPtsT         Idx  // time-cluster size; must currently be 1
	GridAlignment Idx
	MaxExchDist   Idx
	Epsilon       float64
	UsingDimN     bool
}

// CPts returns the cluster length in points per dimension (VLen*CLen).
func (c Constants) CPts() Dims {
	return c.VLen.Mul(c.CLen)
}

// InitFunc seeds a grid or parameter array given a per-grid seed value that
// differs by a fixed step between successive grids/params (see
// engine.Engine.InitValues).
type InitFunc func(g Grid, seed float64)

// Grid is the storage capability an equation group reads and writes. It is
// consumed as opaque storage with known element/vector lengths; allocation
// and padding are the concern of the problem-specific context that creates
// it, never of this package.
type Grid interface {
	Name() string
	ReadElem(t Idx, p Dims) float64
	WriteElem(v float64, t Idx, p Dims)
	ReadVecNorm(t Idx, pv Dims) Vec
	WriteVecNorm(v Vec, t Idx, pv Dims)
	// Pad returns the allocated halo+pad width in each spatial dimension.
	Pad() Dims
	NumBytes() Idx
}

// EqGroupKernel is the fixed capability set a code-generated per-equation
// kernel must expose. The driver is monomorphic over any implementation of
// this interface; inlining is left to the Go compiler's own judgment, which
// is acceptable given the inner loop runs vectorized tiles regardless.
type EqGroupKernel interface {
	Name() string
	ScalarFPOps() int
	ScalarPointsUpdated() int
	EqGridPtrs() []Grid
	IsInValidDomain(ctx *StencilContext, t Idx, p Dims) bool
	CalcScalar(ctx *StencilContext, t Idx, p Dims)
	CalcVector(ctx *StencilContext, tVec Idx, pv Dims)
	PrefetchL1Vector(ctx *StencilContext, dim int, tVec Idx, pv Dims)
	PrefetchL2Vector(ctx *StencilContext, dim int, tVec Idx, pv Dims)
}
