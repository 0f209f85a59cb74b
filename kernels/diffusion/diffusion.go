// Package diffusion is the built-in demonstration equation group
// stencilctl runs by default: a single scalar field updated by a 6-point
// Jacobi diffusion stencil (Laplacian average) over an interior BB one
// point in from every domain edge, the minimal concrete stand-in for the
// kernel capability spec.md §6 leaves as an external capability
// contract (Name/ScalarFPOps/IsInValidDomain/CalcScalar/CalcVector,
// plus the prefetch hints).
package diffusion

import "github.com/notargets/stencilcore/stencil"

// Kernel is a single-grid 6-point diffusion update: Field is read at t and
// written at t+1, one point in from every domain edge so every neighbor
// read stays in-bounds with zero grid padding.
type Kernel struct {
	Field  stencil.Grid
	Domain stencil.Dims
}

// New returns a diffusion Kernel bound to field, valid over the interior
// of domain.
func New(field stencil.Grid, domain stencil.Dims) *Kernel {
	return &Kernel{Field: field, Domain: domain}
}

func (k *Kernel) Name() string             { return "diffusion" }
func (k *Kernel) ScalarFPOps() int         { return 7 }
func (k *Kernel) ScalarPointsUpdated() int { return 1 }

func (k *Kernel) EqGridPtrs() []stencil.Grid {
	return []stencil.Grid{k.Field}
}

func (k *Kernel) IsInValidDomain(_ *stencil.StencilContext, _ stencil.Idx, p stencil.Dims) bool {
	return p.X >= 1 && p.X < k.Domain.X-1 &&
		p.Y >= 1 && p.Y < k.Domain.Y-1 &&
		p.Z >= 1 && p.Z < k.Domain.Z-1
}

func (k *Kernel) CalcScalar(_ *stencil.StencilContext, t stencil.Idx, p stencil.Dims) {
	c := k.Field.ReadElem(t, p)
	sum := k.Field.ReadElem(t, stencil.Dims{N: p.N, X: p.X - 1, Y: p.Y, Z: p.Z}) +
		k.Field.ReadElem(t, stencil.Dims{N: p.N, X: p.X + 1, Y: p.Y, Z: p.Z}) +
		k.Field.ReadElem(t, stencil.Dims{N: p.N, X: p.X, Y: p.Y - 1, Z: p.Z}) +
		k.Field.ReadElem(t, stencil.Dims{N: p.N, X: p.X, Y: p.Y + 1, Z: p.Z}) +
		k.Field.ReadElem(t, stencil.Dims{N: p.N, X: p.X, Y: p.Y, Z: p.Z - 1}) +
		k.Field.ReadElem(t, stencil.Dims{N: p.N, X: p.X, Y: p.Y, Z: p.Z + 1})
	k.Field.WriteElem(0.125*sum+0.25*c, t+1, p)
}

// CalcVector falls back to the scalar path since demo runs default to
// VLEN==1 in every dimension; a real vectorized kernel would instead read
// a Vec per neighbor via ReadVecNorm.
func (k *Kernel) CalcVector(ctx *stencil.StencilContext, t stencil.Idx, pv stencil.Dims) {
	k.CalcScalar(ctx, t, pv)
}

func (k *Kernel) PrefetchL1Vector(*stencil.StencilContext, int, stencil.Idx, stencil.Dims) {}
func (k *Kernel) PrefetchL2Vector(*stencil.StencilContext, int, stencil.Idx, stencil.Dims) {}

var _ stencil.EqGroupKernel = (*Kernel)(nil)
