// Package wavefront computes temporal-wavefront skewing angles and the
// domain extension they require, per spec.md §4.2.
package wavefront

import "github.com/notargets/stencilcore/stencil"

// Angles computes the per-dimension skew angle: ROUND_UP(halo, cpts) when
// the region is narrower than the rank's bounding box in that dimension
// (there is spatial room to skew into), else 0 (a full-span region has no
// neighbor region to skew into, so no wavefront is needed there).
func Angles(region, lenBB, halo, cpts stencil.Dims) stencil.Dims {
	angle := func(r, l, h, c stencil.Idx) stencil.Idx {
		if r < l {
			return roundUp(h, c)
		}
		return 0
	}
	return stencil.Dims{
		N: angle(region.N, lenBB.N, halo.N, cpts.N),
		X: angle(region.X, lenBB.X, halo.X, cpts.X),
		Y: angle(region.Y, lenBB.Y, halo.Y, cpts.Y),
		Z: angle(region.Z, lenBB.Z, halo.Z, cpts.Z),
	}
}

func roundUp(v, m stencil.Idx) stencil.Idx {
	if m <= 0 {
		return v
	}
	if r := v % m; r != 0 {
		return v + (m - r)
	}
	return v
}

// Shifts returns the number of overlapping-region skew shifts the domain
// must be extended by: nshifts = |G|*rt - 1, under the fully-cross-group
// dependency assumption that every later group at t+1 depends on every
// earlier group at t (spec.md §4.2).
func Shifts(numGroups int, rt stencil.Idx) stencil.Idx {
	return stencil.Idx(numGroups)*rt - 1
}

// ExtendDomain extends end on the high side of each dimension by
// angle*nshifts, accommodating up to nshifts skew shifts before the
// earliest wavefront falls off the domain.
func ExtendDomain(end stencil.Dims, angle stencil.Dims, nshifts stencil.Idx) stencil.Dims {
	return stencil.Dims{
		N: end.N + angle.N*nshifts,
		X: end.X + angle.X*nshifts,
		Y: end.Y + angle.Y*nshifts,
		Z: end.Z + angle.Z*nshifts,
	}
}
