// Package tile is the loop-tiling mini-library spec.md's design notes call
// for in place of the original's textually-included, code-generated nested
// loop skeletons (stencil_rank_loops.hpp, stencil_region_loops.hpp, etc.):
// a small set of functions that take sizes and a tile body, rather than
// generated source.
package tile

import "github.com/notargets/stencilcore/stencil"

// Range describes one dimension's sweep: [Begin, End) stepped by Step.
// A zero or negative Step is treated as a single tile spanning the whole
// range.
type Range struct {
	Begin, End, Step stencil.Idx
}

// Body is called once per tile with the tile's [begin, end) window in
// each dimension. end-begin may be smaller than Step on the last tile of
// a range that doesn't divide evenly.
type Body func(begin, end stencil.Dims)

// Each4D sweeps n outermost through z innermost (matching the rank's
// 4-3-2-1 coordinate layout), calling body once per tile. Dimensions with
// an empty range ([Begin,End) with End<=Begin) produce no tiles at all,
// matching spec.md's "an empty clip does not abort the time loop" rule at
// the call sites that rely on it.
func Each4D(n, x, y, z Range, body Body) {
	for bn := n.Begin; bn < n.End; bn += step(n) {
		en := min64(bn+step(n), n.End)
		for bx := x.Begin; bx < x.End; bx += step(x) {
			ex := min64(bx+step(x), x.End)
			for by := y.Begin; by < y.End; by += step(y) {
				ey := min64(by+step(y), y.End)
				for bz := z.Begin; bz < z.End; bz += step(z) {
					ez := min64(bz+step(z), z.End)
					body(
						stencil.Dims{N: bn, X: bx, Y: by, Z: bz},
						stencil.Dims{N: en, X: ex, Y: ey, Z: ez},
					)
				}
			}
		}
	}
}

func step(r Range) stencil.Idx {
	if r.Step <= 0 {
		return r.End - r.Begin
	}
	return r.Step
}

func min64(a, b stencil.Idx) stencil.Idx {
	if a < b {
		return a
	}
	return b
}

// RangesFrom builds the four Range values for a begin/end/step triple of
// Dims, the shape every loop level in this engine steps through.
func RangesFrom(begin, end, step stencil.Dims) (n, x, y, z Range) {
	return Range{begin.N, end.N, step.N},
		Range{begin.X, end.X, step.X},
		Range{begin.Y, end.Y, step.Y},
		Range{begin.Z, end.Z, step.Z}
}

// NonEmpty reports whether begin < end in every dimension, i.e. whether a
// tile sweep over [begin,end) would visit any point at all.
func NonEmpty(begin, end stencil.Dims) bool {
	return end.N > begin.N && end.X > begin.X && end.Y > begin.Y && end.Z > begin.Z
}
