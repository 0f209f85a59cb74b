// Package engine wires bbox, wavefront, topology, halo, and loop together
// behind the four programmatic entry points spec.md §6 names: AllocAll,
// InitValues, CalcRankRef/CalcRankOpt, and Compare. It is the "thin driver"
// spec.md treats as external, grounded on gocfd's cmd/ package's role of
// gluing a solver together behind a small number of top-level calls rather
// than exposing the internals directly.
package engine

import (
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/notargets/stencilcore/bbox"
	"github.com/notargets/stencilcore/halo"
	"github.com/notargets/stencilcore/loop"
	"github.com/notargets/stencilcore/stencil"
	"github.com/notargets/stencilcore/topology"
	"github.com/notargets/stencilcore/wavefront"
)

// Engine owns one rank's kernels and drives them through allocation,
// initialization, and the reference/optimized evaluators.
type Engine struct {
	Ctx     *stencil.StencilContext
	Kernels []stencil.EqGroupKernel
	NewGrid halo.NewGridFunc

	Groups    []loop.GroupBox
	neighbors []topology.Neighbor
}

// New returns an Engine bound to ctx, evaluating kernels in the given
// order (equation-group order matters: spec.md §4.3 evaluates groups in
// order within calc_region). newGrid constructs shadow grids and halo
// buffers; production callers pass a closure around memgrid.New.
func New(ctx *stencil.StencilContext, kernels []stencil.EqGroupKernel, newGrid halo.NewGridFunc) *Engine {
	return &Engine{Ctx: ctx, Kernels: kernels, NewGrid: newGrid}
}

// AllocAll allocates rank topology (if findRankLocation), the aggregated
// bounding box and wavefront angle, halo buffers, and shadow grids; it
// returns the total bytes now owned by this rank's grids and buffers.
func (e *Engine) AllocAll(findRankLocation bool) (stencil.Idx, error) {
	ctx := e.Ctx

	if findRankLocation {
		layout := topology.Layout4321{Shape: ctx.Layout}
		ctx.Coord = layout.Unlayout(ctx.MyRank)
		if ctx.NumRanks > 1 && ctx.Comm != nil {
			coords := topology.ExchangeCoordinates(ctx.Comm, ctx.Coord)
			e.neighbors = topology.FindNeighbors(ctx, coords, ctx.MyRank, ctx.Constants.MaxExchDist, ctx.Domain, ctx.Halo)
			topology.PopulateNeighborTable(ctx, e.neighbors)
		}
	}

	grids := dedupeGrids(e.Kernels)
	ctx.GridPtrs = grids
	ctx.EqGridPtrs = grids

	results := make([]bbox.Result, 0, len(e.Kernels))
	e.Groups = e.Groups[:0]
	for _, k := range e.Kernels {
		r := bbox.Find(ctx, k, ctx.Domain)
		bbox.Validate(ctx, k, r, ctx.Constants.CPts())
		results = append(results, r)
		e.Groups = append(e.Groups, loop.GroupBox{Kernel: k, BB: r})
	}
	union := bbox.Union(results)
	ctx.BeginBB, ctx.EndBB, ctx.LenBB, ctx.BBSize, ctx.BBValid = union.Begin, union.End, union.Len, union.Size, true

	// A region size left at its "region = whole domain" default (r_d ==
	// d_d) is reset to the rank's own BB length, per spec.md §4.1 and
	// stencil_calc.cpp's "if (context.rn == context.dn) context.rn =
	// context.len_bbn" (and the x/y/z siblings).
	if ctx.Region.N == ctx.Domain.N {
		ctx.Region.N = ctx.LenBB.N
	}
	if ctx.Region.X == ctx.Domain.X {
		ctx.Region.X = ctx.LenBB.X
	}
	if ctx.Region.Y == ctx.Domain.Y {
		ctx.Region.Y = ctx.LenBB.Y
	}
	if ctx.Region.Z == ctx.Domain.Z {
		ctx.Region.Z = ctx.LenBB.Z
	}

	ctx.Angle = wavefront.Angles(ctx.Region, ctx.LenBB, ctx.Halo, ctx.Constants.CPts())

	if findRankLocation && ctx.NumRanks > 1 {
		for _, g := range grids {
			halo.AllocBufs(ctx, g, e.neighbors, e.NewGrid)
		}
	}

	if ctx.ShadowOutFreq > 0 || ctx.ShadowInFreq > 0 {
		for _, g := range grids {
			ctx.ShadowGrids[g] = e.NewGrid(g.Name()+".shadow", ctx.Domain)
		}
	}

	var total stencil.Idx
	for _, g := range grids {
		total += g.NumBytes()
	}
	for _, p := range ctx.ParamPtrs {
		total += p.NumBytes()
	}
	for _, gb := range ctx.MPIBufs {
		for _, dir := range gb.Bufs {
			for _, a := range dir {
				for _, b := range a {
					for _, c := range b {
						for _, buf := range c {
							if buf != nil {
								total += buf.NumBytes()
							}
						}
					}
				}
			}
		}
	}
	return total, nil
}

func dedupeGrids(kernels []stencil.EqGroupKernel) []stencil.Grid {
	seen := map[stencil.Grid]bool{}
	var grids []stencil.Grid
	for _, k := range kernels {
		for _, g := range k.EqGridPtrs() {
			if !seen[g] {
				seen[g] = true
				grids = append(grids, g)
			}
		}
	}
	return grids
}

// InitValues seeds every grid and parameter with a caller-supplied
// initializer, using seeds that differ by +0.01 per grid/param, per
// spec.md §6.
func (e *Engine) InitValues(vectorInit, scalarInit stencil.InitFunc) {
	seed := 0.0
	for _, g := range e.Ctx.GridPtrs {
		vectorInit(g, seed)
		seed += 0.01
	}
	for _, p := range e.Ctx.ParamPtrs {
		scalarInit(p, seed)
		seed += 0.01
	}
}

// CalcRankRef is the reference scalar evaluation: a plain per-time-step,
// per-group, whole-domain sweep with no blocking, wavefronting, or halo
// exchange, used as the ground truth calc_rank_opt is checked against.
// The outer loop steps by CPTS_T, which spec.md §9's open question leaves
// meaningful only at CPTS_T==1; this asserts that invariant explicitly.
func (e *Engine) CalcRankRef(beginDT, endDT stencil.Idx) {
	ctx := e.Ctx
	if ctx.Constants.CPtsT != 1 {
		ctx.Fatalf("calc_rank_ref: CPTS_T > 1 is unimplemented (got %d)", ctx.Constants.CPtsT)
	}
	for t := beginDT; t < endDT; t += ctx.Constants.CPtsT {
		for _, grp := range e.Groups {
			k := grp.Kernel
			iterateDomain(ctx.Domain, func(p stencil.Dims) {
				if k.IsInValidDomain(ctx, t, p) {
					k.CalcScalar(ctx, t, p)
				}
			})
		}
	}
}

// CalcRankOpt is the optimized tiled evaluation, dispatching through the
// full hierarchical loop driver (package loop): time, region, block, and
// cluster levels, with halo exchange and wavefront skewing.
func (e *Engine) CalcRankOpt(beginDT, endDT stencil.Idx) error {
	return loop.Run(e.Ctx, e.Groups, beginDT, endDT)
}

// Compare does an element-wise comparison of every grid in e against the
// matching grid (by GridPtrs index) in ref at time t, within
// ctx.Constants.Epsilon, returning the mismatch count.
func (e *Engine) Compare(ref *Engine, t stencil.Idx) stencil.Idx {
	eps := e.Ctx.Constants.Epsilon
	var mismatches stencil.Idx
	for i, g := range e.Ctx.GridPtrs {
		if i >= len(ref.Ctx.GridPtrs) {
			break
		}
		rg := ref.Ctx.GridPtrs[i]
		iterateDomain(e.Ctx.Domain, func(p stencil.Dims) {
			if !scalar.EqualWithinAbs(g.ReadElem(t, p), rg.ReadElem(t, p), eps) {
				mismatches++
			}
		})
	}
	return mismatches
}

func iterateDomain(domain stencil.Dims, body func(p stencil.Dims)) {
	for n := stencil.Idx(0); n < domain.N; n++ {
		for x := stencil.Idx(0); x < domain.X; x++ {
			for y := stencil.Idx(0); y < domain.Y; y++ {
				for z := stencil.Idx(0); z < domain.Z; z++ {
					body(stencil.Dims{N: n, X: x, Y: y, Z: z})
				}
			}
		}
	}
}
