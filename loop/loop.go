// Package loop is the Hierarchical Loop Driver, spec.md §4.3: time level,
// region level, block level, cluster level, outermost to innermost. Block
// level parallelism is a fork-join dispatch over an errgroup.Group, the
// same "one goroutine per partition, wait for all" shape gocfd's
// model_problems/Euler2D RungeKutta4SSP.Step uses for its per-partition
// RHS evaluation, generalized here from a flat partition index to a 4-D
// block tile.
package loop

import (
	"golang.org/x/sync/errgroup"

	"github.com/notargets/stencilcore/bbox"
	"github.com/notargets/stencilcore/halo"
	"github.com/notargets/stencilcore/stencil"
	"github.com/notargets/stencilcore/tile"
	"github.com/notargets/stencilcore/wavefront"
)

// GroupBox pairs an equation-group kernel with its own bounding box, the
// per-group clip region calc_region needs (spec.md §4.3's "eg.begin_bbd,
// eg.end_bbd").
type GroupBox struct {
	Kernel stencil.EqGroupKernel
	BB     bbox.Result
}

// ClusterSweep is the cluster level: it converts the [begin,end) point
// window it is given (a whole block tile) to vector indices by exact
// division by VLEN_d and calls the kernel's CalcVector once per vector
// index. The window is not split into CLEN_d-vector cluster tiles.
func ClusterSweep(ctx *stencil.StencilContext, kernel stencil.EqGroupKernel, t stencil.Idx, begin, end stencil.Dims) {
	vlen := ctx.Constants.VLen
	beginV, endV := begin.DivVec(vlen), end.DivVec(vlen)
	n, x, y, z := tile.RangesFrom(beginV, endV, stencil.Dims{N: 1, X: 1, Y: 1, Z: 1})
	tile.Each4D(n, x, y, z, func(b, _ stencil.Dims) {
		kernel.CalcVector(ctx, t, b)
	})
}

// BlockSweep is the block level: calc_region's window is split into
// block-sized tiles, each tile dispatched to its own goroutine, and
// BlockSweep waits for all of them. The number of goroutines running at
// once is not limited, and no thread count is switched or restored here
// or by the region-level callers.
func BlockSweep(ctx *stencil.StencilContext, kernel stencil.EqGroupKernel, t stencil.Idx, begin, end stencil.Dims) error {
	n, x, y, z := tile.RangesFrom(begin, end, ctx.Block)
	var g errgroup.Group
	tile.Each4D(n, x, y, z, func(b, e stencil.Dims) {
		g.Go(func() error {
			ClusterSweep(ctx, kernel, t, b, e)
			return nil
		})
	})
	return g.Wait()
}

// CalcRegion implements the calc_region contract of spec.md §4.3 for a
// single inner time step t (the assert in the spec, "stop_rt ==
// start_rt+1", holds trivially here since a call only ever advances one
// time unit): it runs each group in G_i in order against its own
// BB-clipped window, shifting the window backward by -ctx.Angle after
// every group, and returns the shifted window for the caller to carry
// into the next inner time step.
func CalcRegion(ctx *stencil.StencilContext, groups []GroupBox, t stencil.Idx, winBegin, winEnd stencil.Dims) (stencil.Dims, stencil.Dims, error) {
	for _, grp := range groups {
		clipBegin := maxDims(winBegin, grp.BB.Begin)
		clipEnd := minDims(winEnd, grp.BB.End)
		if tile.NonEmpty(clipBegin, clipEnd) {
			if err := BlockSweep(ctx, grp.Kernel, t, clipBegin, clipEnd); err != nil {
				return winBegin, winEnd, err
			}
		}
		winBegin = winBegin.Sub(ctx.Angle)
		winEnd = winEnd.Sub(ctx.Angle)
	}
	return winBegin, winEnd, nil
}

func maxDims(a, b stencil.Dims) stencil.Dims {
	return stencil.Dims{N: maxIdx(a.N, b.N), X: maxIdx(a.X, b.X), Y: maxIdx(a.Y, b.Y), Z: maxIdx(a.Z, b.Z)}
}

func minDims(a, b stencil.Dims) stencil.Dims {
	return stencil.Dims{N: minIdx(a.N, b.N), X: minIdx(a.X, b.X), Y: minIdx(a.Y, b.Y), Z: minIdx(a.Z, b.Z)}
}

func maxIdx(a, b stencil.Idx) stencil.Idx {
	if a > b {
		return a
	}
	return b
}

func minIdx(a, b stencil.Idx) stencil.Idx {
	if a < b {
		return a
	}
	return b
}

// calcRegionOverTime drives one region tile through every inner time step
// of a super-step, carrying the wavefront-shifted window from one call to
// CalcRegion into the next.
func calcRegionOverTime(ctx *stencil.StencilContext, groups []GroupBox, startDT, stopDT stencil.Idx, startDD, stopDD stencil.Dims) error {
	winBegin, winEnd := startDD, stopDD
	for t := startDT; t < stopDT; t++ {
		var err error
		winBegin, winEnd, err = CalcRegion(ctx, groups, t, winBegin, winEnd)
		if err != nil {
			return err
		}
	}
	return nil
}

// regionSweep is the region level: it tiles the extended domain window
// [extBegin, extEnd) by ctx.Region and drives each tile through the full
// inner time range via calcRegionOverTime.
func regionSweep(ctx *stencil.StencilContext, groups []GroupBox, startDT, stopDT stencil.Idx, extBegin, extEnd stencil.Dims) error {
	n, x, y, z := tile.RangesFrom(extBegin, extEnd, ctx.Region)
	var err error
	tile.Each4D(n, x, y, z, func(b, e stencil.Dims) {
		if err != nil {
			return
		}
		err = calcRegionOverTime(ctx, groups, startDT, stopDT, b, e)
	})
	return err
}

// exchangeGridsFor posts and completes a halo exchange for every grid
// written by kernel, over the time window [startDT, stopDT).
func exchangeGridsFor(ctx *stencil.StencilContext, kernel stencil.EqGroupKernel, startDT, stopDT stencil.Idx) {
	for _, g := range kernel.EqGridPtrs() {
		halo.Exchange(ctx, g, startDT, stopDT)
	}
}

// Run is the time level and the whole driver's entry point: it steps
// begin_dt to end_dt by ctx.RegionT (rt), selecting the equation-group set
// per spec.md §4.3's rt==1 vs rt>1 branch, and running the region sweep
// over the wavefront-extended domain for each super-step.
func Run(ctx *stencil.StencilContext, groups []GroupBox, beginDT, endDT stencil.Idx) error {
	rt := ctx.RegionT
	if rt < 1 {
		rt = 1
	}

	kernels := make([]stencil.EqGroupKernel, len(groups))
	for i, g := range groups {
		kernels[i] = g.Kernel
	}

	for dt := beginDT; dt < endDT; dt += rt {
		stopDT := dt + rt
		if stopDT > endDT {
			stopDT = endDT
		}

		if rt == 1 {
			// G_i is a single group each iteration, so the skew budget
			// this super-step needs is |G_i|*rt-1 = 0: rt==1 with one
			// group in flight needs no extension.
			extEnd := wavefront.ExtendDomain(ctx.EndBB, ctx.Angle, wavefront.Shifts(1, rt))
			for _, grp := range groups {
				exchangeGridsFor(ctx, grp.Kernel, dt, stopDT)
				if err := regionSweep(ctx, []GroupBox{grp}, dt, stopDT, ctx.BeginBB, extEnd); err != nil {
					return err
				}
			}
			continue
		}

		extEnd := wavefront.ExtendDomain(ctx.EndBB, ctx.Angle, wavefront.Shifts(len(groups), rt))
		for _, k := range kernels {
			exchangeGridsFor(ctx, k, dt, stopDT)
		}
		if err := regionSweep(ctx, groups, dt, stopDT, ctx.BeginBB, extEnd); err != nil {
			return err
		}
	}
	return nil
}
