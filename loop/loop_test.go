package loop_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/stencilcore/bbox"
	"github.com/notargets/stencilcore/loop"
	"github.com/notargets/stencilcore/memgrid"
	"github.com/notargets/stencilcore/stencil"
)

// countingKernel records every (t, vector-index) pair CalcVector is
// called with, guarded by a mutex since BlockSweep may dispatch concurrent
// goroutines across blocks.
type countingKernel struct {
	mu     sync.Mutex
	visits map[stencil.Idx]map[stencil.Idx]int // t -> z -> count
	grids  []stencil.Grid
}

func newCountingKernel(grids ...stencil.Grid) *countingKernel {
	return &countingKernel{visits: map[stencil.Idx]map[stencil.Idx]int{}, grids: grids}
}

func (k *countingKernel) Name() string                { return "counting" }
func (k *countingKernel) ScalarFPOps() int             { return 0 }
func (k *countingKernel) ScalarPointsUpdated() int     { return 1 }
func (k *countingKernel) EqGridPtrs() []stencil.Grid   { return k.grids }
func (k *countingKernel) IsInValidDomain(*stencil.StencilContext, stencil.Idx, stencil.Dims) bool {
	return true
}
func (k *countingKernel) CalcScalar(ctx *stencil.StencilContext, t stencil.Idx, p stencil.Dims) {
	k.CalcVector(ctx, t, p)
}
func (k *countingKernel) CalcVector(_ *stencil.StencilContext, t stencil.Idx, pv stencil.Dims) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.visits[t] == nil {
		k.visits[t] = map[stencil.Idx]int{}
	}
	k.visits[t][pv.Z]++
}
func (k *countingKernel) PrefetchL1Vector(*stencil.StencilContext, int, stencil.Idx, stencil.Dims) {}
func (k *countingKernel) PrefetchL2Vector(*stencil.StencilContext, int, stencil.Idx, stencil.Dims) {}

func TestWavefrontCoverageEachTimeStepVisitsEveryBBPointExactlyOnce(t *testing.T) {
	// domain Z=6, region Z=3 (half the BB, so angle>0), halo=1, cpts=1,
	// rt=2: angle = ROUND_UP(1,1) = 1, nshifts = |G|*rt-1 = 1.
	ctx := stencil.NewStencilContext("wavefront")
	ctx.Constants.VLen = stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}
	ctx.Domain = stencil.Dims{N: 1, X: 1, Y: 1, Z: 6}
	ctx.Region = stencil.Dims{N: 1, X: 1, Y: 1, Z: 3}
	ctx.Block = ctx.Domain // single block per region tile
	ctx.Halo = stencil.Dims{N: 0, X: 0, Y: 0, Z: 1}
	ctx.Angle = stencil.Dims{N: 0, X: 0, Y: 0, Z: 1}
	ctx.RegionT = 2
	ctx.BeginBB = stencil.Dims{N: 0, X: 0, Y: 0, Z: 0}
	ctx.EndBB = ctx.Domain

	kernel := newCountingKernel()
	groups := []loop.GroupBox{{
		Kernel: kernel,
		BB:     bbox.Result{Begin: ctx.BeginBB, End: ctx.EndBB, Len: ctx.Domain},
	}}

	require.NoError(t, loop.Run(ctx, groups, 0, 2))

	for tStep := stencil.Idx(0); tStep < 2; tStep++ {
		row := kernel.visits[tStep]
		require.Len(t, row, 6, "time step %d visited %d distinct z points, want 6", tStep, len(row))
		for z := stencil.Idx(0); z < 6; z++ {
			assert.Equal(t, 1, row[z], "time %d z %d visited %d times, want exactly 1", tStep, z, row[z])
		}
	}
}

func TestRunWithUnitRegionMatchesNaiveFullDomainSweep(t *testing.T) {
	// region spans the whole BB, so angle is 0 and the hierarchical driver
	// degenerates to a plain per-time-step full-domain sweep — the
	// rt=1 shape of scenario S1.
	domain := stencil.Dims{N: 1, X: 1, Y: 1, Z: 8}
	pad := stencil.Dims{N: 0, X: 0, Y: 0, Z: 1}
	vlen := stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}

	newCtx := func() *stencil.StencilContext {
		ctx := stencil.NewStencilContext("s1")
		ctx.Constants.VLen = vlen
		ctx.Domain = domain
		ctx.Region = domain
		ctx.Block = domain
		ctx.Halo = pad
		ctx.Angle = stencil.Dims{}
		ctx.RegionT = 1
		ctx.BeginBB = stencil.Dims{}
		ctx.EndBB = domain
		return ctx
	}

	seed := func(g *memgrid.Grid) {
		for z := stencil.Idx(0); z < domain.Z; z++ {
			g.WriteElem(float64(z), 0, stencil.Dims{N: 0, X: 0, Y: 0, Z: z})
			g.WriteElem(float64(z), 1, stencil.Dims{N: 0, X: 0, Y: 0, Z: z})
		}
	}

	refCtx := newCtx()
	refGrid := memgrid.New("ref", domain, pad, vlen, 2)
	seed(refGrid)
	for tStep := stencil.Idx(0); tStep < 4; tStep++ {
		for z := stencil.Idx(0); z < domain.Z; z++ {
			p := stencil.Dims{N: 0, X: 0, Y: 0, Z: z}
			left := refGrid.ReadElem(tStep, stencil.Dims{N: 0, X: 0, Y: 0, Z: z - 1})
			right := refGrid.ReadElem(tStep, stencil.Dims{N: 0, X: 0, Y: 0, Z: z + 1})
			refGrid.WriteElem(0.5*(left+right), tStep+1, p)
		}
	}
	_ = refCtx

	optCtx := newCtx()
	optGrid := memgrid.New("opt", domain, pad, vlen, 2)
	seed(optGrid)
	kernel := &avgKernel{g: optGrid}
	groups := []loop.GroupBox{{
		Kernel: kernel,
		BB:     bbox.Result{Begin: optCtx.BeginBB, End: optCtx.EndBB, Len: domain},
	}}
	require.NoError(t, loop.Run(optCtx, groups, 0, 4))

	for z := stencil.Idx(0); z < domain.Z; z++ {
		p := stencil.Dims{N: 0, X: 0, Y: 0, Z: z}
		assert.InEpsilon(t, refGrid.ReadElem(4, p)+1, optGrid.ReadElem(4, p)+1, 1e-9, "z=%d", z)
	}
}

// avgKernel is a minimal 3-point averaging stencil along z, used to check
// the hierarchical driver against a hand-rolled reference sweep.
type avgKernel struct {
	g *memgrid.Grid
}

func (k *avgKernel) Name() string              { return "avg" }
func (k *avgKernel) ScalarFPOps() int          { return 2 }
func (k *avgKernel) ScalarPointsUpdated() int  { return 1 }
func (k *avgKernel) EqGridPtrs() []stencil.Grid { return []stencil.Grid{k.g} }
func (k *avgKernel) IsInValidDomain(*stencil.StencilContext, stencil.Idx, stencil.Dims) bool {
	return true
}
func (k *avgKernel) CalcScalar(ctx *stencil.StencilContext, t stencil.Idx, p stencil.Dims) {
	k.CalcVector(ctx, t, p)
}
func (k *avgKernel) CalcVector(_ *stencil.StencilContext, t stencil.Idx, pv stencil.Dims) {
	left := k.g.ReadElem(t, stencil.Dims{N: pv.N, X: pv.X, Y: pv.Y, Z: pv.Z - 1})
	right := k.g.ReadElem(t, stencil.Dims{N: pv.N, X: pv.X, Y: pv.Y, Z: pv.Z + 1})
	k.g.WriteElem(0.5*(left+right), t+1, pv)
}
func (k *avgKernel) PrefetchL1Vector(*stencil.StencilContext, int, stencil.Idx, stencil.Dims) {}
func (k *avgKernel) PrefetchL2Vector(*stencil.StencilContext, int, stencil.Idx, stencil.Dims) {}

func TestBlockSweepVisitsEveryPointExactlyOnceAcrossMultipleBlocks(t *testing.T) {
	ctx := stencil.NewStencilContext("blocks")
	ctx.Constants.VLen = stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}
	ctx.Block = stencil.Dims{N: 1, X: 1, Y: 1, Z: 2}

	kernel := newCountingKernel()
	require.NoError(t, loop.BlockSweep(ctx, kernel, 0, stencil.Dims{}, stencil.Dims{N: 1, X: 1, Y: 1, Z: 7}))

	row := kernel.visits[0]
	require.Len(t, row, 7)
	for z := stencil.Idx(0); z < 7; z++ {
		assert.Equal(t, 1, row[z])
	}
}

func TestCalcRegionShiftsWindowBackwardPerGroup(t *testing.T) {
	ctx := stencil.NewStencilContext("shift")
	ctx.Constants.VLen = stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}
	ctx.Block = stencil.Dims{N: 1, X: 1, Y: 1, Z: 10}
	ctx.Angle = stencil.Dims{N: 0, X: 0, Y: 0, Z: 2}

	kernel := newCountingKernel()
	groups := []loop.GroupBox{
		{Kernel: kernel, BB: bbox.Result{Begin: stencil.Dims{}, End: stencil.Dims{N: 1, X: 1, Y: 1, Z: 10}}},
		{Kernel: kernel, BB: bbox.Result{Begin: stencil.Dims{}, End: stencil.Dims{N: 1, X: 1, Y: 1, Z: 10}}},
	}

	winBegin, winEnd, err := loop.CalcRegion(ctx, groups, 0, stencil.Dims{N: 0, X: 0, Y: 0, Z: 4}, stencil.Dims{N: 1, X: 1, Y: 1, Z: 8})
	require.NoError(t, err)

	// two groups, each shifting by -angle (2): net shift of -4.
	assert.Equal(t, stencil.Idx(0), winBegin.Z)
	assert.Equal(t, stencil.Idx(4), winEnd.Z)
}
