package halo_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/stencilcore/halo"
	"github.com/notargets/stencilcore/memgrid"
	"github.com/notargets/stencilcore/stencil"
	"github.com/notargets/stencilcore/topology"
	"github.com/notargets/stencilcore/transport"
)

func newGrid(name string, extent stencil.Dims) stencil.Grid {
	return memgrid.New(name, extent, stencil.Dims{}, stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}, 1)
}

// TestExchangeFillsNeighborGhostCells runs the S3-style two-rank scenario:
// two ranks laid out along x, each owning an 8-wide interior with a halo
// of 1 in x. After one Exchange, each rank's far ghost cell should hold
// its neighbor's boundary value.
func TestExchangeFillsNeighborGhostCells(t *testing.T) {
	domain := stencil.Dims{N: 1, X: 8, Y: 1, Z: 1}
	h := stencil.Dims{N: 0, X: 1, Y: 0, Z: 0}
	vlen := stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}
	coords := []stencil.Dims{
		{N: 0, X: 0, Y: 0, Z: 0},
		{N: 0, X: 1, Y: 0, Z: 0},
	}

	grids := make([]*memgrid.Grid, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)

	transport.RunRanks(2, func(rank int, comm stencil.Communicator) {
		defer wg.Done()

		ctx := stencil.NewStencilContext("t")
		ctx.Constants.VLen = vlen
		ctx.Domain = domain
		ctx.Halo = h
		ctx.Comm = comm
		ctx.MyRank = rank
		ctx.NumRanks = 2
		ctx.BeginDT = 0

		g := memgrid.New("u", domain, h, vlen, 2)
		seed := 100.0
		if rank == 1 {
			seed = 200.0
		}
		memgrid.SeedAll(g, seed)
		ctx.GridPtrs = []stencil.Grid{g}

		neighbors := topology.FindNeighbors(ctx, coords, rank, 4, domain, h)
		topology.PopulateNeighborTable(ctx, neighbors)
		halo.AllocBufs(ctx, g, neighbors, newGrid)

		halo.Exchange(ctx, g, 0, 1)

		mu.Lock()
		grids[rank] = g
		mu.Unlock()
	})
	wg.Wait()

	require.NotNil(t, grids[0])
	require.NotNil(t, grids[1])

	// rank 0's interior is untouched.
	assert.Equal(t, 100.0, grids[0].ReadElem(0, stencil.Dims{N: 0, X: 0, Y: 0, Z: 0}))
	// rank 0's far ghost cell (x == domain.X) now holds rank 1's boundary value.
	assert.Equal(t, 200.0, grids[0].ReadElem(0, stencil.Dims{N: 0, X: 8, Y: 0, Z: 0}))
	// rank 1's near ghost cell (x == -1) now holds rank 0's boundary value.
	assert.Equal(t, 100.0, grids[1].ReadElem(0, stencil.Dims{N: 0, X: -1, Y: 0, Z: 0}))
}

func TestExchangeWithNoBuffersIsANoop(t *testing.T) {
	ctx := stencil.NewStencilContext("solo")
	ctx.Constants.VLen = stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}
	ctx.Domain = stencil.Dims{N: 1, X: 4, Y: 1, Z: 1}
	ctx.Comm = transport.NewWorld(1).Rank(0)

	g := memgrid.New("u", ctx.Domain, stencil.Dims{}, ctx.Constants.VLen, 1)
	memgrid.SeedAll(g, 42)
	ctx.GridPtrs = []stencil.Grid{g}

	assert.NotPanics(t, func() {
		halo.Exchange(ctx, g, 0, 1)
	})
	assert.Equal(t, 42.0, g.ReadElem(0, stencil.Dims{N: 0, X: 0, Y: 0, Z: 0}))
}
