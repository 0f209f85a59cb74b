package stencil

import (
	"io"
	"time"
)

// BufDir names one direction of an MPI-style halo buffer pair.
type BufDir int

const (
	BufSend BufDir = iota
	BufRecv
	NumBufDirs
)

// NeighborOffsets is the width of the {prev,self,next} neighbor-offset
// index used for my_neighbors and mpiBufs lookups: index 0 is "prev",
// 1 is "self", 2 is "next", matching the +1 bias spec.md describes.
const NeighborOffsets = 3

// NeighborTable is a rank's [3][3][3][3] table of neighbor rank ids, or -1
// where no rank occupies that offset (including, always, the exact center
// which is the rank itself and is never dialed).
type NeighborTable [NeighborOffsets][NeighborOffsets][NeighborOffsets][NeighborOffsets]int

// GridBufs holds the four-offset send/recv buffer pairs for one updated
// grid, one per neighbor direction. A nil entry means no neighbor exists
// there or the slab size is zero.
type GridBufs struct {
	Bufs [NumBufDirs][NeighborOffsets][NeighborOffsets][NeighborOffsets][NeighborOffsets]Grid
}

// Communicator is the transport abstraction consumed by the halo exchanger
// and the rank-topology setup. See package transport for implementations.
type Communicator interface {
	Rank() int
	Size() int
	Isend(buf []byte, dest int, tag int) Request
	Irecv(buf []byte, source int, tag int) Request
	Waitall(reqs []Request)
	Bcast(buf []byte, root int)
}

// Request is a handle to a posted non-blocking send or receive.
type Request interface {
	Wait()
}

// StencilContext is the process-wide owned state for one rank: sizes,
// bounding box, grid/parameter sets, rank topology, halo buffers, shadow
// grids, and the accounting fields spec.md §3 calls for.
type StencilContext struct {
	Name string

	Constants Constants

	// Sizes, in elements. Each is a Dims tuple, plus a scalar time
	// component held alongside where spec.md names one (dt, rt, bt).
	DomainT, RegionT, BlockT Idx
	Domain, Region, Block    Dims // rank/region/block spatial sizes
	Group                    Dims // outer group size used by the block-level sweep
	Halo                     Dims // spatial halo required by the stencil
	Pad                      Dims // spatial padding beyond the halo
	Angle                    Dims // temporal skew angles, one per spatial dim

	BeginDT Idx // first time step index owned by this rank

	// Bounding box, aggregated across equation groups.
	BeginBB, EndBB, LenBB Dims
	BBSize                Idx
	BBValid               bool

	GridPtrs   []Grid
	EqGridPtrs []Grid
	ParamPtrs  []Grid

	// Rank topology.
	NumRanks int
	MyRank   int
	Layout   Dims // (nrn,nrx,nry,nrz)
	Coord    Dims // (rin,rix,riy,riz), this rank's own coordinate
	Neighbors NeighborTable

	// Halo buffers and shadow grids, keyed by grid identity per spec.md's
	// "cyclic grid <-> buffer ownership" note: grids never back-point to
	// their buffers or shadows, only StencilContext's tables do.
	MPIBufs     map[Grid]*GridBufs
	ShadowGrids map[Grid]Grid

	ShadowOutFreq, ShadowInFreq Idx

	Out  io.Writer
	Comm Communicator

	ShadowTime, MPITime time.Duration
}

// NewStencilContext returns a StencilContext with its maps initialized and
// Neighbors defaulted to -1 (no neighbor) everywhere.
func NewStencilContext(name string) *StencilContext {
	ctx := &StencilContext{
		Name:        name,
		MPIBufs:     make(map[Grid]*GridBufs),
		ShadowGrids: make(map[Grid]Grid),
		NumRanks:    1,
	}
	for a := 0; a < NeighborOffsets; a++ {
		for b := 0; b < NeighborOffsets; b++ {
			for c := 0; c < NeighborOffsets; c++ {
				for d := 0; d < NeighborOffsets; d++ {
					ctx.Neighbors[a][b][c][d] = -1
				}
			}
		}
	}
	return ctx
}
