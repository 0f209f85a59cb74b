// Package topology computes a rank's position in the 4-D Cartesian rank
// mesh, discovers its neighbors, and sizes the per-neighbor halo buffers,
// per spec.md §4.5. The coordinate layout and neighbor-distance tests are
// adapted from gocfd's utils.PartitionMap (1-D index partitioning) and
// utils.MailBox (goroutine post/deliver/receive), generalized here to a
// 4-D rank mesh and a byte-buffer MPI-style exchange.
package topology

import (
	"github.com/samber/lo"

	"github.com/notargets/stencilcore/stencil"
)

// Layout4321 is the row-major rank layout spec.md names: n outermost, z
// innermost, over a (nrn,nrx,nry,nrz) mesh shape.
type Layout4321 struct {
	Shape stencil.Dims
}

// Unlayout converts a linear rank id into its 4-D coordinate.
func (l Layout4321) Unlayout(rank int) stencil.Dims {
	r := stencil.Idx(rank)
	nz, ny, nx := l.Shape.Z, l.Shape.Y, l.Shape.X
	z := r % nz
	r /= nz
	y := r % ny
	r /= ny
	x := r % nx
	r /= nx
	n := r
	return stencil.Dims{N: n, X: x, Y: y, Z: z}
}

// Layout converts a 4-D coordinate back into its linear rank id, the
// inverse of Unlayout; used by tests and by any caller that computes a
// target rank from a coordinate rather than the reverse.
func (l Layout4321) Layout(coord stencil.Dims) int {
	id := coord.N
	id = id*l.Shape.X + coord.X
	id = id*l.Shape.Y + coord.Y
	id = id*l.Shape.Z + coord.Z
	return int(id)
}

// ExchangeCoordinates has every rank broadcast its own coordinate (one
// broadcast per rank, root == that rank's id) and returns the resulting
// global coordinate table indexed by rank.
func ExchangeCoordinates(comm stencil.Communicator, myCoord stencil.Dims) []stencil.Dims {
	n := comm.Size()
	table := make([]stencil.Dims, n)
	table[comm.Rank()] = myCoord
	for rn := 0; rn < n; rn++ {
		buf := encodeDims(table[rn])
		comm.Bcast(buf, rn)
		if rn != comm.Rank() {
			table[rn] = decodeDims(buf)
		}
	}
	return table
}

func encodeDims(d stencil.Dims) []byte {
	buf := make([]byte, 32)
	putIdx(buf[0:8], d.N)
	putIdx(buf[8:16], d.X)
	putIdx(buf[16:24], d.Y)
	putIdx(buf[24:32], d.Z)
	return buf
}

func decodeDims(buf []byte) stencil.Dims {
	return stencil.Dims{
		N: getIdx(buf[0:8]),
		X: getIdx(buf[8:16]),
		Y: getIdx(buf[16:24]),
		Z: getIdx(buf[24:32]),
	}
}

func putIdx(b []byte, v stencil.Idx) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getIdx(b []byte) stencil.Idx {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return stencil.Idx(u)
}

// Neighbor describes one discovered neighbor rank: its coordinate delta
// (each component in {-1,0,1}), its rank id, and the buffer extents each
// dimension needs (interior size on a zero delta, halo size otherwise).
type Neighbor struct {
	Delta  stencil.Dims // -1/0/+1 per dimension
	Rank   int
	Extent stencil.Dims // rsd = (Δd==0) ? dd : hd
}

// FindNeighbors enumerates every rank in coords (indexed by rank id) and
// returns those that qualify as a neighbor of self: Manhattan distance in
// {1..maxExchDist} (0 means self, and self must be the *only* rank at
// distance 0 — any other rank reporting 0 is a fatal internal error per
// spec.md §4.5), and Chebyshev distance <= 1 in every dimension.
func FindNeighbors(ctx *stencil.StencilContext, coords []stencil.Dims, myRank int, maxExchDist stencil.Idx, domain, halo stencil.Dims) []Neighbor {
	self := coords[myRank]

	type candidate struct {
		rank  int
		delta stencil.Dims
		mdist stencil.Idx
	}
	candidates := lo.FilterMap(coords, func(c stencil.Dims, rn int) (candidate, bool) {
		delta := c.Sub(self)
		mdist := manhattan(delta)

		if rn == myRank {
			if mdist != 0 {
				ctx.Fatalf("internal error: distance to own rank == %d", mdist)
			}
			return candidate{}, false
		}
		if mdist == 0 {
			ctx.Fatalf("error: distance to rank %d == %d", rn, mdist)
		}
		if abs(delta.N) > 1 || abs(delta.X) > 1 || abs(delta.Y) > 1 || abs(delta.Z) > 1 {
			return candidate{}, false
		}
		if mdist > maxExchDist {
			return candidate{}, false
		}
		return candidate{rank: rn, delta: delta, mdist: mdist}, true
	})

	return lo.FilterMap(candidates, func(c candidate, _ int) (Neighbor, bool) {
		extent := stencil.Dims{
			N: extentFor(c.delta.N, domain.N, halo.N),
			X: extentFor(c.delta.X, domain.X, halo.X),
			Y: extentFor(c.delta.Y, domain.Y, halo.Y),
			Z: extentFor(c.delta.Z, domain.Z, halo.Z),
		}
		if extent.Volume() == 0 {
			return Neighbor{}, false
		}
		return Neighbor{Delta: c.delta, Rank: c.rank, Extent: extent}, true
	})
}

func extentFor(delta, d, h stencil.Idx) stencil.Idx {
	if delta == 0 {
		return d
	}
	return h
}

func manhattan(d stencil.Dims) stencil.Idx {
	return abs(d.N) + abs(d.X) + abs(d.Y) + abs(d.Z)
}

func abs(v stencil.Idx) stencil.Idx {
	if v < 0 {
		return -v
	}
	return v
}

// OffsetIndex converts a -1/0/+1 delta to the 0/1/2 index used by
// StencilContext.Neighbors and MPIBufs ([prev,self,next] with a +1 bias).
func OffsetIndex(delta stencil.Idx) int {
	return int(delta + 1)
}

// PopulateNeighborTable writes each neighbor's rank into ctx.Neighbors at
// its bias-corrected offset index.
func PopulateNeighborTable(ctx *stencil.StencilContext, neighbors []Neighbor) {
	for _, nb := range neighbors {
		a, b, c, d := OffsetIndex(nb.Delta.N), OffsetIndex(nb.Delta.X), OffsetIndex(nb.Delta.Y), OffsetIndex(nb.Delta.Z)
		ctx.Neighbors[a][b][c][d] = nb.Rank
	}
}
