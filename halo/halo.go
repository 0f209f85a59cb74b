// Package halo implements the per-grid halo exchanger, spec.md §4.4: shadow
// out, pack, post, wait, unpack, shadow in. Buffer allocation and transport
// are generalized from gocfd's utils.MailBox (per-target send/receive
// buffers addressed by a flat index) to the 4-D {prev,self,next}⁴ neighbor
// offset table the rank topology in package topology computes.
package halo

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/notargets/stencilcore/stencil"
	"github.com/notargets/stencilcore/tile"
	"github.com/notargets/stencilcore/topology"
)

// NewGridFunc allocates a fresh, zeroed Grid of the given element extent,
// named for diagnostics. Callers supply the concrete Grid constructor
// (package memgrid's, in production) so this package never depends on one
// storage layout.
type NewGridFunc func(name string, extent stencil.Dims) stencil.Grid

// AllocBufs allocates one send and one recv buffer Grid per neighbor of g,
// sized by each neighbor's Extent (interior size on the self axes, halo
// width on the prev/next axis), and installs them into ctx.MPIBufs[g].
// Offsets with no neighbor keep a nil buffer in both directions.
func AllocBufs(ctx *stencil.StencilContext, g stencil.Grid, neighbors []topology.Neighbor, newGrid NewGridFunc) {
	gb := &stencil.GridBufs{}
	for _, nb := range neighbors {
		a, b, c, d := topology.OffsetIndex(nb.Delta.N), topology.OffsetIndex(nb.Delta.X), topology.OffsetIndex(nb.Delta.Y), topology.OffsetIndex(nb.Delta.Z)
		gb.Bufs[stencil.BufSend][a][b][c][d] = newGrid(g.Name()+".send", nb.Extent)
		gb.Bufs[stencil.BufRecv][a][b][c][d] = newGrid(g.Name()+".recv", nb.Extent)
	}
	ctx.MPIBufs[g] = gb
}

// haloWidth is the conservative intersection of the stencil-required halo
// and the grid's own allocated pad, per spec.md §4.4.
func haloWidth(ctx *stencil.StencilContext, g stencil.Grid) stencil.Dims {
	p := g.Pad()
	return stencil.Dims{
		N: minIdx(ctx.Halo.N, p.N),
		X: minIdx(ctx.Halo.X, p.X),
		Y: minIdx(ctx.Halo.Y, p.Y),
		Z: minIdx(ctx.Halo.Z, p.Z),
	}
}

func minIdx(a, b stencil.Idx) stencil.Idx {
	if a < b {
		return a
	}
	return b
}

// readWindow returns the [begin,end) element window to pack for a given
// per-dimension delta (-1, 0, +1), domain size d, and halo width h.
func readWindow(delta, d, h stencil.Idx) (begin, end stencil.Idx) {
	switch {
	case delta < 0:
		return 0, h
	case delta > 0:
		return d - h, d
	default:
		return 0, d
	}
}

// writeWindow returns the [begin,end) element window to unpack into for a
// given per-dimension delta, domain size d, and halo width h.
func writeWindow(delta, d, h stencil.Idx) (begin, end stencil.Idx) {
	switch {
	case delta < 0:
		return -h, 0
	case delta > 0:
		return d, d + h
	default:
		return 0, d
	}
}

func windowDims(delta stencil.Dims, domain, halo stencil.Dims, win func(delta, d, h stencil.Idx) (stencil.Idx, stencil.Idx)) (begin, end stencil.Dims) {
	bn, en := win(delta.N, domain.N, halo.N)
	bx, ex := win(delta.X, domain.X, halo.X)
	by, ey := win(delta.Y, domain.Y, halo.Y)
	bz, ez := win(delta.Z, domain.Z, halo.Z)
	return stencil.Dims{N: bn, X: bx, Y: by, Z: bz}, stencil.Dims{N: en, X: ex, Y: ey, Z: ez}
}

func floorDivIdx(v, m stencil.Idx) stencil.Idx {
	q := v / m
	if v%m != 0 && (v < 0) != (m < 0) {
		q--
	}
	return q
}

func floorDiv(d, vlen stencil.Dims) stencil.Dims {
	return stencil.Dims{
		N: floorDivIdx(d.N, vlen.N),
		X: floorDivIdx(d.X, vlen.X),
		Y: floorDivIdx(d.Y, vlen.Y),
		Z: floorDivIdx(d.Z, vlen.Z),
	}
}

// packInto runs the halo-pack tile loop (inner-z stride 4, other strides 1)
// over the vector-index window [beginV,endV) of src, writing sequential
// zero-based vector indices into dst.
func packInto(src, dst stencil.Grid, t stencil.Idx, beginV, endV stencil.Dims) {
	n, x, y, z := tile.RangesFrom(beginV, endV, stencil.Dims{N: 1, X: 1, Y: 1, Z: 4})
	tile.Each4D(n, x, y, z, func(b, e stencil.Dims) {
		for pn := b.N; pn < e.N; pn++ {
			for px := b.X; px < e.X; px++ {
				for py := b.Y; py < e.Y; py++ {
					for pz := b.Z; pz < e.Z; pz++ {
						srcPt := stencil.Dims{N: pn, X: px, Y: py, Z: pz}
						dstPt := srcPt.Sub(beginV)
						dst.WriteVecNorm(src.ReadVecNorm(t, srcPt), t, dstPt)
					}
				}
			}
		}
	})
}

// unpackFrom is packInto's mirror: it reads zero-based vector indices out of
// src and scatters them into dst's absolute window [beginV,endV).
func unpackFrom(src, dst stencil.Grid, t stencil.Idx, beginV, endV stencil.Dims) {
	extentV := endV.Sub(beginV)
	n, x, y, z := tile.RangesFrom(stencil.Dims{}, extentV, stencil.Dims{N: 1, X: 1, Y: 1, Z: 4})
	tile.Each4D(n, x, y, z, func(b, e stencil.Dims) {
		for pn := b.N; pn < e.N; pn++ {
			for px := b.X; px < e.X; px++ {
				for py := b.Y; py < e.Y; py++ {
					for pz := b.Z; pz < e.Z; pz++ {
						srcPt := stencil.Dims{N: pn, X: px, Y: py, Z: pz}
						dstPt := srcPt.Add(beginV)
						dst.WriteVecNorm(src.ReadVecNorm(t, srcPt), t, dstPt)
					}
				}
			}
		}
	})
}

// gridTag derives a stable wire tag for the given grid among ctx.GridPtrs,
// matching the original's "tag == grid_index" convention. Unknown grids
// (not present in GridPtrs) tag as -1, which is a caller error.
func gridTag(ctx *stencil.StencilContext, g stencil.Grid) int {
	for i, gp := range ctx.GridPtrs {
		if gp == g {
			return i
		}
	}
	return -1
}

// serialize flattens every vector chunk of buf over its full vector-index
// extent into a wire-format byte slice.
func serialize(buf stencil.Grid, t stencil.Idx, extentV stencil.Dims, lanes int) []byte {
	out := make([]byte, 0, extentV.Volume()*stencil.Idx(lanes)*8)
	for pn := stencil.Idx(0); pn < extentV.N; pn++ {
		for px := stencil.Idx(0); px < extentV.X; px++ {
			for py := stencil.Idx(0); py < extentV.Y; py++ {
				for pz := stencil.Idx(0); pz < extentV.Z; pz++ {
					v := buf.ReadVecNorm(t, stencil.Dims{N: pn, X: px, Y: py, Z: pz})
					for _, f := range v {
						var b8 [8]byte
						binary.LittleEndian.PutUint64(b8[:], math.Float64bits(f))
						out = append(out, b8[:]...)
					}
				}
			}
		}
	}
	return out
}

// deserialize is serialize's inverse: it reconstructs buf's vector chunks
// from a wire-format byte slice received over the transport.
func deserialize(data []byte, buf stencil.Grid, t stencil.Idx, extentV stencil.Dims, lanes int) {
	off := 0
	for pn := stencil.Idx(0); pn < extentV.N; pn++ {
		for px := stencil.Idx(0); px < extentV.X; px++ {
			for py := stencil.Idx(0); py < extentV.Y; py++ {
				for pz := stencil.Idx(0); pz < extentV.Z; pz++ {
					v := make(stencil.Vec, lanes)
					for i := range v {
						u := binary.LittleEndian.Uint64(data[off : off+8])
						v[i] = math.Float64frombits(u)
						off += 8
					}
					buf.WriteVecNorm(v, t, stencil.Dims{N: pn, X: px, Y: py, Z: pz})
				}
			}
		}
	}
}

// Exchange runs the full shadow-out/pack/post/wait/unpack/shadow-in
// sequence for grid g over the time window [startDT, stopDT). Per the
// known limitation documented in spec.md §4.4, the pack and unpack phases
// address the grid at t = startDT regardless of stopDT; correcting this
// under active wavefronting is an open question, not resolved here.
func Exchange(ctx *stencil.StencilContext, g stencil.Grid, startDT, stopDT stencil.Idx) {
	t := startDT

	shadowOut(ctx, g, startDT)

	gb := ctx.MPIBufs[g]
	if gb == nil {
		shadowIn(ctx, g, startDT)
		return
	}

	started := time.Now()
	halo := haloWidth(ctx, g)
	vlen := ctx.Constants.VLen
	lanes := int(vlen.Volume())
	tag := gridTag(ctx, g)

	type inflight struct {
		req       stencil.Request
		recvGrid  stencil.Grid
		recvBytes []byte
		extentV   stencil.Dims
	}
	var sendReqs []stencil.Request
	var recvs []inflight

	for a := 0; a < stencil.NeighborOffsets; a++ {
		for b := 0; b < stencil.NeighborOffsets; b++ {
			for c := 0; c < stencil.NeighborOffsets; c++ {
				for d := 0; d < stencil.NeighborOffsets; d++ {
					delta := stencil.Dims{N: stencil.Idx(a - 1), X: stencil.Idx(b - 1), Y: stencil.Idx(c - 1), Z: stencil.Idx(d - 1)}
					rank := ctx.Neighbors[a][b][c][d]

					if sendBuf := gb.Bufs[stencil.BufSend][a][b][c][d]; sendBuf != nil {
						begin, end := windowDims(delta, ctx.Domain, halo, readWindow)
						beginV, endV := floorDiv(begin, vlen), floorDiv(end, vlen)
						packInto(g, sendBuf, t, beginV, endV)
						payload := serialize(sendBuf, t, endV.Sub(beginV), lanes)
						sendReqs = append(sendReqs, ctx.Comm.Isend(payload, rank, tag))
					}

					if recvBuf := gb.Bufs[stencil.BufRecv][a][b][c][d]; recvBuf != nil {
						begin, end := windowDims(delta, ctx.Domain, halo, writeWindow)
						beginV, endV := floorDiv(begin, vlen), floorDiv(end, vlen)
						extentV := endV.Sub(beginV)
						buf := make([]byte, extentV.Volume()*stencil.Idx(lanes)*8)
						req := ctx.Comm.Irecv(buf, rank, tag)
						recvs = append(recvs, inflight{req: req, recvGrid: recvBuf, recvBytes: buf, extentV: extentV})
					}
				}
			}
		}
	}

	allReqs := make([]stencil.Request, 0, len(sendReqs)+len(recvs))
	allReqs = append(allReqs, sendReqs...)
	for _, r := range recvs {
		allReqs = append(allReqs, r.req)
	}
	ctx.Comm.Waitall(allReqs)

	for _, r := range recvs {
		deserialize(r.recvBytes, r.recvGrid, t, r.extentV, lanes)
	}

	for a := 0; a < stencil.NeighborOffsets; a++ {
		for b := 0; b < stencil.NeighborOffsets; b++ {
			for c := 0; c < stencil.NeighborOffsets; c++ {
				for d := 0; d < stencil.NeighborOffsets; d++ {
					recvBuf := gb.Bufs[stencil.BufRecv][a][b][c][d]
					if recvBuf == nil {
						continue
					}
					delta := stencil.Dims{N: stencil.Idx(a - 1), X: stencil.Idx(b - 1), Y: stencil.Idx(c - 1), Z: stencil.Idx(d - 1)}
					begin, end := windowDims(delta, ctx.Domain, halo, writeWindow)
					beginV, endV := floorDiv(begin, vlen), floorDiv(end, vlen)
					unpackFrom(recvBuf, g, t, beginV, endV)
				}
			}
		}
	}

	ctx.MPITime += time.Since(started)

	shadowIn(ctx, g, startDT)
}

func shadowOut(ctx *stencil.StencilContext, g stencil.Grid, startDT stencil.Idx) {
	if ctx.ShadowOutFreq <= 0 {
		return
	}
	if mod(startDT-ctx.BeginDT, ctx.ShadowOutFreq) != 0 {
		return
	}
	shadow := ctx.ShadowGrids[g]
	if shadow == nil {
		return
	}
	started := time.Now()
	copyInterior(g, shadow, startDT, ctx.Domain, ctx.Constants.VLen)
	ctx.ShadowTime += time.Since(started)
}

func shadowIn(ctx *stencil.StencilContext, g stencil.Grid, startDT stencil.Idx) {
	if ctx.ShadowInFreq <= 0 {
		return
	}
	if mod(startDT-ctx.BeginDT, ctx.ShadowInFreq) != 0 {
		return
	}
	shadow := ctx.ShadowGrids[g]
	if shadow == nil {
		return
	}
	started := time.Now()
	copyInterior(shadow, g, startDT, ctx.Domain, ctx.Constants.VLen)
	ctx.ShadowTime += time.Since(started)
}

func copyInterior(src, dst stencil.Grid, t stencil.Idx, domain, vlen stencil.Dims) {
	extentV := floorDiv(domain, vlen)
	unpackFrom(src, dst, t, stencil.Dims{}, extentV)
}

func mod(v, m stencil.Idx) stencil.Idx {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
