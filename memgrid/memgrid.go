// Package memgrid is the in-memory reference implementation of
// stencil.Grid: a single dense backing array per time slot, with the
// interior offset by a fixed pad/halo margin so that negative indices
// (ghost cells) address real storage. spec.md leaves Grid as opaque,
// externally-supplied storage; this package is what engine-level and
// halo-level tests exercise it through, aligned the way
// janpfeifer-go-highway aligns its lane buffers to VLEN boundaries.
package memgrid

import (
	"fmt"

	"github.com/notargets/stencilcore/stencil"
)

// Grid is a dense, padded, multi-time-level backing store for one named
// field. Reads/writes outside [-pad, interior+pad) panic, the same way a
// real out-of-bounds array access would.
type Grid struct {
	name string

	interior stencil.Dims // [0, interior) is the owned domain
	pad      stencil.Dims // halo/pad margin on every side
	vlen     stencil.Dims // vector length per dimension

	timeLevels stencil.Idx // ring buffer depth along t
	stride     stencil.Dims
	data       [][]float64 // one flat buffer per time level
}

// New allocates a Grid over the given interior size, symmetric pad margin,
// vector length, and number of time levels kept in the ring buffer (2 is
// the normal Jacobi-style double-buffer; CPTS_T is currently always 1 per
// spec.md so no grid needs more history than that).
func New(name string, interior, pad, vlen stencil.Dims, timeLevels stencil.Idx) *Grid {
	if timeLevels < 1 {
		timeLevels = 1
	}
	full := stencil.Dims{
		N: interior.N + 2*pad.N,
		X: interior.X + 2*pad.X,
		Y: interior.Y + 2*pad.Y,
		Z: interior.Z + 2*pad.Z,
	}
	g := &Grid{
		name:       name,
		interior:   interior,
		pad:        pad,
		vlen:       vlen,
		timeLevels: timeLevels,
		stride: stencil.Dims{
			N: full.X * full.Y * full.Z,
			X: full.Y * full.Z,
			Y: full.Z,
			Z: 1,
		},
		data: make([][]float64, timeLevels),
	}
	n := full.Volume()
	for i := range g.data {
		g.data[i] = make([]float64, n)
	}
	return g
}

func (g *Grid) Name() string { return g.name }

func (g *Grid) timeSlot(t stencil.Idx) int {
	m := t % g.timeLevels
	if m < 0 {
		m += g.timeLevels
	}
	return int(m)
}

func (g *Grid) flatIndex(p stencil.Dims) stencil.Idx {
	shifted := stencil.Dims{
		N: p.N + g.pad.N,
		X: p.X + g.pad.X,
		Y: p.Y + g.pad.Y,
		Z: p.Z + g.pad.Z,
	}
	full := g.interior.Add(g.pad).Add(g.pad)
	if shifted.N < 0 || shifted.N >= full.N || shifted.X < 0 || shifted.X >= full.X ||
		shifted.Y < 0 || shifted.Y >= full.Y || shifted.Z < 0 || shifted.Z >= full.Z {
		panic(fmt.Sprintf("memgrid: %q: index %+v is outside [-pad, interior+pad)", g.name, p))
	}
	return shifted.N*g.stride.N + shifted.X*g.stride.X + shifted.Y*g.stride.Y + shifted.Z*g.stride.Z
}

func (g *Grid) ReadElem(t stencil.Idx, p stencil.Dims) float64 {
	return g.data[g.timeSlot(t)][g.flatIndex(p)]
}

func (g *Grid) WriteElem(v float64, t stencil.Idx, p stencil.Dims) {
	g.data[g.timeSlot(t)][g.flatIndex(p)] = v
}

// ReadVecNorm returns the VLen-sized chunk of scalars anchored at vector
// index pv (i.e. element index pv*vlen), innermost dimension fastest.
func (g *Grid) ReadVecNorm(t stencil.Idx, pv stencil.Dims) stencil.Vec {
	base := pv.Mul(g.vlen)
	out := make(stencil.Vec, 0, g.vlen.Volume())
	for dn := stencil.Idx(0); dn < g.vlen.N; dn++ {
		for dx := stencil.Idx(0); dx < g.vlen.X; dx++ {
			for dy := stencil.Idx(0); dy < g.vlen.Y; dy++ {
				for dz := stencil.Idx(0); dz < g.vlen.Z; dz++ {
					p := stencil.Dims{N: base.N + dn, X: base.X + dx, Y: base.Y + dy, Z: base.Z + dz}
					out = append(out, g.ReadElem(t, p))
				}
			}
		}
	}
	return out
}

func (g *Grid) WriteVecNorm(v stencil.Vec, t stencil.Idx, pv stencil.Dims) {
	base := pv.Mul(g.vlen)
	i := 0
	for dn := stencil.Idx(0); dn < g.vlen.N; dn++ {
		for dx := stencil.Idx(0); dx < g.vlen.X; dx++ {
			for dy := stencil.Idx(0); dy < g.vlen.Y; dy++ {
				for dz := stencil.Idx(0); dz < g.vlen.Z; dz++ {
					p := stencil.Dims{N: base.N + dn, X: base.X + dx, Y: base.Y + dy, Z: base.Z + dz}
					g.WriteElem(v[i], t, p)
					i++
				}
			}
		}
	}
}

func (g *Grid) Pad() stencil.Dims { return g.pad }

func (g *Grid) NumBytes() stencil.Idx {
	if len(g.data) == 0 {
		return 0
	}
	return stencil.Idx(len(g.data[0])) * stencil.Idx(len(g.data)) * 8
}

// SeedAll is an stencil.InitFunc that fills every element at every time
// level of gr with seed; used by halo tests to stand up deterministic
// initial grids without a problem-specific initializer.
func SeedAll(gr stencil.Grid, seed float64) {
	g, ok := gr.(*Grid)
	if !ok {
		return
	}
	for level := range g.data {
		buf := g.data[level]
		for i := range buf {
			buf[i] = seed
		}
	}
}

var _ stencil.Grid = (*Grid)(nil)
