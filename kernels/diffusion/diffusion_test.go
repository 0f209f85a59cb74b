package diffusion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/stencilcore/kernels/diffusion"
	"github.com/notargets/stencilcore/memgrid"
	"github.com/notargets/stencilcore/stencil"
)

func TestIsInValidDomainExcludesOuterShell(t *testing.T) {
	domain := stencil.Dims{N: 1, X: 4, Y: 4, Z: 4}
	g := memgrid.New("u", domain, stencil.Dims{}, stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}, 2)
	k := diffusion.New(g, domain)

	assert.False(t, k.IsInValidDomain(nil, 0, stencil.Dims{N: 0, X: 0, Y: 1, Z: 1}))
	assert.False(t, k.IsInValidDomain(nil, 0, stencil.Dims{N: 0, X: 3, Y: 1, Z: 1}))
	assert.True(t, k.IsInValidDomain(nil, 0, stencil.Dims{N: 0, X: 1, Y: 1, Z: 1}))
	assert.True(t, k.IsInValidDomain(nil, 0, stencil.Dims{N: 0, X: 2, Y: 2, Z: 2}))
}

func TestCalcScalarAveragesSixNeighbors(t *testing.T) {
	domain := stencil.Dims{N: 1, X: 3, Y: 3, Z: 3}
	g := memgrid.New("u", domain, stencil.Dims{}, stencil.Dims{N: 1, X: 1, Y: 1, Z: 1}, 2)
	for x := stencil.Idx(0); x < 3; x++ {
		for y := stencil.Idx(0); y < 3; y++ {
			for z := stencil.Idx(0); z < 3; z++ {
				g.WriteElem(1.0, 0, stencil.Dims{N: 0, X: x, Y: y, Z: z})
			}
		}
	}
	k := diffusion.New(g, domain)
	center := stencil.Dims{N: 0, X: 1, Y: 1, Z: 1}
	k.CalcScalar(nil, 0, center)

	assert.InDelta(t, 1.0, g.ReadElem(1, center), 1e-12)
}
