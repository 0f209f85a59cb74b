// Package bbox implements the bounding-box finder: for each equation
// group, the minimum enclosing rectangle of points where the group's
// domain predicate holds, and the componentwise union of those boxes
// across groups into the rank-wide bounding box.
package bbox

import (
	"runtime"
	"sync"

	"github.com/samber/lo"

	"github.com/notargets/stencilcore/stencil"
)

// Result is one equation group's discovered bounding box.
type Result struct {
	Begin, End, Len stencil.Dims
	Size            stencil.Idx
}

// partial is one worker's local min/max/count accumulator over its shard
// of the n-axis.
type partial struct {
	minN, minX, minY, minZ stencil.Idx
	maxN, maxX, maxY, maxZ stencil.Idx
	count                  stencil.Idx
	found                  bool
}

// Find scans every point (n,x,y,z) in [0,domain) at t=0, keeps those for
// which kernel.IsInValidDomain holds, and returns the enclosing rectangle
// plus point count. The scan is sharded across GOMAXPROCS workers along
// the outermost (n) axis, mirroring the reduction the original performs
// with an OpenMP `collapse(4)` + min/max/+ reduction clause.
func Find(ctx *stencil.StencilContext, kernel stencil.EqGroupKernel, domain stencil.Dims) Result {
	nWorkers := runtime.GOMAXPROCS(0)
	if int64(nWorkers) > domain.N && domain.N > 0 {
		nWorkers = int(domain.N)
	}
	if nWorkers < 1 {
		nWorkers = 1
	}

	shards := make([][2]stencil.Idx, nWorkers)
	base := domain.N / stencil.Idx(nWorkers)
	rem := domain.N % stencil.Idx(nWorkers)
	start := stencil.Idx(0)
	for i := 0; i < nWorkers; i++ {
		sz := base
		if stencil.Idx(i) < rem {
			sz++
		}
		shards[i] = [2]stencil.Idx{start, start + sz}
		start += sz
	}

	partials := make([]partial, nWorkers)
	var wg sync.WaitGroup
	for i, shard := range shards {
		wg.Add(1)
		go func(i int, shard [2]stencil.Idx) {
			defer wg.Done()
			partials[i] = scanShard(ctx, kernel, domain, shard[0], shard[1])
		}(i, shard)
	}
	wg.Wait()

	found := lo.Filter(partials, func(p partial, _ int) bool { return p.found })
	if len(found) == 0 {
		return Result{}
	}
	merged := lo.Reduce(found[1:], mergePartial, found[0])

	r := Result{
		Begin: stencil.Dims{N: merged.minN, X: merged.minX, Y: merged.minY, Z: merged.minZ},
		End:   stencil.Dims{N: merged.maxN + 1, X: merged.maxX + 1, Y: merged.maxY + 1, Z: merged.maxZ + 1},
		Size:  merged.count,
	}
	r.Len = r.End.Sub(r.Begin)
	return r
}

func scanShard(ctx *stencil.StencilContext, kernel stencil.EqGroupKernel, domain stencil.Dims, nBegin, nEnd stencil.Idx) partial {
	p := partial{
		minN: domain.N, minX: domain.X, minY: domain.Y, minZ: domain.Z,
		maxN: -1, maxX: -1, maxY: -1, maxZ: -1,
	}
	const t = stencil.Idx(0)
	for n := nBegin; n < nEnd; n++ {
		for x := stencil.Idx(0); x < domain.X; x++ {
			for y := stencil.Idx(0); y < domain.Y; y++ {
				for z := stencil.Idx(0); z < domain.Z; z++ {
					if !kernel.IsInValidDomain(ctx, t, stencil.Dims{N: n, X: x, Y: y, Z: z}) {
						continue
					}
					p.found = true
					p.count++
					if n < p.minN {
						p.minN = n
					}
					if n > p.maxN {
						p.maxN = n
					}
					if x < p.minX {
						p.minX = x
					}
					if x > p.maxX {
						p.maxX = x
					}
					if y < p.minY {
						p.minY = y
					}
					if y > p.maxY {
						p.maxY = y
					}
					if z < p.minZ {
						p.minZ = z
					}
					if z > p.maxZ {
						p.maxZ = z
					}
				}
			}
		}
	}
	return p
}

func mergePartial(acc, p partial, _ int) partial {
	if !p.found {
		return acc
	}
	if !acc.found {
		return p
	}
	acc.count += p.count
	if p.minN < acc.minN {
		acc.minN = p.minN
	}
	if p.maxN > acc.maxN {
		acc.maxN = p.maxN
	}
	if p.minX < acc.minX {
		acc.minX = p.minX
	}
	if p.maxX > acc.maxX {
		acc.maxX = p.maxX
	}
	if p.minY < acc.minY {
		acc.minY = p.minY
	}
	if p.maxY > acc.maxY {
		acc.maxY = p.maxY
	}
	if p.minZ < acc.minZ {
		acc.minZ = p.minZ
	}
	if p.maxZ > acc.maxZ {
		acc.maxZ = p.maxZ
	}
	return acc
}

// Validate checks the two invariants spec.md requires of every equation
// group's bounding box: it must be a solid rectangle (size equals the
// product of side lengths) and every side length must be a multiple of
// the cluster size in that dimension. On violation it calls ctx.Fatalf
// with a message naming the group, matching scenarios S4 and S5.
func Validate(ctx *stencil.StencilContext, kernel stencil.EqGroupKernel, r Result, cpts stencil.Dims) {
	rectSize := r.Len.Volume()
	if rectSize != r.Size {
		ctx.Fatalf("domain for equation-group %q contains %d points, but %d were expected for a rectangular solid; non-rectangular domains are not supported",
			kernel.Name(), r.Size, rectSize)
		return
	}
	if r.Len.N%cpts.N != 0 || r.Len.X%cpts.X != 0 || r.Len.Y%cpts.Y != 0 || r.Len.Z%cpts.Z != 0 {
		ctx.Fatalf("domain for equation-group %q has lengths %v that are not multiples of the cluster size %v",
			kernel.Name(), r.Len, cpts)
	}
}

// Union returns the componentwise min/max union of a slice of per-group
// bounding boxes, plus the sum of their sizes, matching the way spec.md
// says the rank-wide BB is the axis-aligned union of group BBs.
func Union(results []Result) Result {
	if len(results) == 0 {
		return Result{}
	}
	u := results[0]
	for _, r := range results[1:] {
		if r.Begin.N < u.Begin.N {
			u.Begin.N = r.Begin.N
		}
		if r.Begin.X < u.Begin.X {
			u.Begin.X = r.Begin.X
		}
		if r.Begin.Y < u.Begin.Y {
			u.Begin.Y = r.Begin.Y
		}
		if r.Begin.Z < u.Begin.Z {
			u.Begin.Z = r.Begin.Z
		}
		if r.End.N > u.End.N {
			u.End.N = r.End.N
		}
		if r.End.X > u.End.X {
			u.End.X = r.End.X
		}
		if r.End.Y > u.End.Y {
			u.End.Y = r.End.Y
		}
		if r.End.Z > u.End.Z {
			u.End.Z = r.End.Z
		}
		u.Size += r.Size
	}
	u.Len = u.End.Sub(u.Begin)
	return u
}
