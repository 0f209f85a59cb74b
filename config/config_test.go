package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/stencilcore/config"
)

const sampleYAML = `
Title: "S1"
VLenN: 1
VLenX: 1
VLenY: 1
VLenZ: 1
CLenN: 1
CLenX: 1
CLenY: 1
CLenZ: 1
CPtsT: 1
GridAlignment: 64
MaxExchDist: 1
Epsilon: 0.000001
DomainN: 1
DomainX: 16
DomainY: 16
DomainZ: 16
RegionN: 1
RegionX: 16
RegionY: 16
RegionZ: 16
BlockN: 1
BlockX: 8
BlockY: 8
BlockZ: 8
HaloN: 0
HaloX: 1
HaloY: 1
HaloZ: 1
RegionT: 1
LayoutN: 1
LayoutX: 1
LayoutY: 1
LayoutZ: 1
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stencil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoadParsesYAMLIntoParameters(t *testing.T) {
	path := writeSample(t)

	p, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "S1", p.Title)
	assert.Equal(t, int64(16), p.DomainX)
	assert.Equal(t, int64(1), p.HaloX)
	assert.Equal(t, int64(1), p.RegionT)
	assert.InDelta(t, 1e-6, p.Epsilon, 1e-12)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestToContextCopiesSizesAndConstants(t *testing.T) {
	path := writeSample(t)
	p, err := config.Load(path)
	require.NoError(t, err)

	ctx := p.ToContext("s1")

	assert.Equal(t, int64(16), ctx.Domain.X)
	assert.Equal(t, int64(1), ctx.Halo.X)
	assert.Equal(t, int64(1), ctx.Constants.CPtsT)
	assert.InDelta(t, 1e-6, ctx.Constants.Epsilon, 1e-12)
	assert.Equal(t, int64(1), ctx.Layout.N)
}

func TestResolvePathExpandsHomeDirectoryPrefix(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err := config.ResolvePath("~/stencil/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "stencil", "config.yaml"), resolved)
}

func TestResolvePathLeavesAbsolutePathUnchanged(t *testing.T) {
	resolved, err := config.ResolvePath("/etc/stencil/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/stencil/config.yaml", resolved)
}
