package diag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopSamplerTracksWallTime(t *testing.T) {
	s := NewNoopSampler()
	fakeNow := time.Unix(0, 0)
	timeNow = func() time.Time { return fakeNow }
	defer func() { timeNow = time.Now }()

	require.NoError(t, s.Start())
	fakeNow = fakeNow.Add(5 * time.Second)

	sample, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, sample.Wall)
	assert.Nil(t, sample.Counters)
}
