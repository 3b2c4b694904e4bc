package spin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelroom/api/internal/wheelroom"
)

func segs(weights ...float64) []wheelroom.Segment {
	out := make([]wheelroom.Segment, len(weights))
	for i, w := range weights {
		out[i] = wheelroom.Segment{ID: string(rune('a' + i)), Text: string(rune('A' + i)), Weight: w, Order: i}
	}
	return out
}

func TestResolveIsDeterministic(t *testing.T) {
	segments := segs(1, 3, 0.5, 7)

	for seed := int64(-50); seed < 200; seed++ {
		a, err := Resolve(seed, segments)
		require.NoError(t, err)
		b, err := Resolve(seed, segments)
		require.NoError(t, err)
		assert.Equal(t, a, b, "seed %d", seed)
	}
}

func TestResolveRotationLandsOnWinner(t *testing.T) {
	segments := segs(1, 1, 1, 1, 1, 1, 1)

	for seed := int64(0); seed < 500; seed++ {
		out, err := Resolve(seed, segments)
		require.NoError(t, err)

		turns := out.Rotation / 360
		assert.GreaterOrEqual(t, turns, 5)
		assert.LessOrEqual(t, turns, 7)

		offset := out.Rotation % 360
		want := int(float64(out.WinnerIndex)*360/7 + 0.5)
		assert.Equal(t, want, offset)
		assert.Equal(t, segments[out.WinnerIndex], out.Winner)
	}
}

func TestResolveUniformWeightsApproximateUniform(t *testing.T) {
	segments := segs(1, 1, 1, 1)
	const n = 20000

	counts := make([]int, len(segments))
	for seed := int64(1); seed <= n; seed++ {
		out, err := Resolve(seed, segments)
		require.NoError(t, err)
		counts[out.WinnerIndex]++
	}

	for i, c := range counts {
		share := float64(c) / n
		assert.InDelta(t, 0.25, share, 0.03, "segment %d", i)
	}
}

func TestResolveRespectsWeights(t *testing.T) {
	segments := segs(1, 3)
	const n = 20000

	var heavy int
	for seed := int64(1); seed <= n; seed++ {
		out, err := Resolve(seed, segments)
		require.NoError(t, err)
		if out.WinnerIndex == 1 {
			heavy++
		}
	}
	assert.InDelta(t, 0.75, float64(heavy)/n, 0.03)
}

func TestResolveSingleSegmentAlwaysWins(t *testing.T) {
	segments := segs(2)
	for seed := int64(0); seed < 20; seed++ {
		out, err := Resolve(seed, segments)
		require.NoError(t, err)
		assert.Equal(t, 0, out.WinnerIndex)
		assert.Equal(t, 0, out.Rotation%360)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		segments []wheelroom.Segment
	}{
		{"empty", nil},
		{"zero weight", segs(1, 0)},
		{"negative weight", segs(-1, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(42, tt.segments)
			require.Error(t, err)
			assert.True(t, errors.Is(err, wheelroom.ErrValidation))
		})
	}
}
