package spin

import (
	"math"
	"math/rand/v2"

	"github.com/wheelroom/api/internal/wheelroom"
)

const (
	minRotations   = 5
	extraRotations = 3 // extra full turns drawn from {0,1,2}
)

// Outcome is the resolved winner of a spin and the final wheel angle that
// lands on it.
type Outcome struct {
	Winner      wheelroom.Segment
	WinnerIndex int
	Rotation    int
}

// Resolve picks a winner from segments by weight using seed. It is pure: the
// same seed and segments always produce the same Outcome, so any recorded
// spin can be replayed.
func Resolve(seed int64, segments []wheelroom.Segment) (Outcome, error) {
	if len(segments) == 0 {
		return Outcome{}, wheelroom.Validationf("wheel has no segments")
	}

	var total float64
	for _, s := range segments {
		if !(s.Weight > 0) || math.IsInf(s.Weight, 0) {
			return Outcome{}, wheelroom.Validationf("segment %q has non-positive weight", s.Text)
		}
		total += s.Weight
	}

	remaining := draw(seed) * total
	winner := len(segments) - 1
	for i, s := range segments {
		remaining -= s.Weight
		if remaining <= 0 {
			winner = i
			break
		}
	}

	extra := int(draw(seed+1) * extraRotations)
	offset := int(math.Round(float64(winner) * 360 / float64(len(segments))))

	return Outcome{
		Winner:      segments[winner],
		WinnerIndex: winner,
		Rotation:    (minRotations+extra)*360 + offset,
	}, nil
}

// draw maps seed to a float in [0,1). PCG output is fixed by its seed and
// does not change between Go releases.
func draw(seed int64) float64 {
	return rand.New(rand.NewPCG(uint64(seed), pcgStream)).Float64()
}

const pcgStream = 0x9e3779b97f4a7c15
