package trace

import (
	"cmp"
	"slices"

	"github.com/san-kum/spherique/internal/physics"
)

// ColorSource samples a colour at integer world coordinates. ok is false when
// the point is outside the source.
type ColorSource interface {
	Sample(x, y int) (c physics.Color, ok bool)
}

// Recolor returns a copy of records where record i takes the colour found at
// the final position of the i-th particle by creation order. A nil source, a
// missing particle or a failed sample keeps the original colour.
func Recolor(records []Record, finals []physics.Particle, src ColorSource) []Record {
	out := slices.Clone(records)
	if src == nil {
		return out
	}

	ordered := slices.Clone(finals)
	slices.SortStableFunc(ordered, func(a, b physics.Particle) int {
		return cmp.Compare(a.Step, b.Step)
	})

	for i := range out {
		if i >= len(ordered) {
			break
		}
		p := &ordered[i]
		if !p.IsValid() {
			continue
		}
		if c, ok := src.Sample(int(p.Pos.X), int(p.Pos.Y)); ok {
			out[i].Color = c
		}
	}
	return out
}
