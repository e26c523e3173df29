package segments

import (
	"fmt"

	"clipforge/internal/services"
)

// Range is a raw (start, end) pair as submitted by a caller, in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a validated range with its playback position. Positions follow
// submission order, not temporal order, so callers can reorder or repeat
// source material freely.
type Segment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Position int     `json:"position"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// TotalDuration sums the durations of all segments.
func TotalDuration(planned []Segment) float64 {
	var total float64
	for _, seg := range planned {
		total += seg.Duration()
	}
	return total
}

// Plan validates raw ranges against the source duration and assigns dense
// 0-based positions in submission order. It returns nothing on failure so a
// rejected request never leaves partial state behind. Overlapping ranges are
// legal; an empty list, a negative start, a non-positive span, or a range
// past the end of the source are not.
func Plan(ranges []Range, sourceDuration float64) ([]Segment, error) {
	if sourceDuration <= 0 {
		return nil, services.Wrap(services.ErrInvalidSegment, "plan", "validate-source",
			fmt.Sprintf("source duration %.3fs is not positive", sourceDuration), nil)
	}
	if len(ranges) == 0 {
		return nil, services.Wrap(services.ErrInvalidSegment, "plan", "validate-list",
			"segment list is empty", nil)
	}

	planned := make([]Segment, 0, len(ranges))
	for i, r := range ranges {
		if err := validateRange(i, r, sourceDuration); err != nil {
			return nil, err
		}
		planned = append(planned, Segment{Start: r.Start, End: r.End, Position: i})
	}
	return planned, nil
}

func validateRange(index int, r Range, sourceDuration float64) error {
	switch {
	case r.Start < 0:
		return services.Wrap(services.ErrInvalidSegment, "plan", "validate-range",
			fmt.Sprintf("segment %d: start %.3fs is negative", index, r.Start), nil)
	case r.End <= r.Start:
		return services.Wrap(services.ErrInvalidSegment, "plan", "validate-range",
			fmt.Sprintf("segment %d: end %.3fs does not exceed start %.3fs", index, r.End, r.Start), nil)
	case r.End > sourceDuration:
		return services.Wrap(services.ErrInvalidSegment, "plan", "validate-range",
			fmt.Sprintf("segment %d: end %.3fs exceeds source duration %.3fs", index, r.End, sourceDuration), nil)
	default:
		return nil
	}
}
