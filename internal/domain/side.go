package domain

import "fmt"

// Side identifies one of the two sides of a match-outcome market. Side A is
// always the tracked participant's team; side B is the opposing team. Provider
// team identifiers are mapped onto A/B at the provider boundary and never leak
// into the core.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// ParseSide validates a wire-level side value.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideA, SideB:
		return Side(s), nil
	default:
		return "", fmt.Errorf("%w: side %q", ErrValidation, s)
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Valid reports whether s is one of the two canonical sides.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}
