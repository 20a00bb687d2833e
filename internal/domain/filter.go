package domain

// FilterByMagnitude keeps events at or above floor, preserving order. It is
// the client-side magnitude filter and never touches the network.
func FilterByMagnitude(quakes []Earthquake, floor float64) []Earthquake {
	out := make([]Earthquake, 0, len(quakes))
	for _, q := range quakes {
		if q.Magnitude >= floor {
			out = append(out, q)
		}
	}
	return out
}

// HighestMagnitude returns the largest magnitude in quakes, or 0 when empty.
func HighestMagnitude(quakes []Earthquake) float64 {
	var highest float64
	for i, q := range quakes {
		if i == 0 || q.Magnitude > highest {
			highest = q.Magnitude
		}
	}
	return highest
}
