package domain

// MagnitudeScale is one band of the dashboard magnitude legend.
type MagnitudeScale struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Effects     string  `json:"effects"`
	Frequency   string  `json:"frequency"`
}

// scales is ordered from the strongest band down.
var scales = []MagnitudeScale{
	{Min: 8.0, Max: 10, Label: "8.0+", Description: "Great", Effects: "Severe damage, felt worldwide", Frequency: "Once per year"},
	{Min: 7.0, Max: 7.9, Label: "7.0-7.9", Description: "Major", Effects: "Serious damage over large areas", Frequency: "10-15 per year"},
	{Min: 6.0, Max: 6.9, Label: "6.0-6.9", Description: "Strong", Effects: "Damage to buildings and structures", Frequency: "100-150 per year"},
	{Min: 5.0, Max: 5.9, Label: "5.0-5.9", Description: "Moderate", Effects: "Felt widely, minor damage", Frequency: "1,000-1,500 per year"},
	{Min: 4.0, Max: 4.9, Label: "4.0-4.9", Description: "Light", Effects: "Felt by many, no damage", Frequency: "10,000-15,000 per year"},
	{Min: 3.0, Max: 3.9, Label: "3.0-3.9", Description: "Minor", Effects: "Felt by some people", Frequency: "100,000+ per year"},
	{Min: 0, Max: 2.9, Label: "0.0-2.9", Description: "Micro", Effects: "Usually not felt", Frequency: "Millions per year"},
}

// Scales returns the legend, strongest band first.
func Scales() []MagnitudeScale {
	out := make([]MagnitudeScale, len(scales))
	copy(out, scales)
	return out
}

// ScaleFor returns the band whose lower bound is the largest not exceeding
// mag, so values such as 7.95 land in Major rather than falling between bands.
// Anything below zero is Micro.
func ScaleFor(mag float64) MagnitudeScale {
	for _, s := range scales {
		if mag >= s.Min {
			return s
		}
	}
	return scales[len(scales)-1]
}
