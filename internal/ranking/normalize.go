package ranking

// Clamp bounds value to [min, max]. An inverted range (min > max) returns min.
func Clamp(value, min, max float64) float64 {
	if min > max {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Rescale maps value linearly from [min, max] to [0, 1].
// A degenerate range (max == min) carries no signal and returns 0.
// Values outside [min, max] are not clamped.
func Rescale(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}
