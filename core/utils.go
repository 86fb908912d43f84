package core

// AddCost adds two distances, saturating at inf.
func AddCost(a, b, inf int) int {
	if a >= inf || b >= inf {
		return inf
	}
	return min(inf, a+b)
}

// Reachable reports whether d is a real distance.
func Reachable(d, inf int) bool {
	return d < inf
}
