package vehicle

// GapDistance returns the bumper-to-bumper distance from ego to leader in
// metres. A negative value means the two vehicles overlap.
func GapDistance(ego, leader State) float64 {
	return leader.Position - ego.Position - leader.Length
}

// RelativeSpeed returns how much faster ego is moving than leader (m/s).
func RelativeSpeed(ego, leader State) float64 {
	return ego.Speed - leader.Speed
}

// SameLane reports whether the two vehicles share a lane.
func SameLane(a, b State) bool { return a.Lane == b.Lane }
