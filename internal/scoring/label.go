package scoring

// Label names the quality band of a total score.
func Label(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 70:
		return "Ready"
	case score >= 50:
		return "Needs Work"
	case score >= 30:
		return "Draft"
	default:
		return "Incomplete"
	}
}

// Color maps a total score to a display color. The top two label bands share
// green.
func Color(score int) string {
	switch {
	case score >= 70:
		return "green"
	case score >= 50:
		return "yellow"
	case score >= 30:
		return "orange"
	default:
		return "red"
	}
}
