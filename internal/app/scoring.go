package app

// Scoring constants. Every correct answer is worth basePoints; answering
// faster earns a linear share of speedBonus on top, so the awarded range is
// [600, 1000]. Incorrect answers always score zero.
const (
	basePoints = 600
	speedBonus = 400
)

// scoreAnswer returns the points for a correct answer submitted
// elapsedSeconds into a question with the given time limit. The speed ratio
// is clamped to [0, 1]: instant answers take the full bonus, answers at or
// past the limit take the base alone.
func scoreAnswer(elapsedSeconds, limitSeconds float64) int {
	if limitSeconds <= 0 {
		return basePoints
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	ratio := (limitSeconds - elapsedSeconds) / limitSeconds
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return basePoints + int(ratio*speedBonus)
}
