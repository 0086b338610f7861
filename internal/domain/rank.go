package domain

// TopScorerRank is awarded to everyone holding the highest positive score.
const TopScorerRank = "Master Sushi Chef"

// RankFor names the tier for a score/streak pair. topScore is the highest score on the ledger.
func RankFor(score, streak, topScore int) string {
	if topScore > 0 && score == topScore {
		return TopScorerRank
	}
	switch {
	case streak >= 30:
		return "Wasabi Warlord"
	case streak >= 20:
		return "Rollmaster Ronin"
	case streak >= 10:
		return "Nigiri Ninja"
	case streak >= 5:
		return "Tempura Titan"
	case streak >= 3:
		return "Streak Samurai"
	}
	switch {
	case score <= 5:
		return "Sushi Newbie"
	case score <= 15:
		return "Maki Novice"
	case score <= 25:
		return "Sashimi Skilled"
	case score <= 50:
		return "Brainy Botan"
	default:
		return "Sushi Einstein"
	}
}
