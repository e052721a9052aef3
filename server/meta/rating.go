package meta

// Score changes per reported result.
const (
	winScore      = 24
	lossScore     = -12
	towerScore    = 2
	winGems       = 30
	lossGems      = 10
	towerGems     = 5
	startingGems  = 50
	historyLength = 10
)

// scoreDelta rewards the win and each enemy structure destroyed.
func scoreDelta(placement, towers int) int {
	if placement == 1 {
		return winScore + towerScore*towers
	}
	return lossScore
}

func gemsFor(placement, towers int) int64 {
	base := int64(lossGems)
	if placement == 1 {
		base = winGems
	}
	return base + int64(towerGems*towers)
}

func applyScore(score, delta int) int {
	score += delta
	if score < 0 {
		score = 0
	}
	if score > 9999 {
		score = 9999
	}
	return score
}

func rankName(score int) string {
	switch {
	case score >= 3200:
		return "Fleet Admiral"
	case score >= 2500:
		return "Admiral"
	case score >= 1900:
		return "Commodore"
	case score >= 1400:
		return "Captain"
	case score >= 1000:
		return "Commander"
	case score >= 700:
		return "Lieutenant"
	case score >= 450:
		return "Mate"
	case score >= 250:
		return "Bosun"
	case score >= 100:
		return "Sailor"
	default:
		return "Deckhand"
	}
}
