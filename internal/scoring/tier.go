package scoring

// Tier はスコア帯から導出される表示用ラベル。
type Tier string

const (
	TierNone      Tier = ""
	TierRelevant  Tier = "Relevant"
	TierGood      Tier = "Good"
	TierGreat     Tier = "Great"
	TierExcellent Tier = "Excellent"
	TierPerfect   Tier = "Perfect"
)

// TierFor はスコアをTierに変換する。0以下はバッジなし（TierNone）。
func TierFor(score float64) Tier {
	switch {
	case score >= 90:
		return TierPerfect
	case score >= 75:
		return TierExcellent
	case score >= 60:
		return TierGreat
	case score >= 40:
		return TierGood
	case score > 0:
		return TierRelevant
	default:
		return TierNone
	}
}
