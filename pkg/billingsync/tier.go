package billingsync

// Tier bracket thresholds in the smallest currency unit (cents).
const (
	tierPlusMaxAmount = 2999
	tierProMaxAmount  = 5999
)

// TierForAmount maps a price's unit amount to a tier by ascending threshold.
// Amounts above the highest bracket map to TierNone, matching the billing
// configuration this pipeline was built against.
// TODO: add a bracket before introducing prices above 59.99.
func TierForAmount(unitAmount int64) Tier {
	switch {
	case unitAmount <= tierPlusMaxAmount:
		return TierPlus
	case unitAmount <= tierProMaxAmount:
		return TierPro
	default:
		return TierNone
	}
}

// tierRank orders tiers for gating decisions: none < plus < pro.
func tierRank(t Tier) int {
	switch t {
	case TierPlus:
		return 1
	case TierPro:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether t meets or exceeds the required tier.
func (t Tier) AtLeast(required Tier) bool {
	return tierRank(t) >= tierRank(required)
}
