package shipping

import "github.com/shopspring/decimal"

var (
	scoreCostCeiling = decimal.NewFromInt(100)
	scoreDaysCeiling = 20
)

// Score rates a quote: cheaper, faster, tracked and insured is better.
func Score(q Quote) decimal.Decimal {
	score := decimal.Max(decimal.Zero, scoreCostCeiling.Sub(q.Cost))
	if days := scoreDaysCeiling - q.EstimatedDays; days > 0 {
		score = score.Add(decimal.NewFromInt(int64(days * 2)))
	}
	if q.TrackingAvailable {
		score = score.Add(decimal.NewFromInt(10))
	}
	if q.InsuranceIncluded {
		score = score.Add(decimal.NewFromInt(5))
	}
	return score
}

// Recommend returns the highest scoring quote; the earliest wins ties. It
// returns false for an empty slice.
func Recommend(quotes []Quote) (Quote, bool) {
	switch len(quotes) {
	case 0:
		return Quote{}, false
	case 1:
		return quotes[0], true
	}
	best := quotes[0]
	bestScore := Score(best)
	for _, q := range quotes[1:] {
		if sc := Score(q); sc.GreaterThan(bestScore) {
			best, bestScore = q, sc
		}
	}
	return best, true
}
