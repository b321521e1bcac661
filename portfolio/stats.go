package portfolio

import "math"

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		std += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(std / float64(len(xs)))
}

// sharpe uses the population standard deviation of per-trade returns.
func sharpe(rets []float64, rf float64) float64 {
	if len(rets) < 2 {
		return 0
	}
	mean, std := meanStd(rets)
	if std == 0 {
		return 0
	}
	return (mean - rf) / std
}

// sortino divides by the deviation of the losing returns only. With no
// losses at all it is +Inf.
func sortino(rets []float64, rf float64) float64 {
	if len(rets) < 2 {
		return 0
	}
	mean, _ := meanStd(rets)
	var down []float64
	for _, r := range rets {
		if r < 0 {
			down = append(down, r)
		}
	}
	if len(down) == 0 {
		return math.Inf(1)
	}
	_, dstd := meanStd(down)
	if dstd == 0 {
		return 0
	}
	return (mean - rf) / dstd
}

func winRate(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.Win() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}
