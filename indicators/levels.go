package indicators

import (
	"math"
	"sort"

	"github.com/rustyeddy/scantrade/market"
)

const maxLevels = 5

// Levels are pivot prices: Resistance descending, Support ascending.
type Levels struct {
	Resistance []float64
	Support    []float64
}

// SupportResistance finds bars whose high (low) is the highest (lowest) of
// the window ending at that bar. Bars inside the first and last window are
// not considered. Up to five distinct levels are kept on each side.
func SupportResistance(s market.Series, window int) Levels {
	var lv Levels
	if window < 1 || len(s) < 2*window {
		return lv
	}
	highs, lows := s.Highs(), s.Lows()

	res := map[float64]struct{}{}
	sup := map[float64]struct{}{}
	for i := window; i < len(s)-window; i++ {
		hi, lo := highs[i], lows[i]
		isHigh, isLow := true, true
		for j := i - window + 1; j <= i; j++ {
			if highs[j] > hi {
				isHigh = false
			}
			if lows[j] < lo {
				isLow = false
			}
		}
		if isHigh {
			res[hi] = struct{}{}
		}
		if isLow {
			sup[lo] = struct{}{}
		}
	}

	for p := range res {
		lv.Resistance = append(lv.Resistance, p)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(lv.Resistance)))
	if len(lv.Resistance) > maxLevels {
		lv.Resistance = lv.Resistance[:maxLevels]
	}

	for p := range sup {
		lv.Support = append(lv.Support, p)
	}
	sort.Float64s(lv.Support)
	if len(lv.Support) > maxLevels {
		lv.Support = lv.Support[:maxLevels]
	}
	return lv
}

// Profile is a volume-by-price summary: point of control and value area.
type Profile struct {
	POC float64
	VAH float64
	VAL float64
}

// VolumeProfile buckets each bar's volume by its close into bins equal
// slices of the series range, then grows the value area from the heaviest
// bins until it holds valueArea of the total volume. It reports false when
// the series is empty, flat or has no volume.
func VolumeProfile(s market.Series, bins int, valueArea float64) (Profile, bool) {
	if len(s) == 0 || bins < 1 {
		return Profile{}, false
	}
	low, high := s.Range()
	size := (high - low) / float64(bins)
	if size <= 0 {
		return Profile{}, false
	}

	vols := make([]float64, bins)
	total := 0.0
	for _, c := range s {
		b := int((c.Close - low) / size)
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		vols[b] += c.Volume
		total += c.Volume
	}
	if total <= 0 {
		return Profile{}, false
	}

	order := make([]int, bins)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return vols[order[i]] > vols[order[j]] })

	target := total * valueArea
	acc := 0.0
	minBin, maxBin := math.MaxInt, -1
	for _, b := range order {
		acc += vols[b]
		minBin = min(minBin, b)
		maxBin = max(maxBin, b)
		if acc >= target {
			break
		}
	}

	return Profile{
		POC: low + float64(order[0])*size,
		VAH: low + float64(maxBin)*size,
		VAL: low + float64(minBin)*size,
	}, true
}
