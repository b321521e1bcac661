package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scantrade/market"
)

// ADX is Wilder's average directional index.
//
// The first n candle-to-candle steps seed the smoothed true range and
// directional movement; the ADX itself is seeded with the mean of the
// first n DX values, so 2n candles pass before it is Ready.
type ADX struct {
	n int

	prev    market.Candle
	hasPrev bool
	steps   int

	sumTR, sumPlus, sumMinus float64
	tr, plusDM, minusDM      float64
	plusDI, minusDI, lastDX  float64

	dxSum   float64
	dxCount int
	adx     float64
	ready   bool
}

func NewADX(n int) *ADX {
	if n < 1 {
		n = 1
	}
	return &ADX{n: n}
}

func (a *ADX) Name() string     { return fmt.Sprintf("ADX(%d)", a.n) }
func (a *ADX) Warmup() int      { return 2 * a.n }
func (a *ADX) Ready() bool      { return a.ready }
func (a *ADX) Float64() float64 { return a.adx }
func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }

func (a *ADX) Reset() {
	*a = ADX{n: a.n}
}

func (a *ADX) Update(c market.Candle) {
	if !a.hasPrev {
		a.prev, a.hasPrev = c, true
		return
	}

	tr := trueRange(c, a.prev)
	up := c.High - a.prev.High
	down := a.prev.Low - c.Low
	a.prev = c

	var pdm, mdm float64
	if up > down && up > 0 {
		pdm = up
	}
	if down > up && down > 0 {
		mdm = down
	}

	a.steps++
	nf := float64(a.n)

	if a.steps <= a.n {
		a.sumTR += tr
		a.sumPlus += pdm
		a.sumMinus += mdm
		if a.steps < a.n {
			return
		}
		a.tr, a.plusDM, a.minusDM = a.sumTR, a.sumPlus, a.sumMinus
	} else {
		a.tr = a.tr - a.tr/nf + tr
		a.plusDM = a.plusDM - a.plusDM/nf + pdm
		a.minusDM = a.minusDM - a.minusDM/nf + mdm
	}

	a.plusDI, a.minusDI = directional(a.plusDM, a.minusDM, a.tr)
	a.lastDX = dxOf(a.plusDI, a.minusDI)

	if a.ready {
		a.adx = (a.adx*(nf-1) + a.lastDX) / nf
		return
	}
	a.dxSum += a.lastDX
	a.dxCount++
	if a.dxCount >= a.n {
		a.adx = a.dxSum / nf
		a.ready = true
	}
}

func directional(plusDM, minusDM, tr float64) (float64, float64) {
	if tr <= 0 {
		return 0, 0
	}
	return 100 * plusDM / tr, 100 * minusDM / tr
}

func dxOf(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}

func ADXSeries(s market.Series, n int) []float64 {
	return run(NewADX(n), s)
}
