package risk

// Inputs describe an entry to be sized.
type Inputs struct {
	Equity     float64 // portfolio value
	CapitalPct float64 // share of Equity to commit, in percent
	Price      float64
}

type Result struct {
	Quantity float64
	Value    float64
}

// Size converts a capital share into a fractional share quantity.
// A non-positive price sizes to zero.
func Size(in Inputs) Result {
	if in.Price <= 0 || in.Equity <= 0 || in.CapitalPct <= 0 {
		return Result{}
	}
	value := in.Equity * in.CapitalPct / 100
	return Result{Quantity: value / in.Price, Value: value}
}
