package risk

import (
	"strings"

	"github.com/rustyeddy/scantrade/portfolio"
)

// CodeHealthTooLow rejects entries while the health score is below the
// policy's MinEntryScore.
const CodeHealthTooLow = "HEALTH_TOO_LOW"

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins the violation messages, or returns "OK".
func (d Decision) Reason() string {
	if len(d.Violations) == 0 {
		return "OK"
	}
	msgs := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		msgs[i] = v.Code + ": " + v.Msg
	}
	return strings.Join(msgs, "; ")
}

// fromLedger folds a ledger capacity error into d.
func (d *Decision) fromLedger(err error) {
	if err == nil {
		return
	}
	if rej, ok := portfolio.AsRejection(err); ok {
		d.add(rej.Code, rej.Msg)
		return
	}
	d.add(portfolio.CodeInvalidOrder, err.Error())
}
