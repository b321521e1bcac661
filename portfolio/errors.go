package portfolio

import (
	"errors"
	"fmt"
)

// ErrNoPosition is returned when closing a symbol with no open position.
var ErrNoPosition = errors.New("no open position")

// Rejection codes returned by CanOpen and Open.
const (
	CodePositionExists   = "POSITION_EXISTS"
	CodePositionSize     = "POSITION_SIZE"
	CodeExposure         = "EXPOSURE"
	CodeInsufficientCash = "INSUFFICIENT_CASH"
	CodeInvalidOrder     = "INVALID_ORDER"
)

// Rejection explains why the ledger refused an entry.
type Rejection struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Msg)
}

func reject(code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a *Rejection if it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
