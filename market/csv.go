package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{"time", "open", "high", "low", "close", "volume"}

// WriteCSV writes s with a header row. Times are RFC3339 in UTC.
func WriteCSV(w io.Writer, s Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range s {
		rec := []string{
			c.Time.UTC().Format(time.RFC3339),
			ff(c.Open), ff(c.High), ff(c.Low), ff(c.Close), ff(c.Volume),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ff(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }

// ReadCSV parses the WriteCSV format. The header row is optional; rows
// must be in time order.
func ReadCSV(r io.Reader) (Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.ReuseRecord = true

	var out Series
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if line == 1 && rec[0] == csvHeader[0] {
			continue
		}

		c, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if n := len(out); n > 0 && !c.Time.After(out[n-1].Time) {
			return nil, fmt.Errorf("csv line %d: time %s is not after %s", line, c.Time.Format(time.RFC3339), out[n-1].Time.Format(time.RFC3339))
		}
		out = append(out, c)
	}
}

func parseRecord(rec []string) (Candle, error) {
	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return Candle{}, fmt.Errorf("time: %w", err)
	}
	var v [5]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(rec[i+1], 64); err != nil {
			return Candle{}, fmt.Errorf("%s: %w", csvHeader[i+1], err)
		}
	}
	return Candle{Time: ts.UTC(), Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}, nil
}
