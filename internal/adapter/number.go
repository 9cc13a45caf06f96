package adapter

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a JSON value read leniently as a float. Pools report counters as
// numbers or numeric strings; anything else leaves the Number invalid rather
// than failing the surrounding decode.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = Number{Value: v, Valid: true}
		}
	default:
		if v, err := strconv.ParseFloat(string(data), 64); err == nil {
			*n = Number{Value: v, Valid: true}
		}
	}
	return nil
}

// Float returns the value, or NaN when the field was missing or malformed.
func (n Number) Float() float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Value
}

// OrZero returns the value, or 0 when the field was missing or malformed.
func (n Number) OrZero() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// Uint truncates the value toward zero; missing, negative or non-finite values yield 0.
func (n Number) Uint() uint64 {
	if !n.Valid || n.Value <= 0 || math.IsInf(n.Value, 0) || math.IsNaN(n.Value) {
		return 0
	}
	return uint64(n.Value)
}

// firstValid returns the first valid Number.
func firstValid(values ...Number) Number {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return Number{}
}

// donationTotal is a forknote config.donation value: either an object of
// address to percentage or a bare percentage. It sums to 0 when unusable.
type donationTotal float64

func (d *donationTotal) UnmarshalJSON(data []byte) error {
	*d = 0
	var single Number
	if err := single.UnmarshalJSON(data); err == nil && single.Valid {
		*d = donationTotal(single.Value)
		return nil
	}

	var set map[string]Number
	if err := json.Unmarshal(data, &set); err != nil {
		return nil
	}
	var total float64
	for _, v := range set {
		total += v.OrZero()
	}
	*d = donationTotal(total)
	return nil
}

// millisToSeconds converts a millisecond unix timestamp to seconds.
func millisToSeconds(ms float64) float64 {
	return math.Trunc(ms / 1000)
}

// unixSeconds accepts a unix timestamp in seconds or milliseconds.
func unixSeconds(ts float64) float64 {
	if ts > 1e11 {
		return millisToSeconds(ts)
	}
	return ts
}
