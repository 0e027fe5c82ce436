/*
fixcodec — FIX protocol codec
Copyright (C) 2025 Steve Clarke <stephenlclarke@mac.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.

In accordance with section 13 of the AGPL, if you modify this program,
your modified version must prominently offer all users interacting with it
remotely through a computer network an opportunity to receive the source
code of your version.
*/
package fix

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// SyntaxError reports a value that does not match the grammar of its kind.
type SyntaxError struct {
	Kind  Kind
	Value string
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("fix: invalid %s %q: %s (want %s)", e.Kind, e.Value, e.Msg, e.Kind.Grammar())
	}
	return fmt.Sprintf("fix: invalid %s %q (want %s)", e.Kind, e.Value, e.Kind.Grammar())
}

// Grammar is the lexical form the value was expected to have.
func (e *SyntaxError) Grammar() string { return e.Kind.Grammar() }

func syntaxErr(k Kind, raw []byte, msg string) error {
	return &SyntaxError{Kind: k, Value: string(raw), Msg: msg}
}

// Parse decodes raw according to the grammar of k. Data values are copied.
func Parse(k Kind, raw []byte) (Value, error) {
	if len(raw) == 0 && k != KindData {
		return Value{}, syntaxErr(k, raw, "empty value")
	}

	switch k {
	case KindInt:
		n, err := parseInt(raw)
		if err != nil {
			return Value{}, err
		}
		return Int(n), nil
	case KindDecimal:
		d, err := parseDecimal(raw)
		if err != nil {
			return Value{}, err
		}
		return DecimalValue(d), nil
	case KindString:
		if bytes.IndexByte(raw, SOH) >= 0 {
			return Value{}, syntaxErr(k, raw, "contains SOH")
		}
		return String(string(raw)), nil
	case KindChar:
		if len(raw) != 1 || raw[0] == SOH {
			return Value{}, syntaxErr(k, raw, "")
		}
		return Char(raw[0]), nil
	case KindBool:
		if len(raw) == 1 && raw[0] == 'Y' {
			return Bool(true), nil
		}
		if len(raw) == 1 && raw[0] == 'N' {
			return Bool(false), nil
		}
		return Value{}, syntaxErr(k, raw, "")
	case KindDate:
		t, err := parseDate(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindDate, t: t}, nil
	case KindTime:
		h, m, s, ns, p, err := parseClock(KindTime, raw, raw)
		if err != nil {
			return Value{}, err
		}
		t := time.Date(1970, time.January, 1, h, m, s, ns, time.UTC)
		if t.Day() != 1 {
			t = t.AddDate(0, 0, -1) // 23:59:60 wraps to midnight of the same day
		}
		return Value{kind: KindTime, t: t, prec: p}, nil
	case KindTimestamp:
		return parseTimestamp(raw)
	case KindData:
		return Data(raw), nil
	default:
		return Value{}, syntaxErr(k, raw, "unsupported kind")
	}
}

// ParseInt decodes an INT value.
func ParseInt(raw []byte) (int64, error) { return parseInt(raw) }

// ParseDecimal decodes a decimal value, keeping its scale.
func ParseDecimal(raw []byte) (Decimal, error) { return parseDecimal(raw) }

func parseInt(raw []byte) (int64, error) {
	digits := raw
	neg := false
	if len(digits) > 0 && digits[0] == '-' {
		neg = true
		digits = digits[1:]
	}

	if !validIntegerPart(digits) {
		return 0, syntaxErr(KindInt, raw, "")
	}
	if neg && len(digits) == 1 && digits[0] == '0' {
		return 0, syntaxErr(KindInt, raw, "negative zero")
	}

	var n uint64
	for _, c := range digits {
		d := uint64(c - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, syntaxErr(KindInt, raw, "out of range")
		}
		n = n*10 + d
	}

	if neg {
		if n > uint64(math.MaxInt64)+1 {
			return 0, syntaxErr(KindInt, raw, "out of range")
		}
		return -int64(n-1) - 1, nil
	}
	if n > math.MaxInt64 {
		return 0, syntaxErr(KindInt, raw, "out of range")
	}
	return int64(n), nil
}

// validIntegerPart accepts "0" or a digit run without a leading zero.
func validIntegerPart(b []byte) bool {
	if len(b) == 0 || !allDigits(b) {
		return false
	}
	return len(b) == 1 || b[0] != '0'
}

func parseDecimal(raw []byte) (Decimal, error) {
	body := raw
	if len(body) > 0 && body[0] == '-' {
		body = body[1:]
	}

	intPart, frac := body, []byte(nil)
	if dot := bytes.IndexByte(body, '.'); dot >= 0 {
		intPart, frac = body[:dot], body[dot+1:]
		if len(frac) == 0 || !allDigits(frac) {
			return Decimal{}, syntaxErr(KindDecimal, raw, "bad fraction")
		}
	}
	if !validIntegerPart(intPart) {
		return Decimal{}, syntaxErr(KindDecimal, raw, "bad integer part")
	}

	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return Decimal{}, syntaxErr(KindDecimal, raw, err.Error())
	}
	if raw[0] == '-' && d.IsZero() {
		return Decimal{}, syntaxErr(KindDecimal, raw, "negative zero")
	}

	return Decimal{Value: d, Scale: int32(len(frac))}, nil
}

func parseDate(raw []byte) (time.Time, error) {
	if len(raw) != 8 || !allDigits(raw) {
		return time.Time{}, syntaxErr(KindDate, raw, "")
	}

	y := atoiFixed(raw[0:4])
	m := atoiFixed(raw[4:6])
	d := atoiFixed(raw[6:8])

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, syntaxErr(KindDate, raw, "no such calendar date")
	}
	return t, nil
}

// parseClock reads HH:MM:SS with an optional fractional suffix. whole is the
// full field value, used for error reporting.
func parseClock(k Kind, raw, whole []byte) (h, m, s, ns int, p Precision, err error) {
	if len(raw) < 8 || raw[2] != ':' || raw[5] != ':' ||
		!allDigits(raw[0:2]) || !allDigits(raw[3:5]) || !allDigits(raw[6:8]) {
		return 0, 0, 0, 0, 0, syntaxErr(k, whole, "")
	}

	// Second 60 is a leap second. time.Time cannot hold it, so it folds
	// into the first second of the next minute.
	h, m, s = atoiFixed(raw[0:2]), atoiFixed(raw[3:5]), atoiFixed(raw[6:8])
	if h > 23 || m > 59 || s > 60 {
		return 0, 0, 0, 0, 0, syntaxErr(k, whole, "clock out of range")
	}

	rest := raw[8:]
	if len(rest) == 0 {
		return h, m, s, 0, PrecisionSeconds, nil
	}
	if rest[0] != '.' || !allDigits(rest[1:]) {
		return 0, 0, 0, 0, 0, syntaxErr(k, whole, "bad fractional seconds")
	}

	frac := rest[1:]
	p, ok := precisionForDigits(len(frac))
	if !ok || p == PrecisionSeconds {
		return 0, 0, 0, 0, 0, syntaxErr(k, whole, "fractional seconds must have 3, 6 or 9 digits")
	}

	ns = atoiFixed(frac)
	for i := len(frac); i < 9; i++ {
		ns *= 10
	}
	return h, m, s, ns, p, nil
}

func parseTimestamp(raw []byte) (Value, error) {
	if len(raw) < 17 || raw[8] != '-' {
		return Value{}, syntaxErr(KindTimestamp, raw, "")
	}

	day, err := parseDate(raw[:8])
	if err != nil {
		return Value{}, syntaxErr(KindTimestamp, raw, "bad date")
	}

	h, m, s, ns, p, err := parseClock(KindTimestamp, raw[9:], raw)
	if err != nil {
		return Value{}, err
	}

	t := time.Date(day.Year(), day.Month(), day.Day(), h, m, s, ns, time.UTC)
	return Value{kind: KindTimestamp, t: t, prec: p}, nil
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// atoiFixed converts a short, already validated, digit run.
func atoiFixed(b []byte) int {
	n := 0
	for _, c := range b {
		n = n*10 + int(c-'0')
	}
	return n
}

