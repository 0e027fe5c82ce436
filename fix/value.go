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
	"time"

	"github.com/shopspring/decimal"
)

// Precision records the width of the fractional-second suffix of a time value.
type Precision uint8

const (
	PrecisionSeconds Precision = iota
	PrecisionMillis
	PrecisionMicros
	PrecisionNanos
)

// Digits is the number of fractional digits rendered for the precision.
func (p Precision) Digits() int {
	switch p {
	case PrecisionMillis:
		return 3
	case PrecisionMicros:
		return 6
	case PrecisionNanos:
		return 9
	default:
		return 0
	}
}

func (p Precision) unit() time.Duration {
	switch p {
	case PrecisionMillis:
		return time.Millisecond
	case PrecisionMicros:
		return time.Microsecond
	case PrecisionNanos:
		return time.Nanosecond
	default:
		return time.Second
	}
}

func precisionForDigits(n int) (Precision, bool) {
	switch n {
	case 0:
		return PrecisionSeconds, true
	case 3:
		return PrecisionMillis, true
	case 6:
		return PrecisionMicros, true
	case 9:
		return PrecisionNanos, true
	default:
		return 0, false
	}
}

// Decimal is an exact decimal number together with the number of fractional
// digits it was written with. The scale survives a parse/render round trip.
type Decimal struct {
	Value decimal.Decimal
	Scale int32
}

// NewDecimal pairs d with a rendering scale. It fails when rendering at that
// scale would drop significant digits.
func NewDecimal(d decimal.Decimal, scale int32) (Decimal, error) {
	if scale < 0 {
		return Decimal{}, fmt.Errorf("fix: negative decimal scale %d", scale)
	}
	if !d.Round(scale).Equal(d) {
		return Decimal{}, fmt.Errorf("fix: %s does not fit scale %d", d.String(), scale)
	}
	return Decimal{Value: d, Scale: scale}, nil
}

// MustDecimal parses s with the FIX decimal grammar and panics on failure.
// Intended for constants and tests.
func MustDecimal(s string) Decimal {
	d, err := parseDecimal([]byte(s))
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) String() string {
	return d.Value.StringFixed(d.Scale)
}

// Equal reports whether both the numeric value and the scale match.
func (d Decimal) Equal(o Decimal) bool {
	return d.Scale == o.Scale && d.Value.Equal(o.Value)
}

// Value is an immutable tagged union over the primitive FIX kinds.
// The zero Value has KindInvalid.
type Value struct {
	kind Kind
	num  int64
	dec  Decimal
	str  string
	t    time.Time
	prec Precision
	raw  []byte
}

func Int(v int64) Value { return Value{kind: KindInt, num: v} }

func DecimalValue(d Decimal) Value { return Value{kind: KindDecimal, dec: d} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Char(c byte) Value { return Value{kind: KindChar, num: int64(c)} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Date keeps the calendar date of t in UTC.
func Date(t time.Time) Value {
	t = t.UTC()
	return Value{kind: KindDate, t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// TimeOfDay keeps the UTC wall clock of t, truncated to p, on the date
// 1970-01-01.
func TimeOfDay(t time.Time, p Precision) Value {
	t = t.UTC()
	ns := t.Nanosecond() - t.Nanosecond()%int(p.unit())
	tod := time.Date(1970, time.January, 1, t.Hour(), t.Minute(), t.Second(), ns, time.UTC)
	return Value{kind: KindTime, t: tod, prec: p}
}

// Timestamp keeps t in UTC, truncated to p.
func Timestamp(t time.Time, p Precision) Value {
	return Value{kind: KindTimestamp, t: t.UTC().Truncate(p.unit()), prec: p}
}

// Data copies b.
func Data(b []byte) Value { return Value{kind: KindData, raw: bytes.Clone(b)} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

func (v Value) AsDecimal() (Decimal, bool) { return v.dec, v.kind == KindDecimal }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsChar() (byte, bool) { return byte(v.num), v.kind == KindChar }

func (v Value) AsBool() (bool, bool) { return v.num == 1, v.kind == KindBool }

// AsTime returns the instant held by a Date, Time or Timestamp value along
// with the precision it is rendered at.
func (v Value) AsTime() (time.Time, Precision, bool) {
	switch v.kind {
	case KindDate, KindTime, KindTimestamp:
		return v.t, v.prec, true
	default:
		return time.Time{}, 0, false
	}
}

// AsBytes returns the payload of a Data value. The slice must not be modified.
func (v Value) AsBytes() ([]byte, bool) { return v.raw, v.kind == KindData }

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindInt, KindChar, KindBool:
		return v.num == o.num
	case KindDecimal:
		return v.dec.Equal(o.dec)
	case KindString:
		return v.str == o.str
	case KindDate:
		return v.t.Equal(o.t)
	case KindTime, KindTimestamp:
		return v.prec == o.prec && v.t.Equal(o.t)
	case KindData:
		return bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

// String renders the wire form of the value. Invalid values render empty.
func (v Value) String() string {
	b, err := Append(nil, v)
	if err != nil {
		return ""
	}
	return string(b)
}
