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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate reports whether v can be rendered without breaking the wire
// grammar of its kind.
func (v Value) Validate() error {
	switch v.kind {
	case KindInt, KindBool:
		return nil
	case KindDecimal:
		if v.dec.Scale < 0 {
			return fmt.Errorf("fix: negative decimal scale %d", v.dec.Scale)
		}
		if !v.dec.Value.Round(v.dec.Scale).Equal(v.dec.Value) {
			return fmt.Errorf("fix: decimal %s does not fit scale %d", v.dec.Value.String(), v.dec.Scale)
		}
		return nil
	case KindString:
		if v.str == "" {
			return fmt.Errorf("fix: empty string value")
		}
		if strings.IndexByte(v.str, SOH) >= 0 {
			return fmt.Errorf("fix: string value contains SOH")
		}
		return nil
	case KindChar:
		if byte(v.num) == SOH {
			return fmt.Errorf("fix: char value is SOH")
		}
		return nil
	case KindDate, KindTimestamp:
		if y := v.t.Year(); y < 0 || y > 9999 {
			return fmt.Errorf("fix: year %d outside 0000-9999", y)
		}
		return nil
	case KindTime:
		return nil
	case KindData:
		return nil
	default:
		return fmt.Errorf("fix: invalid value kind %d", v.kind)
	}
}

// Append renders the wire form of v onto dst.
func Append(dst []byte, v Value) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return dst, err
	}

	switch v.kind {
	case KindInt:
		return strconv.AppendInt(dst, v.num, 10), nil
	case KindDecimal:
		return append(dst, v.dec.String()...), nil
	case KindString:
		return append(dst, v.str...), nil
	case KindChar:
		return append(dst, byte(v.num)), nil
	case KindBool:
		if v.num == 1 {
			return append(dst, 'Y'), nil
		}
		return append(dst, 'N'), nil
	case KindDate:
		return appendDate(dst, v.t), nil
	case KindTime:
		return appendClock(dst, v.t, v.prec), nil
	case KindTimestamp:
		dst = appendDate(dst, v.t)
		dst = append(dst, '-')
		return appendClock(dst, v.t, v.prec), nil
	case KindData:
		return append(dst, v.raw...), nil
	default:
		return dst, fmt.Errorf("fix: invalid value kind %d", v.kind)
	}
}

func appendDate(dst []byte, t time.Time) []byte {
	dst = appendPadded(dst, t.Year(), 4)
	dst = appendPadded(dst, int(t.Month()), 2)
	return appendPadded(dst, t.Day(), 2)
}

func appendClock(dst []byte, t time.Time, p Precision) []byte {
	dst = appendPadded(dst, t.Hour(), 2)
	dst = append(dst, ':')
	dst = appendPadded(dst, t.Minute(), 2)
	dst = append(dst, ':')
	dst = appendPadded(dst, t.Second(), 2)

	digits := p.Digits()
	if digits == 0 {
		return dst
	}

	frac := t.Nanosecond()
	for i := digits; i < 9; i++ {
		frac /= 10
	}
	dst = append(dst, '.')
	return appendPadded(dst, frac, digits)
}

func appendPadded(dst []byte, n, width int) []byte {
	var buf [20]byte
	b := strconv.AppendInt(buf[:0], int64(n), 10)
	for i := len(b); i < width; i++ {
		dst = append(dst, '0')
	}
	return append(dst, b...)
}

// AppendField renders "tag=value<SOH>" onto dst.
func AppendField(dst []byte, tag int, v Value) ([]byte, error) {
	mark := len(dst)
	dst = strconv.AppendInt(dst, int64(tag), 10)
	dst = append(dst, '=')

	dst, err := Append(dst, v)
	if err != nil {
		return dst[:mark], fmt.Errorf("tag %d: %w", tag, err)
	}
	return append(dst, SOH), nil
}

// Checksum is the sum of all bytes of b modulo 256.
func Checksum(b []byte) int {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}

// AppendChecksum renders the three digit, zero padded checksum value.
func AppendChecksum(dst []byte, sum int) []byte {
	return appendPadded(dst, sum%256, 3)
}
