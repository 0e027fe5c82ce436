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

import "strings"

// Kind is the closed set of primitive FIX value types handled by the codec.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindDecimal
	KindString
	KindChar
	KindBool
	KindDate
	KindTime
	KindTimestamp
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "INT"
	case KindDecimal:
		return "DECIMAL"
	case KindString:
		return "STRING"
	case KindChar:
		return "CHAR"
	case KindBool:
		return "BOOLEAN"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindData:
		return "DATA"
	default:
		return "INVALID"
	}
}

// Grammar describes the lexical form accepted for the kind.
func (k Kind) Grammar() string {
	switch k {
	case KindInt:
		return "-?(0|[1-9][0-9]*)"
	case KindDecimal:
		return "-?(0|[1-9][0-9]*)(.[0-9]+)?"
	case KindString:
		return "one or more bytes without SOH"
	case KindChar:
		return "exactly one byte"
	case KindBool:
		return "Y|N"
	case KindDate:
		return "YYYYMMDD"
	case KindTime:
		return "HH:MM:SS[.sss|.ssssss|.sssssssss]"
	case KindTimestamp:
		return "YYYYMMDD-HH:MM:SS[.sss|.ssssss|.sssssssss]"
	case KindData:
		return "length-prefixed raw bytes"
	default:
		return "no grammar"
	}
}

// KindForType maps a dictionary type name (QuickFIX spelling) onto a Kind.
// Unrecognised and free-text types are treated as strings.
func KindForType(typ string) Kind {
	switch strings.ToUpper(typ) {
	case "INT", "LENGTH", "NUMINGROUP", "SEQNUM", "TAGNUM", "DAYOFMONTH":
		return KindInt
	case "FLOAT", "QTY", "PRICE", "PRICEOFFSET", "AMT", "PERCENTAGE":
		return KindDecimal
	case "CHAR":
		return KindChar
	case "BOOLEAN":
		return KindBool
	case "UTCDATEONLY", "UTCDATE", "LOCALMKTDATE", "DATE":
		return KindDate
	case "UTCTIMEONLY", "TIME":
		return KindTime
	case "UTCTIMESTAMP":
		return KindTimestamp
	case "DATA", "XMLDATA":
		return KindData
	default:
		return KindString
	}
}
