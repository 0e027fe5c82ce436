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
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stephenlclarke/fixcodec/scanner"
)

// ErrIncomplete is returned by Decode under IncompleteNeedMore when the
// buffer does not yet hold a whole message. It is not a decode failure.
var ErrIncomplete = scanner.ErrIncomplete

// ErrorKind classifies decode and encode failures.
type ErrorKind uint8

const (
	MalformedField ErrorKind = iota + 1
	MissingRequiredField
	DuplicateTag
	GroupCountMismatch
	ChecksumMismatch
	BodyLengthMismatch
	UnknownMessageType
	UnknownTag
	TagOutOfOrder
	ValueOutOfRange
	KindMismatch
	GroupTooDeep
	MalformedFrame
	Truncated
)

var kindNames = [...]string{
	MalformedField:       "malformed field",
	MissingRequiredField: "missing required field",
	DuplicateTag:         "duplicate tag",
	GroupCountMismatch:   "group count mismatch",
	ChecksumMismatch:     "checksum mismatch",
	BodyLengthMismatch:   "body length mismatch",
	UnknownMessageType:   "unknown message type",
	UnknownTag:           "unknown tag",
	TagOutOfOrder:        "tag out of order",
	ValueOutOfRange:      "value out of range",
	KindMismatch:         "kind mismatch",
	GroupTooDeep:         "groups nested too deep",
	MalformedFrame:       "malformed frame",
	Truncated:            "truncated message",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Sentinels, one per kind, for errors.Is.
var (
	ErrMalformedField       = errors.New("codec: malformed field")
	ErrMissingRequiredField = errors.New("codec: missing required field")
	ErrDuplicateTag         = errors.New("codec: duplicate tag")
	ErrGroupCountMismatch   = errors.New("codec: group count mismatch")
	ErrChecksumMismatch     = errors.New("codec: checksum mismatch")
	ErrBodyLengthMismatch   = errors.New("codec: body length mismatch")
	ErrUnknownMessageType   = errors.New("codec: unknown message type")
	ErrUnknownTag           = errors.New("codec: unknown tag")
	ErrTagOutOfOrder        = errors.New("codec: tag out of order")
	ErrValueOutOfRange      = errors.New("codec: value out of range")
	ErrKindMismatch         = errors.New("codec: kind mismatch")
	ErrGroupTooDeep         = errors.New("codec: groups nested too deep")
	ErrMalformedFrame       = errors.New("codec: malformed frame")
	ErrTruncated            = errors.New("codec: truncated message")
)

var sentinels = [...]error{
	MalformedField:       ErrMalformedField,
	MissingRequiredField: ErrMissingRequiredField,
	DuplicateTag:         ErrDuplicateTag,
	GroupCountMismatch:   ErrGroupCountMismatch,
	ChecksumMismatch:     ErrChecksumMismatch,
	BodyLengthMismatch:   ErrBodyLengthMismatch,
	UnknownMessageType:   ErrUnknownMessageType,
	UnknownTag:           ErrUnknownTag,
	TagOutOfOrder:        ErrTagOutOfOrder,
	ValueOutOfRange:      ErrValueOutOfRange,
	KindMismatch:         ErrKindMismatch,
	GroupTooDeep:         ErrGroupTooDeep,
	MalformedFrame:       ErrMalformedFrame,
	Truncated:            ErrTruncated,
}

// Error carries the context a session layer needs to log or reject a
// message. Tag is 0 when no single field is at fault.
type Error struct {
	Kind     ErrorKind
	Tag      int
	MsgType  string
	Expected string
	Actual   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("codec: ")
	b.WriteString(e.Kind.String())
	if e.Tag != 0 {
		fmt.Fprintf(&b, ": tag %d", e.Tag)
	}
	if e.MsgType != "" {
		fmt.Fprintf(&b, " (msg type %s)", e.MsgType)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, ": expected %s, got %s", orNone(e.Expected), orNone(e.Actual))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Unwrap exposes both the sentinel of the kind and the cause.
func (e *Error) Unwrap() []error {
	var out []error
	if int(e.Kind) < len(sentinels) && sentinels[e.Kind] != nil {
		out = append(out, sentinels[e.Kind])
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the kind of a codec error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
