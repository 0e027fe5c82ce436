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
	"fmt"

	"github.com/rs/zerolog"
)

// UnknownTagPolicy decides what happens to tags the message type does not
// declare. The zero value is invalid; New refuses it.
type UnknownTagPolicy uint8

const (
	UnknownTagReject UnknownTagPolicy = iota + 1
	// UnknownTagPreserve keeps undeclared tags as opaque data fields in
	// the message body and writes them back out on encode.
	UnknownTagPreserve
)

func (p UnknownTagPolicy) String() string {
	switch p {
	case UnknownTagReject:
		return "reject"
	case UnknownTagPreserve:
		return "preserve"
	default:
		return "unset"
	}
}

// IncompletePolicy decides what Decode reports for a buffer that ends
// before a whole message. The zero value is invalid; New refuses it.
type IncompletePolicy uint8

const (
	// IncompleteNeedMore returns ErrIncomplete so the caller can read more.
	IncompleteNeedMore IncompletePolicy = iota + 1
	// IncompleteReject treats a partial message as a Truncated failure,
	// for callers that hand over whole buffers only.
	IncompleteReject
)

func (p IncompletePolicy) String() string {
	switch p {
	case IncompleteNeedMore:
		return "need-more"
	case IncompleteReject:
		return "reject"
	default:
		return "unset"
	}
}

const (
	DefaultMaxFrameSize  = 1 << 20
	DefaultMaxGroupDepth = 8
)

// Options are the caller supplied policies of a Codec.
type Options struct {
	UnknownTags UnknownTagPolicy
	Incomplete  IncompletePolicy

	// MaxFrameSize bounds a single message in bytes; 0 means unlimited.
	MaxFrameSize int
	// MaxGroupDepth bounds nesting of repeating groups; 0 means
	// DefaultMaxGroupDepth.
	MaxGroupDepth int
	// CheckEnums rejects values outside a field's enumeration.
	CheckEnums bool
}

// StrictOptions rejects anything the dictionary does not describe.
func StrictOptions() Options {
	return Options{
		UnknownTags:   UnknownTagReject,
		Incomplete:    IncompleteNeedMore,
		MaxFrameSize:  DefaultMaxFrameSize,
		MaxGroupDepth: DefaultMaxGroupDepth,
		CheckEnums:    true,
	}
}

// TolerantOptions preserves unknown tags and skips the enumeration check.
func TolerantOptions() Options {
	return Options{
		UnknownTags:   UnknownTagPreserve,
		Incomplete:    IncompleteNeedMore,
		MaxFrameSize:  DefaultMaxFrameSize,
		MaxGroupDepth: DefaultMaxGroupDepth,
	}
}

// Validate reports options New would refuse.
func (o Options) Validate() error {
	switch o.UnknownTags {
	case UnknownTagReject, UnknownTagPreserve:
	default:
		return fmt.Errorf("codec: unknown tag policy not set")
	}

	switch o.Incomplete {
	case IncompleteNeedMore, IncompleteReject:
	default:
		return fmt.Errorf("codec: incomplete message policy not set")
	}

	if o.MaxFrameSize < 0 {
		return fmt.Errorf("codec: negative max frame size %d", o.MaxFrameSize)
	}
	if o.MaxGroupDepth < 0 {
		return fmt.Errorf("codec: negative max group depth %d", o.MaxGroupDepth)
	}
	return nil
}

func (o Options) groupDepth() int {
	if o.MaxGroupDepth == 0 {
		return DefaultMaxGroupDepth
	}
	return o.MaxGroupDepth
}

// Observer is told about every Decode and Encode call. size is the frame
// size in bytes, 0 when no frame was produced. Implementations must be safe
// for concurrent use.
type Observer interface {
	Decoded(msgType string, size int, err error)
	Encoded(msgType string, size int, err error)
}

type nopObserver struct{}

func (nopObserver) Decoded(string, int, error) {}

func (nopObserver) Encoded(string, int, error) {}

// Option adjusts ambient behaviour of a Codec that does not change what it
// accepts.
type Option func(*Codec)

// WithLogger logs rejected messages at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Codec) { c.log = l }
}

func WithObserver(obs Observer) Option {
	return func(c *Codec) {
		if obs != nil {
			c.obs = obs
		}
	}
}
