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

// Package codec decodes FIX tag=value messages into typed, validated
// Messages driven by a schema catalog, and encodes Messages back into exact
// wire bytes. A Codec performs no I/O and holds no mutable state.
package codec

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/stephenlclarke/fixcodec/scanner"
	"github.com/stephenlclarke/fixcodec/schema"
)

// Catalog is the read-only message schema a Codec interprets.
// *schema.Dictionary satisfies it.
type Catalog interface {
	Lookup(msgType string) (*schema.MessageSpec, error)
	Field(tag int) (schema.FieldSpec, bool)
	DataLengthTag(tag int) (int, bool)
	HeaderSection() *schema.Section
	TrailerSection() *schema.Section
}

// Codec is immutable after New and safe for concurrent use.
type Codec struct {
	cat  Catalog
	opts Options
	scan scanner.Scanner
	log  zerolog.Logger
	obs  Observer
}

// New binds a catalog to a set of policies. Both policies in opts must be
// chosen explicitly.
func New(cat Catalog, opts Options, extra ...Option) (*Codec, error) {
	if cat == nil {
		return nil, errors.New("codec: nil catalog")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Codec{
		cat:  cat,
		opts: opts,
		scan: scanner.Scanner{Lengths: cat, MaxFrameSize: opts.MaxFrameSize},
		log:  zerolog.Nop(),
		obs:  nopObserver{},
	}
	for _, o := range extra {
		o(c)
	}

	return c, nil
}

func (c *Codec) Options() Options { return c.opts }

func (c *Codec) Catalog() Catalog { return c.cat }

func (c *Codec) reject(op string, err error) {
	ev := c.log.Debug()
	if !ev.Enabled() {
		return
	}

	var ce *Error
	if errors.As(err, &ce) {
		ev = ev.Str("kind", ce.Kind.String()).Str("msg_type", ce.MsgType)
		if ce.Tag != 0 {
			ev = ev.Int("tag", ce.Tag)
		}
	}
	ev.Err(err).Msgf("%s rejected", op)
}
