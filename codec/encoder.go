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
	"slices"
	"strconv"

	"github.com/stephenlclarke/fixcodec/fix"
	"github.com/stephenlclarke/fixcodec/schema"
)

const soh = fix.SOH

type encoder struct {
	c       *Codec
	msgType string
	spec    *schema.Section

	// path holds the sections being written, outermost first.
	path []*schema.Section

	// open is set while a repetition of a nested group is still open at
	// the write position; a decoder would file an undeclared field there.
	open bool
}

func (e *encoder) fail(err *Error) error {
	err.MsgType = e.msgType
	return err
}

// Encode renders m as a complete wire message.
func (c *Codec) Encode(m *Message) ([]byte, error) {
	return c.AppendEncode(nil, m)
}

// AppendEncode renders m onto dst. On failure dst is returned unchanged.
// BodyLength and CheckSum are always computed; values the caller set for
// them are ignored.
func (c *Codec) AppendEncode(dst []byte, m *Message) ([]byte, error) {
	out, err := c.appendEncode(dst, m)
	if err != nil {
		c.obs.Encoded(m.MsgType(), 0, err)
		c.reject("encode", err)
		return dst, err
	}

	c.obs.Encoded(m.MsgType(), len(out)-len(dst), nil)
	return out, nil
}

func (c *Codec) appendEncode(dst []byte, m *Message) ([]byte, error) {
	e := &encoder{c: c}

	mt, err := e.envelopeString(&m.Header, fix.TagMsgType)
	if err != nil {
		return nil, err
	}
	e.msgType = mt

	begin, err := e.envelopeString(&m.Header, fix.TagBeginString)
	if err != nil {
		return nil, err
	}

	spec, err := c.cat.Lookup(mt)
	if err != nil {
		return nil, e.fail(&Error{Kind: UnknownMessageType, Tag: fix.TagMsgType, Actual: mt, Err: err})
	}
	e.spec = &spec.Section

	// Clipped so a failed render never writes into dst's spare capacity.
	start := len(dst)
	buf := slices.Clip(dst)

	if buf, err = fix.AppendField(buf, fix.TagBeginString, fix.String(begin)); err != nil {
		return nil, e.fail(&Error{Kind: MalformedField, Tag: fix.TagBeginString, Err: err})
	}

	bodyStart := len(buf)
	if buf, err = fix.AppendField(buf, fix.TagMsgType, fix.String(mt)); err != nil {
		return nil, e.fail(&Error{Kind: MalformedField, Tag: fix.TagMsgType, Err: err})
	}

	if buf, err = e.appendScope(buf, c.cat.HeaderSection(), &m.Header, skipEnvelope, 0); err != nil {
		return nil, err
	}
	if buf, err = e.appendScope(buf, &spec.Section, &m.Body, fix.IsDerived, 0); err != nil {
		return nil, err
	}
	if buf, err = e.appendScope(buf, c.cat.TrailerSection(), &m.Trailer, fix.IsDerived, 0); err != nil {
		return nil, err
	}

	var lengthField []byte
	lengthField = strconv.AppendInt(lengthField, fix.TagBodyLength, 10)
	lengthField = append(lengthField, '=')
	lengthField = strconv.AppendInt(lengthField, int64(len(buf)-bodyStart), 10)
	lengthField = append(lengthField, soh)
	buf = slices.Insert(buf, bodyStart, lengthField...)

	sum := fix.Checksum(buf[start:])
	buf = append(buf, "10="...)
	buf = fix.AppendChecksum(buf, sum)
	buf = append(buf, soh)

	if limit := c.opts.MaxFrameSize; limit > 0 && len(buf)-start > limit {
		return nil, e.fail(&Error{
			Kind:     MalformedFrame,
			Expected: "at most " + strconv.Itoa(limit) + " bytes",
			Actual:   strconv.Itoa(len(buf) - start),
		})
	}

	return buf, nil
}

func skipEnvelope(tag int) bool {
	return tag == fix.TagBeginString || tag == fix.TagMsgType || fix.IsDerived(tag)
}

func (e *encoder) envelopeString(fm *FieldMap, tag int) (string, error) {
	v, err := fm.Get(tag)
	if err != nil {
		return "", e.fail(&Error{Kind: MissingRequiredField, Tag: tag})
	}
	s, ok := v.AsString()
	if !ok {
		return "", e.fail(&Error{Kind: KindMismatch, Tag: tag, Expected: fix.KindString.String(), Actual: v.Kind().String()})
	}
	return s, nil
}

// appendScope renders the fields of fm declared by sec in schema order.
// Undeclared fields, kept when the policy preserves them, are written at
// the first point where sec is the innermost open scope, so decoding files
// them back where they came from.
func (e *encoder) appendScope(buf []byte, sec *schema.Section, fm *FieldMap, skip func(int) bool, depth int) ([]byte, error) {
	e.path = append(e.path, sec)
	defer func() { e.path = e.path[:len(e.path)-1] }()

	extra, err := e.undeclared(sec, fm, skip)
	if err != nil {
		return buf, err
	}
	if len(extra) > 0 && (sec == e.c.cat.HeaderSection() || sec == e.c.cat.TrailerSection()) {
		return buf, e.fail(&Error{Kind: UnknownTag, Tag: extra[0].Tag, Expected: "body or group field", Actual: "envelope field"})
	}

	if sec == e.spec && !e.open {
		if buf, err = e.appendOpaque(buf, extra); err != nil {
			return buf, err
		}
		extra = nil
	}

	for _, mem := range sec.Members {
		if skip != nil && skip(mem.Tag) {
			continue
		}

		f, ok := fm.Field(mem.Tag)
		if !ok {
			if mem.Required {
				return buf, e.fail(&Error{Kind: MissingRequiredField, Tag: mem.Tag})
			}
			continue
		}

		if mem.Group != nil {
			if buf, err = e.appendGroup(buf, mem, f, depth+1); err != nil {
				return buf, err
			}
			e.open = f.Group.Len() > 0
		} else {
			if buf, err = e.appendValue(buf, fm, f); err != nil {
				return buf, err
			}
			e.open = false
		}

		if len(extra) > 0 && !e.open {
			if buf, err = e.appendOpaque(buf, extra); err != nil {
				return buf, err
			}
			extra = nil
		}
	}

	if len(extra) > 0 {
		return buf, e.fail(&Error{Kind: UnknownTag, Tag: extra[0].Tag, Expected: "a declared field of its scope outside nested groups"})
	}
	return buf, nil
}

// undeclared collects the fields of fm that sec does not declare. Each must
// be an opaque scalar no section open at this point of the message
// declares, or decoding would route it elsewhere.
func (e *encoder) undeclared(sec *schema.Section, fm *FieldMap, skip func(int) bool) ([]Field, error) {
	var out []Field

	for f := range fm.Fields() {
		if sec.Has(f.Tag) || (skip != nil && skip(f.Tag)) {
			continue
		}
		if e.c.opts.UnknownTags != UnknownTagPreserve || f.Group != nil || e.declared(f.Tag) {
			return nil, e.fail(&Error{Kind: UnknownTag, Tag: f.Tag})
		}
		out = append(out, f)
	}

	return out, nil
}

func (e *encoder) declared(tag int) bool {
	if e.c.cat.HeaderSection().Has(tag) || e.spec.Has(tag) || e.c.cat.TrailerSection().Has(tag) {
		return true
	}
	for _, sec := range e.path {
		if sec.Has(tag) {
			return true
		}
	}
	return false
}

func (e *encoder) appendOpaque(buf []byte, fields []Field) ([]byte, error) {
	var err error
	for _, f := range fields {
		if buf, err = fix.AppendField(buf, f.Tag, f.Value); err != nil {
			return buf, e.fail(&Error{Kind: MalformedField, Tag: f.Tag, Err: err})
		}
	}
	return buf, nil
}

// appendValue renders a declared scalar field after checking it against
// the dictionary.
func (e *encoder) appendValue(buf []byte, fm *FieldMap, f Field) ([]byte, error) {
	fs, ok := e.c.cat.Field(f.Tag)
	if !ok {
		return buf, e.fail(&Error{Kind: UnknownTag, Tag: f.Tag})
	}

	if f.Group != nil {
		return buf, e.fail(&Error{Kind: KindMismatch, Tag: f.Tag, Expected: fs.Kind.String(), Actual: "group"})
	}
	if f.Value.Kind() != fs.Kind {
		return buf, e.fail(&Error{Kind: KindMismatch, Tag: f.Tag, Expected: fs.Kind.String(), Actual: f.Value.Kind().String()})
	}

	if fs.LengthTag != 0 {
		data, _ := f.Value.AsBytes()
		n, err := fm.GetInt(fs.LengthTag)
		if err != nil {
			return buf, e.fail(&Error{Kind: MissingRequiredField, Tag: fs.LengthTag, Err: err})
		}
		if n != int64(len(data)) {
			return buf, e.fail(&Error{
				Kind:     MalformedField,
				Tag:      fs.LengthTag,
				Expected: strconv.Itoa(len(data)),
				Actual:   strconv.FormatInt(n, 10),
			})
		}
	}

	mark := len(buf)
	buf, err := fix.AppendField(buf, f.Tag, f.Value)
	if err != nil {
		return buf, e.fail(&Error{Kind: MalformedField, Tag: f.Tag, Err: err})
	}

	if e.c.opts.CheckEnums && len(fs.Enums) > 0 {
		// tag=value<SOH>: the value sits between '=' and the SOH.
		raw := buf[mark+len(strconv.Itoa(f.Tag))+1 : len(buf)-1]
		if !enumAllowed(fs, raw) {
			return buf[:mark], e.fail(&Error{Kind: ValueOutOfRange, Tag: f.Tag, Actual: string(raw), Expected: "one of the field's enumerated values"})
		}
	}

	return buf, nil
}
