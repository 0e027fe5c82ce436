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
	"strconv"
	"strings"

	"github.com/stephenlclarke/fixcodec/fix"
	"github.com/stephenlclarke/fixcodec/scanner"
	"github.com/stephenlclarke/fixcodec/schema"
)

type decodeState uint8

const (
	scanningHeader decodeState = iota
	scanningBody
	scanningTrailer
	validating
	done
)

// decoder holds the state of a single Decode call.
type decoder struct {
	c       *Codec
	state   decodeState
	msgType string
	spec    *schema.MessageSpec
	msg     *Message
	st      *scopeStack

	// remaining counts the fields after the current one, checksum
	// excluded; a group can never have more repetitions than that.
	remaining int

	// enumErr is the first value outside its enumeration. It is reported
	// only once every structural check has passed.
	enumErr error
}

// Decode decodes the first message in buf and returns it with the number
// of bytes it occupied. When the frame was delimited but failed
// validation, the count still covers it so a stream reader can move past.
// A malformed frame consumes nothing; use scanner.Sync to resynchronise.
func (c *Codec) Decode(buf []byte) (*Message, int, error) {
	m, n, msgType, err := c.decode(buf)

	if errors.Is(err, ErrIncomplete) {
		return nil, 0, err
	}
	c.obs.Decoded(msgType, n, err)
	if err != nil {
		c.reject("decode", err)
		return nil, n, err
	}
	return m, n, nil
}

// DecodeAll decodes every whole message in buf. It stops at the first
// failure and returns what was decoded before it together with the bytes
// consumed, which include the failed frame when it could be delimited.
// A trailing partial message is left unconsumed without error under
// IncompleteNeedMore.
func (c *Codec) DecodeAll(buf []byte) ([]*Message, int, error) {
	var out []*Message

	off := 0
	for off < len(buf) {
		m, n, err := c.Decode(buf[off:])
		if errors.Is(err, ErrIncomplete) {
			break
		}
		off += n
		if err != nil {
			return out, off, err
		}
		out = append(out, m)
	}

	return out, off, nil
}

func (c *Codec) decode(buf []byte) (*Message, int, string, error) {
	f, err := c.scan.Delimit(buf)
	if err != nil {
		if errors.Is(err, scanner.ErrIncomplete) {
			if c.opts.Incomplete == IncompleteReject {
				return nil, 0, "", &Error{Kind: Truncated, Err: err}
			}
			return nil, 0, "", ErrIncomplete
		}
		return nil, 0, "", &Error{Kind: MalformedFrame, Err: err}
	}

	d := &decoder{c: c, msg: &Message{}}
	m, err := d.run(&f)
	return m, len(f.Bytes), d.msgType, err
}

func (d *decoder) fail(e *Error) error {
	e.MsgType = d.msgType
	return e
}

func (d *decoder) run(f *scanner.Frame) (*Message, error) {
	// Integrity first: a corrupted byte must surface as a length or
	// checksum failure, whatever it did to the field structure.
	if err := d.checkIntegrity(f); err != nil {
		return nil, err
	}
	if err := d.c.scan.Segment(f); err != nil {
		return nil, &Error{Kind: MalformedFrame, Err: err}
	}

	// The scanner guarantees BeginString, BodyLength and CheckSum.
	fields := f.Fields
	if fields[2].Tag != fix.TagMsgType {
		return nil, &Error{Kind: TagOutOfOrder, Tag: fields[2].Tag, Expected: "MsgType (35) as third field"}
	}

	mt := string(fields[2].Value)
	if mt == "" {
		return nil, &Error{Kind: MalformedField, Tag: fix.TagMsgType, Expected: fix.KindString.Grammar()}
	}
	spec, err := d.c.cat.Lookup(mt)
	if err != nil {
		return nil, &Error{Kind: UnknownMessageType, Tag: fix.TagMsgType, MsgType: mt, Actual: mt, Err: err}
	}
	d.msgType, d.spec = mt, spec

	d.state = scanningHeader
	d.st = newScopeStack(d.c.cat.HeaderSection(), &d.msg.Header, d.c.opts.groupDepth())

	for i, fld := range fields {
		d.remaining = len(fields) - i - 2
		if err := d.consume(fld); err != nil {
			return nil, err
		}
	}

	d.state = validating
	if err := d.validate(); err != nil {
		return nil, err
	}

	d.state = done
	return d.msg, nil
}

func (d *decoder) checkIntegrity(f *scanner.Frame) error {
	if actual := f.ChecksumOffset - f.BodyOffset; actual != f.BodyLength {
		return &Error{
			Kind:     BodyLengthMismatch,
			Tag:      fix.TagBodyLength,
			Expected: strconv.Itoa(actual),
			Actual:   strconv.Itoa(f.BodyLength),
		}
	}

	if len(f.CheckSum) != 3 || !isDigits(f.CheckSum) {
		return &Error{
			Kind:     MalformedField,
			Tag:      fix.TagCheckSum,
			Expected: "three digits",
			Actual:   string(f.CheckSum),
		}
	}

	declared, _ := strconv.Atoi(string(f.CheckSum))
	if sum := fix.Checksum(f.Bytes[:f.ChecksumOffset]); sum != declared {
		return &Error{
			Kind:     ChecksumMismatch,
			Tag:      fix.TagCheckSum,
			Expected: string(fix.AppendChecksum(nil, sum)),
			Actual:   string(f.CheckSum),
		}
	}

	return nil
}

// consume routes one field through the section state machine.
func (d *decoder) consume(fld scanner.RawField) error {
	for {
		placed, err := d.st.place(d, fld.Tag, fld.Value)
		if err != nil || placed {
			return err
		}

		switch d.state {
		case scanningHeader:
			d.state = scanningBody
			d.st = newScopeStack(&d.spec.Section, &d.msg.Body, d.c.opts.groupDepth())

		case scanningBody:
			if d.c.cat.HeaderSection().Has(fld.Tag) {
				return d.fail(&Error{Kind: TagOutOfOrder, Tag: fld.Tag, Expected: "body or trailer field", Actual: "header field"})
			}
			if d.c.cat.TrailerSection().Has(fld.Tag) {
				d.state = scanningTrailer
				d.st = newScopeStack(d.c.cat.TrailerSection(), &d.msg.Trailer, d.c.opts.groupDepth())
				continue
			}
			return d.unknown(fld)

		default:
			if _, declared := d.c.cat.Field(fld.Tag); !declared && d.c.opts.UnknownTags == UnknownTagReject {
				return d.fail(&Error{Kind: UnknownTag, Tag: fld.Tag})
			}
			return d.fail(&Error{Kind: TagOutOfOrder, Tag: fld.Tag, Expected: "trailer field"})
		}
	}
}

// unknown applies the unknown tag policy to a body field no scope declares.
func (d *decoder) unknown(fld scanner.RawField) error {
	return d.keep(&d.msg.Body, fld.Tag, fld.Value)
}

// keep stores an undeclared field in fm as opaque bytes, or rejects it.
func (d *decoder) keep(fm *FieldMap, tag int, raw []byte) error {
	if d.c.opts.UnknownTags != UnknownTagPreserve {
		return d.fail(&Error{Kind: UnknownTag, Tag: tag, Actual: string(raw)})
	}
	if fm.Has(tag) {
		return d.fail(&Error{Kind: DuplicateTag, Tag: tag})
	}

	fm.append(Field{Tag: tag, Value: fix.Data(raw), Opaque: true})
	return nil
}

// foreign reports whether no section of the message declares tag, so it
// cannot close an open group.
func (d *decoder) foreign(tag int) bool {
	return !d.c.cat.HeaderSection().Has(tag) &&
		!d.spec.Section.Has(tag) &&
		!d.c.cat.TrailerSection().Has(tag)
}

// addMember parses a declared field into fm, opening a group for a count
// tag.
func (d *decoder) addMember(st *scopeStack, fm *FieldMap, mem schema.Member, raw []byte) error {
	if fm.Has(mem.Tag) {
		return d.fail(&Error{Kind: DuplicateTag, Tag: mem.Tag})
	}

	if mem.Group != nil {
		n, err := fix.ParseInt(raw)
		if err != nil || n < 0 {
			return d.fail(&Error{Kind: MalformedField, Tag: mem.Tag, Expected: "repetition count", Actual: string(raw), Err: err})
		}
		if n > int64(d.remaining) {
			return d.fail(&Error{
				Kind:     GroupCountMismatch,
				Tag:      mem.Tag,
				Expected: strconv.FormatInt(n, 10),
				Actual:   "at most " + strconv.Itoa(d.remaining),
			})
		}

		g := &Group{countTag: mem.Tag}
		fm.append(Field{Tag: mem.Tag, Value: fix.Int(n), Group: g})
		if n == 0 {
			return nil
		}
		return st.push(d, mem.Group, g, int(n))
	}

	fs, ok := d.c.cat.Field(mem.Tag)
	if !ok {
		return d.fail(&Error{Kind: UnknownTag, Tag: mem.Tag})
	}

	v, err := fix.Parse(fs.Kind, raw)
	if err != nil {
		return d.fail(&Error{Kind: MalformedField, Tag: mem.Tag, Expected: fs.Kind.Grammar(), Actual: string(raw), Err: err})
	}

	if fs.LengthTag != 0 && !fm.Has(fs.LengthTag) {
		return d.fail(&Error{
			Kind:     TagOutOfOrder,
			Tag:      mem.Tag,
			Expected: "length field " + strconv.Itoa(fs.LengthTag) + " first",
		})
	}

	if d.enumErr == nil && d.c.opts.CheckEnums && len(fs.Enums) > 0 && !enumAllowed(fs, raw) {
		d.enumErr = d.fail(&Error{Kind: ValueOutOfRange, Tag: mem.Tag, Actual: string(raw), Expected: "one of the field's enumerated values"})
	}

	fm.append(Field{Tag: mem.Tag, Value: v})
	return nil
}

func (d *decoder) requireAll(sec *schema.Section, fm *FieldMap) error {
	for _, tag := range sec.Required() {
		if !fm.Has(tag) {
			return d.fail(&Error{Kind: MissingRequiredField, Tag: tag})
		}
	}
	return nil
}

func (d *decoder) validate() error {
	if err := d.st.closeAll(d); err != nil {
		return err
	}

	if err := d.requireAll(d.c.cat.HeaderSection(), &d.msg.Header); err != nil {
		return err
	}
	if err := d.requireAll(&d.spec.Section, &d.msg.Body); err != nil {
		return err
	}
	if err := d.requireAll(d.c.cat.TrailerSection(), &d.msg.Trailer); err != nil {
		return err
	}

	return d.enumErr
}

// enumAllowed checks a value against the enumeration of its field. Multiple
// value types hold space separated tokens, each of which must be allowed.
func enumAllowed(fs schema.FieldSpec, raw []byte) bool {
	if !isMultiValue(fs.Type) {
		_, ok := fs.Enums[string(raw)]
		return ok
	}

	for _, tok := range strings.Fields(string(raw)) {
		if _, ok := fs.Enums[tok]; !ok {
			return false
		}
	}
	return true
}

func isMultiValue(typ string) bool {
	switch strings.ToUpper(typ) {
	case "MULTIPLEVALUESTRING", "MULTIPLESTRINGVALUE", "MULTIPLECHARVALUE":
		return true
	default:
		return false
	}
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
