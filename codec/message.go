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
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/stephenlclarke/fixcodec/fix"
)

var (
	ErrFieldMissing = errors.New("codec: field missing")
	ErrWrongKind    = errors.New("codec: field has a different kind")
)

// Field is one entry of a FieldMap. Group is set when Tag is the count tag
// of a repeating group; Value then holds the count.
type Field struct {
	Tag    int
	Value  fix.Value
	Group  *Group
	Opaque bool // undeclared tag kept under UnknownTagPreserve
}

// FieldMap is an order preserving set of fields for one flat scope: a
// message header, body or trailer, or one group repetition.
type FieldMap struct {
	fields []Field
}

func (fm *FieldMap) find(tag int) int {
	for i := range fm.fields {
		if fm.fields[i].Tag == tag {
			return i
		}
	}
	return -1
}

func (fm *FieldMap) Len() int { return len(fm.fields) }

func (fm *FieldMap) Has(tag int) bool { return fm.find(tag) >= 0 }

// Tags lists the tags of the scope in order.
func (fm *FieldMap) Tags() []int {
	out := make([]int, len(fm.fields))
	for i, f := range fm.fields {
		out[i] = f.Tag
	}
	return out
}

// Fields yields the entries of the scope in order.
func (fm *FieldMap) Fields() iter.Seq[Field] {
	return func(yield func(Field) bool) {
		for _, f := range fm.fields {
			if !yield(f) {
				return
			}
		}
	}
}

// Field returns the entry for tag.
func (fm *FieldMap) Field(tag int) (Field, bool) {
	if i := fm.find(tag); i >= 0 {
		return fm.fields[i], true
	}
	return Field{}, false
}

// Get returns the value of tag. For a group count tag it is the number of
// repetitions.
func (fm *FieldMap) Get(tag int) (fix.Value, error) {
	i := fm.find(tag)
	if i < 0 {
		return fix.Value{}, fmt.Errorf("%w: tag %d", ErrFieldMissing, tag)
	}

	f := fm.fields[i]
	if f.Group != nil {
		return fix.Int(int64(f.Group.Len())), nil
	}
	return f.Value, nil
}

func (fm *FieldMap) kindErr(tag int, want fix.Kind, got fix.Value) error {
	return fmt.Errorf("%w: tag %d is %s, not %s", ErrWrongKind, tag, got.Kind(), want)
}

func (fm *FieldMap) GetInt(tag int) (int64, error) {
	v, err := fm.Get(tag)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, fm.kindErr(tag, fix.KindInt, v)
	}
	return n, nil
}

func (fm *FieldMap) GetDecimal(tag int) (fix.Decimal, error) {
	v, err := fm.Get(tag)
	if err != nil {
		return fix.Decimal{}, err
	}
	d, ok := v.AsDecimal()
	if !ok {
		return fix.Decimal{}, fm.kindErr(tag, fix.KindDecimal, v)
	}
	return d, nil
}

func (fm *FieldMap) GetString(tag int) (string, error) {
	v, err := fm.Get(tag)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", fm.kindErr(tag, fix.KindString, v)
	}
	return s, nil
}

func (fm *FieldMap) GetChar(tag int) (byte, error) {
	v, err := fm.Get(tag)
	if err != nil {
		return 0, err
	}
	c, ok := v.AsChar()
	if !ok {
		return 0, fm.kindErr(tag, fix.KindChar, v)
	}
	return c, nil
}

func (fm *FieldMap) GetBool(tag int) (bool, error) {
	v, err := fm.Get(tag)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fm.kindErr(tag, fix.KindBool, v)
	}
	return b, nil
}

// GetTime returns the instant of a date, time-of-day or timestamp field.
func (fm *FieldMap) GetTime(tag int) (time.Time, error) {
	v, err := fm.Get(tag)
	if err != nil {
		return time.Time{}, err
	}
	t, _, ok := v.AsTime()
	if !ok {
		return time.Time{}, fm.kindErr(tag, fix.KindTimestamp, v)
	}
	return t, nil
}

func (fm *FieldMap) GetBytes(tag int) ([]byte, error) {
	v, err := fm.Get(tag)
	if err != nil {
		return nil, err
	}
	b, ok := v.AsBytes()
	if !ok {
		return nil, fm.kindErr(tag, fix.KindData, v)
	}
	return b, nil
}

// Set stores v under tag, replacing an existing scalar in place. A group
// under the same tag is replaced by the scalar.
func (fm *FieldMap) Set(tag int, v fix.Value) *FieldMap {
	if i := fm.find(tag); i >= 0 {
		fm.fields[i] = Field{Tag: tag, Value: v}
		return fm
	}
	fm.fields = append(fm.fields, Field{Tag: tag, Value: v})
	return fm
}

func (fm *FieldMap) SetInt(tag int, n int64) *FieldMap { return fm.Set(tag, fix.Int(n)) }

func (fm *FieldMap) SetString(tag int, s string) *FieldMap { return fm.Set(tag, fix.String(s)) }

func (fm *FieldMap) SetChar(tag int, c byte) *FieldMap { return fm.Set(tag, fix.Char(c)) }

func (fm *FieldMap) SetBool(tag int, b bool) *FieldMap { return fm.Set(tag, fix.Bool(b)) }

func (fm *FieldMap) SetDecimal(tag int, d fix.Decimal) *FieldMap {
	return fm.Set(tag, fix.DecimalValue(d))
}

func (fm *FieldMap) SetTimestamp(tag int, t time.Time, p fix.Precision) *FieldMap {
	return fm.Set(tag, fix.Timestamp(t, p))
}

func (fm *FieldMap) SetBytes(tag int, b []byte) *FieldMap { return fm.Set(tag, fix.Data(b)) }

// SetOpaque stores raw bytes for a tag the dictionary does not declare.
// Only a codec using UnknownTagPreserve will encode it.
func (fm *FieldMap) SetOpaque(tag int, raw []byte) *FieldMap {
	fm.Set(tag, fix.Data(raw))
	fm.fields[fm.find(tag)].Opaque = true
	return fm
}

func (fm *FieldMap) IsOpaque(tag int) bool {
	i := fm.find(tag)
	return i >= 0 && fm.fields[i].Opaque
}

func (fm *FieldMap) Remove(tag int) {
	if i := fm.find(tag); i >= 0 {
		fm.fields = append(fm.fields[:i], fm.fields[i+1:]...)
	}
}

// Group returns the repeating group introduced by countTag.
func (fm *FieldMap) Group(countTag int) (*Group, error) {
	i := fm.find(countTag)
	if i < 0 {
		return nil, fmt.Errorf("%w: group %d", ErrFieldMissing, countTag)
	}
	if fm.fields[i].Group == nil {
		return nil, fmt.Errorf("%w: tag %d is a scalar, not a group", ErrWrongKind, countTag)
	}
	return fm.fields[i].Group, nil
}

// AddGroup returns the group introduced by countTag, creating an empty one
// when the scope has none.
func (fm *FieldMap) AddGroup(countTag int) *Group {
	if i := fm.find(countTag); i >= 0 && fm.fields[i].Group != nil {
		return fm.fields[i].Group
	}

	g := &Group{countTag: countTag}
	fm.Remove(countTag)
	fm.fields = append(fm.fields, Field{Tag: countTag, Group: g})
	return g
}

// append adds a field without the duplicate check; the decoder has already
// made it.
func (fm *FieldMap) append(f Field) { fm.fields = append(fm.fields, f) }

// equal compares scalar fields regardless of order and group repetitions in
// order. Tags for which skip returns true are ignored.
func (fm *FieldMap) equal(o *FieldMap, skip func(int) bool) bool {
	n, m := 0, 0
	for _, f := range fm.fields {
		if skip != nil && skip(f.Tag) {
			continue
		}
		n++

		g, ok := o.Field(f.Tag)
		if !ok || g.Opaque != f.Opaque || (g.Group == nil) != (f.Group == nil) {
			return false
		}
		if f.Group != nil {
			if !f.Group.Equal(g.Group) {
				return false
			}
			continue
		}
		if !f.Value.Equal(g.Value) {
			return false
		}
	}

	for _, f := range o.fields {
		if skip == nil || !skip(f.Tag) {
			m++
		}
	}
	return n == m
}

func (fm *FieldMap) Equal(o *FieldMap) bool { return fm.equal(o, nil) }

// Group is an ordered list of repetitions of a repeating group.
type Group struct {
	countTag int
	reps     []*FieldMap
}

func (g *Group) CountTag() int { return g.countTag }

func (g *Group) Len() int { return len(g.reps) }

// Get returns repetition i, or nil when out of range.
func (g *Group) Get(i int) *FieldMap {
	if i < 0 || i >= len(g.reps) {
		return nil
	}
	return g.reps[i]
}

// Add appends an empty repetition and returns it for filling.
func (g *Group) Add() *FieldMap {
	fm := &FieldMap{}
	g.reps = append(g.reps, fm)
	return fm
}

// All yields the repetitions in order. The sequence can be ranged over any
// number of times.
func (g *Group) All() iter.Seq2[int, *FieldMap] {
	return func(yield func(int, *FieldMap) bool) {
		for i, fm := range g.reps {
			if !yield(i, fm) {
				return
			}
		}
	}
}

func (g *Group) Equal(o *Group) bool {
	if g.countTag != o.countTag || len(g.reps) != len(o.reps) {
		return false
	}
	for i := range g.reps {
		if !g.reps[i].Equal(o.reps[i]) {
			return false
		}
	}
	return true
}

// Message is a decoded or outbound FIX message.
type Message struct {
	Header  FieldMap
	Body    FieldMap
	Trailer FieldMap
}

// NewMessage starts an outbound message with BeginString and MsgType set.
func NewMessage(beginString, msgType string) *Message {
	m := &Message{}
	m.Header.SetString(fix.TagBeginString, beginString)
	m.Header.SetString(fix.TagMsgType, msgType)
	return m
}

func (m *Message) MsgType() string {
	s, _ := m.Header.GetString(fix.TagMsgType)
	return s
}

func (m *Message) BeginString() string {
	s, _ := m.Header.GetString(fix.TagBeginString)
	return s
}

// BodyLength is the value decoded from the wire; outbound messages have
// none.
func (m *Message) BodyLength() (int, bool) {
	n, err := m.Header.GetInt(fix.TagBodyLength)
	return int(n), err == nil
}

// CheckSum is the value decoded from the wire; outbound messages have none.
func (m *Message) CheckSum() (int, bool) {
	v, err := m.Trailer.Get(fix.TagCheckSum)
	if err != nil {
		return 0, false
	}
	if n, ok := v.AsInt(); ok {
		return int(n), true
	}
	n, err := strconv.Atoi(v.String())
	return n, err == nil
}

// Equal compares two messages field for field, ignoring the derived
// BodyLength and CheckSum.
func (m *Message) Equal(o *Message) bool {
	return m.Header.equal(&o.Header, fix.IsDerived) &&
		m.Body.equal(&o.Body, nil) &&
		m.Trailer.equal(&o.Trailer, fix.IsDerived)
}

// String renders the fields in stored order with '|' for SOH. It is a
// debugging aid, not an encoding.
func (m *Message) String() string {
	var b strings.Builder
	writeFields(&b, &m.Header)
	writeFields(&b, &m.Body)
	writeFields(&b, &m.Trailer)
	return b.String()
}

func writeFields(b *strings.Builder, fm *FieldMap) {
	for _, f := range fm.fields {
		b.WriteString(strconv.Itoa(f.Tag))
		b.WriteByte('=')

		if f.Group != nil {
			b.WriteString(strconv.Itoa(f.Group.Len()))
			b.WriteByte('|')
			for _, rep := range f.Group.reps {
				writeFields(b, rep)
			}
			continue
		}

		b.WriteString(strings.ReplaceAll(f.Value.String(), "\x01", "|"))
		b.WriteByte('|')
	}
}
