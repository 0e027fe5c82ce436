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

// Package schema holds the compiled, read-only message catalog the codec
// consults: field types, header and trailer layout, and per-message member
// lists including nested repeating groups.
package schema

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stephenlclarke/fixcodec/fix"
)

var ErrUnknownMessageType = errors.New("schema: unknown message type")

// FieldSpec describes one dictionary field.
type FieldSpec struct {
	Tag  int
	Name string
	Type string // dictionary spelling, e.g. PRICE
	Kind fix.Kind

	// LengthTag is the companion length field of a DATA field, 0 if none.
	LengthTag int

	Enums map[string]string // enum -> description
}

// Member is one entry of an ordered member list. Group is set when Tag is
// the count tag of a repeating group.
type Member struct {
	Tag      int
	Required bool
	Group    *GroupSpec
}

// Section is an ordered member list with a tag index. Sections are built by
// New and never modified afterwards.
type Section struct {
	Members []Member
	index   map[int]int
}

func newSection(members []Member) Section {
	s := Section{Members: members, index: make(map[int]int, len(members))}
	for i, m := range members {
		s.index[m.Tag] = i
	}
	return s
}

// Member returns the member declared for tag in this flat scope.
func (s *Section) Member(tag int) (Member, bool) {
	i, ok := s.index[tag]
	if !ok {
		return Member{}, false
	}
	return s.Members[i], true
}

func (s *Section) Has(tag int) bool {
	_, ok := s.index[tag]
	return ok
}

// Required lists the required tags of the scope in declaration order.
func (s *Section) Required() []int {
	var out []int
	for _, m := range s.Members {
		if m.Required {
			out = append(out, m.Tag)
		}
	}
	return out
}

// GroupSpec describes a repeating group introduced by CountTag. The first
// member is the delimiter that starts every repetition.
type GroupSpec struct {
	CountTag int
	Name     string
	Section
}

func (g *GroupSpec) Delimiter() int { return g.Members[0].Tag }

// MessageSpec is the body layout of one message type.
type MessageSpec struct {
	MsgType  string
	Name     string
	Category string
	Section
}

// Dictionary is a compiled catalog. It is immutable and safe for concurrent
// use by any number of codecs.
type Dictionary struct {
	BeginString string
	ServicePack string
	Fields      map[int]FieldSpec
	Header      *Section
	Trailer     *Section
	Messages    map[string]*MessageSpec

	// Components keeps each named component of the definition, flattened
	// like any other scope. Messages do not refer to them.
	Components map[string]*Section

	byName    map[string]int
	msgByName map[string]*MessageSpec
}

// Lookup resolves a message type identifier.
func (d *Dictionary) Lookup(msgType string) (*MessageSpec, error) {
	if m, ok := d.Messages[msgType]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msgType)
}

// MessageByName resolves a message by its dictionary name or its type.
func (d *Dictionary) MessageByName(name string) (*MessageSpec, bool) {
	if m, ok := d.msgByName[name]; ok {
		return m, true
	}
	m, ok := d.Messages[name]
	return m, ok
}

func (d *Dictionary) Field(tag int) (FieldSpec, bool) {
	f, ok := d.Fields[tag]
	return f, ok
}

func (d *Dictionary) FieldByName(name string) (FieldSpec, bool) {
	tag, ok := d.byName[name]
	if !ok {
		return FieldSpec{}, false
	}
	return d.Fields[tag], true
}

// FieldName returns the dictionary name of tag, or the tag number itself.
func (d *Dictionary) FieldName(tag int) string {
	if f, ok := d.Fields[tag]; ok {
		return f.Name
	}
	return strconv.Itoa(tag)
}

// EnumDescription returns the description of an enumerated value, or "".
func (d *Dictionary) EnumDescription(tag int, val string) string {
	if f, ok := d.Fields[tag]; ok {
		return f.Enums[val]
	}
	return ""
}

// DataLengthTag returns the length field governing a DATA field.
func (d *Dictionary) DataLengthTag(tag int) (int, bool) {
	f, ok := d.Fields[tag]
	if !ok || f.Kind != fix.KindData || f.LengthTag == 0 {
		return 0, false
	}
	return f.LengthTag, true
}

func (d *Dictionary) Component(name string) (*Section, bool) {
	c, ok := d.Components[name]
	return c, ok
}

// HeaderSection and TrailerSection expose the fixed envelope layout.
func (d *Dictionary) HeaderSection() *Section { return d.Header }

func (d *Dictionary) TrailerSection() *Section { return d.Trailer }
