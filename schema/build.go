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
package schema

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/stephenlclarke/fixcodec/fix"
)

var ErrInvalidDictionary = errors.New("schema: invalid dictionary")

// PartKind distinguishes the entries of a definition tree.
type PartKind uint8

const (
	PartField PartKind = iota + 1
	PartGroup
	PartComponent
)

// Part is one node of a dictionary definition, referring to fields,
// groups and components by name.
type Part struct {
	Kind     PartKind
	Name     string
	Required bool
	Parts    []Part // group members
}

func FieldPart(name string, required bool) Part {
	return Part{Kind: PartField, Name: name, Required: required}
}

func GroupPart(name string, required bool, parts ...Part) Part {
	return Part{Kind: PartGroup, Name: name, Required: required, Parts: parts}
}

func ComponentPart(name string, required bool) Part {
	return Part{Kind: PartComponent, Name: name, Required: required}
}

type FieldDef struct {
	Tag   int
	Name  string
	Type  string
	Enums map[string]string
}

type MessageDef struct {
	Name     string
	MsgType  string
	Category string
	Parts    []Part
}

// Definition is the uncompiled form of a dictionary, as read from XML or
// YAML or written out by hand.
type Definition struct {
	BeginString string
	ServicePack string
	Fields      []FieldDef
	Header      []Part
	Trailer     []Part
	Components  map[string][]Part
	Messages    []MessageDef
}

const maxComponentDepth = 32

type builder struct {
	def    Definition
	dict   *Dictionary
	errors []string
}

// New compiles and validates a definition.
func New(def Definition) (*Dictionary, error) {
	b := &builder{
		def: def,
		dict: &Dictionary{
			BeginString: def.BeginString,
			ServicePack: def.ServicePack,
			Fields:      make(map[int]FieldSpec, len(def.Fields)),
			Messages:    make(map[string]*MessageSpec, len(def.Messages)),
			Components:  make(map[string]*Section, len(def.Components)),
			byName:      make(map[string]int, len(def.Fields)),
			msgByName:   make(map[string]*MessageSpec, len(def.Messages)),
		},
	}

	b.buildFields()

	header := b.buildSection("header", def.Header, 0)
	b.dict.Header = &header
	b.checkEnvelope("header", header.Members, []int{fix.TagBeginString, fix.TagBodyLength, fix.TagMsgType}, true)

	trailer := b.buildSection("trailer", def.Trailer, 0)
	b.dict.Trailer = &trailer
	b.checkEnvelope("trailer", trailer.Members, []int{fix.TagCheckSum}, false)

	for _, md := range def.Messages {
		b.buildMessage(md)
	}
	for _, name := range slices.Sorted(maps.Keys(def.Components)) {
		sec := b.buildSection("component "+name, def.Components[name], 0)
		b.dict.Components[name] = &sec
	}

	if len(b.errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDictionary, strings.Join(b.errors, "; "))
	}
	return b.dict, nil
}

func (b *builder) fail(format string, args ...any) {
	b.errors = append(b.errors, fmt.Sprintf(format, args...))
}

func (b *builder) buildFields() {
	for _, f := range b.def.Fields {
		if f.Tag <= 0 {
			b.fail("field %s: tag %d must be positive", f.Name, f.Tag)
			continue
		}
		if _, dup := b.dict.Fields[f.Tag]; dup {
			b.fail("field tag %d declared twice", f.Tag)
			continue
		}
		if _, dup := b.dict.byName[f.Name]; dup {
			b.fail("field name %s declared twice", f.Name)
			continue
		}

		b.dict.Fields[f.Tag] = FieldSpec{
			Tag:   f.Tag,
			Name:  f.Name,
			Type:  f.Type,
			Kind:  fix.KindForType(f.Type),
			Enums: f.Enums,
		}
		b.dict.byName[f.Name] = f.Tag
	}

	// DATA fields are governed by a length field named after them.
	for tag, f := range b.dict.Fields {
		if f.Kind != fix.KindData {
			continue
		}
		for _, suffix := range []string{"Length", "Len"} {
			lt, ok := b.dict.byName[f.Name+suffix]
			if ok && b.dict.Fields[lt].Kind == fix.KindInt {
				f.LengthTag = lt
				b.dict.Fields[tag] = f
				break
			}
		}
	}
}

func (b *builder) buildMessage(md MessageDef) {
	if md.MsgType == "" {
		b.fail("message %s: empty msgtype", md.Name)
		return
	}
	if _, dup := b.dict.Messages[md.MsgType]; dup {
		b.fail("msgtype %s declared twice", md.MsgType)
		return
	}

	m := &MessageSpec{
		MsgType:  md.MsgType,
		Name:     md.Name,
		Category: md.Category,
		Section:  b.buildSection("message "+md.Name, md.Parts, 0),
	}
	for _, mem := range m.Members {
		if b.dict.Header.Has(mem.Tag) || b.dict.Trailer.Has(mem.Tag) {
			b.fail("message %s: tag %d belongs to the envelope", md.Name, mem.Tag)
		}
	}

	b.dict.Messages[md.MsgType] = m
	if md.Name != "" {
		b.dict.msgByName[md.Name] = m
	}
}

// buildSection flattens components and compiles groups for one flat scope.
func (b *builder) buildSection(scope string, parts []Part, depth int) Section {
	members := b.flatten(scope, parts, true, depth)

	seen := make(map[int]bool, len(members))
	for _, m := range members {
		if seen[m.Tag] {
			b.fail("%s: tag %d appears twice in one scope", scope, m.Tag)
		}
		seen[m.Tag] = true
	}

	return newSection(members)
}

func (b *builder) flatten(scope string, parts []Part, required bool, depth int) []Member {
	if depth > maxComponentDepth {
		b.fail("%s: components nested deeper than %d", scope, maxComponentDepth)
		return nil
	}

	var out []Member
	for _, p := range parts {
		switch p.Kind {
		case PartField:
			tag, ok := b.dict.byName[p.Name]
			if !ok {
				b.fail("%s: unknown field %s", scope, p.Name)
				continue
			}
			out = append(out, Member{Tag: tag, Required: required && p.Required})
		case PartGroup:
			if g := b.buildGroup(scope, p, depth); g != nil {
				out = append(out, Member{Tag: g.CountTag, Required: required && p.Required, Group: g})
			}
		case PartComponent:
			sub, ok := b.def.Components[p.Name]
			if !ok {
				b.fail("%s: unknown component %s", scope, p.Name)
				continue
			}
			// Members of an optional component are optional.
			out = append(out, b.flatten(scope+"/"+p.Name, sub, required && p.Required, depth+1)...)
		default:
			b.fail("%s: part %q has no kind", scope, p.Name)
		}
	}
	return out
}

func (b *builder) buildGroup(scope string, p Part, depth int) *GroupSpec {
	tag, ok := b.dict.byName[p.Name]
	if !ok {
		b.fail("%s: unknown group count field %s", scope, p.Name)
		return nil
	}
	if b.dict.Fields[tag].Kind != fix.KindInt {
		b.fail("%s: group count field %s is not numeric", scope, p.Name)
		return nil
	}

	g := &GroupSpec{
		CountTag: tag,
		Name:     p.Name,
		Section:  b.buildSection(scope+"/"+p.Name, p.Parts, depth+1),
	}
	if len(g.Members) == 0 {
		b.fail("%s: group %s has no members", scope, p.Name)
		return nil
	}
	if g.Members[0].Group != nil {
		b.fail("%s: group %s must start with a plain field", scope, p.Name)
		return nil
	}
	if g.Has(tag) {
		b.fail("%s: group %s contains its own count field", scope, p.Name)
		return nil
	}
	return g
}

func (b *builder) checkEnvelope(scope string, members []Member, tags []int, prefix bool) {
	if len(members) < len(tags) {
		b.fail("%s: must declare tags %v", scope, tags)
		return
	}

	at := members[:len(tags)]
	if !prefix {
		at = members[len(members)-len(tags):]
	}
	for i, want := range tags {
		if at[i].Tag != want || at[i].Group != nil {
			b.fail("%s: position of tag %d is fixed", scope, want)
		}
	}
}
