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
	"strconv"

	"github.com/stephenlclarke/fixcodec/schema"
)

// scope is one entry of the decode stack. The bottom entry is the root of a
// message section (header, body or trailer) and has no group; every entry
// above it is an open repeating group.
type scope struct {
	sec   *schema.Section
	fm    *FieldMap // current repetition; nil until the delimiter is seen
	group *schema.GroupSpec
	reps  *Group
	want  int
}

// scopeStack tracks nested repeating groups without recursion, so the
// nesting a message can force is bounded by maxDepth alone.
type scopeStack struct {
	frames   []scope
	maxDepth int
}

func newScopeStack(sec *schema.Section, fm *FieldMap, maxDepth int) *scopeStack {
	st := &scopeStack{maxDepth: maxDepth, frames: make([]scope, 1, 4)}
	st.frames[0] = scope{sec: sec, fm: fm}
	return st
}

func (st *scopeStack) top() *scope { return &st.frames[len(st.frames)-1] }

func (st *scopeStack) depth() int { return len(st.frames) - 1 }

// place files one field into the innermost scope that declares its tag,
// closing groups that do not. A tag foreign to the message stays in the
// innermost open repetition under the unknown tag policy. It reports false,
// with every group closed, when no scope of the section declares the tag.
func (st *scopeStack) place(d *decoder, tag int, raw []byte) (bool, error) {
	for {
		top := st.top()

		if top.group == nil {
			mem, ok := top.sec.Member(tag)
			if !ok {
				return false, nil
			}
			return true, d.addMember(st, top.fm, mem, raw)
		}

		g := top.group
		if tag == g.Delimiter() {
			if err := d.closeRepetition(top); err != nil {
				return true, err
			}
			if top.reps.Len() == top.want {
				return true, d.fail(&Error{
					Kind:     GroupCountMismatch,
					Tag:      g.CountTag,
					Expected: strconv.Itoa(top.want),
					Actual:   "more than " + strconv.Itoa(top.want),
				})
			}
			top.fm = top.reps.Add()
			return true, d.addMember(st, top.fm, g.Members[0], raw)
		}

		if mem, ok := g.Member(tag); ok {
			if top.fm == nil {
				return true, d.fail(&Error{
					Kind:     TagOutOfOrder,
					Tag:      tag,
					Expected: "delimiter " + strconv.Itoa(g.Delimiter()),
					Actual:   strconv.Itoa(tag),
				})
			}
			return true, d.addMember(st, top.fm, mem, raw)
		}

		if !st.declares(tag) && d.foreign(tag) {
			if top.fm == nil && d.c.opts.UnknownTags == UnknownTagPreserve {
				return true, d.fail(&Error{
					Kind:     TagOutOfOrder,
					Tag:      tag,
					Expected: "delimiter " + strconv.Itoa(g.Delimiter()),
					Actual:   strconv.Itoa(tag),
				})
			}
			return true, d.keep(top.fm, tag, raw)
		}

		if err := st.pop(d); err != nil {
			return true, err
		}
	}
}

// declares reports whether any open scope declares tag.
func (st *scopeStack) declares(tag int) bool {
	for i := range st.frames {
		if st.frames[i].sec.Has(tag) {
			return true
		}
	}
	return false
}

// push opens a group whose count field has just been read.
func (st *scopeStack) push(d *decoder, g *schema.GroupSpec, reps *Group, want int) error {
	if st.depth() >= st.maxDepth {
		return d.fail(&Error{
			Kind:     GroupTooDeep,
			Tag:      g.CountTag,
			Expected: "at most " + strconv.Itoa(st.maxDepth) + " levels",
		})
	}

	st.frames = append(st.frames, scope{sec: &g.Section, group: g, reps: reps, want: want})
	return nil
}

// pop closes the innermost group. Closing it short of its declared count
// is the truncated group case.
func (st *scopeStack) pop(d *decoder) error {
	top := st.top()

	if err := d.closeRepetition(top); err != nil {
		return err
	}
	if got := top.reps.Len(); got < top.want {
		return d.fail(&Error{
			Kind:     GroupCountMismatch,
			Tag:      top.group.CountTag,
			Expected: strconv.Itoa(top.want),
			Actual:   strconv.Itoa(got),
		})
	}

	st.frames = st.frames[:len(st.frames)-1]
	return nil
}

// closeAll closes every open group, leaving the root.
func (st *scopeStack) closeAll(d *decoder) error {
	for st.depth() > 0 {
		if err := st.pop(d); err != nil {
			return err
		}
	}
	return nil
}

// closeRepetition checks the required members of the repetition being left.
func (d *decoder) closeRepetition(s *scope) error {
	if s.fm == nil {
		return nil
	}
	return d.requireAll(s.sec, s.fm)
}

// appendGroup renders a repeating group: the count literal, then each
// repetition's members in schema order. depth is the nesting level of g.
func (e *encoder) appendGroup(buf []byte, mem schema.Member, f Field, depth int) ([]byte, error) {
	g := mem.Group

	if depth > e.c.opts.groupDepth() {
		return buf, e.fail(&Error{
			Kind:     GroupTooDeep,
			Tag:      g.CountTag,
			Expected: "at most " + strconv.Itoa(e.c.opts.groupDepth()) + " levels",
		})
	}
	if f.Group == nil {
		return buf, e.fail(&Error{Kind: KindMismatch, Tag: mem.Tag, Expected: "group", Actual: f.Value.Kind().String()})
	}

	buf = strconv.AppendInt(buf, int64(g.CountTag), 10)
	buf = append(buf, '=')
	buf = strconv.AppendInt(buf, int64(f.Group.Len()), 10)
	buf = append(buf, soh)

	for i, rep := range f.Group.All() {
		if !rep.Has(g.Delimiter()) {
			return buf, e.fail(&Error{
				Kind:     MissingRequiredField,
				Tag:      g.Delimiter(),
				Expected: "delimiter in repetition " + strconv.Itoa(i+1) + " of group " + strconv.Itoa(g.CountTag),
			})
		}

		var err error
		if buf, err = e.appendScope(buf, &g.Section, rep, nil, depth); err != nil {
			return buf, err
		}
	}

	return buf, nil
}
