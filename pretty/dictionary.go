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
package pretty

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/stephenlclarke/fixcodec/schema"
)

// Browser prints dictionary contents.
type Browser struct {
	Dict    *schema.Dictionary
	Palette Palette
	Width   int
	Verbose bool // list enum values under fields
	Columns bool // lay enum values out in columns
}

func (b *Browser) width() int {
	if b.Width <= 0 {
		return 80
	}
	return b.Width
}

// Summary prints the version and size of the dictionary.
func (b *Browser) Summary(w io.Writer) {
	d := b.Dict
	fmt.Fprintf(w, "%sBeginString:%s  %s\n", b.Palette.Name, b.Palette.Reset, d.BeginString)
	fmt.Fprintf(w, "%sServicePack:%s  %s\n", b.Palette.Name, b.Palette.Reset, d.ServicePack)
	fmt.Fprintf(w, "%sMessages:%s     %d\n", b.Palette.Name, b.Palette.Reset, len(d.Messages))
	fmt.Fprintf(w, "%sFields:%s       %d\n", b.Palette.Name, b.Palette.Reset, len(d.Fields))
	fmt.Fprintf(w, "%sComponents:%s   %d\n", b.Palette.Name, b.Palette.Reset, len(d.Components))
}

// ListMessages prints every message as "type: name" in columns.
func (b *Browser) ListMessages(w io.Writer) {
	var items []string
	for _, mt := range slices.Sorted(maps.Keys(b.Dict.Messages)) {
		items = append(items, fmt.Sprintf("%s: %s", mt, b.Dict.Messages[mt].Name))
	}
	Columns(w, items, b.width(), 0)
}

// ListFields prints every field as "tag: name" in columns.
func (b *Browser) ListFields(w io.Writer) {
	var items []string
	for _, tag := range slices.Sorted(maps.Keys(b.Dict.Fields)) {
		items = append(items, fmt.Sprintf("%d: %s", tag, b.Dict.Fields[tag].Name))
	}
	Columns(w, items, b.width(), 0)
}

// ListComponents prints the component names, in columns when Columns is
// set.
func (b *Browser) ListComponents(w io.Writer) {
	names := slices.Sorted(maps.Keys(b.Dict.Components))
	if b.Columns {
		Columns(w, names, b.width(), 0)
		return
	}
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
}

// Component prints the flattened layout of a named component.
func (b *Browser) Component(w io.Writer, name string, sec *schema.Section) {
	fmt.Fprintf(w, "%sComponent:%s %s%s%s\n", b.Palette.Title, b.Palette.Reset, b.Palette.Msg, name, b.Palette.Reset)
	b.section(w, sec, 4)
}

// Field prints one field definition.
func (b *Browser) Field(w io.Writer, fs schema.FieldSpec) {
	b.field(w, fs, false, 0)
}

func (b *Browser) field(w io.Writer, fs schema.FieldSpec, required bool, indent int) {
	fmt.Fprintf(w, "%s%s%-4d%s: %s%s%s (%s)%s\n",
		strings.Repeat(" ", indent),
		b.Palette.Tag, fs.Tag, b.Palette.Reset,
		b.Palette.Name, fs.Name, b.Palette.Reset,
		fs.Type, formatRequired(required),
	)
	if fs.LengthTag != 0 {
		fmt.Fprintf(w, "%s    length in %d (%s)\n", strings.Repeat(" ", indent), fs.LengthTag, b.Dict.FieldName(fs.LengthTag))
	}
	if !b.Verbose || len(fs.Enums) == 0 {
		return
	}

	var items []string
	for _, e := range slices.Sorted(maps.Keys(fs.Enums)) {
		items = append(items, fmt.Sprintf("%s%s%s: %s", b.Palette.Enum, e, b.Palette.Reset, fs.Enums[e]))
	}
	if b.Columns {
		Columns(w, items, b.width(), indent+4)
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", indent+4), it)
	}
}

// Message prints the layout of a message. With envelope set the header
// and trailer are included around the body.
func (b *Browser) Message(w io.Writer, m *schema.MessageSpec, envelope bool) {
	fmt.Fprintf(w, "%sMessage:%s %s%s%s (%s)\n", b.Palette.Title, b.Palette.Reset, b.Palette.Msg, m.Name, b.Palette.Reset, m.MsgType)

	if envelope {
		fmt.Fprintf(w, "  %sHeader%s\n", b.Palette.Title, b.Palette.Reset)
		b.section(w, b.Dict.Header, 4)
		fmt.Fprintf(w, "  %sBody%s\n", b.Palette.Title, b.Palette.Reset)
		b.section(w, &m.Section, 4)
		fmt.Fprintf(w, "  %sTrailer%s\n", b.Palette.Title, b.Palette.Reset)
		b.section(w, b.Dict.Trailer, 4)
		return
	}
	b.section(w, &m.Section, 2)
}

func (b *Browser) section(w io.Writer, s *schema.Section, indent int) {
	for _, mem := range s.Members {
		fs, ok := b.Dict.Field(mem.Tag)
		if !ok {
			fs = schema.FieldSpec{Tag: mem.Tag, Name: b.Dict.FieldName(mem.Tag)}
		}

		if mem.Group == nil {
			b.field(w, fs, mem.Required, indent)
			continue
		}

		fmt.Fprintf(w, "%sGroup: %s%s%s (%d)%s\n",
			strings.Repeat(" ", indent),
			b.Palette.Name, mem.Group.Name, b.Palette.Reset,
			mem.Tag, formatRequired(mem.Required),
		)
		b.section(w, &mem.Group.Section, indent+4)
	}
}

func formatRequired(req bool) string {
	if req {
		return " - (Y)"
	}
	return ""
}

// Columns lays items out top to bottom then left to right so that each
// row fits width. ANSI sequences are not counted towards item widths.
func Columns(w io.Writer, items []string, width, indent int) {
	if len(items) == 0 {
		return
	}

	usable := width - indent
	if usable <= 0 {
		usable = width
	}

	maxLen := 0
	for _, s := range items {
		maxLen = max(maxLen, visibleLen(s))
	}

	cols := max(usable/(maxLen+2), 1)
	rows := (len(items) + cols - 1) / cols

	for r := range rows {
		var line strings.Builder
		line.WriteString(strings.Repeat(" ", indent))

		for c := range cols {
			i := c*rows + r
			if i >= len(items) {
				continue
			}
			line.WriteString(items[i])
			if c < cols-1 {
				line.WriteString(strings.Repeat(" ", maxLen+2-visibleLen(items[i])))
			}
		}

		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

func visibleLen(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		n++
	}
	return n
}
