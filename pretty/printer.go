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
	"strings"

	"github.com/stephenlclarke/fixcodec/codec"
	"github.com/stephenlclarke/fixcodec/fix"
	"github.com/stephenlclarke/fixcodec/schema"
)

// Printer lists the fields of decoded messages with their dictionary names
// and enum descriptions. Obfuscator may be nil.
type Printer struct {
	Dict       *schema.Dictionary
	Palette    Palette
	Obfuscator *fix.Obfuscator
}

// Message writes every field of m, header to trailer, one per line. Group
// repetitions are indented under their count field.
func (p *Printer) Message(w io.Writer, m *codec.Message) {
	p.fields(w, &m.Header, 4)
	p.fields(w, &m.Body, 4)
	p.fields(w, &m.Trailer, 4)
}

func (p *Printer) fields(w io.Writer, fm *codec.FieldMap, indent int) {
	for f := range fm.Fields() {
		if f.Group != nil {
			p.line(w, f.Tag, fmt.Sprint(f.Group.Len()), indent)
			for i, rep := range f.Group.All() {
				fmt.Fprintf(w, "%s%s[%d]%s\n", strings.Repeat(" ", indent+4), p.Palette.Line, i+1, p.Palette.Reset)
				p.fields(w, rep, indent+8)
			}
			continue
		}

		val := strings.ReplaceAll(f.Value.String(), "\x01", "|")
		p.line(w, f.Tag, val, indent)
	}
}

func (p *Printer) line(w io.Writer, tag int, val string, indent int) {
	pal := p.Palette
	desc := p.Dict.EnumDescription(tag, val)
	shown := p.Obfuscator.Alias(tag, val)

	fmt.Fprintf(w, "%s%s%4d%s (%s%s%s): %s%s%s",
		strings.Repeat(" ", indent),
		pal.Tag, tag, pal.Reset,
		pal.Name, p.Dict.FieldName(tag), pal.Reset,
		pal.Value, shown, pal.Reset,
	)
	if desc != "" {
		fmt.Fprintf(w, " (%s%s%s)", pal.Enum, desc, pal.Reset)
	}
	fmt.Fprintln(w)
}

// Error writes a decode failure under a message.
func (p *Printer) Error(w io.Writer, err error) {
	fmt.Fprintf(w, "%s== %s%s\n", p.Palette.Error, err, p.Palette.Reset)
}
