// xml.go
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
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// xmlDictionary mirrors the QuickFIX dictionary layout. Message, group and
// component children are captured in document order through ",any".
type xmlDictionary struct {
	XMLName     xml.Name       `xml:"fix"`
	Type        string         `xml:"type,attr"`
	Major       string         `xml:"major,attr"`
	Minor       string         `xml:"minor,attr"`
	ServicePack string         `xml:"servicepack,attr"`
	Fields      []xmlField     `xml:"fields>field"`
	Messages    []xmlMessage   `xml:"messages>message"`
	Components  []xmlComponent `xml:"components>component"`
	Header      xmlPart        `xml:"header"`
	Trailer     xmlPart        `xml:"trailer"`
}

type xmlField struct {
	Name   string     `xml:"name,attr"`
	Number int        `xml:"number,attr"`
	Type   string     `xml:"type,attr"`
	Values []xmlValue `xml:"value"`

	ValuesWrapper []xmlValue `xml:"values>value"`
}

type xmlValue struct {
	Enum        string `xml:"enum,attr"`
	Description string `xml:"description,attr"`
}

type xmlPart struct {
	XMLName  xml.Name
	Name     string    `xml:"name,attr"`
	Required string    `xml:"required,attr"`
	Parts    []xmlPart `xml:",any"`
}

type xmlComponent struct {
	Name  string    `xml:"name,attr"`
	Parts []xmlPart `xml:",any"`
}

type xmlMessage struct {
	Name    string    `xml:"name,attr"`
	MsgType string    `xml:"msgtype,attr"`
	MsgCat  string    `xml:"msgcat,attr"`
	Parts   []xmlPart `xml:",any"`
}

// LoadXML reads a QuickFIX-format XML dictionary and compiles it.
func LoadXML(r io.Reader) (*Dictionary, error) {
	def, err := ReadXML(r)
	if err != nil {
		return nil, err
	}
	return New(def)
}

// ReadXML reads a QuickFIX-format XML dictionary into a Definition.
func ReadXML(r io.Reader) (Definition, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var raw xmlDictionary
	if err := dec.Decode(&raw); err != nil {
		return Definition{}, fmt.Errorf("schema: parse xml dictionary: %w", err)
	}

	fixType := raw.Type
	if fixType == "" {
		fixType = "FIX"
	}

	def := Definition{
		BeginString: fixType + "." + raw.Major + "." + raw.Minor,
		ServicePack: raw.ServicePack,
		Fields:      make([]FieldDef, 0, len(raw.Fields)),
		Header:      convertXMLParts(raw.Header.Parts),
		Trailer:     convertXMLParts(raw.Trailer.Parts),
		Components:  make(map[string][]Part, len(raw.Components)),
		Messages:    make([]MessageDef, 0, len(raw.Messages)),
	}

	if def.ServicePack == "" {
		def.ServicePack = "n/a"
	}

	for _, f := range raw.Fields {
		fd := FieldDef{Tag: f.Number, Name: f.Name, Type: f.Type}

		if n := len(f.Values) + len(f.ValuesWrapper); n > 0 {
			fd.Enums = make(map[string]string, n)
			for _, v := range f.Values {
				fd.Enums[v.Enum] = v.Description
			}
			for _, v := range f.ValuesWrapper {
				fd.Enums[v.Enum] = v.Description
			}
		}

		def.Fields = append(def.Fields, fd)
	}

	for _, c := range raw.Components {
		def.Components[c.Name] = convertXMLParts(c.Parts)
	}

	for _, m := range raw.Messages {
		def.Messages = append(def.Messages, MessageDef{
			Name:     m.Name,
			MsgType:  m.MsgType,
			Category: m.MsgCat,
			Parts:    convertXMLParts(m.Parts),
		})
	}

	return def, nil
}

func convertXMLParts(in []xmlPart) []Part {
	out := make([]Part, 0, len(in))

	for _, p := range in {
		part := Part{Name: p.Name, Required: strings.EqualFold(p.Required, "Y")}

		switch p.XMLName.Local {
		case "field":
			part.Kind = PartField
		case "group":
			part.Kind = PartGroup
			part.Parts = convertXMLParts(p.Parts)
		case "component":
			part.Kind = PartComponent
		default:
			continue // other bookkeeping elements
		}

		out = append(out, part)
	}

	return out
}
