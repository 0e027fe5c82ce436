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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlDictionary struct {
	BeginString string                `yaml:"begin_string"`
	ServicePack string                `yaml:"service_pack"`
	Fields      []yamlField           `yaml:"fields"`
	Header      []yamlPart            `yaml:"header"`
	Trailer     []yamlPart            `yaml:"trailer"`
	Components  map[string][]yamlPart `yaml:"components"`
	Messages    []yamlMessage         `yaml:"messages"`
}

type yamlField struct {
	Tag   int               `yaml:"tag"`
	Name  string            `yaml:"name"`
	Type  string            `yaml:"type"`
	Enums map[string]string `yaml:"enums"`
}

// yamlPart sets exactly one of Field, Group or Component.
type yamlPart struct {
	Field     string     `yaml:"field"`
	Group     string     `yaml:"group"`
	Component string     `yaml:"component"`
	Required  bool       `yaml:"required"`
	Parts     []yamlPart `yaml:"parts"`
}

type yamlMessage struct {
	Name     string     `yaml:"name"`
	MsgType  string     `yaml:"msgtype"`
	Category string     `yaml:"category"`
	Parts    []yamlPart `yaml:"parts"`
}

// LoadYAML reads a YAML dictionary and compiles it.
func LoadYAML(r io.Reader) (*Dictionary, error) {
	def, err := ReadYAML(r)
	if err != nil {
		return nil, err
	}
	return New(def)
}

// ReadYAML reads a YAML dictionary into a Definition. Unknown keys are
// rejected.
func ReadYAML(r io.Reader) (Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw yamlDictionary
	if err := dec.Decode(&raw); err != nil {
		return Definition{}, fmt.Errorf("schema: parse yaml dictionary: %w", err)
	}

	def := Definition{
		BeginString: raw.BeginString,
		ServicePack: raw.ServicePack,
		Fields:      make([]FieldDef, 0, len(raw.Fields)),
		Components:  make(map[string][]Part, len(raw.Components)),
		Messages:    make([]MessageDef, 0, len(raw.Messages)),
	}

	if def.ServicePack == "" {
		def.ServicePack = "n/a"
	}

	for _, f := range raw.Fields {
		def.Fields = append(def.Fields, FieldDef(f))
	}

	var err error
	if def.Header, err = convertYAMLParts(raw.Header); err != nil {
		return Definition{}, err
	}
	if def.Trailer, err = convertYAMLParts(raw.Trailer); err != nil {
		return Definition{}, err
	}

	for name, parts := range raw.Components {
		if def.Components[name], err = convertYAMLParts(parts); err != nil {
			return Definition{}, fmt.Errorf("component %s: %w", name, err)
		}
	}

	for _, m := range raw.Messages {
		parts, err := convertYAMLParts(m.Parts)
		if err != nil {
			return Definition{}, fmt.Errorf("message %s: %w", m.Name, err)
		}
		def.Messages = append(def.Messages, MessageDef{
			Name:     m.Name,
			MsgType:  m.MsgType,
			Category: m.Category,
			Parts:    parts,
		})
	}

	return def, nil
}

func convertYAMLParts(in []yamlPart) ([]Part, error) {
	out := make([]Part, 0, len(in))

	for _, p := range in {
		var part Part
		set := 0

		if p.Field != "" {
			part = FieldPart(p.Field, p.Required)
			set++
		}
		if p.Group != "" {
			sub, err := convertYAMLParts(p.Parts)
			if err != nil {
				return nil, fmt.Errorf("group %s: %w", p.Group, err)
			}
			part = GroupPart(p.Group, p.Required, sub...)
			set++
		}
		if p.Component != "" {
			part = ComponentPart(p.Component, p.Required)
			set++
		}

		if set != 1 {
			return nil, fmt.Errorf("schema: yaml part must set exactly one of field, group or component")
		}
		out = append(out, part)
	}

	return out, nil
}

// LoadFile compiles a dictionary file, choosing the format by extension.
func LoadFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open dictionary: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	case ".xml":
		return LoadXML(f)
	default:
		return nil, fmt.Errorf("schema: unsupported dictionary format %q", path)
	}
}
