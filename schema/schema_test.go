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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephenlclarke/fixcodec/fix"
)

func embedded(t *testing.T) *Dictionary {
	t.Helper()

	d, err := LoadXML(strings.NewReader(fix.ChooseEmbeddedXML("44")))
	require.NoError(t, err)
	return d
}

func TestLoadEmbeddedDictionary(t *testing.T) {
	d := embedded(t)

	assert.Equal(t, "FIX.4.4", d.BeginString)
	assert.Equal(t, "0", d.ServicePack)

	hdr := d.HeaderSection()
	require.GreaterOrEqual(t, len(hdr.Members), 3)
	assert.Equal(t, []int{8, 9, 35}, []int{hdr.Members[0].Tag, hdr.Members[1].Tag, hdr.Members[2].Tag})
	assert.Equal(t, []int{8, 9, 35, 49, 56, 34, 52}, hdr.Required())

	tr := d.TrailerSection()
	assert.Equal(t, fix.TagCheckSum, tr.Members[len(tr.Members)-1].Tag)

	nos, err := d.Lookup("D")
	require.NoError(t, err)
	assert.Equal(t, "NewOrderSingle", nos.Name)
	assert.Equal(t, "app", nos.Category)
	assert.Equal(t, []int{11, 55, 54, 60, 40}, nos.Required())

	_, err = d.Lookup("ZZ")
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	byName, ok := d.MessageByName("Logon")
	require.True(t, ok)
	assert.Equal(t, "A", byName.MsgType)
	byType, ok := d.MessageByName("A")
	require.True(t, ok)
	assert.Same(t, byName, byType)
}

func TestNestedGroups(t *testing.T) {
	nos, err := embedded(t).Lookup("D")
	require.NoError(t, err)

	parties, ok := nos.Member(453)
	require.True(t, ok)
	require.NotNil(t, parties.Group)
	assert.False(t, parties.Required, "members of an optional component are optional")
	assert.Equal(t, 448, parties.Group.Delimiter())
	assert.Equal(t, "NoPartyIDs", parties.Group.Name)

	subs, ok := parties.Group.Member(802)
	require.True(t, ok)
	require.NotNil(t, subs.Group)
	assert.Equal(t, 523, subs.Group.Delimiter())

	// Group members live in their own scope.
	assert.False(t, nos.Has(448))
	assert.False(t, parties.Group.Has(523))

	sym, ok := nos.Member(55)
	require.True(t, ok)
	assert.True(t, sym.Required)
}

func TestFieldLookups(t *testing.T) {
	d := embedded(t)

	f, ok := d.Field(44)
	require.True(t, ok)
	assert.Equal(t, "Price", f.Name)
	assert.Equal(t, "PRICE", f.Type)
	assert.Equal(t, fix.KindDecimal, f.Kind)

	byName, ok := d.FieldByName("Price")
	require.True(t, ok)
	assert.Equal(t, f, byName)

	_, ok = d.FieldByName("NoSuchField")
	assert.False(t, ok)

	assert.Equal(t, "Side", d.FieldName(54))
	assert.Equal(t, "9999", d.FieldName(9999))
	assert.Equal(t, "BUY", d.EnumDescription(54, "1"))
	assert.Equal(t, "", d.EnumDescription(54, "Z"))
	assert.Equal(t, "", d.EnumDescription(9999, "1"))

	lt, ok := d.DataLengthTag(96)
	require.True(t, ok)
	assert.Equal(t, 95, lt)

	lt, ok = d.DataLengthTag(fix.TagSignature)
	require.True(t, ok)
	assert.Equal(t, fix.TagSignatureLength, lt)

	_, ok = d.DataLengthTag(55)
	assert.False(t, ok)
}

func TestYAMLMatchesXML(t *testing.T) {
	fromXML, err := LoadFile(filepath.Join("testdata", "mini.xml"))
	require.NoError(t, err)

	fromYAML, err := LoadFile(filepath.Join("testdata", "mini.yaml"))
	require.NoError(t, err)

	assert.Equal(t, fromXML, fromYAML)

	nos, err := fromYAML.Lookup("D")
	require.NoError(t, err)
	parties, ok := nos.Member(453)
	require.True(t, ok)
	assert.False(t, parties.Required)
	assert.Equal(t, []int{448}, parties.Group.Required())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "missing.xml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "dict.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "unsupported dictionary format")
}

func TestReadYAMLStrict(t *testing.T) {
	_, err := ReadYAML(strings.NewReader("begin_string: FIX.4.4\nbogus: 1\n"))
	assert.Error(t, err)

	_, err = ReadYAML(strings.NewReader("header:\n  - {field: BeginString, group: NoPartyIDs}\n"))
	assert.ErrorContains(t, err, "exactly one of")

	_, err = ReadYAML(strings.NewReader("header:\n  - {required: true}\n"))
	assert.ErrorContains(t, err, "exactly one of")
}

func TestReadXMLMalformed(t *testing.T) {
	_, err := ReadXML(strings.NewReader("<fix><fields>"))
	assert.Error(t, err)
}

func TestReadXMLDefaultsServicePack(t *testing.T) {
	def, err := ReadXML(strings.NewReader("<fix type='FIX' major='4' minor='2'><header/><trailer/></fix>"))
	require.NoError(t, err)
	assert.Equal(t, "FIX.4.2", def.BeginString)
	assert.Equal(t, "n/a", def.ServicePack)
}

func minimal() Definition {
	fields := append(StandardFields(),
		FieldDef{Tag: 112, Name: "TestReqID", Type: "STRING"},
		FieldDef{Tag: 448, Name: "PartyID", Type: "STRING"},
		FieldDef{Tag: 452, Name: "PartyRole", Type: "INT"},
		FieldDef{Tag: 453, Name: "NoPartyIDs", Type: "NUMINGROUP"},
	)

	return Definition{
		BeginString: "FIX.4.4",
		Fields:      fields,
		Header:      StandardHeader(),
		Trailer:     StandardTrailer(),
		Components: map[string][]Part{
			"Parties": {GroupPart("NoPartyIDs", false, FieldPart("PartyID", true), FieldPart("PartyRole", false))},
		},
		Messages: []MessageDef{
			{Name: "Heartbeat", MsgType: "0", Parts: []Part{FieldPart("TestReqID", false)}},
			{Name: "News", MsgType: "B", Parts: []Part{ComponentPart("Parties", true)}},
		},
	}
}

func TestNewBuildsDefinition(t *testing.T) {
	d, err := New(minimal())
	require.NoError(t, err)

	news, err := d.Lookup("B")
	require.NoError(t, err)
	m, ok := news.Member(453)
	require.True(t, ok)
	assert.False(t, m.Required)
	assert.Equal(t, 448, m.Group.Delimiter())
	assert.Equal(t, []int{448}, m.Group.Required())

	parties, ok := d.Component("Parties")
	require.True(t, ok)
	pm, ok := parties.Member(453)
	require.True(t, ok)
	assert.Equal(t, "NoPartyIDs", pm.Group.Name)
	_, ok = d.Component("Nope")
	assert.False(t, ok)
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
		want   string
	}{
		{"duplicate tag", func(d *Definition) {
			d.Fields = append(d.Fields, FieldDef{Tag: 112, Name: "Other", Type: "STRING"})
		}, "declared twice"},
		{"duplicate name", func(d *Definition) {
			d.Fields = append(d.Fields, FieldDef{Tag: 9000, Name: "TestReqID", Type: "STRING"})
		}, "declared twice"},
		{"non-positive tag", func(d *Definition) {
			d.Fields = append(d.Fields, FieldDef{Tag: 0, Name: "Zero", Type: "STRING"})
		}, "must be positive"},
		{"unknown field", func(d *Definition) {
			d.Messages[0].Parts = append(d.Messages[0].Parts, FieldPart("Nope", false))
		}, "unknown field Nope"},
		{"unknown component", func(d *Definition) {
			d.Messages[0].Parts = append(d.Messages[0].Parts, ComponentPart("Nope", false))
		}, "unknown component Nope"},
		{"component cycle", func(d *Definition) {
			d.Components["Loop"] = []Part{ComponentPart("Loop", false)}
			d.Messages[0].Parts = append(d.Messages[0].Parts, ComponentPart("Loop", false))
		}, "nested deeper"},
		{"header order", func(d *Definition) {
			d.Header[0], d.Header[2] = d.Header[2], d.Header[0]
		}, "position of tag 8 is fixed"},
		{"trailer order", func(d *Definition) {
			d.Trailer = append(d.Trailer, FieldPart("PossResend", false))
		}, "position of tag 10 is fixed"},
		{"envelope tag in body", func(d *Definition) {
			d.Messages[0].Parts = append(d.Messages[0].Parts, FieldPart("SenderCompID", false))
		}, "belongs to the envelope"},
		{"duplicate msgtype", func(d *Definition) {
			d.Messages = append(d.Messages, MessageDef{Name: "Again", MsgType: "0"})
		}, "msgtype 0 declared twice"},
		{"empty msgtype", func(d *Definition) {
			d.Messages = append(d.Messages, MessageDef{Name: "Blank"})
		}, "empty msgtype"},
		{"tag twice in scope", func(d *Definition) {
			d.Messages[0].Parts = append(d.Messages[0].Parts, FieldPart("TestReqID", false))
		}, "appears twice"},
		{"group count not numeric", func(d *Definition) {
			d.Messages[0].Parts = append(d.Messages[0].Parts, GroupPart("PartyID", false, FieldPart("PartyRole", false)))
		}, "not numeric"},
		{"empty group", func(d *Definition) {
			d.Components["Parties"] = []Part{GroupPart("NoPartyIDs", false)}
		}, "has no members"},
		{"group led by a group", func(d *Definition) {
			d.Components["Parties"] = []Part{GroupPart("NoPartyIDs", false,
				GroupPart("PartyRole", false, FieldPart("PartyID", false)))}
		}, "must start with a plain field"},
		{"part without kind", func(d *Definition) {
			d.Messages[0].Parts = append(d.Messages[0].Parts, Part{Name: "TestReqID"})
		}, "has no kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := minimal()
			tt.mutate(&def)

			d, err := New(def)
			assert.Nil(t, d)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDictionary))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
