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
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephenlclarke/fixcodec/fix"
	"github.com/stephenlclarke/fixcodec/schema"
)

var (
	sendingTime  = time.Date(2025, time.March, 14, 9, 26, 53, 589_000_000, time.UTC)
	transactTime = time.Date(2025, time.March, 14, 9, 26, 53, 589_123_000, time.UTC)
)

func dictionary(t testing.TB) *schema.Dictionary {
	t.Helper()

	d, err := schema.LoadXML(strings.NewReader(fix.ChooseEmbeddedXML("44")))
	require.NoError(t, err)
	return d
}

func newCodec(t testing.TB, opts Options, extra ...Option) *Codec {
	t.Helper()

	c, err := New(dictionary(t), opts, extra...)
	require.NoError(t, err)
	return c
}

// withChecksum appends a valid CheckSum field to a '|' separated prefix.
func withChecksum(prefix string) []byte {
	b := []byte(strings.ReplaceAll(prefix, "|", "\x01"))
	return append(b, fmt.Sprintf("10=%03d\x01", fix.Checksum(b))...)
}

// wire builds a complete message around a '|' separated body that starts
// with MsgType.
func wire(body string) []byte {
	n := len(body)
	return withChecksum("8=FIX.4.4|9=" + strconv.Itoa(n) + "|" + body)
}

const header = "49=BUYER|56=SELLER|34=7|52=20250314-09:26:53.589|"

func newOrder() *Message {
	m := NewMessage("FIX.4.4", "D")
	m.Header.
		SetString(fix.TagSenderCompID, "BUYER").
		SetString(fix.TagTargetCompID, "SELLER").
		SetInt(fix.TagMsgSeqNum, 7).
		SetTimestamp(fix.TagSendingTime, sendingTime, fix.PrecisionMillis)
	m.Body.
		SetString(11, "ORD-1").
		SetString(55, "IBM").
		SetChar(54, '1').
		SetTimestamp(60, transactTime, fix.PrecisionMicros).
		SetDecimal(38, fix.MustDecimal("100")).
		SetChar(40, '2').
		SetDecimal(44, fix.MustDecimal("12.340"))
	return m
}

func requireKind(t *testing.T, err error, want ErrorKind) *Error {
	t.Helper()

	require.Error(t, err)
	var ce *Error
	require.True(t, errors.As(err, &ce), "not a codec error: %v", err)
	require.Equal(t, want, ce.Kind, "error: %v", err)
	return ce
}

func TestNewRequiresPolicies(t *testing.T) {
	d := dictionary(t)

	_, err := New(d, Options{})
	assert.Error(t, err)

	_, err = New(d, Options{UnknownTags: UnknownTagReject})
	assert.Error(t, err)

	_, err = New(nil, StrictOptions())
	assert.Error(t, err)

	_, err = New(d, StrictOptions())
	assert.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	for name, opts := range map[string]Options{"strict": StrictOptions(), "tolerant": TolerantOptions()} {
		t.Run(name, func(t *testing.T) {
			c := newCodec(t, opts)
			m := newOrder()

			out, err := c.Encode(m)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("8=FIX.4.4\x019=")))
			assert.True(t, bytes.Contains(out, []byte("\x0135=D\x01")))

			got, n, err := c.Decode(out)
			require.NoError(t, err)
			assert.Equal(t, len(out), n)
			assert.True(t, m.Equal(got), "decoded %s", got)
			assert.Equal(t, "D", got.MsgType())
			assert.Equal(t, "FIX.4.4", got.BeginString())

			bl, ok := got.BodyLength()
			require.True(t, ok)
			assert.Equal(t, bytes.LastIndex(out, []byte("\x0110="))+1-bytes.Index(out, []byte("35=")), bl)

			again, err := c.Encode(got)
			require.NoError(t, err)
			assert.Equal(t, out, again)
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	c := newCodec(t, StrictOptions())

	out, err := c.Encode(newOrder())
	require.NoError(t, err)

	body := "35=D|" + header + "11=ORD-1|55=IBM|54=1|60=20250314-09:26:53.589123|38=100|40=2|44=12.340|"
	assert.Equal(t, string(wire(body)), string(out))
}

func TestEncodeIgnoresDerivedFields(t *testing.T) {
	c := newCodec(t, StrictOptions())

	plain, err := c.Encode(newOrder())
	require.NoError(t, err)

	m := newOrder()
	m.Header.SetInt(fix.TagBodyLength, 1)
	m.Trailer.SetString(fix.TagCheckSum, "999")
	out, err := c.Encode(m)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestAppendEncode(t *testing.T) {
	c := newCodec(t, StrictOptions())

	dst := []byte("prefix")
	out, err := c.AppendEncode(dst, newOrder())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("prefix8=FIX.4.4")))

	bad := newOrder()
	bad.Body.Remove(55)
	out, err = c.AppendEncode(dst, bad)
	requireKind(t, err, MissingRequiredField)
	assert.Equal(t, []byte("prefix"), out)
}

func TestDecimalExactness(t *testing.T) {
	c := newCodec(t, StrictOptions())

	in := wire("35=D|" + header + "11=ORD-1|55=IBM|54=1|60=20250314-09:26:53|38=1.50|40=2|44=12.340|")
	m, _, err := c.Decode(in)
	require.NoError(t, err)

	px, err := m.Body.GetDecimal(44)
	require.NoError(t, err)
	assert.Equal(t, "12.340", px.String())
	assert.Equal(t, int32(3), px.Scale)

	out, err := c.Encode(m)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\x0144=12.340\x01")
	assert.Contains(t, string(out), "\x0138=1.50\x01")
	assert.Equal(t, in, out)
}

func TestChecksumSensitivity(t *testing.T) {
	c := newCodec(t, StrictOptions())

	m := newOrder()
	parties := m.Body.AddGroup(453)
	parties.Add().SetString(448, "DESK").SetChar(447, 'D').SetInt(452, 1)

	valid, err := c.Encode(m)
	require.NoError(t, err)

	bodyStart := bytes.Index(valid, []byte("\x0135=")) + 1
	checksumStart := bytes.LastIndex(valid, []byte("\x0110=")) + 1

	for i := bodyStart; i < checksumStart; i++ {
		for _, repl := range []byte{valid[i] ^ 0x01, valid[i] ^ 0x80, fix.SOH, '=', '0'} {
			if repl == valid[i] {
				continue
			}

			flipped := bytes.Clone(valid)
			flipped[i] = repl

			_, _, err := c.Decode(flipped)
			require.Error(t, err, "byte %d -> %q accepted", i, repl)

			kind, ok := KindOf(err)
			require.True(t, ok, "byte %d: %v", i, err)
			assert.Contains(t, []ErrorKind{ChecksumMismatch, BodyLengthMismatch}, kind, "byte %d -> %q: %v", i, repl, err)
		}
	}
}

func TestDecodeIntegrity(t *testing.T) {
	c := newCodec(t, StrictOptions())

	body := "35=0|" + header
	longer := withChecksum("8=FIX.4.4|9=" + strconv.Itoa(len(body)+1) + "|" + body)
	ce := requireKind(t, decodeErr(c, longer), BodyLengthMismatch)
	assert.Equal(t, fix.TagBodyLength, ce.Tag)
	assert.Equal(t, strconv.Itoa(len(body)), ce.Expected)

	shorter := withChecksum("8=FIX.4.4|9=" + strconv.Itoa(len(body)-3) + "|" + body)
	requireKind(t, decodeErr(c, shorter), BodyLengthMismatch)

	good := wire(body)
	bad := bytes.Clone(good)
	copy(bad[len(bad)-4:], "000")
	if bytes.Equal(good, bad) {
		copy(bad[len(bad)-4:], "001")
	}
	ce = requireKind(t, decodeErr(c, bad), ChecksumMismatch)
	assert.Equal(t, string(good[len(good)-4:len(good)-1]), ce.Expected)

	letters := bytes.Clone(good)
	copy(letters[len(letters)-4:], "abc")
	requireKind(t, decodeErr(c, letters), MalformedField)
}

func decodeErr(c *Codec, b []byte) error {
	_, _, err := c.Decode(b)
	return err
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind ErrorKind
		tag  int
	}{
		{"unknown message type", "35=ZZ|" + header, UnknownMessageType, fix.TagMsgType},
		{"msg type not third", header + "35=0|", TagOutOfOrder, fix.TagSenderCompID},
		{"duplicate body tag", "35=D|" + header + "11=A|55=IBM|55=MSFT|54=1|60=20250314-09:26:53|40=1|", DuplicateTag, 55},
		{"duplicate header tag", "35=0|" + header + "49=OTHER|", DuplicateTag, fix.TagSenderCompID},
		{"malformed decimal", "35=D|" + header + "11=A|55=IBM|54=1|60=20250314-09:26:53|40=2|44=1.2.3|", MalformedField, 44},
		{"malformed timestamp", "35=D|" + header + "11=A|55=IBM|54=1|60=20250314-25:26:53|40=1|", MalformedField, 60},
		{"malformed bool", "35=0|49=A|56=B|34=1|52=20250314-09:26:53|43=X|", MalformedField, 43},
		{"header tag in body", "35=D|" + header + "11=A|49=AGAIN|55=IBM|54=1|60=20250314-09:26:53|40=1|", TagOutOfOrder, fix.TagSenderCompID},
		{"body tag in trailer", "35=0|" + header + "93=1|89=x|112=T|", TagOutOfOrder, 112},
		{"missing required body", "35=D|" + header + "11=A|54=1|60=20250314-09:26:53|40=1|", MissingRequiredField, 55},
		{"missing required header", "35=0|49=A|56=B|52=20250314-09:26:53|", MissingRequiredField, fix.TagMsgSeqNum},
		{"unknown tag", "35=0|" + header + "9999=x|", UnknownTag, 9999},
		{"declared elsewhere", "35=0|" + header + "55=IBM|", UnknownTag, 55},
		{"enum value", "35=D|" + header + "11=A|55=IBM|54=9|60=20250314-09:26:53|40=1|", ValueOutOfRange, 54},
		{"delimiter missing", "35=D|" + header + "11=A|453=1|452=1|448=P|55=IBM|54=1|60=20250314-09:26:53|40=1|", TagOutOfOrder, 452},
		{"negative count", "35=D|" + header + "11=A|453=-1|55=IBM|54=1|60=20250314-09:26:53|40=1|", MalformedField, 453},
		{"count beyond message", "35=D|" + header + "11=A|453=100|448=P|55=IBM|54=1|60=20250314-09:26:53|40=1|", GroupCountMismatch, 453},
		{"data before length", "35=A|" + header + "98=0|108=30|96=abc|", TagOutOfOrder, 96},
	}

	c := newCodec(t, StrictOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, err := c.Decode(wire(tt.body))
			assert.Nil(t, m)
			ce := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.tag, ce.Tag, "error: %v", err)
		})
	}
}

func TestDecodeErrorContext(t *testing.T) {
	c := newCodec(t, StrictOptions())

	_, _, err := c.Decode(wire("35=D|" + header + "11=A|55=IBM|54=1|60=20250314-09:26:53|40=2|44=1e5|"))
	ce := requireKind(t, err, MalformedField)
	assert.Equal(t, "D", ce.MsgType)
	assert.Equal(t, "1e5", ce.Actual)
	assert.Equal(t, fix.KindDecimal.Grammar(), ce.Expected)
	assert.ErrorIs(t, err, ErrMalformedField)

	var se *fix.SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fix.KindDecimal, se.Kind)
	assert.Contains(t, err.Error(), "tag 44")
}

func TestEnumCheckIsOptional(t *testing.T) {
	in := wire("35=D|" + header + "11=A|55=IBM|54=9|60=20250314-09:26:53|40=1|")

	opts := StrictOptions()
	opts.CheckEnums = false
	m, _, err := newCodec(t, opts).Decode(in)
	require.NoError(t, err)

	side, err := m.Body.GetChar(54)
	require.NoError(t, err)
	assert.Equal(t, byte('9'), side)
}

func TestStructuralErrorsBeatEnumErrors(t *testing.T) {
	c := newCodec(t, StrictOptions())

	// Both a bad Side and a missing Symbol: the missing field is reported.
	_, _, err := c.Decode(wire("35=D|" + header + "11=A|54=9|60=20250314-09:26:53|40=1|"))
	requireKind(t, err, MissingRequiredField)
}

func TestUnknownTagPolicy(t *testing.T) {
	in := wire("35=D|" + header + "11=A|55=IBM|9999=hello|54=1|60=20250314-09:26:53|40=1|")

	strict := newCodec(t, StrictOptions())
	_, _, err := strict.Decode(in)
	ce := requireKind(t, err, UnknownTag)
	assert.Equal(t, 9999, ce.Tag)
	assert.ErrorIs(t, err, ErrUnknownTag)

	tolerant := newCodec(t, TolerantOptions())
	m, n, err := tolerant.Decode(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)

	raw, err := m.Body.GetBytes(9999)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), raw)
	assert.True(t, m.Body.IsOpaque(9999))

	out, err := tolerant.Encode(m)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\x019999=hello\x01")

	again, _, err := tolerant.Decode(out)
	require.NoError(t, err)
	assert.True(t, m.Equal(again))

	_, err = strict.Encode(m)
	requireKind(t, err, UnknownTag)
}

func TestUnknownTagInsideGroup(t *testing.T) {
	tail := "55=IBM|54=1|60=20250314-09:26:53|40=1|"
	in := wire("35=D|" + header + "11=A|453=2|448=P1|9999=x|447=D|452=1|448=P2|447=D|452=2|" + tail)

	strict := newCodec(t, StrictOptions())
	ce := requireKind(t, decodeErr(strict, in), UnknownTag)
	assert.Equal(t, 9999, ce.Tag)

	tolerant := newCodec(t, TolerantOptions())
	m, n, err := tolerant.Decode(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.False(t, m.Body.Has(9999))

	g, err := m.Body.Group(453)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
	assert.True(t, g.Get(0).IsOpaque(9999))
	raw, err := g.Get(0).GetBytes(9999)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), raw)
	assert.False(t, g.Get(1).Has(9999))

	// No repetition is open yet directly after the count.
	early := wire("35=D|" + header + "11=A|453=1|9999=x|448=P1|" + tail)
	requireKind(t, decodeErr(tolerant, early), TagOutOfOrder)
	requireKind(t, decodeErr(strict, early), UnknownTag)

	twice := wire("35=D|" + header + "11=A|453=1|448=P1|9999=x|9999=y|" + tail)
	requireKind(t, decodeErr(tolerant, twice), DuplicateTag)
}

func TestOpaqueFieldsKeepTheirScope(t *testing.T) {
	c := newCodec(t, TolerantOptions())

	m := newOrder()
	m.Body.SetOpaque(9001, []byte("body"))
	parties := m.Body.AddGroup(453)
	p := parties.Add().SetString(448, "P1").SetChar(447, 'D').SetInt(452, 1).SetOpaque(9002, []byte("rep"))
	p.AddGroup(802).Add().SetString(523, "S1").SetInt(803, 1).SetOpaque(9003, []byte("nested"))
	parties.Add().SetString(448, "P2")

	out, err := c.Encode(m)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\x01448=P1\x019002=rep\x01")
	assert.Contains(t, string(out), "\x01523=S1\x019003=nested\x01")

	got, _, err := c.Decode(out)
	require.NoError(t, err)
	assert.True(t, m.Equal(got), "decoded %v", got)
	assert.True(t, got.Body.IsOpaque(9001))

	g, err := got.Body.Group(453)
	require.NoError(t, err)
	assert.True(t, g.Get(0).IsOpaque(9002))
	assert.False(t, g.Get(1).Has(9002))

	// Undeclared fields in the envelope would decode into the body.
	for name, set := range map[string]func(*Message){
		"header":  func(m *Message) { m.Header.SetOpaque(9001, []byte("x")) },
		"trailer": func(m *Message) { m.Trailer.SetOpaque(9001, []byte("x")) },
	} {
		t.Run(name, func(t *testing.T) {
			m := newOrder()
			set(m)
			_, err := c.Encode(m)
			ce := requireKind(t, err, UnknownTag)
			assert.Equal(t, 9001, ce.Tag)
		})
	}

	// A tag the body declares would close the group when decoded.
	m = newOrder()
	m.Body.AddGroup(453).Add().SetString(448, "P1").SetOpaque(38, []byte("5"))
	_, err = c.Encode(m)
	ce := requireKind(t, err, UnknownTag)
	assert.Equal(t, 38, ce.Tag)
}

func hopDictionary(t *testing.T) *schema.Dictionary {
	t.Helper()

	d, err := schema.New(schema.Definition{
		BeginString: "FIX.4.4",
		Fields: append(schema.StandardFields(),
			schema.FieldDef{Tag: 112, Name: "TestReqID", Type: "STRING"},
			schema.FieldDef{Tag: 627, Name: "NoHops", Type: "NUMINGROUP"},
			schema.FieldDef{Tag: 628, Name: "HopCompID", Type: "STRING"},
		),
		Header:  append(schema.StandardHeader(), schema.GroupPart("NoHops", false, schema.FieldPart("HopCompID", true))),
		Trailer: schema.StandardTrailer(),
		Messages: []schema.MessageDef{
			{Name: "Heartbeat", MsgType: "0", Parts: []schema.Part{schema.FieldPart("TestReqID", false)}},
		},
	})
	require.NoError(t, err)
	return d
}

func TestOpaqueFieldAfterHeaderGroup(t *testing.T) {
	c, err := New(hopDictionary(t), TolerantOptions())
	require.NoError(t, err)

	m := NewMessage("FIX.4.4", "0")
	m.Header.
		SetString(fix.TagSenderCompID, "BUYER").
		SetString(fix.TagTargetCompID, "SELLER").
		SetInt(fix.TagMsgSeqNum, 1).
		SetTimestamp(fix.TagSendingTime, sendingTime, fix.PrecisionMillis)
	m.Header.AddGroup(627).Add().SetString(628, "HOP1")
	m.Body.SetString(112, "T1").SetOpaque(9001, []byte("x"))

	out, err := c.Encode(m)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\x01628=HOP1\x01112=T1\x019001=x\x01")

	got, _, err := c.Decode(out)
	require.NoError(t, err)
	assert.True(t, m.Equal(got), "decoded %v", got)
	assert.True(t, got.Body.IsOpaque(9001))

	// Without a body field to close the hop group there is nowhere to put it.
	m.Body.Remove(112)
	_, err = c.Encode(m)
	ce := requireKind(t, err, UnknownTag)
	assert.Equal(t, 9001, ce.Tag)

	// Straight after the hop group it belongs to the open repetition.
	got, _, err = c.Decode(wire("35=0|" + header + "627=1|628=HOP1|9001=x|"))
	require.NoError(t, err)
	assert.False(t, got.Body.Has(9001))
	hops, err := got.Header.Group(627)
	require.NoError(t, err)
	assert.True(t, hops.Get(0).IsOpaque(9001))
}

func TestIncomplete(t *testing.T) {
	c := newCodec(t, StrictOptions())

	full, err := c.Encode(newOrder())
	require.NoError(t, err)

	for i := 0; i < len(full); i++ {
		m, n, err := c.Decode(full[:i])
		require.ErrorIs(t, err, ErrIncomplete, "prefix of %d bytes", i)
		assert.Nil(t, m)
		assert.Zero(t, n)

		_, isCodecErr := KindOf(err)
		assert.False(t, isCodecErr)
	}

	opts := StrictOptions()
	opts.Incomplete = IncompleteReject
	cut := full[:bytes.LastIndex(full, []byte("10="))]
	_, _, err = newCodec(t, opts).Decode(cut)
	requireKind(t, err, Truncated)
	assert.NotErrorIs(t, err, ErrMalformedField)
}

func TestMalformedFrame(t *testing.T) {
	c := newCodec(t, StrictOptions())

	m, n, err := c.Decode([]byte("garbage\x01"))
	assert.Nil(t, m)
	assert.Zero(t, n)
	requireKind(t, err, MalformedFrame)

	// The declared length is right but a value was corrupted into SOH and
	// the checksum recomputed to match.
	body := "35=0|" + header + "112=a|b|"
	requireKind(t, decodeErr(c, wire(body)), MalformedFrame)
}

func TestGroupFidelity(t *testing.T) {
	c := newCodec(t, StrictOptions())

	m := newOrder()
	parties := m.Body.AddGroup(453)
	for i := 1; i <= 3; i++ {
		p := parties.Add().
			SetString(448, fmt.Sprintf("PARTY-%d", i)).
			SetChar(447, 'D').
			SetInt(452, int64(i))
		subs := p.AddGroup(802)
		for j := 1; j <= 2; j++ {
			subs.Add().SetString(523, fmt.Sprintf("SUB-%d-%d", i, j)).SetInt(803, int64(j))
		}
	}

	out, err := c.Encode(m)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(out, []byte("\x01453=3\x01")))
	assert.Equal(t, 3, bytes.Count(out, []byte("\x01802=2\x01")))

	got, _, err := c.Decode(out)
	require.NoError(t, err)
	assert.True(t, m.Equal(got))

	g, err := got.Body.Group(453)
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())

	count, err := got.Body.GetInt(453)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for i, p := range g.All() {
		id, err := p.GetString(448)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("PARTY-%d", i+1), id)

		subs, err := p.Group(802)
		require.NoError(t, err)
		require.Equal(t, 2, subs.Len())
		for j, s := range subs.All() {
			sid, err := s.GetString(523)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("SUB-%d-%d", i+1, j+1), sid)
		}
	}

	// Reordering repetitions makes a different message.
	swapped := newOrder()
	sp := swapped.Body.AddGroup(453)
	for i := 3; i >= 1; i-- {
		src := g.Get(i - 1)
		dst := sp.Add()
		for f := range src.Fields() {
			if f.Group != nil {
				sub := dst.AddGroup(f.Tag)
				for _, r := range f.Group.All() {
					n := sub.Add()
					for rf := range r.Fields() {
						n.Set(rf.Tag, rf.Value)
					}
				}
				continue
			}
			dst.Set(f.Tag, f.Value)
		}
	}
	assert.False(t, m.Equal(swapped))
}

func TestGroupCountMismatch(t *testing.T) {
	c := newCodec(t, StrictOptions())
	tail := "55=IBM|54=1|60=20250314-09:26:53|40=1|"

	short := wire("35=D|" + header + "11=A|453=3|448=P1|452=1|448=P2|452=3|" + tail)
	ce := requireKind(t, decodeErr(c, short), GroupCountMismatch)
	assert.Equal(t, 453, ce.Tag)
	assert.Equal(t, "3", ce.Expected)
	assert.Equal(t, "2", ce.Actual)

	long := wire("35=D|" + header + "11=A|453=2|448=P1|448=P2|448=P3|" + tail)
	ce = requireKind(t, decodeErr(c, long), GroupCountMismatch)
	assert.Equal(t, 453, ce.Tag)

	nested := wire("35=D|" + header + "11=A|453=1|448=P1|802=2|523=S1|" + tail)
	ce = requireKind(t, decodeErr(c, nested), GroupCountMismatch)
	assert.Equal(t, 802, ce.Tag)
}

func TestEmptyGroup(t *testing.T) {
	c := newCodec(t, StrictOptions())

	in := wire("35=D|" + header + "11=A|453=0|55=IBM|54=1|60=20250314-09:26:53|40=1|")
	m, _, err := c.Decode(in)
	require.NoError(t, err)

	g, err := m.Body.Group(453)
	require.NoError(t, err)
	assert.Zero(t, g.Len())

	out, err := c.Encode(m)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestGroupTooDeep(t *testing.T) {
	opts := StrictOptions()
	opts.MaxGroupDepth = 1
	c := newCodec(t, opts)

	in := wire("35=D|" + header + "11=A|453=1|448=P1|802=1|523=S1|55=IBM|54=1|60=20250314-09:26:53|40=1|")
	ce := requireKind(t, decodeErr(c, in), GroupTooDeep)
	assert.Equal(t, 802, ce.Tag)

	m := newOrder()
	m.Body.AddGroup(453).Add().SetString(448, "P1").AddGroup(802).Add().SetString(523, "S1")
	_, err := c.Encode(m)
	requireKind(t, err, GroupTooDeep)

	_, _, err = newCodec(t, StrictOptions()).Decode(in)
	assert.NoError(t, err)
}

func TestDataField(t *testing.T) {
	c := newCodec(t, StrictOptions())

	payload := []byte("a\x01b=\x01c")
	m := NewMessage("FIX.4.4", "A")
	m.Header.SetString(49, "BUYER").SetString(56, "SELLER").SetInt(34, 1).
		SetTimestamp(52, sendingTime, fix.PrecisionSeconds)
	m.Body.SetInt(98, 0).SetInt(108, 30).SetInt(95, int64(len(payload))).SetBytes(96, payload)

	out, err := c.Encode(m)
	require.NoError(t, err)

	got, _, err := c.Decode(out)
	require.NoError(t, err)
	raw, err := got.Body.GetBytes(96)
	require.NoError(t, err)
	assert.Equal(t, payload, raw)
	assert.True(t, m.Equal(got))

	m.Body.SetInt(95, 3)
	_, err = c.Encode(m)
	ce := requireKind(t, err, MalformedField)
	assert.Equal(t, 95, ce.Tag)
}

func TestEncodeErrors(t *testing.T) {
	c := newCodec(t, StrictOptions())

	tests := []struct {
		name   string
		mutate func(m *Message)
		kind   ErrorKind
		tag    int
	}{
		{"kind mismatch", func(m *Message) { m.Body.SetString(38, "100") }, KindMismatch, 38},
		{"group where scalar", func(m *Message) { m.Body.AddGroup(55) }, KindMismatch, 55},
		{"scalar where group", func(m *Message) { m.Body.SetInt(453, 1) }, KindMismatch, 453},
		{"missing required", func(m *Message) { m.Body.Remove(55) }, MissingRequiredField, 55},
		{"missing header", func(m *Message) { m.Header.Remove(fix.TagSendingTime) }, MissingRequiredField, fix.TagSendingTime},
		{"missing msg type", func(m *Message) { m.Header.Remove(fix.TagMsgType) }, MissingRequiredField, fix.TagMsgType},
		{"unknown msg type", func(m *Message) { m.Header.SetString(fix.TagMsgType, "ZZ") }, UnknownMessageType, fix.TagMsgType},
		{"unknown tag", func(m *Message) { m.Body.SetString(9999, "x") }, UnknownTag, 9999},
		{"enum value", func(m *Message) { m.Body.SetChar(54, 'Z') }, ValueOutOfRange, 54},
		{"soh in string", func(m *Message) { m.Body.SetString(58, "a\x01b") }, MalformedField, 58},
		{"empty string", func(m *Message) { m.Body.SetString(58, "") }, MalformedField, 58},
		{"missing delimiter", func(m *Message) { m.Body.AddGroup(453).Add().SetInt(452, 1) }, MissingRequiredField, 448},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newOrder()
			tt.mutate(m)

			out, err := c.Encode(m)
			assert.Nil(t, out)
			ce := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.tag, ce.Tag)
		})
	}
}

func TestDecodeAll(t *testing.T) {
	c := newCodec(t, StrictOptions())

	var stream []byte
	for seq := int64(1); seq <= 3; seq++ {
		m := newOrder()
		m.Header.SetInt(fix.TagMsgSeqNum, seq)
		out, err := c.Encode(m)
		require.NoError(t, err)
		stream = append(stream, out...)
	}
	complete := len(stream)

	partial, err := c.Encode(newOrder())
	require.NoError(t, err)
	stream = append(stream, partial[:20]...)

	msgs, n, err := c.DecodeAll(stream)
	require.NoError(t, err)
	assert.Equal(t, complete, n)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		seq, err := m.Header.GetInt(fix.TagMsgSeqNum)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}

	// A bad frame in the middle stops decoding after it.
	bad := wire("35=ZZ|" + header)
	mixed := append(append(bytes.Clone(stream[:complete/3]), bad...), stream[:complete/3]...)
	msgs, n, err = c.DecodeAll(mixed)
	requireKind(t, err, UnknownMessageType)
	assert.Len(t, msgs, 1)
	assert.Equal(t, complete/3+len(bad), n)
}

func TestFieldMapAccessors(t *testing.T) {
	m := newOrder()

	_, err := m.Body.Get(9999)
	assert.ErrorIs(t, err, ErrFieldMissing)

	_, err = m.Body.GetInt(55)
	assert.ErrorIs(t, err, ErrWrongKind)

	_, err = m.Body.Group(55)
	assert.ErrorIs(t, err, ErrWrongKind)

	_, err = m.Body.Group(453)
	assert.ErrorIs(t, err, ErrFieldMissing)

	ts, err := m.Body.GetTime(60)
	require.NoError(t, err)
	assert.True(t, ts.Equal(transactTime))

	assert.Equal(t, []int{11, 55, 54, 60, 38, 40, 44}, m.Body.Tags())

	m.Body.SetString(55, "MSFT")
	assert.Equal(t, []int{11, 55, 54, 60, 38, 40, 44}, m.Body.Tags())
	sym, err := m.Body.GetString(55)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", sym)

	assert.Equal(t, "8=FIX.4.4|35=D|", NewMessage("FIX.4.4", "D").String())
}

func TestGroupAllIsRestartable(t *testing.T) {
	m := newOrder()
	g := m.Body.AddGroup(453)
	for i := 0; i < 4; i++ {
		g.Add().SetInt(452, int64(i))
	}

	for pass := 0; pass < 2; pass++ {
		var seen []int
		for i := range g.All() {
			seen = append(seen, i)
		}
		assert.Equal(t, []int{0, 1, 2, 3}, seen)
	}

	visited := 0
	for i := range g.All() {
		visited++
		if i == 1 {
			break
		}
	}
	assert.Equal(t, 2, visited)
	assert.Nil(t, g.Get(4))
	assert.Same(t, g, m.Body.AddGroup(453))
}

func TestMessageEqual(t *testing.T) {
	a, b := newOrder(), newOrder()
	assert.True(t, a.Equal(b))

	// Scalar order within a scope does not matter.
	b.Body.Remove(11)
	b.Body.SetString(11, "ORD-1")
	assert.True(t, a.Equal(b))

	b.Body.SetDecimal(44, fix.MustDecimal("12.34"))
	assert.False(t, a.Equal(b), "scale is part of the value")

	c := newOrder()
	c.Body.SetString(58, "extra")
	assert.False(t, a.Equal(c))
	assert.False(t, c.Equal(a))
}

type countingObserver struct {
	mu      sync.Mutex
	decoded map[string]int
	failed  int
	encoded int
}

func (o *countingObserver) Decoded(msgType string, _ int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
		return
	}
	o.decoded[msgType]++
}

func (o *countingObserver) Encoded(string, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.encoded++
}

func TestObserverAndLogger(t *testing.T) {
	var logs bytes.Buffer
	obs := &countingObserver{decoded: map[string]int{}}
	c := newCodec(t, StrictOptions(),
		WithObserver(obs),
		WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)))

	out, err := c.Encode(newOrder())
	require.NoError(t, err)

	_, _, err = c.Decode(out)
	require.NoError(t, err)

	bad := bytes.Clone(out)
	sum, _ := strconv.Atoi(string(out[len(out)-4 : len(out)-1]))
	copy(bad[len(bad)-4:], fmt.Sprintf("%03d", (sum+1)%256))
	_, _, err = c.Decode(bad)
	requireKind(t, err, ChecksumMismatch)

	_, _, err = c.Decode(out[:10])
	require.ErrorIs(t, err, ErrIncomplete)

	assert.Equal(t, 1, obs.decoded["D"])
	assert.Equal(t, 1, obs.failed)
	assert.Equal(t, 1, obs.encoded)

	assert.Contains(t, logs.String(), "decode rejected")
	assert.Contains(t, logs.String(), `"kind":"checksum mismatch"`)
}

func TestConcurrentUse(t *testing.T) {
	c := newCodec(t, StrictOptions())

	want, err := c.Encode(newOrder())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m, _, err := c.Decode(want)
				if err != nil {
					errs <- err
					return
				}
				out, err := c.Encode(m)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(out, want) {
					errs <- errors.New("re-encoded bytes differ")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
