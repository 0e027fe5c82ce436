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

// Package scanner delimits FIX frames in a byte buffer and splits them into
// raw tag/value pairs in wire order. It validates nothing beyond the frame
// structure; checksum, body length and types are the decoder's business.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/stephenlclarke/fixcodec/fix"
)

var (
	// ErrIncomplete means the buffer holds the beginning of a plausible
	// frame but not all of it yet.
	ErrIncomplete = errors.New("scanner: incomplete frame")

	ErrMalformedFrame = errors.New("scanner: malformed frame")
)

// FrameError reports bytes that can never become a valid frame.
type FrameError struct {
	Offset int
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("scanner: malformed frame at offset %d: %s", e.Offset, e.Reason)
}

func (e *FrameError) Unwrap() error { return ErrMalformedFrame }

// maxTagDigits bounds tag numbers well inside int range.
const maxTagDigits = 9

// LengthLookup resolves the companion length tag of a data field.
type LengthLookup interface {
	DataLengthTag(tag int) (int, bool)
}

// RawField is one tag=value pair. Value aliases the scanned buffer.
type RawField struct {
	Tag    int
	Value  []byte
	Offset int // offset of the first tag digit within the frame
}

// Frame is one delimited message.
type Frame struct {
	Bytes  []byte // the whole frame, up to and including the final SOH
	Fields []RawField

	// BodyOffset is where the body length count starts (just after the
	// BodyLength field). ChecksumOffset is where "10=" starts.
	BodyOffset     int
	ChecksumOffset int

	BodyLength int    // declared value of BodyLength
	CheckSum   []byte // raw value of CheckSum
}

// Scanner is stateless; one value can serve any number of goroutines.
type Scanner struct {
	Lengths      LengthLookup
	MaxFrameSize int // 0 means unlimited
}

var checksumPrefix = []byte("10=")

// Next delimits the first frame of buf and splits it into fields.
// len(f.Bytes) is the number of bytes consumed. buf must start at a frame
// boundary; see Sync.
func (s *Scanner) Next(buf []byte) (Frame, error) {
	f, err := s.Delimit(buf)
	if err != nil {
		return Frame{}, err
	}
	if err := s.Segment(&f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Delimit finds the extent of the first frame of buf without splitting its
// body. The declared body length is trusted to locate the checksum field;
// when it does not land on one, the frame is walked field by field and the
// mismatch is left for the caller to detect.
func (s *Scanner) Delimit(buf []byte) (Frame, error) {
	f, err := s.delimit(buf)

	if s.MaxFrameSize > 0 {
		if errors.Is(err, ErrIncomplete) && len(buf) > s.MaxFrameSize {
			return Frame{}, s.tooLarge(s.MaxFrameSize)
		}
		if err == nil && len(f.Bytes) > s.MaxFrameSize {
			return Frame{}, s.tooLarge(f.ChecksumOffset)
		}
	}

	return f, err
}

func (s *Scanner) tooLarge(offset int) error {
	return &FrameError{Offset: offset, Reason: fmt.Sprintf("frame exceeds %d bytes", s.MaxFrameSize)}
}

func (s *Scanner) delimit(buf []byte) (Frame, error) {
	if len(buf) == 0 {
		return Frame{}, ErrIncomplete
	}

	var fields []RawField
	pos := 0
	for len(fields) < 2 {
		fld, next, err := s.field(buf, pos, fields)
		if err != nil {
			return Frame{}, err
		}
		fields = append(fields, fld)
		pos = next
	}

	n, err := fix.ParseInt(fields[1].Value)
	if err != nil || n < 0 || n > int64(math.MaxInt-pos-len(checksumPrefix)) {
		return Frame{}, &FrameError{Offset: fields[1].Offset, Reason: fmt.Sprintf("invalid body length %q", fields[1].Value)}
	}

	f := Frame{BodyOffset: pos, BodyLength: int(n)}

	if cs := pos + int(n); cs+len(checksumPrefix) <= len(buf) && bytes.HasPrefix(buf[cs:], checksumPrefix) {
		vpos := cs + len(checksumPrefix)
		end := bytes.IndexByte(buf[vpos:], fix.SOH)
		if end < 0 {
			return Frame{}, ErrIncomplete
		}
		end += vpos

		f.ChecksumOffset = cs
		f.CheckSum = buf[vpos:end]
		f.Bytes = buf[:end+1]
		return f, nil
	}

	for {
		if s.MaxFrameSize > 0 && pos > s.MaxFrameSize {
			return Frame{}, s.tooLarge(pos)
		}

		fld, next, err := s.field(buf, pos, fields)
		if err != nil {
			return Frame{}, err
		}
		fields = append(fields, fld)
		pos = next

		if fld.Tag == fix.TagCheckSum {
			f.ChecksumOffset = fld.Offset
			f.CheckSum = fld.Value
			f.Bytes = buf[:pos]
			return f, nil
		}
	}
}

// Segment splits a delimited frame into its fields, in wire order.
func (s *Scanner) Segment(f *Frame) error {
	region := f.Bytes[:f.ChecksumOffset]

	var fields []RawField
	for pos := 0; pos < len(region); {
		fld, next, err := s.field(region, pos, fields)
		if errors.Is(err, ErrIncomplete) {
			return &FrameError{Offset: pos, Reason: "field runs into the checksum"}
		}
		if err != nil {
			return err
		}
		if fld.Tag == fix.TagCheckSum {
			return &FrameError{Offset: pos, Reason: "checksum field before end of body"}
		}
		fields = append(fields, fld)
		pos = next
	}

	f.Fields = append(fields, RawField{Tag: fix.TagCheckSum, Value: f.CheckSum, Offset: f.ChecksumOffset})
	return nil
}

// field reads one tag=value field at pos. seen holds the fields read so far
// in this frame.
func (s *Scanner) field(buf []byte, pos int, seen []RawField) (RawField, int, error) {
	tag, vpos, err := scanTag(buf, pos, len(seen))
	if err != nil {
		return RawField{}, pos, err
	}

	end, err := s.valueEnd(buf, vpos, tag, seen)
	if err != nil {
		return RawField{}, pos, err
	}

	return RawField{Tag: tag, Value: buf[vpos:end], Offset: pos}, end + 1, nil
}

// scanTag reads the tag digits at pos and returns the tag and the offset of
// its value. index is the position of the field within the frame, which
// pins the first two tags to BeginString and BodyLength.
func scanTag(buf []byte, pos, index int) (int, int, error) {
	tag := 0
	i := pos

	for ; i < len(buf); i++ {
		c := buf[i]
		if c == '=' {
			break
		}
		if c < '0' || c > '9' {
			return 0, 0, &FrameError{Offset: i, Reason: fmt.Sprintf("unexpected byte 0x%02x in tag", c)}
		}
		if i == pos && c == '0' {
			return 0, 0, &FrameError{Offset: i, Reason: "tag has a leading zero"}
		}
		if i-pos >= maxTagDigits {
			return 0, 0, &FrameError{Offset: pos, Reason: "tag too long"}
		}
		tag = tag*10 + int(c-'0')

		// Reject a bad frame start as soon as it is certain.
		if index < 2 && !tagPrefixOK(tag, i-pos+1, index) {
			return 0, 0, &FrameError{Offset: pos, Reason: fmt.Sprintf("field %d must be tag %d", index+1, requiredTag(index))}
		}
	}

	if i == len(buf) {
		return 0, 0, ErrIncomplete
	}
	if i == pos {
		return 0, 0, &FrameError{Offset: pos, Reason: "empty tag"}
	}
	if index < 2 && tag != requiredTag(index) {
		return 0, 0, &FrameError{Offset: pos, Reason: fmt.Sprintf("field %d must be tag %d", index+1, requiredTag(index))}
	}
	return tag, i + 1, nil
}

func requiredTag(index int) int {
	if index == 0 {
		return fix.TagBeginString
	}
	return fix.TagBodyLength
}

// tagPrefixOK reports whether a partial tag of n digits can still become the
// tag required at index. Both required tags are single digits.
func tagPrefixOK(partial, n, index int) bool {
	return n == 1 && partial == requiredTag(index)
}

// valueEnd returns the offset of the SOH that terminates the value at pos.
func (s *Scanner) valueEnd(buf []byte, pos, tag int, seen []RawField) (int, error) {
	if n, ok, err := s.dataLength(tag, seen); err != nil {
		return 0, err
	} else if ok {
		end := pos + n
		if s.MaxFrameSize > 0 && end > s.MaxFrameSize {
			return 0, s.tooLarge(pos)
		}
		if end >= len(buf) {
			return 0, ErrIncomplete
		}
		if buf[end] != fix.SOH {
			return 0, &FrameError{Offset: end, Reason: fmt.Sprintf("tag %d: data not terminated after %d bytes", tag, n)}
		}
		return end, nil
	}

	i := bytes.IndexByte(buf[pos:], fix.SOH)
	if i < 0 {
		return 0, ErrIncomplete
	}
	return pos + i, nil
}

// dataLength finds the declared length of a data field from the most recent
// occurrence of its companion length tag.
func (s *Scanner) dataLength(tag int, seen []RawField) (int, bool, error) {
	if s.Lengths == nil {
		return 0, false, nil
	}
	lt, ok := s.Lengths.DataLengthTag(tag)
	if !ok {
		return 0, false, nil
	}

	for i := len(seen) - 1; i >= 0; i-- {
		if seen[i].Tag != lt {
			continue
		}
		n, err := fix.ParseInt(seen[i].Value)
		if err != nil || n < 0 {
			return 0, false, &FrameError{Offset: seen[i].Offset, Reason: fmt.Sprintf("tag %d: invalid length %q", lt, seen[i].Value)}
		}
		if n > math.MaxInt/2 {
			return 0, false, &FrameError{Offset: seen[i].Offset, Reason: fmt.Sprintf("tag %d: length out of range", lt)}
		}
		return int(n), true, nil
	}
	return 0, false, nil
}

// Sync returns the offset of the next candidate frame start in buf: "8="
// at the start of buf or after a byte that is not a digit. It returns -1
// when there is none.
func Sync(buf []byte) int {
	for off := 0; ; {
		i := bytes.Index(buf[off:], []byte("8="))
		if i < 0 {
			return -1
		}
		i += off
		if i == 0 || !isDigit(buf[i-1]) {
			return i
		}
		off = i + 1
	}
}

// Split breaks a bare SOH separated tag=value sequence into fields without
// applying frame rules. A missing final SOH is tolerated.
func Split(buf []byte) ([]RawField, error) {
	var out []RawField

	for pos := 0; pos < len(buf); {
		end := bytes.IndexByte(buf[pos:], fix.SOH)
		if end < 0 {
			end = len(buf)
		} else {
			end += pos
		}

		eq := bytes.IndexByte(buf[pos:end], '=')
		if eq <= 0 {
			return nil, &FrameError{Offset: pos, Reason: "field without tag"}
		}
		tag, err := fix.ParseInt(buf[pos : pos+eq])
		if err != nil || tag <= 0 || eq > maxTagDigits {
			return nil, &FrameError{Offset: pos, Reason: fmt.Sprintf("invalid tag %q", buf[pos:pos+eq])}
		}

		out = append(out, RawField{Tag: int(tag), Value: buf[pos+eq+1 : end], Offset: pos})
		pos = end + 1
	}

	return out, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
