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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stephenlclarke/fixcodec/codec"
	"github.com/stephenlclarke/fixcodec/scanner"
)

var beginPrefix = []byte("8=FIX")

// Counts summarises one stream.
type Counts struct {
	Lines    int
	Messages int
	Failed   int
}

func (c *Counts) add(o Counts) {
	c.Lines += o.Lines
	c.Messages += o.Messages
	c.Failed += o.Failed
}

// Streamer annotates log files that embed FIX messages. Lines without a
// message are copied through; every message found is decoded and listed
// under its line.
type Streamer struct {
	Codec   *codec.Codec
	Printer *Printer
	Width   int // separator width, 80 when unset
}

type decoded struct {
	start, end int
	msg        *codec.Message
	err        error
}

// Stream processes r line by line until EOF.
func (s *Streamer) Stream(r io.Reader, w io.Writer) (Counts, error) {
	var n Counts

	limit := s.Codec.Options().MaxFrameSize
	if limit <= 0 {
		limit = codec.DefaultMaxFrameSize
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), limit+bufio.MaxScanTokenSize)

	for sc.Scan() {
		n.Lines++
		s.line(w, sc.Bytes(), &n)
	}

	return n, sc.Err()
}

func (s *Streamer) separator() string {
	width := s.Width
	if width <= 0 {
		width = 80
	}
	pal := s.Printer.Palette
	return pal.Title + strings.Repeat("=", width) + pal.Reset + "\n"
}

func (s *Streamer) line(w io.Writer, line []byte, n *Counts) {
	pal := s.Printer.Palette
	found := s.extract(line)

	if len(found) == 0 {
		fmt.Fprint(w, pal.Line, string(line), pal.Reset, "\n")
		return
	}

	sep := s.separator()
	obf := s.Printer.Obfuscator

	var out strings.Builder
	last := 0
	for _, d := range found {
		out.WriteString(pal.Line + string(line[last:d.start]))
		out.WriteString(pal.Msg + obf.ObfuscateLine(string(line[d.start:d.end])))
		last = d.end
	}
	out.WriteString(pal.Line + string(line[last:]) + pal.Reset + "\n")

	fmt.Fprint(w, out.String())
	fmt.Fprint(w, sep)

	for _, d := range found {
		if d.err != nil {
			n.Failed++
			s.Printer.Error(w, d.err)
		} else {
			n.Messages++
			s.Printer.Message(w, d.msg)
		}
		fmt.Fprint(w, sep)
	}
}

// extract decodes every message candidate on one line. Candidates that do
// not start with a FIX BeginString and fail to frame are ordinary text.
func (s *Streamer) extract(line []byte) []decoded {
	var out []decoded

	for off := 0; off < len(line); {
		i := scanner.Sync(line[off:])
		if i < 0 {
			break
		}
		start := off + i
		fixLike := bytes.HasPrefix(line[start:], beginPrefix)

		m, used, err := s.Codec.Decode(line[start:])
		switch {
		case err == nil:
			out = append(out, decoded{start: start, end: start + used, msg: m})
			off = start + used
		case used > 0:
			out = append(out, decoded{start: start, end: start + used, err: err})
			off = start + used
		default:
			if fixLike {
				if errors.Is(err, codec.ErrIncomplete) {
					err = fmt.Errorf("incomplete message at end of line: %w", err)
				}
				out = append(out, decoded{start: start, end: len(line), err: err})
				return out
			}
			off = start + 2
		}
	}

	return out
}

// Files streams each path in turn; "-" and an empty list read stdin.
// Open and read failures are reported to errOut and yield exit status 1.
func (s *Streamer) Files(paths []string, stdin io.Reader, out, errOut io.Writer) (Counts, int) {
	var total Counts
	pal := s.Printer.Palette
	status := 0

	if len(paths) == 0 {
		paths = []string{"-"}
	}

	for _, path := range paths {
		var (
			r io.Reader
			c io.Closer // nil for stdin
		)

		if path == "-" {
			if len(paths) > 1 {
				fmt.Fprint(out, "Processing: (stdin)\n\n")
			}
			r = stdin
		} else {
			fmt.Fprint(out, "Processing: ", pal.File, path, pal.Reset, "\n\n")

			f, err := os.Open(path)
			if err != nil {
				fmt.Fprintln(errOut, pal.Error+"Cannot open file: "+err.Error()+pal.Reset)
				status = 1
				continue
			}
			r, c = f, f
		}

		n, err := s.Stream(r, out)
		total.add(n)
		if c != nil {
			c.Close()
		}
		if err != nil {
			fmt.Fprintln(errOut, pal.Error+"Error reading input: "+err.Error()+pal.Reset)
			status = 1
		}
	}

	return total, status
}
