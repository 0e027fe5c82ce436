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

// Package pretty renders decoded messages and dictionary contents for
// people: coloured field listings, annotated log streams and schema
// browsing.
package pretty

import (
	"os"

	"golang.org/x/term"
)

// Palette holds the ANSI sequences used for each kind of output. The zero
// Palette prints without colour.
type Palette struct {
	Reset string
	Line  string
	Tag   string
	Name  string
	Value string
	Enum  string
	File  string
	Error string
	Msg   string
	Title string
}

func Colours() Palette {
	return Palette{
		Reset: "\033[0m",
		Line:  "\033[38;5;244m",
		Tag:   "\033[38;5;81m",
		Name:  "\033[38;5;151m",
		Value: "\033[38;5;228m",
		Enum:  "\033[38;5;214m",
		File:  "\033[95m",
		Error: "\033[31m",
		Msg:   "\033[97m",
		Title: "\033[31m",
	}
}

func Plain() Palette { return Palette{} }

// allow override in tests
var (
	getTermSize = term.GetSize
	isTerminal  = term.IsTerminal
)

// TerminalWidth is the width of f when it is a terminal, else 80.
func TerminalWidth(f *os.File) int {
	if w, _, err := getTermSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// AutoPalette colours output only when f is a terminal.
func AutoPalette(f *os.File) Palette {
	if isTerminal(int(f.Fd())) {
		return Colours()
	}
	return Plain()
}
