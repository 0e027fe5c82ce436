// handlers.go
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
package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/stephenlclarke/fixcodec/codec"
	"github.com/stephenlclarke/fixcodec/config"
	"github.com/stephenlclarke/fixcodec/fix"
	"github.com/stephenlclarke/fixcodec/metrics"
	"github.com/stephenlclarke/fixcodec/pretty"
	"github.com/stephenlclarke/fixcodec/schema"
)

type app struct {
	opts   CLIOptions
	cfg    config.Config
	dict   *schema.Dictionary
	pal    pretty.Palette
	width  int
	out    io.Writer
	errOut io.Writer
	log    zerolog.Logger
}

func (a *app) browser() *pretty.Browser {
	return &pretty.Browser{
		Dict:    a.dict,
		Palette: a.pal,
		Width:   a.width,
		Verbose: a.opts.Verbose,
		Columns: a.opts.Column,
	}
}

// runHandlers serves the dictionary browsing flags. handled is false when
// none was given and the input should be decoded instead.
func (a *app) runHandlers() (status int, handled bool) {
	switch {
	case a.opts.Info:
		a.browser().Summary(a.out)
		return 0, true
	case a.opts.Message.isSet:
		return a.handleMessage(), true
	case a.opts.Tag.isSet:
		return a.handleTag(), true
	case a.opts.Component.isSet:
		return a.handleComponent(), true
	}
	return 0, false
}

func (a *app) handleMessage() int {
	b := a.browser()
	if a.opts.Message.all() {
		b.ListMessages(a.out)
		return 0
	}

	m, ok := a.dict.MessageByName(a.opts.Message.value)
	if !ok {
		fmt.Fprintf(a.errOut, "%sMessage not found: %s%s\n", a.pal.Error, a.opts.Message.value, a.pal.Reset)
		return 1
	}
	b.Message(a.out, m, a.opts.Envelope)
	return 0
}

func (a *app) handleTag() int {
	b := a.browser()
	if a.opts.Tag.all() {
		b.ListFields(a.out)
		return 0
	}

	var (
		fs schema.FieldSpec
		ok bool
	)
	if tag, err := strconv.Atoi(a.opts.Tag.value); err == nil {
		fs, ok = a.dict.Field(tag)
	} else {
		fs, ok = a.dict.FieldByName(a.opts.Tag.value)
	}
	if !ok {
		fmt.Fprintf(a.errOut, "%sTag not found: %s%s\n", a.pal.Error, a.opts.Tag.value, a.pal.Reset)
		return 1
	}
	b.Field(a.out, fs)
	return 0
}

func (a *app) handleComponent() int {
	b := a.browser()
	if a.opts.Component.all() {
		b.ListComponents(a.out)
		return 0
	}

	name := a.opts.Component.value
	sec, ok := a.dict.Component(name)
	if !ok {
		fmt.Fprintf(a.errOut, "%sComponent not found: %s%s\n", a.pal.Error, name, a.pal.Reset)
		return 1
	}
	b.Component(a.out, name, sec)
	return 0
}

// decodeFiles streams the input files through the codec. Decode failures
// are reported inline and do not change the exit status.
func (a *app) decodeFiles(stdin io.Reader) int {
	codecOpts, err := a.cfg.CodecOptions()
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}

	reg := prometheus.NewRegistry()
	coll, err := metrics.New(reg)
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}

	c, err := codec.New(a.dict, codecOpts, codec.WithLogger(a.log), codec.WithObserver(coll))
	if err != nil {
		fmt.Fprintln(a.errOut, err)
		return 1
	}

	obf := fix.CreateObfuscator(fix.SensitiveTags(), a.cfg.Obfuscate, a.errOut)
	s := &pretty.Streamer{
		Codec:   c,
		Printer: &pretty.Printer{Dict: a.dict, Palette: a.pal, Obfuscator: obf},
		Width:   a.width,
	}

	n, status := s.Files(a.opts.Files, stdin, a.out, a.errOut)
	a.log.Debug().
		Int("lines", n.Lines).
		Int("messages", n.Messages).
		Int("failed", n.Failed).
		Msg("input processed")

	if a.opts.Stats {
		sum, err := metrics.Summarize(reg)
		if err != nil {
			fmt.Fprintln(a.errOut, err)
			return 1
		}
		fmt.Fprintln(a.out)
		sum.Write(a.out)
	}

	return status
}
