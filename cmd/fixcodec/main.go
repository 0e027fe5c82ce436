// main.go
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
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stephenlclarke/fixcodec/codec"
	"github.com/stephenlclarke/fixcodec/config"
	"github.com/stephenlclarke/fixcodec/fix"
	"github.com/stephenlclarke/fixcodec/internal/logging"
	"github.com/stephenlclarke/fixcodec/pretty"
)

// Version, Branch, GitUrl, Sha are injected at build time via -ldflags
var (
	Version = "0.0.0"
	Branch  = "main"
	GitUrl  = "git@github.com:stephenlclarke/fixcodec.git"
	Sha     = "0000000"
)

// optionalFlag takes an optional argument: bare -message lists everything,
// -message=NAME selects one entry.
type optionalFlag struct {
	value string
	isSet bool
}

func (o *optionalFlag) String() string     { return o.value }
func (o *optionalFlag) Set(s string) error { o.value, o.isSet = s, true; return nil }
func (o *optionalFlag) IsBoolFlag() bool   { return true }

// all reports whether the flag was given without a selection.
func (o *optionalFlag) all() bool { return o.isSet && (o.value == "" || o.value == "true") }

type colourFlag struct {
	isSet bool
	value bool
}

func (c *colourFlag) String() string {
	if c.value {
		return "true"
	}
	return "false"
}

func (c *colourFlag) Set(s string) error {
	c.isSet = true
	switch strings.ToLower(s) {
	case "", "true", "yes":
		c.value = true
	case "false", "no":
		c.value = false
	default:
		return fmt.Errorf("invalid value for -colour: %q", s)
	}
	return nil
}

func (c *colourFlag) IsBoolFlag() bool { return true }

// CLIOptions holds all parsed flag values.
type CLIOptions struct {
	ConfigPath string
	DictPath   string
	FixVersion string
	Verbose    bool
	Envelope   bool
	Column     bool
	Message    optionalFlag
	Tag        optionalFlag
	Component  optionalFlag
	Info       bool
	Tolerant   bool
	Obfuscate  bool
	Stats      bool
	Colour     colourFlag
	Files      []string

	set map[string]bool
}

// parseFlagsArgs parses command-line arguments using a fresh FlagSet.
func parseFlagsArgs(args []string, errOut io.Writer) (CLIOptions, error) {
	var opts CLIOptions

	fs := flag.NewFlagSet("fixcodec", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a TOML configuration file")
	fs.StringVar(&opts.DictPath, "dict", "", "Path to a FIX dictionary (.xml, .yaml or .yml)")
	fs.StringVar(&opts.FixVersion, "fix", "44", "Embedded FIX version to use ("+fix.SupportedFixVersions()+")")
	fs.BoolVar(&opts.Verbose, "verbose", false, "List enum values with fields")
	fs.BoolVar(&opts.Envelope, "envelope", false, "Include header and trailer when showing a message")
	fs.BoolVar(&opts.Column, "column", false, "Display enums in columns")
	fs.BoolVar(&opts.Info, "info", false, "Show dictionary summary")
	fs.BoolVar(&opts.Tolerant, "tolerant", false, "Preserve unknown tags and skip enum checks while decoding")
	fs.BoolVar(&opts.Obfuscate, "obfuscate", false, "Replace sensitive values with stable aliases")
	fs.BoolVar(&opts.Stats, "stats", false, "Print decode statistics after processing")
	fs.Var(&opts.Message, "message", "Message name or MsgType (omit to list all messages)")
	fs.Var(&opts.Tag, "tag", "Tag number or name to display (omit to list all tags)")
	fs.Var(&opts.Component, "component", "Component to display (omit to list all components)")
	fs.Var(&opts.Colour, "colour", "Force coloured output (yes|no). Default: auto-detect based on stdout")

	fs.Usage = func() {
		PrintUsage(errOut)
		fmt.Fprintln(errOut, "\nFlags:")
		fs.PrintDefaults()
	}

	// the flag set has already reported the error and the usage
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	opts.Files = fs.Args()

	return opts, nil
}

// PrintUsage prints the program usage.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "fixcodec %s (branch:%s, commit:%s)\n\n", Version, Branch, Sha)
	fmt.Fprintf(w, "  git clone %s\n\n", GitUrl)
	fmt.Fprintln(w, "Usage: fixcodec [-config=FILE] [[-fix=44] | [-dict=FIX44.xml]] [-message[=MSG] [-verbose] [-column] [-envelope]]")
	fmt.Fprintln(w, "       fixcodec [-config=FILE] [[-fix=44] | [-dict=FIX44.xml]] [-tag[=TAG] [-verbose] [-column]]")
	fmt.Fprintln(w, "       fixcodec [-config=FILE] [[-fix=44] | [-dict=FIX44.xml]] [-component[=NAME] [-verbose] [-column]]")
	fmt.Fprintln(w, "       fixcodec [-config=FILE] [[-fix=44] | [-dict=FIX44.xml]] [-info]")
	fmt.Fprintln(w, "       fixcodec [-tolerant] [-obfuscate] [-stats] [-colour=yes|no] [file1.log file2.log ...]")
}

// resolveConfig loads the configuration file, if any, and applies the
// flags given explicitly on top of it.
func resolveConfig(opts CLIOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return cfg, err
		}
	}

	if opts.set["dict"] {
		cfg.Dictionary = opts.DictPath
	}
	if opts.set["fix"] {
		cfg.FixVersion, cfg.Dictionary = opts.FixVersion, ""
	}
	if opts.Tolerant {
		cfg.UnknownTags = codec.UnknownTagPreserve.String()
		cfg.CheckEnums = false
	}
	if opts.Obfuscate {
		cfg.Obfuscate = true
	}
	if opts.Colour.isSet {
		cfg.Colour = "no"
		if opts.Colour.value {
			cfg.Colour = "yes"
		}
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, errOut io.Writer) zerolog.Logger {
	return logging.Configure(logging.ProfileRuntime, errOut, func(lc *logging.Config) {
		if lvl, ok := logging.ParseLevel(cfg.Log.Level); ok {
			lc.Level = lvl
		}
		lc.NoColor = lc.NoColor || cfg.Log.NoColor
	})
}

func palette(cfg config.Config) pretty.Palette {
	switch cfg.Colour {
	case "yes":
		return pretty.Colours()
	case "no":
		return pretty.Plain()
	default:
		return pretty.AutoPalette(os.Stdout)
	}
}

// Process is the entry point: parses flags, loads a dictionary, runs
// handlers or streams the input files, and returns an exit code.
func Process(args []string, stdin io.Reader, out, errOut io.Writer) int {
	opts, err := parseFlagsArgs(args, errOut)
	if err != nil {
		return 2
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	logger := newLogger(cfg, errOut)

	dict, err := cfg.LoadDictionary()
	if err != nil {
		logger.Error().Err(err).Msg("dictionary load failed")
		return 1
	}

	app := &app{
		opts:   opts,
		cfg:    cfg,
		dict:   dict,
		pal:    palette(cfg),
		width:  pretty.TerminalWidth(os.Stdout),
		out:    out,
		errOut: errOut,
		log:    logger,
	}

	if status, handled := app.runHandlers(); handled {
		return status
	}
	return app.decodeFiles(stdin)
}

func main() {
	os.Exit(Process(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
