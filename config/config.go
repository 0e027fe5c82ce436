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

// Package config reads the TOML configuration of the fixcodec tools: which
// dictionary to load, the codec policies, and display and log defaults.
package config

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/stephenlclarke/fixcodec/codec"
	"github.com/stephenlclarke/fixcodec/fix"
	"github.com/stephenlclarke/fixcodec/schema"
)

type Config struct {
	// Dictionary is a dictionary file (.xml, .yaml or .yml). When empty the
	// embedded dictionary for FixVersion is used.
	Dictionary string `toml:"dictionary"`
	FixVersion string `toml:"fix_version"`

	UnknownTags   string `toml:"unknown_tags"` // reject | preserve
	Incomplete    string `toml:"incomplete"`   // need-more | reject
	MaxFrameSize  int    `toml:"max_frame_size"`
	MaxGroupDepth int    `toml:"max_group_depth"`
	CheckEnums    bool   `toml:"check_enums"`

	Obfuscate bool   `toml:"obfuscate"`
	Colour    string `toml:"colour"` // auto | yes | no

	Log Log `toml:"log"`
}

type Log struct {
	Level   string `toml:"level"`
	NoColor bool   `toml:"no_color"`
}

// Default matches the strict codec options and the embedded FIX 4.4
// dictionary.
func Default() Config {
	opts := codec.StrictOptions()
	return Config{
		FixVersion:    "44",
		UnknownTags:   opts.UnknownTags.String(),
		Incomplete:    opts.Incomplete.String(),
		MaxFrameSize:  opts.MaxFrameSize,
		MaxGroupDepth: opts.MaxGroupDepth,
		CheckEnums:    opts.CheckEnums,
		Colour:        "auto",
		Log:           Log{Level: "info"},
	}
}

// Load reads path over the defaults. Keys the configuration does not know
// are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := finish(&cfg, meta); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Read is Load for an already open source.
func Read(r io.Reader) (Config, error) {
	cfg := Default()

	meta, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	if err := finish(&cfg, meta); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func finish(cfg *Config, meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	cfg.UnknownTags = strings.ToLower(strings.TrimSpace(cfg.UnknownTags))
	cfg.Incomplete = strings.ToLower(strings.TrimSpace(cfg.Incomplete))
	cfg.Colour = strings.ToLower(strings.TrimSpace(cfg.Colour))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	return cfg.Validate()
}

var logLevels = []string{"trace", "debug", "info", "warn", "error", "disabled"}

func (c Config) Validate() error {
	if _, err := c.CodecOptions(); err != nil {
		return err
	}
	switch c.Colour {
	case "auto", "yes", "no":
	default:
		return fmt.Errorf("colour must be auto, yes or no, not %q", c.Colour)
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("log level must be one of %s, not %q", strings.Join(logLevels, ", "), c.Log.Level)
	}
	if c.Dictionary == "" && c.FixVersion == "" {
		return fmt.Errorf("one of dictionary or fix_version is required")
	}
	return nil
}

// CodecOptions converts the policy settings.
func (c Config) CodecOptions() (codec.Options, error) {
	opts := codec.Options{
		MaxFrameSize:  c.MaxFrameSize,
		MaxGroupDepth: c.MaxGroupDepth,
		CheckEnums:    c.CheckEnums,
	}

	switch c.UnknownTags {
	case codec.UnknownTagReject.String():
		opts.UnknownTags = codec.UnknownTagReject
	case codec.UnknownTagPreserve.String():
		opts.UnknownTags = codec.UnknownTagPreserve
	default:
		return codec.Options{}, fmt.Errorf("unknown_tags must be reject or preserve, not %q", c.UnknownTags)
	}

	switch c.Incomplete {
	case codec.IncompleteNeedMore.String():
		opts.Incomplete = codec.IncompleteNeedMore
	case codec.IncompleteReject.String():
		opts.Incomplete = codec.IncompleteReject
	default:
		return codec.Options{}, fmt.Errorf("incomplete must be need-more or reject, not %q", c.Incomplete)
	}

	if err := opts.Validate(); err != nil {
		return codec.Options{}, err
	}
	return opts, nil
}

// LoadDictionary compiles the configured dictionary.
func (c Config) LoadDictionary() (*schema.Dictionary, error) {
	if c.Dictionary != "" {
		return schema.LoadFile(c.Dictionary)
	}
	return schema.LoadXML(strings.NewReader(fix.ChooseEmbeddedXML(c.FixVersion)))
}
