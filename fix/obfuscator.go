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
package fix

import (
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"
	"sync"
)

const soh = "\x01"

// SensitiveTags is the default set of tags whose values identify
// counterparties, accounts or orders.
func SensitiveTags() map[int]string {
	return map[int]string{
		1:   "Account",
		11:  "ClOrdID",
		37:  "OrderID",
		41:  "OrigClOrdID",
		49:  "SenderCompID",
		50:  "SenderSubID",
		56:  "TargetCompID",
		57:  "TargetSubID",
		115: "OnBehalfOfCompID",
		128: "DeliverToCompID",
		448: "PartyID",
		523: "PartySubID",
		553: "Username",
		554: "Password",
	}
}

// Obfuscator replaces values of sensitive FIX tags with stable aliases.
// It is safe for concurrent use.
type Obfuscator struct {
	enabled  bool              // global enable/disable flag
	tags     map[int]string    // tag -> name used as alias prefix
	mu       sync.Mutex        // protects aliasMap and counter
	aliasMap map[string]string // "tag=value" -> alias
	counter  map[int]int       // per-tag, for zero-padded suffixes
	stderr   io.Writer         // first-use notices, may be nil
}

// CreateObfuscator constructs an Obfuscator using the given tag map.
// A disabled obfuscator returns every value unchanged.
func CreateObfuscator(tags map[int]string, enabled bool, stderr io.Writer) *Obfuscator {
	cp := make(map[int]string, len(tags))
	maps.Copy(cp, tags)

	return &Obfuscator{
		enabled:  enabled,
		tags:     cp,
		aliasMap: make(map[string]string),
		counter:  make(map[int]int),
		stderr:   stderr,
	}
}

func (o *Obfuscator) Enabled() bool {
	return o != nil && o.enabled
}

// Alias returns the stable alias for a sensitive tag value, or val itself
// when the tag is not sensitive or obfuscation is off.
func (o *Obfuscator) Alias(tag int, val string) string {
	if !o.Enabled() {
		return val
	}

	name, sensitive := o.tags[tag]
	if !sensitive {
		return val
	}

	key := strconv.Itoa(tag) + "=" + val

	o.mu.Lock()
	defer o.mu.Unlock()

	alias, exists := o.aliasMap[key]
	if !exists {
		o.counter[tag]++
		alias = fmt.Sprintf("%s%04d", name, o.counter[tag])
		o.aliasMap[key] = alias

		if o.stderr != nil {
			fmt.Fprintf(o.stderr, "first use: tag %d (%s) value [%s] → [%s]\n", tag, name, val, alias)
		}
	}

	return alias
}

// ObfuscateLine rewrites a single SOH-delimited line, replacing values for
// sensitive tags. The checksum is not recomputed; the output is for display.
func (o *Obfuscator) ObfuscateLine(line string) string {
	if !o.Enabled() {
		return line
	}

	fields := strings.Split(line, soh)

	for i, f := range fields {
		tagStr, val, ok := splitOnce(f)
		if !ok {
			continue
		}

		tagNum, err := strconv.Atoi(tagStr)
		if err != nil {
			continue
		}

		if alias := o.Alias(tagNum, val); alias != val {
			fields[i] = tagStr + "=" + alias
		}
	}

	return strings.Join(fields, soh)
}

func splitOnce(s string) (left, right string, ok bool) {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}
