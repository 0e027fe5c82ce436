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
	_ "embed"
	"sort"
	"strings"
)

//go:embed dictionaries/FIX44.xml
var fix44XML string

var embeddedXML = map[string]string{
	"44": fix44XML,
}

// ChooseEmbeddedXML returns the embedded dictionary for a version key such
// as "44". Unknown keys fall back to FIX 4.4.
func ChooseEmbeddedXML(version string) string {
	if x, ok := embeddedXML[strings.ToUpper(version)]; ok {
		return x
	}
	return fix44XML
}

// SupportedFixVersions lists the embedded dictionary keys, comma separated.
func SupportedFixVersions() string {
	keys := make([]string, 0, len(embeddedXML))
	for k := range embeddedXML {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
