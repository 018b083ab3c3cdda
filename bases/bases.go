// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bases defines the small enum used everywhere a single sequenced
// base needs to travel through the similarity engine: the 2-bit A/C/G/T
// encoding the upstream pileup collaborator is assumed to already use.
package bases

// Base is a single observed nucleotide, encoded 0..3.
type Base byte

const (
	// A represents an A base.
	A Base = iota
	// C represents a C base.
	C
	// G represents a G base.
	G
	// T represents a T base.
	T
)

// N is the number of distinct base values the engine understands.
const N = 4

// asciiToBase maps the upper- and lower-case ASCII letters to their Base
// encoding; everything else maps to (0, false).
var asciiToBase = map[byte]Base{
	'A': A, 'a': A,
	'C': C, 'c': C,
	'G': G, 'g': G,
	'T': T, 't': T,
}

// FromASCII decodes a single ASCII base letter, case-insensitively. It
// returns false for anything other than A/C/G/T, including 'N' -- the
// upstream pileup is assumed to already have filtered those out.
func FromASCII(c byte) (Base, bool) {
	b, ok := asciiToBase[c]
	return b, ok
}

// asciiTable is the inverse of asciiToBase, used only for diagnostics.
var asciiTable = [N]byte{'A', 'C', 'G', 'T'}

// String renders b as its ASCII letter, or "?" if b is out of range.
func (b Base) String() string {
	if int(b) >= N {
		return "?"
	}
	return string(asciiTable[b])
}
