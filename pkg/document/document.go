// Package document implements the shared text buffer a Room owns, and
// the Operation type applied against it.
//
// Positions are indices into the UTF-16 code unit sequence of the text,
// matching the source editor's JavaScript string semantics rather than
// Go's native UTF-8 byte indexing. unicode/utf16 (standard library) is
// the conversion boundary: no example repo in this pack exercises
// UTF-16-indexed text buffers, so there is no third-party codec to adopt
// here — see DESIGN.md.
package document

import "unicode/utf16"

// Document is a mutable sequence of UTF-16 code units.
type Document struct {
	units []uint16
}

// New creates a Document seeded with the given text.
func New(initial string) *Document {
	return &Document{units: utf16.Encode([]rune(initial))}
}

// Len returns the document length in UTF-16 code units.
func (d *Document) Len() int {
	return len(d.units)
}

// String decodes the current contents back to a Go string.
func (d *Document) String() string {
	return string(utf16.Decode(d.units))
}

// Insert splices content into the document at position, which must
// satisfy 0 <= position <= Len(). The caller is responsible for having
// validated the operation first.
func (d *Document) Insert(position int, content string) {
	encoded := utf16.Encode([]rune(content))
	out := make([]uint16, 0, len(d.units)+len(encoded))
	out = append(out, d.units[:position]...)
	out = append(out, encoded...)
	out = append(out, d.units[position:]...)
	d.units = out
}

// Delete removes length code units starting at position, which must
// satisfy 0 <= position, position+length <= Len().
func (d *Document) Delete(position, length int) {
	out := make([]uint16, 0, len(d.units)-length)
	out = append(out, d.units[:position]...)
	out = append(out, d.units[position+length:]...)
	d.units = out
}
