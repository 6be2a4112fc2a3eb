// Package tracefmt renders human-readable field-wise diffs of CSR and
// trigger state ("MSTATUS.MPP 0→3"), grounded on tools/xref.go's
// sorted-output, String()-bearing value-type idiom — the formatting
// convention is borrowed, the content here is new.
package tracefmt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rvtrace/rvcore-sim/csr"
)

// FieldDiff is one named bitfield's before/after values within a single
// CSR or trigger write.
type FieldDiff struct {
	Register string
	Field    string
	Before   uint64
	After    uint64
}

func (d FieldDiff) String() string {
	if d.Field == "" {
		return fmt.Sprintf("%s 0x%x→0x%x", d.Register, d.Before, d.After)
	}
	return fmt.Sprintf("%s.%s %d→%d", d.Register, d.Field, d.Before, d.After)
}

// CsrDiff computes the field-wise diff for a CSR write given the entry's
// field descriptors, the value before the write, and the value after.
// Fields with no registered descriptors fall back to a single whole-
// register diff line.
func CsrDiff[U csr.Uint](name string, fields []csr.Field, before, after U) []FieldDiff {
	if len(fields) == 0 {
		if before == after {
			return nil
		}
		return []FieldDiff{{Register: name, Before: uint64(before), After: uint64(after)}}
	}
	var diffs []FieldDiff
	for _, f := range fields {
		mask := uint64(1)<<uint(f.Width) - 1
		b := (uint64(before) >> uint(f.Lsb)) & mask
		a := (uint64(after) >> uint(f.Lsb)) & mask
		if b != a {
			diffs = append(diffs, FieldDiff{Register: name, Field: f.Name, Before: b, After: a})
		}
	}
	return diffs
}

// FormatAll renders a sorted, newline-joined trace line from a set of
// diffs gathered across multiple registers in one instruction boundary,
// the multi-register analogue of tools/xref.go's sorted symbol dump.
func FormatAll(diffs []FieldDiff) string {
	lines := make([]string, 0, len(diffs))
	for _, d := range diffs {
		lines = append(lines, d.String())
	}
	sort.Strings(lines)
	return strings.Join(lines, "; ")
}
