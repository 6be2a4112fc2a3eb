package tracefmt

import (
	"testing"

	"github.com/rvtrace/rvcore-sim/csr"
)

func TestCsrDiffWithFields(t *testing.T) {
	fields := []csr.Field{{Name: "MPP", Lsb: 11, Width: 2}}
	diffs := CsrDiff("MSTATUS", fields, uint64(0), uint64(0x1800))
	if len(diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(diffs))
	}
	if got := diffs[0].String(); got != "MSTATUS.MPP 0→3" {
		t.Fatalf("got %q", got)
	}
}

func TestCsrDiffNoFieldsFallsBackToWholeRegister(t *testing.T) {
	diffs := CsrDiff[uint64]("MSCRATCH", nil, 0, 0xDEADBEEF)
	if len(diffs) != 1 || diffs[0].Field != "" {
		t.Fatalf("unexpected diffs: %+v", diffs)
	}
}

func TestCsrDiffNoChange(t *testing.T) {
	fields := []csr.Field{{Name: "MPP", Lsb: 11, Width: 2}}
	diffs := CsrDiff("MSTATUS", fields, uint64(0x1800), uint64(0x1800))
	if len(diffs) != 0 {
		t.Fatalf("expected no diffs, got %v", diffs)
	}
}

func TestFormatAll(t *testing.T) {
	out := FormatAll([]FieldDiff{
		{Register: "MSTATUS", Field: "MPP", Before: 0, After: 3},
		{Register: "MIE", Field: "MTIE", Before: 0, After: 1},
	})
	if out != "MIE.MTIE 0→1; MSTATUS.MPP 0→3" {
		t.Fatalf("got %q", out)
	}
}
