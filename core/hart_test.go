package core

import (
	"testing"

	"github.com/rvtrace/rvcore-sim/csr"
	"github.com/rvtrace/rvcore-sim/trigger"
)

func newTestHart() *Hart[uint64] {
	f := csr.NewDefaultFile[uint64](csr.HartConfig{SupportedModes: 0b1011, HartIndex: 0})
	f.Reset()
	eng := trigger.NewEngine(4, 64)
	h := NewHart[uint64](f, eng)
	h.Priv = csr.PrivMachine
	return h
}

func TestReadWriteOrdinaryCsr(t *testing.T) {
	h := newTestHart()
	if err := h.WriteCSR(csr.Mscratch, 0xDEAD); err != nil {
		t.Fatalf("write mscratch: %v", err)
	}
	got, err := h.ReadCSR(csr.Mscratch)
	if err != nil {
		t.Fatalf("read mscratch: %v", err)
	}
	if got != 0xDEAD {
		t.Fatalf("got 0x%x", got)
	}
}

func TestReadWriteTriggerCsr(t *testing.T) {
	h := newTestHart()
	if err := h.WriteCSR(csr.Tselect, 1); err != nil {
		t.Fatalf("write tselect: %v", err)
	}
	got, err := h.ReadCSR(csr.Tselect)
	if err != nil {
		t.Fatalf("read tselect: %v", err)
	}
	if got != 1 {
		t.Fatalf("got %d", got)
	}

	if err := h.WriteCSR(csr.Tdata2, 0x1000); err != nil {
		t.Fatalf("write tdata2: %v", err)
	}
	got, err = h.ReadCSR(csr.Tdata2)
	if err != nil {
		t.Fatalf("read tdata2: %v", err)
	}
	if got != 0x1000 {
		t.Fatalf("got 0x%x", got)
	}
}

func TestWriteTinfoRejected(t *testing.T) {
	h := newTestHart()
	if err := h.WriteCSR(csr.Tinfo, 1); err == nil {
		t.Fatal("expected error writing read-only tinfo")
	}
}
