package csr

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors, wrapped with %w so callers can errors.Is against the
// category while the message still carries the offending CSR number.
var (
	ErrNotImplemented = errors.New("csr: not implemented")
	ErrOutOfRange     = errors.New("csr: number out of range")
	ErrPrivilege      = errors.New("csr: insufficient privilege")
	ErrDebugOnly      = errors.New("csr: debug-only register accessed outside debug mode")
	ErrHypervisor     = errors.New("csr: hypervisor-only register inaccessible while V=1")
	ErrReadOnly       = errors.New("csr: register is read-only")
)

// File is the control-and-status-register file for one hart at register
// width U (uint32 for RV32, uint64 for RV64).
type File[U Uint] struct {
	mu          sync.RWMutex
	entries     map[Number]*Entry[U]
	order       []Number // insertion order, used for Reset and dumps
	lastWritten map[Number]bool
}

// NewFile creates an empty CSR file. Callers populate it via Define/Alias/
// Tie, then typically call Reset() once before first use.
func NewFile[U Uint]() *File[U] {
	return &File[U]{
		entries:     make(map[Number]*Entry[U]),
		lastWritten: make(map[Number]bool),
	}
}

// Define registers a new CSR entry. Panics on a duplicate number: that is
// a wiring bug in the caller's configuration, not a runtime condition.
func (f *File[U]) Define(e *Entry[U]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.entries[e.Number]; exists {
		panic(fmt.Sprintf("csr: duplicate definition for number 0x%03x", e.Number))
	}
	f.entries[e.Number] = e
	f.order = append(f.order, e.Number)
}

// Alias defines a CSR entry that shares backing storage with an
// already-defined target (sstatus over mstatus, sie/sip over mie/mip, the
// vs*/hs* redirection targets, or a shared-across-harts tie to hart 0).
func (f *File[U]) Alias(e *Entry[U], target Number) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base, ok := f.entries[target]
	if !ok {
		panic(fmt.Sprintf("csr: alias target 0x%03x not defined", target))
	}
	e.shadow(base)
	if _, exists := f.entries[e.Number]; exists {
		panic(fmt.Sprintf("csr: duplicate definition for number 0x%03x", e.Number))
	}
	f.entries[e.Number] = e
	f.order = append(f.order, e.Number)
}

// Tie backs an already-defined performance-counter CSR with an external
// 64-bit counter cell so incrementing the array is immediately visible
// through CSR read without going through poke().
func (f *File[U]) Tie(n Number, cell *uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[n]
	if !ok {
		panic(fmt.Sprintf("csr: tie target 0x%03x not defined", n))
	}
	e.tieToCounter(cell)
}

func (f *File[U]) lookup(n Number) (*Entry[U], error) {
	if n > MaxCsr {
		return nil, fmt.Errorf("%w: 0x%03x", ErrOutOfRange, n)
	}
	e, ok := f.entries[n]
	if !ok || !e.implemented {
		return nil, fmt.Errorf("%w: 0x%03x", ErrNotImplemented, n)
	}
	return e, nil
}

// legal checks the access-illegal conditions common to read/write, per
// spec.md §4.1: privilege, debug-only, hypervisor-while-V.
func legal[U Uint](e *Entry[U], priv PrivilegeLevel, v, debugMode bool) error {
	if e.debugOnly && !debugMode {
		return fmt.Errorf("%w: %s", ErrDebugOnly, e.Name)
	}
	if v && e.hypervisor {
		return fmt.Errorf("%w: %s", ErrHypervisor, e.Name)
	}
	if priv < e.minPriv {
		return fmt.Errorf("%w: %s requires priv>=%d, have %d", ErrPrivilege, e.Name, e.minPriv, priv)
	}
	return nil
}

// redirect resolves maps-to-virtual aliasing: when V=1 and the entry
// redirects, operate on the paired virtual CSR's entry instead.
func (f *File[U]) redirect(e *Entry[U], v bool) (*Entry[U], error) {
	if !v || e.mapsToVirtual == 0 {
		return e, nil
	}
	target, ok := f.entries[e.mapsToVirtual]
	if !ok {
		return e, nil // misconfiguration guard: fall back rather than panic on read path
	}
	return target, nil
}

// Read implements spec.md §4.1 read(n, priv) → value | error, with V
// threaded through explicitly (the Hart supplies its current
// privilege/virtualization state at the call site rather than the File
// tracking it implicitly).
func (f *File[U]) Read(n Number, priv PrivilegeLevel, v, debugMode bool) (U, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e, err := f.lookup(n)
	if err != nil {
		return 0, err
	}
	if err := legal(e, priv, v, debugMode); err != nil {
		return 0, err
	}
	if CounterGated(f, n, priv) {
		return 0, fmt.Errorf("%w: %s gated by counteren", ErrPrivilege, e.Name)
	}
	e, err = f.redirect(e, v)
	if err != nil {
		return 0, err
	}
	if composed, ok := composeRead(f, e.Number); ok {
		return composed, nil
	}
	return e.rawValue() & e.readMask, nil
}

// Write implements spec.md §4.1 write(n, priv, x) → ok | error.
func (f *File[U]) Write(n Number, priv PrivilegeLevel, v, debugMode bool, x U) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, err := f.lookup(n)
	if err != nil {
		return err
	}
	if err := legal(e, priv, v, debugMode); err != nil {
		return err
	}
	if e.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, e.Name)
	}
	target, err := f.redirect(e, v)
	if err != nil {
		return err
	}
	f.commitWrite(target, x)
	f.lastWritten[n] = true
	return nil
}

// WriteIgnoringLegality is the privileged API the Hart uses to let an
// instruction write a CSR after the Hart has already performed its own
// legality/trap decision (DESIGN.md: explicit privileged API replacing a
// C++ friend-class back-channel).
func (f *File[U]) WriteIgnoringLegality(n Number, x U) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, err := f.lookup(n)
	if err != nil {
		return err
	}
	f.commitWrite(e, x)
	f.lastWritten[n] = true
	return nil
}

func (f *File[U]) commitWrite(e *Entry[U], x U) {
	prior := e.rawValue()
	if !e.prevValid {
		e.prevValue = prior
		e.prevValid = true
	}
	incoming := x
	for _, hook := range e.preWrite {
		incoming = hook(f, e, prior, incoming)
	}
	final := (incoming & e.writeMask) | (prior &^ e.writeMask)
	e.setRaw(final)
	for _, hook := range e.postWrite {
		hook(f, e, prior, final)
	}
	decomposeWrite(f, e.Number, final)
}

// Poke implements spec.md §4.1 poke(n, x): gated by poke-mask only,
// bypasses all legality checks. This is the interface hardware-sourced
// updates use (setting MEIP, incrementing minstret, etc).
func (f *File[U]) Poke(n Number, x U) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, err := f.lookup(n)
	if err != nil {
		return err
	}
	prior := e.rawValue()
	incoming := x
	for _, hook := range e.prePoke {
		incoming = hook(f, e, prior, incoming)
	}
	final := (incoming & e.pokeMask) | (prior &^ e.pokeMask)
	e.setRaw(final)
	for _, hook := range e.postPoke {
		hook(f, e, prior, final)
	}
	return nil
}

// MarkWrittenByInstruction records n in the last-written set without
// performing a write, for CSRs the Hart updates through a side channel
// (e.g. a compound CSR's constituent fields already updated via
// commitWrite's decompose hook).
func (f *File[U]) MarkWrittenByInstruction(n Number) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastWritten[n] = true
}

// Reset restores every implemented CSR to its reset value and clears
// last-written.
func (f *File[U]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.order {
		e := f.entries[n]
		if e.tied != nil {
			*e.tied = 0
			continue
		}
		// Every entry of a shadow group writes its own reset value into the
		// shared cell, in definition order, so the last-defined entry's
		// reset value is the one that remains.
		*e.store = e.resetValue
		e.prevValid = false
	}
	f.lastWritten = make(map[Number]bool)
}

// LastWritten returns the CSR numbers written since the last Reset or
// ClearLastWritten call, for trace diffing.
func (f *File[U]) LastWritten() []Number {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Number, 0, len(f.lastWritten))
	for _, n := range f.order {
		if f.lastWritten[n] {
			out = append(out, n)
		}
	}
	return out
}

// ClearLastWritten empties the last-written set without touching values,
// for callers that track per-instruction write sets across a boundary
// Reset() shouldn't cross (e.g. between retire and the next fetch).
func (f *File[U]) ClearLastWritten() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastWritten = make(map[Number]bool)
}

// PrevValue returns the value an entry held immediately before its first
// write since the last Reset, for in-flight CSR side effects that must
// observe the stale value (spec.md §3.1 "prev-value").
func (f *File[U]) PrevValue(n Number) (U, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[n]
	if !ok {
		return 0, false
	}
	return e.prevValue, e.prevValid
}

// Fields returns the ordered field descriptors for a CSR, for tracefmt.
func (f *File[U]) Fields(n Number) []Field {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[n]
	if !ok {
		return nil
	}
	return e.fields
}

// Snapshot is one CSR's implemented state for inspection tooling (the
// service package's CsrState DTO is built from these).
type Snapshot struct {
	Number   Number
	Name     string
	Value    uint64
	ReadOnly bool
}

// Dump returns every implemented CSR's raw value in definition order, for
// external inspection (service/api/tui). Bypasses legality the same way
// Peek does.
func (f *File[U]) Dump() []Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Snapshot, 0, len(f.order))
	for _, n := range f.order {
		e := f.entries[n]
		if !e.implemented {
			continue
		}
		out = append(out, Snapshot{Number: n, Name: e.Name, Value: uint64(e.rawValue()), ReadOnly: e.readOnly})
	}
	return out
}

// Peek reads a CSR's raw value bypassing legality and read-mask, the
// interface the Hart uses for its own peekCsr() (spec.md §6.3).
func (f *File[U]) Peek(n Number) (U, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[n]
	if !ok || !e.implemented {
		return 0, false
	}
	return e.rawValue(), true
}
