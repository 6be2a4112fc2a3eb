// Package core dispatches the full CSR number space to the right owning
// subsystem: the trigger package for tselect/tdata1-3/tinfo/tcontrol, the
// csr package for everything else. Grounded on debugger/debugger.go's
// aggregate-manager-wiring-sub-managers shape — Hart is the sub-manager
// aggregator the comment in csr/registry.go promises.
package core

import (
	"fmt"

	"github.com/rvtrace/rvcore-sim/csr"
	"github.com/rvtrace/rvcore-sim/trigger"
)

// Hart owns one hart's CSR file and trigger engine plus its current
// privilege/virtualization/debug-mode state, and routes CSR accesses to
// whichever subsystem owns the target number.
type Hart[U csr.Uint] struct {
	Csr      *csr.File[U]
	Triggers *trigger.Engine

	Priv      csr.PrivilegeLevel
	V         bool
	DebugMode bool
}

// NewHart builds a Hart over an already-constructed CSR file and trigger
// engine (both built independently, e.g. via csr.NewDefaultFile and
// trigger.NewEngine, so callers can share a trigger engine's width
// configuration with the CSR file's register width).
func NewHart[U csr.Uint](f *csr.File[U], triggers *trigger.Engine) *Hart[U] {
	return &Hart[U]{Csr: f, Triggers: triggers}
}

func isTriggerCsr(n csr.Number) bool {
	switch n {
	case csr.Tselect, csr.Tdata1, csr.Tdata2, csr.Tdata3, csr.Tinfo, csr.Tcontrol:
		return true
	default:
		return false
	}
}

// ReadCSR implements spec.md §4.1's read(n, priv) across the full CSR
// space, including the trigger-owned registers.
func (h *Hart[U]) ReadCSR(n csr.Number) (U, error) {
	if isTriggerCsr(n) {
		return U(h.readTriggerCsr(n)), nil
	}
	return h.Csr.Read(n, h.Priv, h.V, h.DebugMode)
}

func (h *Hart[U]) readTriggerCsr(n csr.Number) uint64 {
	switch n {
	case csr.Tselect:
		return h.Triggers.ReadTselect()
	case csr.Tdata1:
		return h.Triggers.ReadTdata1()
	case csr.Tdata2:
		return h.Triggers.ReadTdata2()
	case csr.Tdata3:
		return h.Triggers.ReadTdata3()
	case csr.Tinfo:
		return h.Triggers.ReadTinfo()
	case csr.Tcontrol:
		return h.Triggers.ReadTcontrol()
	default:
		return 0
	}
}

// WriteCSR implements spec.md §4.1's write(n, priv, x) across the full CSR
// space, including the trigger-owned registers (whose legality gating —
// the dmode lock — lives in trigger.Engine.WriteTdata1, not here).
func (h *Hart[U]) WriteCSR(n csr.Number, x U) error {
	if isTriggerCsr(n) {
		return h.writeTriggerCsr(n, uint64(x))
	}
	return h.Csr.Write(n, h.Priv, h.V, h.DebugMode, x)
}

func (h *Hart[U]) writeTriggerCsr(n csr.Number, x uint64) error {
	switch n {
	case csr.Tselect:
		h.Triggers.WriteTselect(x)
		return nil
	case csr.Tdata1:
		return h.Triggers.WriteTdata1(x, h.DebugMode)
	case csr.Tdata2:
		h.Triggers.WriteTdata2(x)
		return nil
	case csr.Tdata3:
		h.Triggers.WriteTdata3(x)
		return nil
	case csr.Tinfo:
		return fmt.Errorf("csr: tinfo is read-only")
	case csr.Tcontrol:
		h.Triggers.WriteTcontrol(x)
		return nil
	default:
		return fmt.Errorf("core: unreachable trigger csr 0x%03x", n)
	}
}

// PokeCSR implements the hardware-sourced update path, bypassing legality,
// across both subsystems.
func (h *Hart[U]) PokeCSR(n csr.Number, x U) error {
	if isTriggerCsr(n) {
		if n == csr.Tdata1 {
			h.Triggers.PokeTdata1(uint64(x))
			return nil
		}
		return h.writeTriggerCsr(n, uint64(x))
	}
	return h.Csr.Poke(n, x)
}

// triggerPriv converts a csr.PrivilegeLevel to the trigger package's leaf
// Priv type (they share the same 2-bit encoding per the RISC-V debug spec).
func triggerPriv(p csr.PrivilegeLevel) trigger.Priv { return trigger.Priv(p) }

// EvaluateRetire advances icount triggers and returns any resulting hits,
// called once per retired instruction by the co-simulation host.
func (h *Hart[U]) EvaluateRetire() []trigger.Hit {
	return h.Triggers.RetireInstruction(triggerPriv(h.Priv), h.V)
}

// EvaluateLoad checks load-address/load-data triggers against an observed load.
func (h *Hart[U]) EvaluateLoad(addr, data uint64) []trigger.Hit {
	return h.Triggers.EvaluateLoad(addr, data, triggerPriv(h.Priv), h.V)
}

// EvaluateStore checks store-address/store-data triggers against an observed store.
func (h *Hart[U]) EvaluateStore(addr, data uint64) []trigger.Hit {
	return h.Triggers.EvaluateStore(addr, data, triggerPriv(h.Priv), h.V)
}

// EvaluateExecute checks instruction-address/opcode triggers against a fetch/retire.
func (h *Hart[U]) EvaluateExecute(pc, opcode uint64) []trigger.Hit {
	return h.Triggers.EvaluateExecute(pc, opcode, triggerPriv(h.Priv), h.V)
}
