package service

import (
	"sync"

	"github.com/rvtrace/rvcore-sim/csr"
	"github.com/rvtrace/rvcore-sim/mcm"
	"github.com/rvtrace/rvcore-sim/trigger"
)

// Inspector is a thread-safe read-mostly façade over one hart's CSR file,
// trigger engine, and the run's shared MCM checker, grounded on the
// teacher's DebuggerService: a single lock-ordered owner that the tui and
// api packages both hold a reference to rather than reaching into csr/
// trigger/mcm directly. Unlike DebuggerService, Inspector does not itself
// drive execution: a co-simulation host retires instructions against
// csr/trigger/mcm directly and calls SetState to publish run-state changes.
type Inspector[U csr.Uint] struct {
	mu sync.RWMutex

	csrFile    *csr.File[U]
	triggers   *trigger.Engine
	checker    *mcm.Checker
	hartIx     uint8

	state      RunState
	lastError  error
	onChange   func()
}

// NewInspector wires an Inspector over an already-constructed csr.File,
// trigger.Engine, and mcm.Checker for hart hartIx. The caller retains
// ownership of all three; Inspector only reads them.
func NewInspector[U csr.Uint](hartIx uint8, csrFile *csr.File[U], triggers *trigger.Engine, checker *mcm.Checker) *Inspector[U] {
	return &Inspector[U]{
		csrFile:  csrFile,
		triggers: triggers,
		checker:  checker,
		hartIx:   hartIx,
		state:    StateIdle,
	}
}

// OnChange registers a callback invoked after every SetState transition,
// the generalization of the teacher's stateChangedCallback used to wake a
// blocked TUI redraw or push a websocket event.
func (ins *Inspector[U]) OnChange(fn func()) {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	ins.onChange = fn
}

// SetState records the run's current phase (idle/active/failed) and fires
// the change callback, if any, outside the lock.
func (ins *Inspector[U]) SetState(s RunState, err error) {
	ins.mu.Lock()
	ins.state = s
	ins.lastError = err
	cb := ins.onChange
	ins.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// State returns the run's current phase and last recorded error, if any.
func (ins *Inspector[U]) State() (RunState, error) {
	ins.mu.RLock()
	defer ins.mu.RUnlock()
	return ins.state, ins.lastError
}

// CsrStates returns every implemented CSR's current value for display,
// the service-layer analogue of the teacher's RegisterState snapshot.
func (ins *Inspector[U]) CsrStates() []CsrState {
	ins.mu.RLock()
	defer ins.mu.RUnlock()
	dump := ins.csrFile.Dump()
	out := make([]CsrState, 0, len(dump))
	for _, d := range dump {
		out = append(out, CsrState{Number: uint16(d.Number), Name: d.Name, Value: d.Value, ReadOnly: d.ReadOnly})
	}
	return out
}

// TriggerStates returns every trigger slot's current configuration.
func (ins *Inspector[U]) TriggerStates() []TriggerState {
	ins.mu.RLock()
	defer ins.mu.RUnlock()
	n := ins.triggers.Count()
	out := make([]TriggerState, 0, n)
	for i := 0; i < n; i++ {
		t1, t2, t3 := ins.triggers.RawTdata(i)
		out = append(out, TriggerState{
			Index:   i,
			Type:    ins.triggers.TriggerType(i).String(),
			Tdata1:  t1,
			Tdata2:  t2,
			Tdata3:  t3,
			Chained: ins.triggers.Chained(i),
		})
	}
	return out
}

// Violations returns every PPO/MCM violation recorded by the checker so
// far, newest last, matching the order mcm.Checker appends them in.
func (ins *Inspector[U]) Violations() []ViolationInfo {
	ins.mu.RLock()
	defer ins.mu.RUnlock()
	vs := ins.checker.Violations
	out := make([]ViolationInfo, 0, len(vs))
	for _, v := range vs {
		out = append(out, ViolationInfo{
			Kind: v.Kind, Rule: v.Rule, HartIx: v.HartIx, Tag: v.Tag, Tag2: v.Tag2,
			Time: v.Time, Time2: v.Time2, PhysAddr: v.PhysAddr, Message: v.Message, Warning: v.Warning,
		})
	}
	return out
}

// HartIndex returns the hart this Inspector was built for.
func (ins *Inspector[U]) HartIndex() uint8 { return ins.hartIx }

// ReadCsr peeks a CSR by number for display, bypassing legality the same
// way the teacher's DebuggerService reads registers for the GUI without
// going through the instruction-level CSR access path.
func (ins *Inspector[U]) ReadCsr(n csr.Number) (U, bool) {
	ins.mu.RLock()
	defer ins.mu.RUnlock()
	return ins.csrFile.Peek(n)
}
