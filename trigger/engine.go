package trigger

import "fmt"

// ChainDmodePolicy selects how Engine resolves a write that would extend a
// chain across a dmode boundary (one trigger in the run has dmode=1, the
// other dmode=0). spec.md §9 leaves the choice open; original_source/
// Triggers.cpp rejects the write outright. We expose both as a declared
// policy rather than picking silently (DESIGN.md).
type ChainDmodePolicy uint8

const (
	// RejectWrite makes WriteTdata1 return an error instead of breaking the
	// dmode invariant, matching the whisper model's behavior.
	RejectWrite ChainDmodePolicy = iota
	// ClearChainBit silently clears the chain bit instead of erroring,
	// matching hardware implementations that treat an illegal chain as a
	// no-op rather than a trap.
	ClearChainBit
)

var ErrChainDmodeMismatch = fmt.Errorf("trigger: chain crosses a dmode boundary")

// Hit describes a trigger firing, reported after chain resolution.
type Hit struct {
	Index  int
	Action Action
	Timing Timing
}

// Engine owns the full set of trigger slots for one hart plus the
// tselect/tcontrol CSR-facing state, grounded on debugger/watchpoints.go's
// and debugger/breakpoints.go's manager-over-a-slice idiom (fixed-capacity
// here rather than map+auto-ID, since trigger count is a static hart
// parameter, not dynamically created/destroyed like a CLI breakpoint).
type Engine struct {
	triggers []*Trigger
	tselect  int
	tcontrol uint64 // mte/mpte fields, bits 3 (mte) and 7 (mpte)

	ChainDmodePolicy ChainDmodePolicy

	width int // 32 or 64, drives NAPOT/hi-lo match field widths
}

// NewEngine allocates n trigger slots for a register width of bitWidth
// (32 or 64), all initially TypeDisabled.
func NewEngine(n, bitWidth int) *Engine {
	e := &Engine{
		triggers: make([]*Trigger, n),
		width:    bitWidth,
	}
	for i := range e.triggers {
		e.triggers[i] = &Trigger{Index: i, typ: TypeDisabled, tinfoBitmap: defaultTinfoBitmap}
	}
	return e
}

const defaultTinfoBitmap = (1 << TypeNone) | (1 << TypeMcontrol) | (1 << TypeIcount) |
	(1 << TypeItrigger) | (1 << TypeEtrigger) | (1 << TypeMcontrol6) | (1 << TypeDisabled)

// Count returns the number of implemented trigger slots.
func (e *Engine) Count() int { return len(e.triggers) }

// TriggerType returns the configured type of trigger slot index, for
// inspection UIs that need to label a slot without a tselect round trip.
func (e *Engine) TriggerType(index int) Type { return e.triggers[index].typ }

// Chained reports whether trigger slot index has its chain bit set.
func (e *Engine) Chained(index int) bool { return e.triggers[index].chain }

// RawTdata dumps the packed tdata1/2/3 words for slot index without
// disturbing tselect, for inspection UIs that want every slot at once.
func (e *Engine) RawTdata(index int) (tdata1, tdata2, tdata3 uint64) {
	t := e.triggers[index]
	return packTdata1(t, e.width), t.raw2, t.raw3
}

// Tselect / tdata1..3 tdata3/tinfo/tcontrol CSR-facing accessors ----------

func (e *Engine) ReadTselect() uint64 { return uint64(e.tselect) }

func (e *Engine) WriteTselect(x uint64) {
	if int(x) < len(e.triggers) {
		e.tselect = int(x)
	}
	// Out-of-range selects are silently ignored per the RISC-V debug spec:
	// tselect retains its previous value.
}

func (e *Engine) current() *Trigger { return e.triggers[e.tselect] }

func (e *Engine) ReadTdata1() uint64 { return packTdata1(e.current(), e.width) }

func (e *Engine) ReadTdata2() uint64 { return e.current().raw2 }

func (e *Engine) ReadTdata3() uint64 { return e.current().raw3 }

func (e *Engine) ReadTinfo() uint64 {
	t := e.current()
	return uint64(t.tinfoVersion)<<24 | uint64(t.tinfoBitmap)
}

func (e *Engine) ReadTcontrol() uint64 { return e.tcontrol }

func (e *Engine) WriteTcontrol(x uint64) { e.tcontrol = x & 0x88 }

// WriteTdata1 unpacks and installs a new tdata1, enforcing the chain/dmode
// invariant per ChainDmodePolicy. A written type of None installs Disabled,
// and a type the trigger's tinfo bitmap does not advertise keeps the
// trigger's prior type.
func (e *Engine) WriteTdata1(x uint64, debugMode bool) error {
	t := e.current()
	if t.dmode && !debugMode {
		return fmt.Errorf("trigger: tdata1 is locked by dmode outside debug mode")
	}
	typ := Type(x >> uint(e.width-4))
	if typ == TypeNone {
		typ = TypeDisabled
	}
	if !t.SupportsType(typ) && typ != TypeDisabled {
		typ = t.typ // unsupported type writes keep the prior type
	}
	candidate := unpackTdata1(x, typ, e.width)
	if candidate.chain || (t.Index > 0 && e.triggers[t.Index-1].chain) {
		if err := e.checkChainDmode(t.Index, candidate.dmode); err != nil {
			if e.ChainDmodePolicy == RejectWrite {
				return err
			}
			candidate.chain = false
		}
	}
	candidate.Index = t.Index
	candidate.tinfoBitmap = t.tinfoBitmap
	candidate.tinfoVersion = t.tinfoVersion
	candidate.raw2 = t.raw2
	candidate.raw3 = t.raw3
	candidate.modified = true
	e.triggers[t.Index] = candidate
	e.recomputeChains()
	return nil
}

// checkChainDmode verifies every trigger chained with index shares the same
// dmode value once dmode is set to newDmode.
func (e *Engine) checkChainDmode(index int, newDmode bool) error {
	begin, end := index, index
	for begin > 0 && e.triggers[begin-1].chain {
		begin--
	}
	for end < len(e.triggers)-1 && e.triggers[end].chain {
		end++
	}
	for i := begin; i <= end && i < len(e.triggers); i++ {
		if i == index {
			continue
		}
		if e.triggers[i].dmode != newDmode {
			return ErrChainDmodeMismatch
		}
	}
	return nil
}

// recomputeChains assigns each trigger's [chainBegin,chainEnd) run, the
// maximal span of consecutive chain-linked triggers containing it (the
// final trigger of a run has chain=0, terminating it), per spec.md §4.2.
func (e *Engine) recomputeChains() {
	n := len(e.triggers)
	i := 0
	for i < n {
		begin := i
		for i < n && e.triggers[i].chain {
			i++
		}
		if i < n {
			i++ // include the terminating non-chained trigger in the run
		}
		end := i
		for j := begin; j < end; j++ {
			e.triggers[j].chainBegin = begin
			e.triggers[j].chainEnd = end
		}
	}
}

func (e *Engine) WriteTdata2(x uint64) {
	t := e.current()
	t.raw2 = x
	t.modified = true
}

func (e *Engine) WriteTdata3(x uint64) {
	t := e.current()
	t.raw3 = x
	t.modified = true
}

// PokeTdata1 installs a raw tdata1 bypassing the dmode lock, mirroring
// csr.File.Poke's role for hardware/debugger-sourced updates.
func (e *Engine) PokeTdata1(x uint64) {
	t := unpackTdata1(x, Type(x>>uint(e.width-4)), e.width)
	t.Index = e.current().Index
	t.tinfoBitmap = e.current().tinfoBitmap
	t.tinfoVersion = e.current().tinfoVersion
	t.raw2 = e.current().raw2
	t.raw3 = e.current().raw3
	t.modified = true
	e.triggers[t.Index] = t
	e.recomputeChains()
}

// LastWrittenTriggers returns the indices of every trigger slot modified
// since the last ClearLastWrittenTriggers call, mirroring csr.File's
// lastWritten() for trace diffing (spec.md §4.1/§4.2).
func (e *Engine) LastWrittenTriggers() []int {
	var out []int
	for _, t := range e.triggers {
		if t.modified {
			out = append(out, t.Index)
		}
	}
	return out
}

// ClearLastWrittenTriggers resets the modified bit on every trigger slot,
// the trigger-engine counterpart of csr.File's clear-after-diff step.
func (e *Engine) ClearLastWrittenTriggers() {
	for _, t := range e.triggers {
		t.modified = false
	}
}

// Evaluation --------------------------------------------------------------

// EvaluateLoad checks load-address/load-data triggers against an observed
// load, returning the Hits for any chain run that fully matched.
func (e *Engine) EvaluateLoad(addr, data uint64, priv Priv, v bool) []Hit {
	return e.evaluateLdSt(addr, data, priv, v, func(t *Trigger) bool { return t.load })
}

// EvaluateStore is EvaluateLoad's store-side counterpart.
func (e *Engine) EvaluateStore(addr, data uint64, priv Priv, v bool) []Hit {
	return e.evaluateLdSt(addr, data, priv, v, func(t *Trigger) bool { return t.store })
}

func (e *Engine) evaluateLdSt(addr, data uint64, priv Priv, v bool, want func(*Trigger) bool) []Hit {
	for _, t := range e.triggers {
		t.localHit = false
		if (t.typ != TypeMcontrol && t.typ != TypeMcontrol6) || !want(t) || !t.Enabled(priv, v) {
			continue
		}
		observed := addr
		if t.sel == SelectData {
			observed = data
		}
		if matchValue(t.match, t.raw2, observed, e.width) {
			t.localHit = true
		}
	}
	return e.resolveChains()
}

// EvaluateExecute checks instruction-address/opcode triggers against a
// fetched or retired instruction.
func (e *Engine) EvaluateExecute(pc, opcode uint64, priv Priv, v bool) []Hit {
	for _, t := range e.triggers {
		t.localHit = false
		if (t.typ != TypeMcontrol && t.typ != TypeMcontrol6) || !t.execute || !t.Enabled(priv, v) {
			continue
		}
		observed := pc
		if t.sel == SelectData {
			observed = opcode
		}
		if matchValue(t.match, t.raw2, observed, e.width) {
			t.localHit = true
		}
	}
	return e.resolveChains()
}

// EvaluateException checks etrigger slots against a trap cause.
func (e *Engine) EvaluateException(cause uint64, priv Priv, v bool) []Hit {
	return e.evaluateCause(cause, priv, v, TypeEtrigger)
}

// EvaluateInterrupt checks itrigger slots against an interrupt cause.
func (e *Engine) EvaluateInterrupt(cause uint64, priv Priv, v bool) []Hit {
	return e.evaluateCause(cause, priv, v, TypeItrigger)
}

func (e *Engine) evaluateCause(cause uint64, priv Priv, v bool, typ Type) []Hit {
	for _, t := range e.triggers {
		t.localHit = false
		if t.typ != typ || !t.Enabled(priv, v) {
			continue
		}
		if t.raw2&(uint64(1)<<(cause&0x3F)) != 0 {
			t.localHit = true
		}
	}
	return e.resolveChains()
}

// RetireInstruction is the icount-trigger driver for one retired
// instruction. spec.md §3.2/§4.2 make this a two-step process: a countdown
// reaching zero only sets a pending bit, and the hit is reported on the
// NEXT instruction that matches the privilege filter, not the one that
// zeroed the counter. RetireInstruction therefore first resolves any hit
// left pending by an EARLIER call (IcountTriggerFired) and only then
// advances the countdown for the instruction retiring now (evaluateIcount)
// — so a trigger that reaches zero this call reports no hit until the
// following RetireInstruction.
func (e *Engine) RetireInstruction(priv Priv, v bool) []Hit {
	hits := e.IcountTriggerFired(priv, v)
	e.evaluateIcount(priv, v)
	return hits
}

// IcountTriggerFired reports (and clears) the hit left pending by a prior
// evaluateIcount call, for every icount trigger enabled for priv/v. Exposed
// separately from RetireInstruction so a caller can ask "did the trigger
// fire on THIS instruction" without also advancing the countdown.
func (e *Engine) IcountTriggerFired(priv Priv, v bool) []Hit {
	for _, t := range e.triggers {
		t.localHit = false
		if t.typ != TypeIcount || !t.Enabled(priv, v) {
			continue
		}
		if t.pending {
			t.pending = false
			t.localHit = true
		}
	}
	return e.resolveChains()
}

// evaluateIcount advances every armed icount trigger's countdown by one
// retired instruction, setting pending on the exact transition to zero.
// The instruction boundary that wrote the trigger is exempt (the
// justWritten guard mirrors the hart's single-step guarantee that a CSR
// write to tdata can't retroactively count itself).
func (e *Engine) evaluateIcount(priv Priv, v bool) {
	for _, t := range e.triggers {
		if t.typ != TypeIcount || !t.Enabled(priv, v) {
			continue
		}
		if t.justWritten {
			t.justWritten = false
			continue
		}
		if t.count > 0 {
			t.count--
			if t.count == 0 {
				t.pending = true
			}
		}
	}
}

// resolveChains walks chain runs and reports a Hit for every trigger in a
// run where ALL members localHit, per spec.md §4.2's all-must-match chain
// semantics. Non-chained triggers (chainBegin==chainEnd-1 and chain==false
// for the sole member) fire individually.
func (e *Engine) resolveChains() []Hit {
	var hits []Hit
	n := len(e.triggers)
	i := 0
	for i < n {
		begin := e.triggers[i].chainBegin
		end := e.triggers[i].chainEnd
		if end <= begin {
			end = i + 1
			begin = i
		}
		allHit := true
		for j := begin; j < end; j++ {
			if !e.triggers[j].localHit {
				allHit = false
				break
			}
		}
		if allHit {
			for j := begin; j < end; j++ {
				t := e.triggers[j]
				hits = append(hits, Hit{Index: t.Index, Action: t.action, Timing: t.timing})
			}
		}
		i = end
	}
	return hits
}
