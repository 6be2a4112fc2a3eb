package mcm

import (
	"fmt"
	"log/slog"
	"sync"
)

// Config carries the enumerated MCM knobs from spec.md §6.4.
type Config struct {
	MergeBufferLineSize int
	CheckWholeLine      bool
	EnabledPpoRules     []int // empty => all enabled except Io
	EnableIo            bool
	Tso                 bool
}

// Checker is the aggregate MCM/PPO checker for a run: one shared,
// time-ordered ops vector plus one HartState per hart, grounded on
// Mcm.hpp's Mcm<URV> class (DESIGN.md: the per-hart global maps the source
// kept are folded into HartState per spec.md §9's design note).
type Checker struct {
	mu    sync.Mutex
	ops   []MemOp
	harts map[uint8]*HartState

	lineSize       int
	checkWholeLine bool
	tso            bool
	ioEnabled      bool
	enabledRules   map[int]bool
	skipReadCheck  map[uint64]bool

	Violations []Violation
	Logger     *slog.Logger

	// IsIO classifies a physical address as I/O-region for the Io PPO
	// rule. Left nil, the Io rule (disabled by default, see ruleEnabled)
	// never fires. spec.md §9 flags the original's PBMT-override tracking
	// as an open question rather than something to bit-for-bit match; this
	// callback is the documented limitation — the checker does not itself
	// track a page's I/O-ness changing mid-run under a PBMT override.
	IsIO func(pa uint64) bool
}

// NewChecker builds a Checker for hartCount harts under cfg.
func NewChecker(hartCount int, cfg Config) *Checker {
	c := &Checker{
		harts:          make(map[uint8]*HartState, hartCount),
		lineSize:       cfg.MergeBufferLineSize,
		checkWholeLine: cfg.CheckWholeLine,
		tso:            cfg.Tso,
		ioEnabled:      cfg.EnableIo,
		skipReadCheck:  make(map[uint64]bool),
	}
	if len(cfg.EnabledPpoRules) > 0 {
		c.enabledRules = make(map[int]bool, len(cfg.EnabledPpoRules))
		for _, r := range cfg.EnabledPpoRules {
			c.enabledRules[r] = true
		}
	}
	for i := 0; i < hartCount; i++ {
		c.harts[uint8(i)] = newHartState(uint8(i))
	}
	return c
}

func (c *Checker) hart(ix uint8) *HartState {
	h, ok := c.harts[ix]
	if !ok {
		h = newHartState(ix)
		c.harts[ix] = h
	}
	return h
}

// SkipReadCheck disables RTL-vs-model comparison for reads at addr (e.g. a
// CLINT timer register whose value the model cannot reproduce).
func (c *Checker) SkipReadCheck(addr uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipReadCheck[addr] = true
}

// EnableTso toggles total-store-order checking in place of RVWMO.
func (c *Checker) EnableTso(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tso = flag
}

// RetireInfo is the operand/producer metadata Retire needs, gathered from
// the Hart at retire time (spec.md §6.3, §4.3.4). Producer fields are
// flat register-producer-table indices (IntOffset/FpOffset/VecOffset/
// CsrOffset + architectural register number), not pre-computed tags: the
// table lookup itself is Retire's job, per spec.md §4.3.4's "resolves
// addrProducer/dataProducer ... from the register-producer map".
type RetireInfo struct {
	IsLoad  bool
	IsStore bool

	PhysAddr  uint64
	PhysAddr2 uint64 // nonzero only when the access straddles a page
	Size      uint8
	Size2     uint8
	Data      uint64

	AddrTime uint64
	DataTime uint64

	AddrReg    int   // producer-table index supplying the address, -1 if none
	DataReg    int   // producer-table index supplying store/AMO data, -1 if none
	DestRegs   []int // producer-table indices this instruction becomes producer of
	IndexRegs  []int // index-vector producer-table indices (indexed ld/st, R9)
	CtrlDepReg int   // producer-table index of the controlling branch/vl/vm, -1 if none

	Acquire, Release     bool
	IsAmo, IsLr, IsSc    bool
	IsFence              bool
	FencePred, FenceSucc uint8

	IsBranch bool
	SetsVl   bool

	Vector []VectorElem
}

// Retire records an instruction's retirement: resolves its address/data/
// control producers from the register-producer map, runs every enabled
// PPO rule, updates the producer map for its destination registers, and
// for a store enters it into the undrained buffer so later reads can
// forward from it and later drains can complete it. Grounded on
// Mcm.cpp's retire().
func (c *Checker) Retire(hartIx uint8, time, tag uint64, info RetireInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hart(hartIx)
	instr := h.findOrCreate(tag)
	if instr.Canceled {
		return nil
	}
	instr.IsLoad = info.IsLoad
	instr.IsStore = info.IsStore
	instr.PhysAddr = info.PhysAddr
	instr.PhysAddr2 = info.PhysAddr2
	instr.Data = info.Data
	instr.Size = info.Size
	instr.Size2 = info.Size2
	instr.AddrTime = info.AddrTime
	instr.DataTime = info.DataTime
	instr.VectorElems = foldZeroStrideVector(info.Vector)
	instr.IsVector = len(instr.VectorElems) > 0
	instr.Acquire = info.Acquire
	instr.Release = info.Release
	instr.IsAmo = info.IsAmo
	instr.IsLr = info.IsLr
	instr.IsSc = info.IsSc
	instr.IsFence = info.IsFence
	instr.FencePred = info.FencePred
	instr.FenceSucc = info.FenceSucc
	instr.Retired = true

	if p, ok := h.producer(info.AddrReg); ok {
		instr.AddrProducerTag, instr.AddrProducerTime, instr.HasAddrProducer = p.Tag, p.Time, true
	}
	if p, ok := h.producer(info.DataReg); ok {
		instr.DataProducerTag, instr.DataProducerTime, instr.HasDataProducer = p.Tag, p.Time, true
	}
	for _, reg := range info.IndexRegs {
		if p, ok := h.producer(reg); ok {
			instr.IndexProducers = append(instr.IndexProducers, p)
		}
	}
	if info.CtrlDepReg >= 0 {
		if p, ok := h.producer(info.CtrlDepReg); ok {
			instr.CtrlDepProducerTag, instr.CtrlDepProducerTime, instr.HasCtrlDepProducer = p.Tag, p.Time, true
		}
	} else if instr.IsStore {
		// spec.md §4.3.5 R11: a store's control dependency is whichever of
		// the last branch or the last vl/vm-setting instruction retired
		// more recently, when the caller hasn't named an explicit register.
		dep := h.lastBranchProducer
		if h.lastVlProducer.Valid && (!dep.Valid || h.lastVlProducer.Tag > dep.Tag) {
			dep = h.lastVlProducer
		}
		if dep.Valid {
			instr.CtrlDepProducerTag, instr.CtrlDepProducerTime, instr.HasCtrlDepProducer = dep.Tag, dep.Time, true
		}
	}

	if instr.IsFence {
		h.lastFence = instr
	}

	if instr.IsStore {
		h.markUndrainedStore(tag)
		instr.Covered = make([]bool, instr.Size)
		if instr.Size2 > 0 {
			instr.Covered2 = make([]bool, instr.Size2)
		}
		if c.lineSize == 0 {
			// No merge buffer: the store is immediately its own write op.
			instr.coverBytes(instr.PhysAddr, instr.Size)
			if instr.Size2 > 0 {
				instr.coverBytes(instr.PhysAddr2, instr.Size2)
			}
			c.completeStore(hartIx, instr, time)
			h.clearUndrainedStore(tag)
		}
	}

	c.runPpoRules(h, instr)

	destTime := time
	if info.IsLoad && instr.ReadTime > 0 {
		destTime = instr.ReadTime
	}
	for _, reg := range info.DestRegs {
		h.setProducer(reg, tag, destTime)
	}
	if instr.IsLoad && instr.IsVector {
		// spec.md §4.3.6: a vector load's producer-time update happens at
		// the destination-register level, re-aggregated from its element
		// table; a register every one of whose elements was classified
		// Preserve keeps its old producer rather than becoming fresh.
		seen := make(map[int]bool, len(instr.VectorElems))
		for _, ve := range instr.VectorElems {
			if ve.Preserve || seen[ve.Field] {
				continue
			}
			seen[ve.Field] = true
			h.setProducer(VecOffset+ve.Field, tag, destTime)
		}
	}
	if info.IsBranch {
		h.lastBranchProducer = producerEntry{Tag: tag, Time: time, Valid: true}
	}
	if info.SetsVl {
		h.lastVlProducer = producerEntry{Tag: tag, Time: time, Valid: true}
	}
	return nil
}

// ReadOp implements spec.md §6.2's readOp entry point: an out-of-order
// load read, forwarded byte-wise from overlapping undrained stores and
// still-in-flight writes when any exist, otherwise taken from the
// RTL-supplied value. Returns the value the model believes was observed
// and reports a mismatch if forwarding disagrees with rtlData (unless the
// address is in the skip-check set).
func (c *Checker) ReadOp(hartIx uint8, time, tag, physAddr uint64, size uint8, rtlData uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hart(hartIx)
	instr := h.findOrCreate(tag)
	instr.IsLoad = true
	instr.PhysAddr = physAddr
	instr.Size = size
	instr.ReadTime = time

	value, producer, ok := c.forwardValue(h, physAddr, size, rtlData, tag)
	instr.Data = value
	if ok {
		instr.ForwardProducerTag, instr.HasForwardProducer = producer, true
	}

	op := MemOp{Time: time, PhysAddr: physAddr, Data: value, RtlData: rtlData, InstrTag: tag, HartIx: hartIx, Size: size, IsRead: true}
	idx := len(c.ops)
	c.ops = append(c.ops, op)
	instr.addMemOp(idx)

	if !c.skipReadCheck[physAddr] && value != rtlData {
		c.ops[idx].FailRead = true
		c.report(Violation{Kind: "mcm-read-mismatch", HartIx: hartIx, Tag: tag, Time: time, PhysAddr: physAddr,
			Message: fmt.Sprintf("model=0x%x rtl=0x%x", value, rtlData)})
		return value, fmt.Errorf("mcm: RTL-vs-model data mismatch on load tag=%d pa=0x%x", tag, physAddr)
	}
	return value, nil
}

// BypassOp implements spec.md §6.2's bypassOp: a write that skips the
// merge buffer entirely (AMO, SC, CMO).
func (c *Checker) BypassOp(hartIx uint8, time, tag, physAddr uint64, size uint8, rtlData uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hart(hartIx)
	instr := h.findOrCreate(tag)
	instr.IsStore = true
	instr.PhysAddr = physAddr
	instr.Size = size
	instr.Data = rtlData
	instr.Complete = true
	instr.CompleteTime = time

	op := MemOp{Time: time, PhysAddr: physAddr, Data: rtlData, InstrTag: tag, HartIx: hartIx, Size: size}
	idx := len(c.ops)
	c.ops = append(c.ops, op)
	instr.addMemOp(idx)

	c.runPpoRules(h, instr)
	return nil
}

// CancelInstruction marks every memory op belonging to tag canceled (a
// speculative instruction was squashed, or the instruction trapped).
// Replaying the same tag afterward is a no-op against anything but the
// cancellation marker itself, matching spec.md §8's cancellation
// round-trip property. Per spec.md §5, the register-producer map is NOT
// rewound on cancel — the embedding is responsible for cancelling in
// reverse program order.
func (c *Checker) CancelInstruction(hartIx uint8, tag uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hart(hartIx)
	instr := h.instrByTag(tag)
	if instr == nil {
		return
	}
	instr.Canceled = true
	for _, opIx := range instr.MemOps {
		if opIx >= 0 && opIx < len(c.ops) {
			c.ops[opIx].Cancel()
		}
	}
	h.clearUndrainedStore(tag)
	remaining := h.pendingWrites[:0]
	for _, pw := range h.pendingWrites {
		if pw.Tag != tag {
			remaining = append(remaining, pw)
		}
	}
	h.pendingWrites = remaining
}

// MergeBufferLineSize returns the configured merge-buffer line size.
func (c *Checker) MergeBufferLineSize() int { return c.lineSize }

// RecordVectorWriteOp records one RTL write op belonging to a not-yet-
// retired vector store's element, for instructions whose per-element
// writes can be observed ahead of the instruction's own retire event
// (spec.md §6.3's getLastVectorMemory elems tuple). PPO R10 reads these
// back via Instr.MemOps once the store retires.
func (c *Checker) RecordVectorWriteOp(hartIx uint8, time, tag, physAddr uint64, size uint8, data uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hart(hartIx)
	instr := h.findOrCreate(tag)
	op := MemOp{Time: time, PhysAddr: physAddr, Data: data, InstrTag: tag, HartIx: hartIx, Size: size}
	idx := len(c.ops)
	c.ops = append(c.ops, op)
	instr.addMemOp(idx)
}
