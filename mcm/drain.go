package mcm

import (
	"fmt"
	"sort"
)

// pendingWrite is a store byte-range placed into the merge buffer but not
// yet drained (spec.md §4.3.1(3): "a store placed into the merge buffer").
// mergeBufferWrite later pulls the subset covering its line into the
// "covered" list and composes them into the final line image (§4.3.3).
type pendingWrite struct {
	Tag      uint64
	PhysAddr uint64
	Size     uint8
	Data     uint64
}

// MergeBufferInsert places a retired store's bytes into the merge buffer.
// It does NOT complete the store — spec.md §4.3.1(3) is explicit that
// insert only enters the pending-writes list; completion happens later,
// when a mergeBufferWrite drains a line covering these bytes. Grounded on
// Mcm.cpp's mergeBufferInsert.
func (c *Checker) MergeBufferInsert(hartIx uint8, time, tag, physAddr uint64, size uint8, rtlData uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hart(hartIx)
	instr := h.instrByTag(tag)
	if instr == nil || !instr.IsStore {
		return fmt.Errorf("mcm: merge buffer insert for tag=%d has no matching store", tag)
	}
	if !instr.Retired {
		return fmt.Errorf("mcm: merge buffer insert for non-retired store tag=%d", tag)
	}
	h.pendingWrites = append(h.pendingWrites, pendingWrite{Tag: tag, PhysAddr: physAddr, Size: size, Data: rtlData})
	return nil
}

// MergeBufferWrite commits an RTL merge-buffer drain for the cache line at
// lineAddr: spec.md §4.3.3 — pull every pending write covering the line
// into a "covered" list, compose them (oldest tag first, so a later
// insert's byte wins, matching program-order overwrite) into the final
// line image, compare byte-for-byte under mask against lineData, then
// recompute each touched store's coverage and complete any store whose
// every byte has now been drained. lineAddr must be line-size aligned.
func (c *Checker) MergeBufferWrite(hartIx uint8, time, lineAddr uint64, lineData []byte, mask []bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lineSize > 0 && lineAddr%uint64(c.lineSize) != 0 {
		return fmt.Errorf("mcm: merge buffer write address 0x%x is not line-aligned (line size %d)", lineAddr, c.lineSize)
	}
	h := c.hart(hartIx)

	lineSize := c.lineSize
	if lineSize <= 0 {
		lineSize = len(lineData)
	}

	var covered []pendingWrite
	remaining := h.pendingWrites[:0]
	for _, pw := range h.pendingWrites {
		if pw.PhysAddr < lineAddr || pw.PhysAddr+uint64(pw.Size) > lineAddr+uint64(lineSize) {
			remaining = append(remaining, pw)
			continue
		}
		covered = append(covered, pw)
	}
	h.pendingWrites = remaining
	sort.Slice(covered, func(i, j int) bool { return covered[i].Tag < covered[j].Tag })

	image := make([]byte, lineSize)
	present := make([]bool, lineSize)
	for _, pw := range covered {
		for n := uint64(0); n < uint64(pw.Size); n++ {
			pos := pw.PhysAddr + n - lineAddr
			if pos >= uint64(lineSize) {
				continue
			}
			image[pos] = byte(pw.Data >> (n * 8))
			present[pos] = true
		}
	}
	for pos := range image {
		if !present[pos] || pos >= len(mask) || !mask[pos] {
			continue
		}
		if pos >= len(lineData) {
			c.report(Violation{Kind: "mcm-data-mismatch", HartIx: hartIx, Time: time, PhysAddr: lineAddr,
				Message: fmt.Sprintf("line bounds violation at offset %d", pos)})
			continue
		}
		if image[pos] != lineData[pos] {
			c.report(Violation{Kind: "mcm-data-mismatch", HartIx: hartIx, Time: time, PhysAddr: lineAddr + uint64(pos),
				Message: fmt.Sprintf("model=0x%x rtl=0x%x", image[pos], lineData[pos])})
		}
	}

	touchedOrder := make([]uint64, 0, len(covered))
	touched := map[uint64]*Instr{}
	for _, pw := range covered {
		instr := h.instrByTag(pw.Tag)
		if instr == nil {
			continue
		}
		if _, ok := touched[pw.Tag]; !ok {
			touchedOrder = append(touchedOrder, pw.Tag)
		}
		instr.coverBytes(pw.PhysAddr, pw.Size)
		touched[pw.Tag] = instr
	}
	for _, tag := range touchedOrder {
		instr := touched[tag]
		if instr.Complete || !instr.fullyCovered() {
			continue
		}
		c.completeStore(hartIx, instr, time)
		h.clearUndrainedStore(tag)
		c.runPpoRules(h, instr)
	}
	return nil
}

// completeStore marks a single store instruction complete at time,
// recording its commit as a write op in the shared ops vector. Callers
// hold c.mu.
func (c *Checker) completeStore(hartIx uint8, instr *Instr, time uint64) {
	instr.Complete = true
	instr.CompleteTime = time
	op := MemOp{Time: time, PhysAddr: instr.PhysAddr, Data: instr.Data, InstrTag: instr.Tag, HartIx: hartIx, Size: instr.Size}
	idx := len(c.ops)
	c.ops = append(c.ops, op)
	instr.addMemOp(idx)
}

func allTrue(n int) []bool {
	m := make([]bool, n)
	for i := range m {
		m[i] = true
	}
	return m
}
