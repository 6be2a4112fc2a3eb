package mcm

import "sort"

// forwarder is one candidate byte-source for a load: an undrained store
// byte-range (scalar or one vector element) or a same-hart in-flight op
// observed after the read.
type forwarder struct {
	tag  uint64
	addr uint64
	size uint8
	data uint64
}

// forwardValue resolves a load's value byte-by-byte, searching in reverse
// program order through every candidate forwarder that overlaps the read
// and applying the newest one that covers each byte, per spec.md §4.3.2:
// "searching in reverse program order through the set of candidate
// forwarders—undrained stores preceding the load in the same hart, plus
// any still-in-flight writes whose timestamp is later than the load's
// read time—and applying the newest one that covers the byte. Vector-
// store forwarding consults the vector-reference map."
//
// Candidates are collected, then applied in ascending tag order so a
// later (newer) producer's byte always overwrites an earlier one's —
// equivalent to, but simpler than, an explicit reverse walk that stops
// early once every byte is covered.
func (c *Checker) forwardValue(h *HartState, physAddr uint64, size uint8, baseline uint64, readTag uint64) (uint64, uint64, bool) {
	var candidates []forwarder

	for _, tag := range h.undrainedStores {
		instr := h.instrByTag(tag)
		if instr == nil || instr.Canceled || tag >= readTag {
			continue
		}
		if instr.IsVector {
			for _, ve := range instr.VectorElems {
				if ve.Skip {
					continue
				}
				if overlaps(ve.PhysAddr, ve.Size, physAddr, size) {
					candidates = append(candidates, forwarder{tag: tag, addr: ve.PhysAddr, size: ve.Size, data: ve.Data})
				}
				// A page-crossing element also offers its bytes under its
				// second-page address; the byte-composition loop below
				// clips to the load's own window, so declaring the full
				// element size here is harmless even though the true
				// first-page/second-page split point isn't tracked.
				if ve.PhysAddr2 != 0 && overlaps(ve.PhysAddr2, ve.Size, physAddr, size) {
					candidates = append(candidates, forwarder{tag: tag, addr: ve.PhysAddr2, size: ve.Size, data: ve.Data})
				}
			}
			continue
		}
		if overlaps(instr.PhysAddr, instr.Size, physAddr, size) {
			candidates = append(candidates, forwarder{tag: tag, addr: instr.PhysAddr, size: instr.Size, data: instr.Data})
		}
	}

	// Still-in-flight same-hart writes newer than this read: a store that
	// drains after the load's read time but whose program order precedes
	// it can still have supplied the value the RTL saw.
	var readTime uint64
	if ld := h.instrByTag(readTag); ld != nil {
		readTime = ld.ReadTime
	}
	for _, op := range c.ops {
		if op.HartIx != h.HartIx || op.IsRead || op.Canceled || op.InstrTag >= readTag || op.Time <= readTime {
			continue
		}
		if !overlaps(op.PhysAddr, op.Size, physAddr, size) {
			continue
		}
		candidates = append(candidates, forwarder{tag: op.InstrTag, addr: op.PhysAddr, size: op.Size, data: op.Data})
	}

	if len(candidates) == 0 {
		return baseline, 0, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].tag < candidates[j].tag })

	value := baseline
	var newest uint64
	found := false
	for _, f := range candidates {
		for n := uint64(0); n < uint64(f.size); n++ {
			byteAddr := f.addr + n
			if byteAddr < physAddr || byteAddr-physAddr >= uint64(size) {
				continue
			}
			shift := (byteAddr - physAddr) * 8
			b := byte(f.data >> (n * 8))
			value = value&^(uint64(0xFF)<<shift) | uint64(b)<<shift
			newest = f.tag
			found = true
		}
	}
	return value, newest, found
}

// CurrentLoadValue returns the value the model currently believes the
// given load observed, re-deriving it through forwardValue against the
// load's own recorded baseline rather than caching a stale answer —
// spec.md §8's forwarding-idempotence property depends on re-deriving,
// not memoizing.
func (c *Checker) CurrentLoadValue(hartIx uint8, tag uint64) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.hart(hartIx)
	instr := h.instrByTag(tag)
	if instr == nil || !instr.IsLoad {
		return 0, false
	}
	value, _, _ := c.forwardValue(h, instr.PhysAddr, instr.Size, instr.Data, tag)
	return value, true
}
