package hart

import "github.com/rvtrace/rvcore-sim/mcm"

// ToMcmElems translates a GetLastVectorMemory() tuple into the
// per-element records mcm.Checker's Retire consumes, the one place
// VectorRef.PhysAddr2/Skip actually get read: a driver loop calls this
// once per retiring vector ld/st and hands the result to RetireInfo.Vector.
func (v VectorMemoryInfo) ToMcmElems() []mcm.VectorElem {
	out := make([]mcm.VectorElem, 0, len(v.Elems))
	for _, e := range v.Elems {
		out = append(out, mcm.VectorElem{
			Index:     e.Index,
			Field:     e.Field,
			PhysAddr:  e.PhysAddr,
			PhysAddr2: e.PhysAddr2,
			Data:      e.Data,
			Size:      uint8(v.ElemSize),
			Skip:      e.Skip,
		})
	}
	return out
}
