package hart

import "testing"

func TestToMcmElemsCarriesPageSplitAndSkip(t *testing.T) {
	info := VectorMemoryInfo{
		ElemSize: 8,
		Elems: []VectorRef{
			{Index: 0, Field: 0, PhysAddr: 0x1ff8, PhysAddr2: 0x2000, Data: 0xAA},
			{Index: 1, Field: 0, PhysAddr: 0x2008, Skip: true},
		},
	}
	elems := info.ToMcmElems()
	if len(elems) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(elems))
	}
	if elems[0].PhysAddr2 != 0x2000 {
		t.Fatalf("expected page-crossing element to carry PhysAddr2, got 0x%x", elems[0].PhysAddr2)
	}
	if !elems[1].Skip {
		t.Fatal("expected masked-off element to carry Skip through")
	}
}
