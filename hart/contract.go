// Package hart defines the contract between the core (csr/trigger/mcm)
// and the Hart collaborator that supplies decode/execute/retire events,
// per spec.md §6.3. No decode or execution logic lives here, only the
// interfaces and plain-data types crossing the boundary — grounded on
// service/types.go's DTO-struct convention, generalized from ARM register
// state to RISC-V retire-time state.
package hart

// DecodedInst is the minimal retire-time description of an instruction
// the core needs, independent of any particular decoder.
type DecodedInst struct {
	Pc       uint64
	Opcode   uint32
	Mnemonic string
	IsLoad   bool
	IsStore  bool
	IsAmo    bool
	IsBranch bool
	IsCsr    bool
	IsVector bool
}

// VectorRef is one element's addressing/producer metadata within a vector
// ld/st, mirroring spec.md §6.3's getLastVectorMemory elems tuple.
type VectorRef struct {
	Index     int
	Field     int
	PhysAddr  uint64
	PhysAddr2 uint64
	Data      uint64
	Skip      bool
}

// VectorMemoryInfo is the full shape of a vector ld/st's memory footprint,
// spec.md §6.3's getLastVectorMemory() return tuple.
type VectorMemoryInfo struct {
	VecBase    int
	FieldCount int
	Group      int
	ElemSize   int
	IsIndexed  bool
	IsStrided  bool
	Stride     int64
	ElemCount  int
	Elems      []VectorRef
}

// LastStore is the (va, pa, pa2, value, size) tuple spec.md §6.3 names for
// lastStore(); pa2 is nonzero only when the store straddles a page
// boundary.
type LastStore struct {
	Va, Pa, Pa2 uint64
	Value       uint64
	Size        uint8
}

// LastCmo is the (va, pa) tuple for lastCmo().
type LastCmo struct {
	Va, Pa uint64
}

// Collaborator is everything the core treats the Hart as supplying,
// spec.md §6.3: retire-time accessors plus the raw CSR peek/poke side
// channel and PMA/page-geometry constants.
type Collaborator interface {
	LastStore() (LastStore, bool)
	LastCmo() (LastCmo, bool)
	GetLastVectorMemory() (VectorMemoryInfo, bool)

	PeekCsr(number uint16) (uint64, bool)
	PokeCsr(number uint16, value uint64) error

	GetPma(addr uint64) Pma
	PageSize() int
	LineSize() int

	HartIndex() int
	Privilege() (priv uint8, virtualized bool)
}

// Pma is the physical-memory-attribute set the core asks about via
// GetPma, primarily to drive mcm.Checker's pluggable IsIO classification.
type Pma struct {
	Readable   bool
	Writable   bool
	Executable bool
	Cacheable  bool
	IsIO       bool
}
