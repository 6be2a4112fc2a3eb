package csr

// Uint is the register-width constraint. File is parameterized over it so
// RV32 and RV64 produce two independent monomorphizations instead of one
// implementation templated (in the C++ sense) over an unsigned register
// value type.
type Uint interface {
	~uint32 | ~uint64
}

// Field describes one bitfield of a CSR for readable diffs (tracefmt).
type Field struct {
	Name  string
	Lsb   uint8
	Width uint8
}

// PreHook runs before a value is committed; it may edit the incoming value
// (e.g. mstatus MPP legalization). prior is the value before this access,
// incoming is the value about to be written/poked.
type PreHook[U Uint] func(f *File[U], e *Entry[U], prior, incoming U) U

// PostHook runs after a value is committed, for side effects that touch
// other CSRs (e.g. mip/hip/hvip aliasing, SD propagation on mstatus).
type PostHook[U Uint] func(f *File[U], e *Entry[U], prior, final U)

// Entry is one CSR's configuration and current state. Two entries may
// share a backing cell (the `store` pointer) to implement shadowing
// (sstatus over mstatus) or shared-across-harts aliasing (hart N>0 ties its
// copy to hart 0's). This is a "StorageRef"-style indirection, implemented as a shared pointer to a owned cell rather than
// a raw-pointer graph: exactly one Entry per shadow group truly owns the
// cell; the rest merely point at it.
type Entry[U Uint] struct {
	Number Number
	Name   string

	store *U // backing cell, owned or aliased

	resetValue U
	writeMask  U
	pokeMask   U
	readMask   U

	minPriv           PrivilegeLevel
	readOnly          bool
	implemented       bool
	mandatory         bool
	debugOnly         bool
	hypervisor        bool
	sharedAcrossHarts bool
	mapsToVirtual     Number // zero Number means "does not redirect"

	fields []Field

	preWrite  []PreHook[U]
	postWrite []PostHook[U]
	prePoke   []PreHook[U]
	postPoke  []PostHook[U]

	prevValue U
	prevValid bool

	tied *uint64 // when non-nil, reads/pokes operate on this external counter cell
}

// NewEntry builds an implemented, mandatory-by-default CSR entry with its
// own owned storage cell.
func NewEntry[U Uint](num Number, name string, reset, writeMask U) *Entry[U] {
	cell := new(U)
	*cell = reset
	return &Entry[U]{
		Number:      num,
		Name:        name,
		store:       cell,
		resetValue:  reset,
		writeMask:   writeMask,
		pokeMask:    writeMask, // caller may widen via WithPokeMask
		readMask:    ^U(0),
		minPriv:     privilegeOf(num),
		readOnly:    readOnlyOf(num),
		implemented: true,
	}
}

// WithPokeMask sets a poke-mask wider than the write-mask. Per spec.md
// §3.1 poke-mask must be a superset of write-mask.
func (e *Entry[U]) WithPokeMask(mask U) *Entry[U] {
	e.pokeMask = mask | e.writeMask
	return e
}

// WithReadMask narrows which bits a plain read exposes (e.g. sstatus's
// masked view of mstatus).
func (e *Entry[U]) WithReadMask(mask U) *Entry[U] {
	e.readMask = mask
	return e
}

func (e *Entry[U]) WithMinPriv(p PrivilegeLevel) *Entry[U] {
	e.minPriv = p
	return e
}

func (e *Entry[U]) WithDebugOnly(v bool) *Entry[U] {
	e.debugOnly = v
	return e
}

func (e *Entry[U]) WithHypervisor(v bool) *Entry[U] {
	e.hypervisor = v
	return e
}

func (e *Entry[U]) WithShared(v bool) *Entry[U] {
	e.sharedAcrossHarts = v
	return e
}

func (e *Entry[U]) WithMapsToVirtual(target Number) *Entry[U] {
	e.mapsToVirtual = target
	return e
}

func (e *Entry[U]) WithMandatory(v bool) *Entry[U] {
	e.mandatory = v
	return e
}

func (e *Entry[U]) WithImplemented(v bool) *Entry[U] {
	e.implemented = v
	return e
}

func (e *Entry[U]) WithFields(fields ...Field) *Entry[U] {
	e.fields = fields
	return e
}

func (e *Entry[U]) WithPreWrite(hooks ...PreHook[U]) *Entry[U] {
	e.preWrite = append(e.preWrite, hooks...)
	return e
}

func (e *Entry[U]) WithPostWrite(hooks ...PostHook[U]) *Entry[U] {
	e.postWrite = append(e.postWrite, hooks...)
	return e
}

func (e *Entry[U]) WithPrePoke(hooks ...PreHook[U]) *Entry[U] {
	e.prePoke = append(e.prePoke, hooks...)
	return e
}

func (e *Entry[U]) WithPostPoke(hooks ...PostHook[U]) *Entry[U] {
	e.postPoke = append(e.postPoke, hooks...)
	return e
}

// shadow makes e an aliased view over target: same backing cell, e keeps
// its own masks so each view's legality/mask logic still applies
// independently (spec.md §4.1).
func (e *Entry[U]) shadow(target *Entry[U]) *Entry[U] {
	e.store = target.store
	return e
}

// tieToCounter backs e with an external 64-bit counter cell (performance
// counters: mcycle, minstret, mhpmcounter3..31).
func (e *Entry[U]) tieToCounter(cell *uint64) *Entry[U] {
	e.tied = cell
	return e
}

func (e *Entry[U]) rawValue() U {
	if e.tied != nil {
		return U(*e.tied)
	}
	return *e.store
}

func (e *Entry[U]) setRaw(v U) {
	if e.tied != nil {
		*e.tied = uint64(v)
		return
	}
	*e.store = v
}
