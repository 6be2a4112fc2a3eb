package csr

import "strconv"

// HartConfig describes the per-hart CSR configuration needed to build a
// default register file: which privilege modes exist. RV32 vs RV64 width
// is carried by the File's type parameter itself.
type HartConfig struct {
	SupportedModes uint8 // bitmask of PrivilegeLevel values implemented (bit i => mode i)
	HartIndex      int   // 0 for the hart that owns shared-across-harts storage
}

// ShareWith rewires every CSR number listed in `numbers` in `f` to point at
// `primary`'s backing cell, implementing spec.md §5's shared-across-harts
// rule for harts other than hart 0 (e.g. a core-shared performance-monitor
// enable or a shared debug context register). mhartid is never a sensible
// member of this list since each hart needs a distinct id.
func ShareWith[U Uint](f, primary *File[U], numbers []Number) {
	f.mu.Lock()
	primary.mu.Lock()
	defer f.mu.Unlock()
	defer primary.mu.Unlock()
	for _, n := range numbers {
		mine, ok1 := f.entries[n]
		theirs, ok2 := primary.entries[n]
		if ok1 && ok2 {
			mine.store = theirs.store
		}
	}
}

// NewDefaultFile builds a File wired the way spec.md §4.1 and §9 describe:
// sstatus/sie/sip as masked shadows of mstatus/mie/mip, mstatus MPP
// legalization wired in, mip/hip/hvip/vsip and mie/hie/vsie cross-
// propagation wired in, and the full numeric CSR space populated with
// generic masked-storage entries for everything spec.md does not call out
// by name (see SPEC_FULL.md §6.1).
func NewDefaultFile[U Uint](cfg HartConfig) *File[U] {
	f := NewFile[U]()

	def := func(n Number, name string, reset, writeMask U) *Entry[U] {
		e := NewEntry[U](n, name, reset, writeMask)
		f.Define(e)
		return e
	}

	// Machine info registers: read-only, typically zero/implementation id.
	def(Mvendorid, "mvendorid", 0, 0).WithMandatory(true)
	def(Marchid, "marchid", 0, 0).WithMandatory(true)
	def(Mimpid, "mimpid", 0, 0).WithMandatory(true)
	def(Mhartid, "mhartid", U(cfg.HartIndex), 0).WithMandatory(true)
	def(Mconfigptr, "mconfigptr", 0, 0)

	mstatusWriteMask := U(0x0000_0000_007F_FFFF) // bits 0-22: SIE..TSR (spec.md mstatus field set, §6.1)
	mstatus := def(Mstatus, "mstatus", 0, mstatusWriteMask).WithMandatory(true)
	mstatus.WithFields(
		Field{Name: "SIE", Lsb: 1, Width: 1},
		Field{Name: "MIE", Lsb: 3, Width: 1},
		Field{Name: "SPIE", Lsb: 5, Width: 1},
		Field{Name: "MPIE", Lsb: 7, Width: 1},
		Field{Name: "SPP", Lsb: 8, Width: 1},
		Field{Name: "MPP", Lsb: 11, Width: 2},
		Field{Name: "FS", Lsb: 13, Width: 2},
		Field{Name: "XS", Lsb: 15, Width: 2},
		Field{Name: "MPRV", Lsb: 17, Width: 1},
		Field{Name: "SUM", Lsb: 18, Width: 1},
		Field{Name: "MXR", Lsb: 19, Width: 1},
		Field{Name: "TVM", Lsb: 20, Width: 1},
		Field{Name: "TW", Lsb: 21, Width: 1},
		Field{Name: "TSR", Lsb: 22, Width: 1},
	)
	mstatus.WithPreWrite(LegalizeMPP[U](cfg.SupportedModes))
	mstatus.WithPostWrite(func(f *File[U], e *Entry[U], _, final U) {
		// Propagate SD = FS==3 || XS==3 (dirty floating point/extension state).
		fs := (final >> 13) & 0x3
		xs := (final >> 15) & 0x3
		sd := fs == 0x3 || xs == 0x3
		bit := U(1) << (widthOf[U]() - 1)
		if sd {
			e.setRaw(final | bit)
		} else {
			e.setRaw(final &^ bit)
		}
	})

	def(Misa, "misa", 0, 0)
	def(Medeleg, "medeleg", 0, ^U(0))
	mideleg := def(Mideleg, "mideleg", 0, ^U(0))
	mie := def(Mie, "mie", 0, ^U(0)).WithMandatory(true)
	def(Mtvec, "mtvec", 0, ^U(0)).WithMandatory(true)
	mcounteren := def(Mcounteren, "mcounteren", 0, ^U(0))
	_ = mcounteren
	def(Mstatush, "mstatush", 0, 0x0000_0030)
	def(Menvcfg, "menvcfg", 0, ^U(0))
	def(Menvcfgh, "menvcfgh", 0, ^U(0))
	def(Mcountinhibit, "mcountinhibit", 0, ^U(0))

	def(Mscratch, "mscratch", 0, ^U(0)).WithMandatory(true)
	def(Mepc, "mepc", 0, ^U(0)&^1).WithMandatory(true)
	def(Mcause, "mcause", 0, ^U(0)).WithMandatory(true)
	def(Mtval, "mtval", 0, ^U(0)).WithMandatory(true)
	mip := def(Mip, "mip", 0, ^U(0)).WithMandatory(true).WithPokeMask(^U(0))
	def(Mtinst, "mtinst", 0, ^U(0))
	def(Mtval2, "mtval2", 0, ^U(0))

	def(Mcycle, "mcycle", 0, ^U(0)).WithPokeMask(^U(0))
	def(Minstret, "minstret", 0, ^U(0)).WithPokeMask(^U(0))
	if widthOf[U]() == 32 {
		def(Mcycleh, "mcycleh", 0, ^U(0)).WithPokeMask(^U(0))
		def(Minstreh, "minstreth", 0, ^U(0)).WithPokeMask(^U(0))
	}
	for _, n := range hpmCounterNumbers() {
		def(n, hpmName(n), 0, ^U(0)).WithPokeMask(^U(0))
	}
	for _, n := range hpmEventNumbers() {
		def(n, hpmEventName(n), 0, ^U(0))
	}
	for _, n := range pmpNumbers() {
		def(n, pmpName(n), 0, ^U(0))
	}

	// Supervisor mode: sstatus/sie/sip are masked shadow views over the
	// machine-mode registers (spec.md §4.1 "Shadowing and aliasing").
	sstatusMask := U(SstatusMask)
	sstatus := NewEntry[U](Sstatus, "sstatus", 0, sstatusMask).WithReadMask(sstatusMask)
	f.Alias(sstatus, Mstatus)

	sieMask := U(0x0000_0000_0000_0222) // SSIE, STIE, SEIE
	sie := NewEntry[U](Sie, "sie", 0, sieMask).WithReadMask(sieMask)
	f.Alias(sie, Mie)

	sipMask := U(0x0000_0000_0000_0222)
	sip := NewEntry[U](Sip, "sip", 0, sipMask).WithReadMask(sipMask).WithPokeMask(sipMask)
	f.Alias(sip, Mip)

	def(Stvec, "stvec", 0, ^U(0)).WithMandatory(true)
	def(Scounteren, "scounteren", 0, ^U(0))
	def(Senvcfg, "senvcfg", 0, ^U(0))
	def(Sscratch, "sscratch", 0, ^U(0)).WithMandatory(true)
	def(Sepc, "sepc", 0, ^U(0)&^1).WithMandatory(true)
	def(Scause, "scause", 0, ^U(0)).WithMandatory(true)
	def(Stval, "stval", 0, ^U(0)).WithMandatory(true)
	def(Satp, "satp", 0, ^U(0))

	// Hypervisor extension.
	def(Hstatus, "hstatus", 0, ^U(0)).WithHypervisor(true)
	def(Hedeleg, "hedeleg", 0, ^U(0)).WithHypervisor(true)
	hideleg := def(Hideleg, "hideleg", 0, ^U(0)).WithHypervisor(true)
	hie := def(Hie, "hie", 0, ^U(0)).WithHypervisor(true)
	def(Hcounteren, "hcounteren", 0, ^U(0)).WithHypervisor(true)
	def(Hgeie, "hgeie", 0, ^U(0)).WithHypervisor(true)
	def(Htimedelta, "htimedelta", 0, ^U(0)).WithHypervisor(true)
	if widthOf[U]() == 32 {
		def(Htimedeltah, "htimedeltah", 0, ^U(0)).WithHypervisor(true)
	}
	def(Htval, "htval", 0, ^U(0)).WithHypervisor(true)
	hip := def(Hip, "hip", 0, ^U(0)).WithHypervisor(true).WithPokeMask(^U(0))
	hvip := def(Hvip, "hvip", 0, ^U(0)).WithHypervisor(true).WithPokeMask(^U(0))
	def(Htinst, "htinst", 0, ^U(0)).WithHypervisor(true)
	def(Hgeip, "hgeip", 0, 0).WithHypervisor(true)
	def(Henvcfg, "henvcfg", 0, ^U(0)).WithHypervisor(true)
	def(Henvcfgh, "henvcfgh", 0, ^U(0)).WithHypervisor(true)
	def(Hgatp, "hgatp", 0, ^U(0)).WithHypervisor(true)
	def(Hcontext, "hcontext", 0, ^U(0)).WithHypervisor(true)

	// Virtual supervisor registers: the redirection targets for V=1.
	def(Vsstatus, "vsstatus", 0, ^U(0))
	vsie := def(Vsie, "vsie", 0, ^U(0))
	def(Vstvec, "vstvec", 0, ^U(0))
	def(Vsscratch, "vsscratch", 0, ^U(0))
	def(Vsepc, "vsepc", 0, ^U(0)&^1)
	def(Vscause, "vscause", 0, ^U(0))
	def(Vstval, "vstval", 0, ^U(0))
	vsip := def(Vsip, "vsip", 0, ^U(0)).WithPokeMask(^U(0))
	def(Vsatp, "vsatp", 0, ^U(0))

	// maps-to-virtual: when V=1, the S-mode register transparently
	// redirects to its VS-mode pair (spec.md §3.1).
	f.entries[Sstatus].WithMapsToVirtual(Vsstatus)
	f.entries[Sie].WithMapsToVirtual(Vsie)
	f.entries[Sepc].WithMapsToVirtual(Vsepc)
	f.entries[Stvec].WithMapsToVirtual(Vstvec)
	f.entries[Sscratch].WithMapsToVirtual(Vsscratch)
	f.entries[Scause].WithMapsToVirtual(Vscause)
	f.entries[Stval].WithMapsToVirtual(Vstval)
	f.entries[Sip].WithMapsToVirtual(Vsip)
	f.entries[Satp].WithMapsToVirtual(Vsatp)

	// mip/hip/hvip/vsip and mie/hie/vsie share bits per the AIA/H-extension
	// rules: a write to one propagates its writable overlap into the
	// others' backing cells (spec.md §4.1).
	mip.WithPostWrite(PropagateSharedBits[U](Hip))
	hip.WithPostWrite(PropagateSharedBits[U](Hvip))
	hvip.WithPostWrite(PropagateSharedBits[U](Vsip))
	vsip.WithPostWrite(PropagateSharedBits[U](Hvip))

	mie.WithPostWrite(PropagateSharedBits[U](Hie))
	hie.WithPostWrite(PropagateSharedBits[U](Vsie))
	vsie.WithPostWrite(PropagateSharedBits[U](Hie))

	mideleg.WithPostWrite(PropagateSharedBits[U](Hideleg))
	_ = hideleg

	// User floating-point and vector CSRs, composed dynamically on read.
	def(Fflags, "fflags", 0, 0x1F)
	def(Frm, "frm", 0, 0x7)
	def(Fcsr, "fcsr", 0, 0xFF)
	def(Vstart, "vstart", 0, ^U(0))
	def(Vxsat, "vxsat", 0, 0x1)
	def(Vxrm, "vxrm", 0, 0x3)
	def(Vcsr, "vcsr", 0, 0x7)
	def(Vl, "vl", 0, 0).WithMandatory(true)
	def(Vtype, "vtype", 0, 0).WithMandatory(true)
	def(Vlenb, "vlenb", 0, 0)

	// User counters/timers: read-only views of the machine counters,
	// gated by mcounteren/scounteren.
	cycle := NewEntry[U](Cycle, "cycle", 0, 0)
	f.Alias(cycle, Mcycle)
	instret := NewEntry[U](Instret, "instret", 0, 0)
	f.Alias(instret, Minstret)
	def(Time, "time", 0, 0)
	for _, n := range userHpmCounterNumbers() {
		if n >= 0xC03 && n <= 0xC1F {
			alias := NewEntry[U](n, hpmUserName(n), 0, 0)
			f.Alias(alias, Number(0xB00+int(n-0xC00)))
		}
	}

	// Debug-mode-only registers (dcsr and friends); trigger CSRs
	// (tselect/tdata1..3/tinfo/tcontrol) are owned and dispatched by the
	// trigger package, not defined here — see the root core package's
	// ReadCSR/WriteCSR dispatch. mcontext and scontext are defined by
	// neither package.
	def(Dcsr, "dcsr", 0x40000003, ^U(0)).WithDebugOnly(true).WithMandatory(true)
	def(Dpc, "dpc", 0, ^U(0)).WithDebugOnly(true).WithMandatory(true)
	def(Dscratch0, "dscratch0", 0, ^U(0)).WithDebugOnly(true)
	def(Dscratch1, "dscratch1", 0, ^U(0)).WithDebugOnly(true)

	return f
}

// SstatusMask is the subset of mstatus bits visible through the sstatus
// view (SIE,SPIE,SPP,FS,XS,SUM,MXR visible subset), exported so tests and
// tracefmt can reason about which bits are shadow-visible.
const SstatusMask = 0x0000_0000_800D_E762

func widthOf[U Uint]() int {
	var z U
	switch any(z).(type) {
	case uint32:
		return 32
	default:
		return 64
	}
}

func hpmName(n Number) string {
	if n >= 0xB03 && n <= 0xB1F {
		return numberedName("mhpmcounter", int(n-0xB00))
	}
	return numberedName("mhpmcounter", int(n-0xB80)) + "h"
}

func hpmEventName(n Number) string {
	return numberedName("mhpmevent", int(n-0x320))
}

func hpmUserName(n Number) string {
	if n >= 0xC03 && n <= 0xC1F {
		return numberedName("hpmcounter", int(n-0xC00))
	}
	return numberedName("hpmcounter", int(n-0xC80)) + "h"
}

func pmpName(n Number) string {
	if n >= 0x3A0 && n <= 0x3AF {
		return numberedName("pmpcfg", int(n-0x3A0))
	}
	return numberedName("pmpaddr", int(n-0x3B0))
}

func numberedName(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}
