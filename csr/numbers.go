package csr

// Number identifies a control and status register by its 12-bit CSR number.
// Privilege and read-only-ness are both derivable from the number itself:
// bits [9:8] give the minimum privilege level, bits [11:10] both set mean
// the register is read-only.
type Number uint16

// CSR numbers, grouped the way the privileged spec groups them. Only the
// registers spec.md names by mnemonic get bespoke side-effect wiring in
// registry.go and compound.go; the rest of this table still back a generic masked-storage
// entry so File represents the complete RISC-V CSR number space.
const (
	// Machine information registers.
	Mvendorid  Number = 0xF11
	Marchid    Number = 0xF12
	Mimpid     Number = 0xF13
	Mhartid    Number = 0xF14
	Mconfigptr Number = 0xF15

	// Machine trap setup.
	Mstatus    Number = 0x300
	Misa       Number = 0x301
	Medeleg    Number = 0x302
	Mideleg    Number = 0x303
	Mie        Number = 0x304
	Mtvec      Number = 0x305
	Mcounteren Number = 0x306
	Mstatush   Number = 0x310
	Menvcfg    Number = 0x30A
	Menvcfgh   Number = 0x31A

	Mcountinhibit Number = 0x320

	// Machine trap handling.
	Mscratch Number = 0x340
	Mepc     Number = 0x341
	Mcause   Number = 0x342
	Mtval    Number = 0x343
	Mip      Number = 0x344
	Mtinst   Number = 0x34A
	Mtval2   Number = 0x34B

	// Machine counters/timers.
	Mcycle   Number = 0xB00
	Minstret Number = 0xB02
	Mcycleh  Number = 0xB80
	Minstreh Number = 0xB82

	// Machine trigger/debug registers (see trigger package for semantics).
	Tselect  Number = 0x7A0
	Tdata1   Number = 0x7A1
	Tdata2   Number = 0x7A2
	Tdata3   Number = 0x7A3
	Tinfo    Number = 0x7A4
	Tcontrol Number = 0x7A5
	Mcontext Number = 0x7A8
	Scontext Number = 0x5A8

	Dcsr      Number = 0x7B0
	Dpc       Number = 0x7B1
	Dscratch0 Number = 0x7B2
	Dscratch1 Number = 0x7B3

	// Supervisor mode registers.
	Sstatus    Number = 0x100
	Sie        Number = 0x104
	Stvec      Number = 0x105
	Scounteren Number = 0x106
	Senvcfg    Number = 0x10A
	Sscratch   Number = 0x140
	Sepc       Number = 0x141
	Scause     Number = 0x142
	Stval      Number = 0x143
	Sip        Number = 0x144
	Satp       Number = 0x180

	// Hypervisor registers.
	Hstatus     Number = 0x600
	Hedeleg     Number = 0x602
	Hideleg     Number = 0x603
	Hie         Number = 0x604
	Hcounteren  Number = 0x606
	Hgeie       Number = 0x607
	Htimedelta  Number = 0x605
	Htimedeltah Number = 0x615
	Htval       Number = 0x643
	Hip         Number = 0x644
	Hvip        Number = 0x645
	Htinst      Number = 0x64A
	Hgeip       Number = 0xE12
	Henvcfg     Number = 0x60A
	Henvcfgh    Number = 0x61A
	Hgatp       Number = 0x680
	Hcontext    Number = 0x6A8

	// Virtual supervisor (V=1 shadow targets).
	Vsstatus Number = 0x200
	Vsie     Number = 0x204
	Vstvec   Number = 0x205
	Vsscratch Number = 0x240
	Vsepc    Number = 0x241
	Vscause  Number = 0x242
	Vstval   Number = 0x243
	Vsip     Number = 0x244
	Vsatp    Number = 0x280

	// User floating point.
	Fflags Number = 0x001
	Frm    Number = 0x002
	Fcsr   Number = 0x003

	// Vector extension.
	Vstart Number = 0x008
	Vxsat  Number = 0x009
	Vxrm   Number = 0x00A
	Vcsr   Number = 0x00F
	Vl     Number = 0xC20
	Vtype  Number = 0xC21
	Vlenb  Number = 0xC22

	// User counters/timers.
	Cycle   Number = 0xC00
	Time    Number = 0xC01
	Instret Number = 0xC02

	MaxCsr Number = 0xFFF
)

// hpmCounterNumbers returns the CSR numbers for mhpmcounterN (N in [3,31])
// and their high halves mhpmcounterNh, per original_source/CsRegs.hpp.
func hpmCounterNumbers() []Number {
	out := make([]Number, 0, 29*2)
	for n := 3; n <= 31; n++ {
		out = append(out, Number(0xB00+n))  // mhpmcounterN
		out = append(out, Number(0xB80+n))  // mhpmcounterNh
	}
	return out
}

func hpmEventNumbers() []Number {
	out := make([]Number, 0, 29)
	for n := 3; n <= 31; n++ {
		out = append(out, Number(0x320+n)) // mhpmeventN
	}
	return out
}

func userHpmCounterNumbers() []Number {
	out := make([]Number, 0, 29*2)
	for n := 3; n <= 31; n++ {
		out = append(out, Number(0xC00+n)) // hpmcounterN
		out = append(out, Number(0xC80+n)) // hpmcounterNh
	}
	return out
}

func pmpNumbers() []Number {
	out := make([]Number, 0, 16+64)
	for i := 0; i < 16; i++ {
		out = append(out, Number(0x3A0+i)) // pmpcfgN (even only architecturally on RV64, harmless on RV32)
	}
	for i := 0; i < 64; i++ {
		out = append(out, Number(0x3B0+i)) // pmpaddrN
	}
	return out
}

// PrivilegeLevel mirrors the two-bit encoding in CSR-number bits [9:8].
type PrivilegeLevel uint8

const (
	PrivUser       PrivilegeLevel = 0
	PrivSupervisor PrivilegeLevel = 1
	PrivHypervisor PrivilegeLevel = 2 // unused encoding, reserved
	PrivMachine    PrivilegeLevel = 3
)

// privilegeOf derives the minimum access privilege from a CSR number. The
// hypervisor encoding (0b10, the hypervisor and VS CSRs) is accessible from
// HS-mode, so it maps to PrivSupervisor.
func privilegeOf(n Number) PrivilegeLevel {
	p := PrivilegeLevel((n >> 8) & 0x3)
	if p == PrivHypervisor {
		return PrivSupervisor
	}
	return p
}

// readOnlyOf reports whether bits [11:10] of the CSR number are both set,
// which the privileged spec uses to mark a CSR number range read-only.
func readOnlyOf(n Number) bool {
	return (n>>10)&0x3 == 0x3
}
