package csr

// composeRead and decomposeWrite implement the handful of CSRs that spec.md
// §4.1 calls out as dynamically composing subfield CSRs on read and
// decomposing back into them on write: fcsr (fflags+frm) and vcsr
// (vxsat+vxrm). Everything else in the mstatus/mip/mie/mcounteren family of
// cross-CSR side effects is wired as ordinary Pre/Post hooks at
// registration time (see registry.go) rather than through this dispatch,
// since those are one-directional propagations, not a read-time compose.

func composeRead[U Uint](f *File[U], n Number) (U, bool) {
	switch n {
	case Fcsr:
		fflags, ok1 := f.entries[Fflags]
		frm, ok2 := f.entries[Frm]
		if !ok1 || !ok2 {
			return 0, false
		}
		return (frm.rawValue()<<3)&0x00E0 | fflags.rawValue()&0x001F, true
	case Vcsr:
		vxsat, ok1 := f.entries[Vxsat]
		vxrm, ok2 := f.entries[Vxrm]
		if !ok1 || !ok2 {
			return 0, false
		}
		return (vxrm.rawValue()<<1)&0x0006 | vxsat.rawValue()&0x0001, true
	default:
		return 0, false
	}
}

func decomposeWrite[U Uint](f *File[U], n Number, final U) {
	switch n {
	case Fcsr:
		if fflags, ok := f.entries[Fflags]; ok {
			fflags.setRaw(final & 0x1F)
		}
		if frm, ok := f.entries[Frm]; ok {
			frm.setRaw((final >> 3) & 0x7)
		}
	case Fflags:
		if fcsr, ok := f.entries[Fcsr]; ok {
			fcsr.setRaw((fcsr.rawValue() &^ 0x1F) | (final & 0x1F))
		}
	case Frm:
		if fcsr, ok := f.entries[Fcsr]; ok {
			fcsr.setRaw((fcsr.rawValue() &^ 0xE0) | ((final << 3) & 0xE0))
		}
	case Vcsr:
		if vxsat, ok := f.entries[Vxsat]; ok {
			vxsat.setRaw(final & 0x1)
		}
		if vxrm, ok := f.entries[Vxrm]; ok {
			vxrm.setRaw((final >> 1) & 0x3)
		}
	case Vxsat:
		if vcsr, ok := f.entries[Vcsr]; ok {
			vcsr.setRaw((vcsr.rawValue() &^ 0x1) | (final & 0x1))
		}
	case Vxrm:
		if vcsr, ok := f.entries[Vcsr]; ok {
			vcsr.setRaw((vcsr.rawValue() &^ 0x6) | ((final << 1) & 0x6))
		}
	}
}

// mstatus field layout, shared by the legalization hook and tracefmt.
const (
	mstatusMieBit  = 3
	mstatusMpieBit = 7
	mstatusMppLsb  = 11
	mstatusMppMask = 0x3
	mstatusSdBitRV32 = 31
)

// LegalizeMPP forces mstatus.MPP to the lowest implemented privilege mode
// when the written value names an unimplemented mode, per spec.md end-to-
// end scenario 1. supportedModes is a bitmask of PrivilegeLevel values this
// hart configuration actually implements (bit i set => mode i supported).
func LegalizeMPP[U Uint](supportedModes uint8) PreHook[U] {
	return func(_ *File[U], _ *Entry[U], _, incoming U) U {
		mpp := uint8((incoming >> mstatusMppLsb) & mstatusMppMask)
		if supportedModes&(1<<mpp) != 0 {
			return incoming
		}
		lowest := lowestSupported(supportedModes)
		cleared := incoming &^ (U(mstatusMppMask) << mstatusMppLsb)
		return cleared | (U(lowest) << mstatusMppLsb)
	}
}

func lowestSupported(modes uint8) uint8 {
	for m := uint8(0); m < 4; m++ {
		if modes&(1<<m) != 0 {
			return m
		}
	}
	return 0
}

// PropagateSharedBits builds a post-write hook that mirrors the writable
// bits of `final` into a shadow entry identified by target, masked by the
// shadow's own write-mask. Used for mip/hip/hvip/vsip, mie/hie/vsie, and
// mideleg/hideleg propagation under the AIA/H-extension rules (spec.md
// §4.1): a write to the wider register must be reflected into the
// narrower aliased view's backing cell too when they are NOT already the
// same cell (distinct-but-overlapping register pairs, as opposed to true
// shadowing which already shares storage).
func PropagateSharedBits[U Uint](target Number) PostHook[U] {
	return func(f *File[U], _ *Entry[U], _, final U) {
		t, ok := f.entries[target]
		if !ok || t.store == nil {
			return
		}
		cur := t.rawValue()
		t.setRaw((final & t.writeMask) | (cur &^ t.writeMask))
	}
}

// counterBit maps a user-visible counter CSR to its mcounteren/scounteren
// gating bit index (cycle=0, time=1, instret=2, hpmcounterN=N).
func counterBit(n Number) (uint, bool) {
	switch n {
	case Cycle:
		return 0, true
	case Time:
		return 1, true
	case Instret:
		return 2, true
	default:
		if n >= 0xC03 && n <= 0xC1F { // hpmcounter3..31
			return uint(n - 0xC00), true
		}
		return 0, false
	}
}

// CounterGated reports whether accessing a user-visible counter from the
// given privilege is blocked by mcounteren/scounteren not exposing it,
// implementing spec.md §4.1's "for mcounteren, adjust user-level counter
// privilege".
func CounterGated[U Uint](f *File[U], n Number, priv PrivilegeLevel) bool {
	bit, ok := counterBit(n)
	if !ok {
		return false
	}
	if priv >= PrivMachine {
		return false
	}
	if mcounteren, ok := f.entries[Mcounteren]; ok {
		if mcounteren.rawValue()&(1<<bit) == 0 {
			return true
		}
	}
	if priv >= PrivSupervisor {
		return false
	}
	if scounteren, ok := f.entries[Scounteren]; ok {
		if scounteren.rawValue()&(1<<bit) == 0 {
			return true
		}
	}
	return false
}
