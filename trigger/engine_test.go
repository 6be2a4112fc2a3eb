package trigger

import "testing"

// TestChainHit implements spec.md end-to-end scenario 2: a two-trigger
// mcontrol execute chain that fires only when both the address and the
// opcode match on the same fetch.
func TestChainHit(t *testing.T) {
	e := NewEngine(2, 64)
	e.ConfigureMcontrol(0, SelectAddress, MatchEqual, 0x8000_0040, false, false, true, PrivMachine, ActionRaiseBreak)
	e.Chain(0)
	e.ConfigureMcontrol(1, SelectData, MatchEqual, 0x00108093, false, false, true, PrivMachine, ActionRaiseBreak)

	hits := e.EvaluateExecute(0x8000_0040, 0x00108093, PrivMachine, false)
	if len(hits) != 2 {
		t.Fatalf("expected chain hit to fire both triggers, got %d hits", len(hits))
	}

	hits = e.EvaluateExecute(0x8000_0040, 0xDEADBEEF, PrivMachine, false)
	if len(hits) != 0 {
		t.Fatalf("mismatched opcode should not produce a chain hit, got %d hits", len(hits))
	}
	if !e.triggers[0].localHit {
		t.Fatal("trigger 0 should still locally hit on address match alone")
	}
	if e.triggers[1].localHit {
		t.Fatal("trigger 1 should not locally hit on opcode mismatch")
	}
}

// TestIcountTrigger implements spec.md end-to-end scenario 5: the countdown
// reaching zero only sets pending, and the hit is reported on the NEXT
// retire after that, one instruction boundary later than the naive
// fires-when-it-hits-zero reading.
func TestIcountTrigger(t *testing.T) {
	e := NewEngine(1, 64)
	e.ConfigureIcount(0, 3, PrivMachine, ActionEnterDebug)

	// The instruction boundary that wrote the trigger is exempt.
	hits := e.RetireInstruction(PrivMachine, false)
	if len(hits) != 0 {
		t.Fatal("the write boundary itself must not count as a retire")
	}

	hits = e.RetireInstruction(PrivMachine, false)
	if len(hits) != 0 {
		t.Fatalf("expected no fire yet, count should be 2, got hits=%v", hits)
	}
	hits = e.RetireInstruction(PrivMachine, false)
	if len(hits) != 0 {
		t.Fatalf("expected no fire yet, count should be 1, got hits=%v", hits)
	}
	hits = e.RetireInstruction(PrivMachine, false)
	if len(hits) != 0 {
		t.Fatalf("count reaches zero on the 3rd counted retire, but the hit is pending, not fired yet, got %v", hits)
	}
	if !e.triggers[0].pending {
		t.Fatal("expected pending to be set after the 3rd counted retire")
	}

	hits = e.RetireInstruction(PrivMachine, false)
	if len(hits) != 1 || hits[0].Action != ActionEnterDebug {
		t.Fatalf("expected icount to fire EnterDebug on the 4th counted retire, got %v", hits)
	}
	if e.triggers[0].pending {
		t.Fatal("expected pending to be cleared once the hit fires")
	}
}

// TestIcountTriggerFiredSeparately exercises IcountTriggerFired directly,
// confirming a caller can observe "did it fire on THIS instruction" without
// also advancing the countdown (e.g. to re-check after a privilege change).
func TestIcountTriggerFiredSeparately(t *testing.T) {
	e := NewEngine(1, 64)
	e.ConfigureIcount(0, 1, PrivMachine, ActionEnterDebug)

	e.RetireInstruction(PrivMachine, false) // write-boundary exemption
	e.evaluateIcount(PrivMachine, false)    // count 1 -> 0, sets pending

	hits := e.IcountTriggerFired(PrivMachine, false)
	if len(hits) != 1 {
		t.Fatalf("expected the pending hit to fire, got %v", hits)
	}
	hits = e.IcountTriggerFired(PrivMachine, false)
	if len(hits) != 0 {
		t.Fatalf("expected pending to already be cleared, got %v", hits)
	}
}

func TestNapotMatch(t *testing.T) {
	// A 16-byte aligned region starting at 0x1000: tdata2 encodes 4
	// trailing one-bits as don't-care.
	tdata2 := napotEncode(0x1000, 4)
	if !matchValue(MatchMasked, tdata2, 0x1000, 64) {
		t.Fatal("base address should match its own NAPOT region")
	}
	if !matchValue(MatchMasked, tdata2, 0x100F, 64) {
		t.Fatal("address within the 16-byte region should match")
	}
	if matchValue(MatchMasked, tdata2, 0x1010, 64) {
		t.Fatal("address outside the region must not match")
	}
}

func TestNegatedMatch(t *testing.T) {
	if matchValue(MatchNotEqual, 5, 5, 64) {
		t.Fatal("NotEqual should not match on equal operands")
	}
	if !matchValue(MatchNotEqual, 5, 6, 64) {
		t.Fatal("NotEqual should match on unequal operands")
	}
}

func TestChainDmodeRejectsMismatchByDefault(t *testing.T) {
	e := NewEngine(2, 64)
	e.ConfigureMcontrol(0, SelectAddress, MatchEqual, 0x1000, true, false, false, PrivMachine, ActionRaiseBreak)
	e.triggers[0].dmode = true
	e.Chain(0)

	// Trigger 1 isn't in debug mode; writing tdata1 with dmode=0 while
	// chained to a dmode=1 trigger should be rejected under RejectWrite.
	e.tselect = 1
	raw := packMcontrol(&Trigger{typ: TypeMcontrol, chain: false, dmode: false, load: true}, 64)
	if err := e.WriteTdata1(raw, false); err == nil {
		t.Fatal("expected chain dmode mismatch to be rejected")
	}
}

func TestChainDmodeClearPolicy(t *testing.T) {
	e := NewEngine(2, 64)
	e.ChainDmodePolicy = ClearChainBit
	e.ConfigureMcontrol(0, SelectAddress, MatchEqual, 0x1000, true, false, false, PrivMachine, ActionRaiseBreak)
	e.triggers[0].dmode = true
	e.Chain(0)

	e.tselect = 1
	raw := packMcontrol(&Trigger{typ: TypeMcontrol, chain: true, dmode: false, load: true}, 64)
	if err := e.WriteTdata1(raw, false); err != nil {
		t.Fatalf("ClearChainBit policy should not error: %v", err)
	}
	if e.triggers[1].chain {
		t.Fatal("ClearChainBit policy should have cleared the chain bit")
	}
}
