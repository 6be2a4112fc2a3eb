package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvtrace/rvcore-sim/csr"
	"github.com/rvtrace/rvcore-sim/mcm"
	"github.com/rvtrace/rvcore-sim/trigger"
)

func newTestFile() *csr.File[uint64] {
	f := csr.NewFile[uint64]()
	f.Define(csr.NewEntry[uint64](0x300, "mstatus", 0, 0xFFFFFFFFFFFFFFFF))
	f.Reset()
	return f
}

func TestCsrStates(t *testing.T) {
	f := newTestFile()
	require.NoError(t, f.WriteIgnoringLegality(0x300, 0x1800))

	eng := trigger.NewEngine(2, 64)
	chk := mcm.NewChecker(1, mcm.Config{})
	ins := NewInspector[uint64](0, f, eng, chk)

	states := ins.CsrStates()
	require.Len(t, states, 1)
	assert.Equal(t, "mstatus", states[0].Name)
	assert.Equal(t, uint64(0x1800), states[0].Value)
}

func TestTriggerStates(t *testing.T) {
	f := newTestFile()
	eng := trigger.NewEngine(2, 64)
	chk := mcm.NewChecker(1, mcm.Config{})
	ins := NewInspector[uint64](0, f, eng, chk)

	eng.ConfigureMcontrol(0, trigger.SelectAddress, trigger.MatchEqual, 0x1000, false, true, false, trigger.PrivMachine, trigger.ActionEnterDebug)

	states := ins.TriggerStates()
	require.Len(t, states, 2)
	assert.Equal(t, "mcontrol", states[0].Type)
	assert.Equal(t, uint64(0x1000), states[0].Tdata2)
}

func TestViolations(t *testing.T) {
	f := newTestFile()
	eng := trigger.NewEngine(1, 64)
	chk := mcm.NewChecker(1, mcm.Config{})
	ins := NewInspector[uint64](0, f, eng, chk)

	assert.Empty(t, ins.Violations())

	require.NoError(t, chk.Retire(0, 20, 1, mcm.RetireInfo{IsStore: true, PhysAddr: 0x2000, Data: 1, Size: 4}))
	require.NoError(t, chk.Retire(0, 10, 2, mcm.RetireInfo{IsStore: true, PhysAddr: 0x2000, Data: 2, Size: 4}))

	vs := ins.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, mcm.PpoR1, vs[0].Rule)
}

func TestStateTransitionsFireCallback(t *testing.T) {
	f := newTestFile()
	eng := trigger.NewEngine(1, 64)
	chk := mcm.NewChecker(1, mcm.Config{})
	ins := NewInspector[uint64](0, f, eng, chk)

	fired := 0
	ins.OnChange(func() { fired++ })

	ins.SetState(StateActive, nil)
	state, err := ins.State()
	assert.Equal(t, StateActive, state)
	assert.NoError(t, err)
	assert.Equal(t, 1, fired)

	ins.SetState(StateFailed, errors.New("boom"))
	state, err = ins.State()
	assert.Equal(t, StateFailed, state)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 2, fired)
}
