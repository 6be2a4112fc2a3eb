package trigger

// ConfigureMcontrol installs an address/data-match trigger directly,
// bypassing tdata1 packing, for test fixtures and for the Hart's own
// watchpoint-from-config wiring (DESIGN.md: grounded on
// debugger/watchpoints.go's AddWatchpoint taking typed parameters rather
// than a raw bit-packed word).
func (e *Engine) ConfigureMcontrol(index int, sel Select, match Match, tdata2 uint64, load, store, execute bool, priv Priv, action Action) {
	t := e.triggers[index]
	t.typ = TypeMcontrol
	t.sel = sel
	t.match = match
	t.raw2 = tdata2
	t.load = load
	t.store = store
	t.execute = execute
	t.action = action
	switch priv {
	case PrivMachine:
		t.m = true
	case PrivSupervisor:
		t.s = true
	case PrivUser:
		t.u = true
	}
}

// ConfigureIcount arms an icount trigger with the given countdown value.
func (e *Engine) ConfigureIcount(index int, count uint16, priv Priv, action Action) {
	t := e.triggers[index]
	t.typ = TypeIcount
	t.count = count
	t.action = action
	t.pending = false
	switch priv {
	case PrivMachine:
		t.m = true
	case PrivSupervisor:
		t.s = true
	case PrivUser:
		t.u = true
	}
	t.justWritten = true
}

// Chain links index and index+1 into a single chain run (both must match
// to fire), setting the chain bit on index and recomputing bounds.
func (e *Engine) Chain(index int) {
	e.triggers[index].chain = true
	e.recomputeChains()
}
