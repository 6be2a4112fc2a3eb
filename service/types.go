// Package service is a thin, thread-safe façade over csr/trigger/mcm state
// for external inspection, grounded on the teacher's
// service/types.go + service/debugger_service.go (DTO structs plus a
// RWMutex-guarded service wrapping the underlying engines, shared by the
// tui and api front ends the same way the teacher's DebuggerService is
// shared by its TUI/GUI/CLI).
package service

// CsrState is a CSR's UI-facing snapshot.
type CsrState struct {
	Number   uint16 `json:"number"`
	Name     string `json:"name"`
	Value    uint64 `json:"value"`
	ReadOnly bool   `json:"read_only"`
}

// TriggerState is a trigger slot's UI-facing snapshot.
type TriggerState struct {
	Index   int    `json:"index"`
	Type    string `json:"type"`
	Tdata1  uint64 `json:"tdata1"`
	Tdata2  uint64 `json:"tdata2"`
	Tdata3  uint64 `json:"tdata3"`
	Chained bool   `json:"chained"`
}

// ViolationInfo is an MCM/PPO violation for UI display, the mcm domain's
// analogue of the teacher's BreakpointInfo/WatchpointInfo DTOs.
type ViolationInfo struct {
	Kind     string `json:"kind"`
	Rule     int    `json:"rule"`
	HartIx   uint8  `json:"hart"`
	Tag      uint64 `json:"tag"`
	Tag2     uint64 `json:"tag2"`
	Time     uint64 `json:"time"`
	Time2    uint64 `json:"time2"`
	PhysAddr uint64 `json:"phys_addr"`
	Message  string `json:"message"`
	Warning  bool   `json:"warning"`
}

// RunState mirrors the teacher's ExecutionState enum, generalized to a
// co-simulation run rather than single-stepped ARM execution.
type RunState string

const (
	StateIdle   RunState = "idle"
	StateActive RunState = "active"
	StateFailed RunState = "failed"
)
