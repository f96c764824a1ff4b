// Package bal implements the balancing engine: a 1ms-triggered state
// machine that discharges cells sitting above the pack minimum once the
// pack has rested long enough.
package bal

import (
	"bms-core/bmsconfig"
	"bms-core/diag"
	"bms-core/mailbox"
	"bms-core/telemetry"
)

// State is the top-level balancing engine state.
type State int

const (
	StateUninitialized State = iota
	StateInitialization
	StateInitialized
	StateInactive
	StateActive
	StateActiveOverride
	StateInactiveOverride
)

// Substate only has meaning while State == StateActive.
type Substate int

const (
	SubEntry Substate = iota
	SubBalanceActive
	SubBalanceInactive
	SubBalanceActiveFinished
)

// cooldown applied after a finished sweep before the next ACTIVE entry,
// in milliseconds.
const finishedBackoffMs = 500

// Engine is the balancing state machine. One Engine owns its state;
// external callers only ever reach it through PostRequest.
type Engine struct {
	store     *telemetry.Store
	diagPlane *diag.Plane

	requests mailbox.Mailbox[telemetry.BalRequestCode]

	state    State
	substate Substate

	cooldownUntilMs uint32
	restTimerMs     uint32
	resting         bool
	lastCurrentMs   uint32

	threshold    int32
	cellBalanced bool // true once any cell has been set active this entry

	triggerentry int32
}

// NewEngine constructs an Engine bound to store. It starts in
// StateUninitialized; the caller must post no request, Trigger alone
// walks it through INITIALIZATION to INITIALIZED to INACTIVE.
//
// BAL is the lowest-latency periodic task (1ms), so its Engine also
// carries the diagnosis plane's liveness sweep: every Trigger beacons
// ModuleBAL and runs DIAG.SysMonSweep, per §4.2.
func NewEngine(store *telemetry.Store, diagPlane *diag.Plane) *Engine {
	return &Engine{store: store, diagPlane: diagPlane, threshold: bmsconfig.ThresholdMilliV + bmsconfig.HysteresisMilliV}
}

// PostRequest queues req for the next Trigger, rejecting illegal
// transitions up front. ActiveOverride and InactiveOverride are always
// accepted; OutOfOverride is only meaningful while in an override state.
func (e *Engine) PostRequest(req telemetry.BalRequestCode) {
	switch req {
	case telemetry.BalReqActiveOverride, telemetry.BalReqInactiveOverride:
		e.requests.Post(req)
	case telemetry.BalReqOutOfOverride:
		if e.state == StateActiveOverride || e.state == StateInactiveOverride {
			e.requests.Post(req)
		}
	}
}

// State reports the current top-level state, for tests and supervisors
// that need to observe it directly rather than through telemetry.
func (e *Engine) State() State { return e.state }

// Trigger advances the engine by exactly one decision. Re-entrant calls
// (from a nested or concurrent invocation) return immediately without
// side effects; this is a debug assertion, not a lock.
func (e *Engine) Trigger(nowMs uint32) {
	e.triggerentry++
	if e.triggerentry > 1 {
		e.triggerentry--
		return
	}
	defer func() { e.triggerentry-- }()

	e.diagPlane.SysMonNotify(diag.ModuleBAL, nowMs)
	e.diagPlane.SysMonSweep(nowMs)

	e.applyPendingRequest()
	e.updateRestState(nowMs)

	switch e.state {
	case StateUninitialized:
		e.state = StateInitialization
	case StateInitialization:
		e.state = StateInitialized
	case StateInitialized:
		e.state = StateInactive
	case StateInactive:
		e.runInactive(nowMs)
	case StateActive:
		e.runActive(nowMs)
	case StateActiveOverride:
		e.runActiveOverride(nowMs)
	case StateInactiveOverride:
		e.runInactiveOverride(nowMs)
	}
}

func (e *Engine) applyPendingRequest() {
	req, ok := e.requests.Take()
	if !ok {
		return
	}
	switch req {
	case telemetry.BalReqActiveOverride:
		e.state = StateActiveOverride
	case telemetry.BalReqInactiveOverride:
		e.state = StateInactiveOverride
		e.deactivateAll()
	case telemetry.BalReqOutOfOverride:
		e.exitOverride()
	}
}

func (e *Engine) updateRestState(nowMs uint32) {
	current := e.store.Current().Read()
	wasResting := e.resting
	magnitude := current.MilliA
	if magnitude < 0 {
		magnitude = -magnitude
	}
	e.resting = magnitude < bmsconfig.RestCurrentMilliA
	if e.resting && !wasResting {
		e.restTimerMs = bmsconfig.TimeBeforeBalancingS * 1000
		e.lastCurrentMs = nowMs
		return
	}
	if !e.resting {
		e.restTimerMs = bmsconfig.TimeBeforeBalancingS * 1000
		e.lastCurrentMs = nowMs
		return
	}
	elapsed := nowMs - e.lastCurrentMs
	e.lastCurrentMs = nowMs
	if elapsed >= e.restTimerMs {
		e.restTimerMs = 0
	} else {
		e.restTimerMs -= elapsed
	}
}

func (e *Engine) runInactive(nowMs uint32) {
	if nowMs < e.cooldownUntilMs {
		return
	}
	if !e.resting {
		return
	}
	e.state = StateActive
	e.substate = SubEntry
}

func (e *Engine) runActive(nowMs uint32) {
	switch e.substate {
	case SubEntry:
		e.threshold = bmsconfig.ThresholdMilliV + bmsconfig.HysteresisMilliV
		e.cellBalanced = false
		e.substate = SubBalanceActive
	case SubBalanceActive:
		e.activationSweep(nowMs)
	case SubBalanceInactive:
		// Unreachable in practice: the only assignment to this substate is
		// the dead write below, immediately overwritten by SubEntry before
		// a Trigger can ever observe it here.
		e.substate = SubEntry
	case SubBalanceActiveFinished:
		// The first assignment here is immediately overwritten; preserved
		// as a dead write rather than removed.
		e.substate = SubBalanceInactive
		e.substate = SubEntry
		e.state = StateInactive
		e.cooldownUntilMs = nowMs + finishedBackoffMs
	}
}

func (e *Engine) activationSweep(nowMs uint32) {
	if !(e.resting && e.restTimerMs == 0) {
		return
	}
	mm := e.store.MinMax().Read()
	if mm.MinMilliV < bmsconfig.LowerVoltageLimitMilliV {
		e.deactivateAll()
		return
	}

	cv := e.store.CellVoltage().Read()
	bc := e.store.BalancingControl().Read()
	anyActive := false
	for i := 0; i < bmsconfig.TotalCells; i++ {
		on := cv.MilliV[i] > mm.MinMilliV+e.threshold
		bc.Enable[i] = on
		if on {
			anyActive = true
		}
	}
	bc.BalancingOn = anyActive
	bc.ThresholdMV = e.threshold
	bc.Stamp = bc.Stamp.Advance(nowMs)
	e.store.BalancingControl().Write(bc)

	if anyActive {
		e.cellBalanced = true
		e.threshold = bmsconfig.ThresholdMilliV // hysteresis drops once a cell is active
	} else {
		e.threshold = bmsconfig.ThresholdMilliV + bmsconfig.HysteresisMilliV
		e.cellBalanced = false
		e.substate = SubBalanceActiveFinished
	}
}

func (e *Engine) runActiveOverride(nowMs uint32) {
	mm := e.store.MinMax().Read()
	cv := e.store.CellVoltage().Read()
	bc := e.store.BalancingControl().Read()
	anyActive := false
	for i := 0; i < bmsconfig.TotalCells; i++ {
		on := cv.MilliV[i] > mm.MinMilliV+bmsconfig.ThresholdMilliV
		bc.Enable[i] = on
		if on {
			anyActive = true
		}
	}
	bc.BalancingOn = anyActive
	bc.ThresholdMV = bmsconfig.ThresholdMilliV
	bc.Stamp = bc.Stamp.Advance(nowMs)
	e.store.BalancingControl().Write(bc)
}

func (e *Engine) runInactiveOverride(nowMs uint32) {
	// Nothing to do; the override stays inactive until an explicit
	// out-of-override request arrives.
}

// exitOverride leaves either override state. This assigns a substate
// constant into the top-level state field rather than StateInactive,
// a known defect carried over intentionally, not corrected here. The
// numeric collision with StateInitialization sends the engine back
// through initialization instead of landing in StateInactive.
func (e *Engine) exitOverride() {
	e.state = State(SubBalanceActive)
}

func (e *Engine) deactivateAll() {
	bc := e.store.BalancingControl().Read()
	for i := range bc.Enable {
		bc.Enable[i] = false
	}
	bc.BalancingOn = false
	e.store.BalancingControl().Write(bc)
}
