// Package bms implements the top-level BMS supervisor: the state
// machine that turns external mode requests into contactor/interlock
// commands, guarded every cycle by safe-operating-area checks.
package bms

import (
	"bms-core/bal"
	"bms-core/bmsconfig"
	"bms-core/diag"
	"bms-core/external"
	"bms-core/telemetry"
)

// Substate is the common per-state sub-sequence: entry bookkeeping,
// error-flag check, balancing-request forwarding, state-request
// handling, and (where applicable) contactor-state polling.
type Substate int

const (
	SubEntry Substate = iota
	SubCheckErrorFlags
	SubCheckBalancingRequests
	SubCheckStateRequests
	SubCheckContactor
)

// Supervisor is the BMS state machine.
type Supervisor struct {
	store     *telemetry.Store
	diagPlane *diag.Plane
	balEngine *bal.Engine
	contactor external.Contactor
	interlock external.Interlock

	state    telemetry.SupervisorState
	substate Substate

	cooldownUntilMs uint32
	triggerentry    int32

	lastContactorReq external.ContactorRequest
	lastInterlockReq external.InterlockRequest
	interlockPosted  bool
}

// NewSupervisor wires a Supervisor to its collaborators. The contactor
// and interlock drivers, and the balancing engine, are owned elsewhere;
// the supervisor only ever commands them through these contracts.
func NewSupervisor(store *telemetry.Store, diagPlane *diag.Plane, balEngine *bal.Engine, contactor external.Contactor, interlock external.Interlock) *Supervisor {
	return &Supervisor{store: store, diagPlane: diagPlane, balEngine: balEngine, contactor: contactor, interlock: interlock}
}

func (s *Supervisor) State() telemetry.SupervisorState { return s.state }

// Trigger advances the supervisor by one cycle. Safe-operating-area
// checks run on every call once the machine is past UNINITIALIZED,
// even on a cycle the cooldown timer or re-entrance guard otherwise
// suppresses, a deliberate preserved quirk, not a scheduling oversight.
func (s *Supervisor) Trigger(nowMs uint32) {
	s.diagPlane.SysMonNotify(diag.ModuleBMS, nowMs)

	if s.state != telemetry.BMSUninitialized {
		s.runSOAChecks(nowMs)
		s.runPlantAndSensorChecks(nowMs)
	}

	s.triggerentry++
	if s.triggerentry > 1 {
		s.triggerentry--
		return
	}
	defer func() { s.triggerentry-- }()

	if nowMs < s.cooldownUntilMs {
		return
	}

	switch s.state {
	case telemetry.BMSUninitialized:
		s.state = telemetry.BMSInitialization
	case telemetry.BMSInitialization:
		s.setContactor(external.ContactorInit)
		s.state = telemetry.BMSInitialized
	case telemetry.BMSInitialized:
		s.state = telemetry.BMSIdle
	case telemetry.BMSIdle:
		s.state = telemetry.BMSStandby
		s.substate = SubEntry
	case telemetry.BMSStandby:
		s.runStandby(nowMs)
	case telemetry.BMSPrecharge:
		s.runPrecharge(nowMs, telemetry.BMSNormal)
	case telemetry.BMSNormal:
		s.runSteady(nowMs)
	case telemetry.BMSChargePrecharge:
		s.runPrecharge(nowMs, telemetry.BMSCharge)
	case telemetry.BMSCharge:
		s.runSteady(nowMs)
	case telemetry.BMSError:
		s.runError(nowMs)
	}
}

// runSOAChecks reads the latest voltage/temperature/current telemetry
// and reports each against its limit to the diagnosis plane. A single
// NOK here is tentative; only a latched flag forces ERROR.
func (s *Supervisor) runSOAChecks(nowMs uint32) {
	mm := s.store.MinMax().Read()
	outcome := func(bad bool) diag.Outcome {
		if bad {
			return diag.NOK
		}
		return diag.OK
	}
	s.diagPlane.Notify(diag.ChOverVoltage, outcome(mm.MaxMilliV > bmsconfig.CellVoltMaxMilliV))
	s.diagPlane.Notify(diag.ChUnderVoltage, outcome(mm.MinMilliV < bmsconfig.CellVoltMinMilliV))

	cur := s.store.Current().Read()
	var charging bool
	if bmsconfig.PositiveIsDischarge {
		charging = cur.MilliA < 0
	} else {
		charging = cur.MilliA > 0
	}

	if charging {
		s.diagPlane.Notify(diag.ChOverTempCharge, outcome(mm.MaxDeciC > bmsconfig.CellTempMaxChargeDeciC))
		s.diagPlane.Notify(diag.ChUnderTempCharge, outcome(mm.MinDeciC < bmsconfig.CellTempMinChargeDeciC))
		s.diagPlane.Notify(diag.ChOverTempDischarge, diag.OK)
		s.diagPlane.Notify(diag.ChUnderTempDischarge, diag.OK)
	} else {
		s.diagPlane.Notify(diag.ChOverTempDischarge, outcome(mm.MaxDeciC > bmsconfig.CellTempMaxDischargeDeciC))
		s.diagPlane.Notify(diag.ChUnderTempDischarge, outcome(mm.MinDeciC < bmsconfig.CellTempMinDischargeDeciC))
		s.diagPlane.Notify(diag.ChOverTempCharge, diag.OK)
		s.diagPlane.Notify(diag.ChUnderTempCharge, diag.OK)
	}

	magnitude := cur.MilliA
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if charging {
		s.diagPlane.Notify(diag.ChOverCurrentCharge, outcome(magnitude > bmsconfig.CellCurrentMaxChargeMilliA))
		s.diagPlane.Notify(diag.ChOverCurrentDischarge, diag.OK)
	} else {
		s.diagPlane.Notify(diag.ChOverCurrentDischarge, outcome(magnitude > bmsconfig.CellCurrentMaxDischargeMilliA))
		s.diagPlane.Notify(diag.ChOverCurrentCharge, diag.OK)
	}
}

// setContactor posts req to the contactor driver and remembers it, so
// the next plant check knows what feedback to expect.
func (s *Supervisor) setContactor(req external.ContactorRequest) {
	s.contactor.SetStateRequest(req)
	s.lastContactorReq = req
}

// setInterlock posts req to the interlock driver and remembers it.
func (s *Supervisor) setInterlock(req external.InterlockRequest) {
	s.interlock.SetStateRequest(req)
	s.lastInterlockReq = req
	s.interlockPosted = true
}

// expectedContactorMask is the feedback bitfield implied by the last
// posted request: all contactors closed for NORMAL/CHARGE, all open
// otherwise (INIT/STANDBY/ERROR/NO_REQUEST), per §3's steady-state
// agreement invariant.
func expectedContactorMask(req external.ContactorRequest) uint32 {
	switch req {
	case external.ContactorNormal, external.ContactorCharge:
		return bmsconfig.AllContactorsMask
	default:
		return 0
	}
}

// runPlantAndSensorChecks covers the §7 taxonomy beyond the four SOA
// quantities: per-contactor feedback mismatch, interlock feedback
// mismatch, measurement PEC validity, and current-sensor liveness. Run
// unconditionally alongside runSOAChecks, under the same preserved
// cooldown-bypass quirk.
func (s *Supervisor) runPlantAndSensorChecks(nowMs uint32) {
	outcome := func(bad bool) diag.Outcome {
		if bad {
			return diag.NOK
		}
		return diag.OK
	}

	want := expectedContactorMask(s.lastContactorReq)
	got := s.store.ContactorFeedback().Read().Bits
	contactorChannels := [bmsconfig.NumContactors]diag.ChannelID{
		diag.ChContactor0, diag.ChContactor1, diag.ChContactor2,
		diag.ChContactor3, diag.ChContactor4, diag.ChContactor5,
	}
	for i, ch := range contactorChannels {
		bit := uint32(1) << uint(i)
		s.diagPlane.Notify(ch, outcome(got&bit != want&bit))
	}

	// Until the first interlock request is posted there is nothing to
	// compare the feedback against, so the channel reports OK.
	interlockWantClosed := s.lastInterlockReq == external.InterlockClose
	interlockClosed := s.store.InterlockFeedback().Read().Closed
	s.diagPlane.Notify(diag.ChInterlockFeedback, outcome(s.interlockPosted && interlockClosed != interlockWantClosed))

	// ChMeasurementPEC covers the whole measurement front end, voltage
	// and temperature alike: both ride the same PEC-checked bus frames,
	// so one validity channel serves both.
	cv := s.store.CellVoltage().Read()
	pecOK := true
	for _, mask := range cv.ValidPEC {
		if mask&bmsconfig.AllCellsValidMask != bmsconfig.AllCellsValidMask {
			pecOK = false
			break
		}
	}
	ct := s.store.CellTemperature().Read()
	for _, mask := range ct.ValidBit {
		if mask&bmsconfig.AllTempSensorsValidMask != bmsconfig.AllTempSensorsValidMask {
			pecOK = false
			break
		}
	}
	s.diagPlane.Notify(diag.ChMeasurementPEC, outcome(!pecOK))

	cur := s.store.Current().Read()
	stale := cur.TimestampMs != 0 && nowMs-cur.TimestampMs > bmsconfig.CurrentSensorTimeoutMs
	s.diagPlane.Notify(diag.ChCurrentSensorTimeout, outcome(stale))
}

// checkAnyErrorFlagSet recomputes GeneralError as the OR of every
// safety-critical flag and returns whether any is set.
func (s *Supervisor) checkAnyErrorFlagSet(nowMs uint32) bool {
	ss := s.store.SystemState().Read()
	e := &ss.Errors
	any := e.OverVoltage || e.UnderVoltage ||
		e.OverTemperatureCharge || e.UnderTemperatureCharge ||
		e.OverTemperatureDischarge || e.UnderTemperatureDischarge ||
		e.OverCurrentCharge || e.OverCurrentDischarge ||
		e.InterlockFeedback || e.SysMonTimeout ||
		e.MeasurementPEC || e.CurrentSensorTimeout
	for _, c := range e.ContactorFeedback {
		any = any || c
	}
	e.GeneralError = any
	ss.State = s.state
	ss.Stamp = ss.Stamp.Advance(nowMs)
	s.store.SystemState().Write(ss)
	return any
}

func (s *Supervisor) enterError(nowMs uint32) {
	s.state = telemetry.BMSError
	s.balEngine.PostRequest(telemetry.BalReqInactiveOverride)
	s.setContactor(external.ContactorError)
	s.setInterlock(external.InterlockOpen)
	s.writeState(nowMs)
}

func (s *Supervisor) writeState(nowMs uint32) {
	ss := s.store.SystemState().Read()
	ss.State = s.state
	ss.Stamp = ss.Stamp.Advance(nowMs)
	s.store.SystemState().Write(ss)
}

func (s *Supervisor) forwardBalancingRequest(nowMs uint32) {
	sr := s.store.BalancingControl().Read().ExternalReq
	if sr != telemetry.BalReqNone {
		s.balEngine.PostRequest(sr)
	}
}

func (s *Supervisor) runStandby(nowMs uint32) {
	switch s.substate {
	case SubEntry:
		s.setContactor(external.ContactorStandby)
		s.setInterlock(external.InterlockClose)
		s.writeState(nowMs)
		s.substate = SubCheckErrorFlags
	case SubCheckErrorFlags:
		if s.checkAnyErrorFlagSet(nowMs) {
			s.enterError(nowMs)
			return
		}
		s.substate = SubCheckBalancingRequests
	case SubCheckBalancingRequests:
		s.forwardBalancingRequest(nowMs)
		s.substate = SubCheckStateRequests
	case SubCheckStateRequests:
		req := s.store.StateRequest().Read().Code
		switch req {
		case telemetry.StateReqNormal:
			s.state = telemetry.BMSPrecharge
			s.substate = SubEntry
			return
		case telemetry.StateReqCharge:
			if bmsconfig.SeparatePowerlines {
				s.state = telemetry.BMSChargePrecharge
				s.substate = SubEntry
				return
			}
		}
		s.substate = SubCheckErrorFlags
	}
}

func (s *Supervisor) runPrecharge(nowMs uint32, target telemetry.SupervisorState) {
	switch s.substate {
	case SubEntry:
		s.setContactor(external.ContactorNormal)
		s.writeState(nowMs)
		s.substate = SubCheckErrorFlags
	case SubCheckErrorFlags:
		if s.checkAnyErrorFlagSet(nowMs) {
			s.enterError(nowMs)
			return
		}
		s.substate = SubCheckContactor
	case SubCheckContactor:
		switch s.contactor.GetState() {
		case external.ContactorStateNormal:
			s.state = target
			s.substate = SubEntry
		case external.ContactorStateError:
			s.enterError(nowMs)
		}
	}
}

func (s *Supervisor) runSteady(nowMs uint32) {
	switch s.substate {
	case SubEntry:
		s.writeState(nowMs)
		s.substate = SubCheckErrorFlags
	case SubCheckErrorFlags:
		if s.checkAnyErrorFlagSet(nowMs) {
			s.enterError(nowMs)
			return
		}
		s.substate = SubCheckBalancingRequests
	case SubCheckBalancingRequests:
		s.forwardBalancingRequest(nowMs)
		s.substate = SubCheckStateRequests
	case SubCheckStateRequests:
		if s.store.StateRequest().Read().Code == telemetry.StateReqStandby {
			s.state = telemetry.BMSStandby
			s.substate = SubEntry
			return
		}
		s.substate = SubCheckErrorFlags
	}
}

func (s *Supervisor) runError(nowMs uint32) {
	if s.checkAnyErrorFlagSet(nowMs) {
		return
	}
	if s.store.StateRequest().Read().Code != telemetry.StateReqStandby {
		return
	}
	if s.store.InterlockFeedback().Read().Closed {
		s.state = telemetry.BMSStandby
		s.substate = SubEntry
	}
}
