// Package telemetry is the shared store every other component reads and
// writes through: a small closed set of fixed-shape records, one
// typed accessor per record, each declaring its own buffering policy.
// There is no generic get-by-ID path; an unknown block is a compile
// error, not a runtime fault.
package telemetry

import "bms-core/bmsconfig"

// Stamp carries the two monotonic timestamps every record declares.
// Timestamp >= PreviousTimestamp always holds.
type Stamp struct {
	TimestampMs         uint32
	PreviousTimestampMs uint32
}

// Advance returns a Stamp for a write observed at nowMs, given the
// record's current stamp.
func (s Stamp) Advance(nowMs uint32) Stamp {
	return Stamp{TimestampMs: nowMs, PreviousTimestampMs: s.TimestampMs}
}

// CellVoltage is written by the measurement front end at its own cadence.
type CellVoltage struct {
	Stamp
	MilliV      [bmsconfig.TotalCells]int32
	ValidPEC    [bmsconfig.NumModules]uint32 // bitmask, one bit per cell in module
	ModuleSumMV [bmsconfig.NumModules]int32
}

// CellTemperature is written by the measurement front end.
type CellTemperature struct {
	Stamp
	DeciC    [bmsconfig.TotalTempSensors]int32
	ValidBit [bmsconfig.NumModules]uint32
}

// CurrentDirection mirrors the sign convention: discharge is positive
// when PositiveIsDischarge is true.
type CurrentDirection int

const (
	DirectionNone CurrentDirection = iota
	DirectionCharge
	DirectionDischarge
)

// Current is written by the current-sensor driver.
type Current struct {
	Stamp
	MilliA          int32
	ChargeAs        int64 // coulomb counter, ampere-seconds, charge accumulation
	DischargeAs     int64
	WattHours       int64
	Direction       CurrentDirection
	CounterPresent  bool // true if the sensor provides a hardware coulomb counter
}

// MinMax is the pack-wide extremum summary derived from CellVoltage and
// CellTemperature.
type MinMax struct {
	Stamp
	MinMilliV      int32
	MaxMilliV      int32
	MeanMilliV     int32
	MinVoltIndex   int
	MaxVoltIndex   int
	MinDeciC       int32
	MaxDeciC       int32
	MeanDeciC      int32
	MinTempIndex   int
	MaxTempIndex   int
}

// SOX holds the SOC/SOF estimator's output.
type SOX struct {
	Stamp
	SocMeanHundredths int32 // percent, two implied decimals: 10000 == 100.00%
	SocMinHundredths  int32
	SocMaxHundredths  int32

	SofContinuousDischargeMilliA int32
	SofPeakDischargeMilliA       int32
	SofContinuousChargeMilliA    int32
	SofPeakChargeMilliA          int32
}

// BalancingControl is written by BAL, read by the contactor/CAN layer.
type BalancingControl struct {
	Stamp
	Enable        [bmsconfig.TotalCells]bool
	BalancingOn   bool
	ThresholdMV   int32
	ExternalReq   BalRequestCode
}

// BalRequestCode is the externally posted balancing request, mirrored
// into telemetry for CAN reporting.
type BalRequestCode int

const (
	BalReqNone BalRequestCode = iota
	BalReqInactiveOverride
	BalReqActiveOverride
	BalReqOutOfOverride
)

// StateRequestCode is the supervisor-facing request posted by the CAN
// decoder.
type StateRequestCode int

const (
	StateReqNone StateRequestCode = iota
	StateReqStandby
	StateReqNormal
	StateReqCharge
)

// StateRequest is written by the CAN decoder, read by BMS.
type StateRequest struct {
	Stamp
	Code StateRequestCode
}

// ErrorFlags is the complete latched-error record, OR'd each cycle into
// GeneralError by the supervisor's CheckAnyErrorFlagSet.
type ErrorFlags struct {
	OverVoltage          bool
	UnderVoltage         bool
	OverTemperatureCharge    bool
	UnderTemperatureCharge   bool
	OverTemperatureDischarge bool
	UnderTemperatureDischarge bool
	OverCurrentCharge    bool
	OverCurrentDischarge bool
	ContactorFeedback    [bmsconfig.NumContactors]bool
	InterlockFeedback    bool
	SysMonTimeout         bool
	MeasurementPEC        bool
	CurrentSensorTimeout  bool
	GeneralError          bool
}

// SupervisorState enumerates the top-level BMS states.
type SupervisorState int

const (
	BMSUninitialized SupervisorState = iota
	BMSInitialization
	BMSInitialized
	BMSIdle
	BMSStandby
	BMSPrecharge
	BMSNormal
	BMSChargePrecharge
	BMSCharge
	BMSError
)

// SystemState is written by BMS (supervisor state) and by
// DP (error flags); read by everyone.
type SystemState struct {
	Stamp
	State    SupervisorState
	Errors   ErrorFlags
}

// ContactorFeedback is the raw feedback bitfield from the contactor
// driver, one bit per physical contactor.
type ContactorFeedback struct {
	Stamp
	Bits uint32
}

// InterlockFeedback mirrors the interlock loop's feedback reading.
type InterlockFeedback struct {
	Stamp
	Closed bool
}
