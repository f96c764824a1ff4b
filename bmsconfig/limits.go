// Package bmsconfig holds the pack geometry and safe-operating-area
// constants the control core is built against. These are compiled in:
// the core has no filesystem, environment, or CLI to source them from.
// Deployment-tunable values (debounce sensitivities, sysmon deadlines)
// are mirrored onto the bus at startup by the config package for
// external observers; the numeric values below are the ones the
// state machines actually compute against.
package bmsconfig

// Pack geometry.
const (
	NumModules          = 1
	CellsPerModule       = 12
	TotalCells           = NumModules * CellsPerModule
	TempSensorsPerModule = 6
	TotalTempSensors     = NumModules * TempSensorsPerModule
	NumContactors        = 6
)

// Current sign convention: positive current is discharge.
const PositiveIsDischarge = true

// Cell electrical limits, matching the fixed-point conventions used
// throughout: millivolts, milliamps, deci-degrees-Celsius.
const (
	CellVoltMaxMilliV = 2800
	CellVoltNomMilliV = 2500
	CellVoltMinMilliV = 1700

	CellTempMaxDischargeDeciC = 550
	CellTempMinDischargeDeciC = -200
	CellTempMaxChargeDeciC    = 450
	CellTempMinChargeDeciC    = -200

	CellCurrentMaxDischargeMilliA = 180_000
	CellCurrentMaxChargeMilliA    = 180_000

	CellCapacityMilliAh = 3500
)

// Balancing constants.
const (
	ThresholdMilliV         = 20
	HysteresisMilliV        = 10
	LowerVoltageLimitMilliV = 2700
	RestCurrentMilliA       = 500
	TimeBeforeBalancingS    = 30
)

// SeparatePowerlines mirrors the source configuration flag gating
// whether CHARGE has its own precharge path distinct from NORMAL.
const SeparatePowerlines = true

// CurrentSensorTimeoutMs bounds how long the Current telemetry block may
// go without a fresh sample before ChCurrentSensorTimeout trips,
// matching the sysmon deadline already tuned for ModuleCurrentSensor.
const CurrentSensorTimeoutMs = 500

// AllContactorsMask has one bit set per physical contactor; a posted
// NORMAL/CHARGE request expects feedback to read this mask, a STANDBY/
// ERROR/INIT request expects 0.
const AllContactorsMask = (1 << NumContactors) - 1

// AllCellsValidMask has one bit set per cell in a module; a module's
// CellVoltage.ValidPEC entry is fully valid only when it equals this
// mask.
const AllCellsValidMask = (1 << CellsPerModule) - 1

// AllTempSensorsValidMask is the same idea for CellTemperature.ValidBit.
const AllTempSensorsValidMask = (1 << TempSensorsPerModule) - 1
