package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
//
// These values are the deployment-tunable mirror of the compiled-in
// constants in bmsconfig: debounce sensitivities, liveness deadlines,
// balancing thresholds. Nothing in the control core reads this back;
// it exists so an external observer (a fleet console, a field tool)
// can see what a given pack was tuned to without cross-referencing a
// firmware build. Changing it does not change how the core computes;
// see bmsconfig for that.
// -----------------------------------------------------------------------------

const cfgBMSPack1 = `{
  "pack": {
    "num_modules": 1,
    "cells_per_module": 12,
    "temp_sensors_per_module": 6,
    "num_contactors": 6
  },
  "balancing": {
    "threshold_millivolt": 20,
    "hysteresis_millivolt": 10,
    "lower_voltage_limit_millivolt": 2700,
    "rest_current_milliamp": 500,
    "time_before_balancing_s": 30
  },
  "diagnosis_sensitivity": {
    "over_voltage": 3,
    "under_voltage": 3,
    "over_temperature_charge": 5,
    "under_temperature_charge": 5,
    "over_temperature_discharge": 5,
    "under_temperature_discharge": 5,
    "over_current_charge": 3,
    "over_current_discharge": 3,
    "contactor_feedback": 3,
    "interlock_feedback": 3,
    "measurement_pec": 5,
    "current_sensor_timeout": 3
  },
  "sysmon_deadline_ms": {
    "balancing": 5,
    "supervisor": 50,
    "sox": 500,
    "measurement": 500,
    "current_sensor": 500
  },
  "heartbeat": {
    "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"bms-pack-1": []byte(cfgBMSPack1),
}
