package diag

import "bms-core/telemetry"

// DefaultChannelTable returns the production channel configuration:
// names, debounce sensitivities, and the callback that latches each
// channel's outcome into the matching SystemState.Errors field.
func DefaultChannelTable() map[ChannelID]ChannelConfig {
	contactorFlag := func(i int) SetFlag {
		return func(e *telemetry.ErrorFlags, v bool) { e.ContactorFeedback[i] = v }
	}
	return map[ChannelID]ChannelConfig{
		ChOverVoltage: {
			Name: "over_voltage", Sensitivity: 3, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.OverVoltage = v },
		},
		ChUnderVoltage: {
			Name: "under_voltage", Sensitivity: 3, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.UnderVoltage = v },
		},
		ChOverTempCharge: {
			Name: "over_temperature_charge", Sensitivity: 5, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.OverTemperatureCharge = v },
		},
		ChUnderTempCharge: {
			Name: "under_temperature_charge", Sensitivity: 5, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.UnderTemperatureCharge = v },
		},
		ChOverTempDischarge: {
			Name: "over_temperature_discharge", Sensitivity: 5, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.OverTemperatureDischarge = v },
		},
		ChUnderTempDischarge: {
			Name: "under_temperature_discharge", Sensitivity: 5, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.UnderTemperatureDischarge = v },
		},
		ChOverCurrentCharge: {
			Name: "over_current_charge", Sensitivity: 3, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.OverCurrentCharge = v },
		},
		ChOverCurrentDischarge: {
			Name: "over_current_discharge", Sensitivity: 3, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.OverCurrentDischarge = v },
		},
		ChContactor0: {Name: "contactor_feedback_0", Sensitivity: 3, Enabled: true, SetFlag: contactorFlag(0)},
		ChContactor1: {Name: "contactor_feedback_1", Sensitivity: 3, Enabled: true, SetFlag: contactorFlag(1)},
		ChContactor2: {Name: "contactor_feedback_2", Sensitivity: 3, Enabled: true, SetFlag: contactorFlag(2)},
		ChContactor3: {Name: "contactor_feedback_3", Sensitivity: 3, Enabled: true, SetFlag: contactorFlag(3)},
		ChContactor4: {Name: "contactor_feedback_4", Sensitivity: 3, Enabled: true, SetFlag: contactorFlag(4)},
		ChContactor5: {Name: "contactor_feedback_5", Sensitivity: 3, Enabled: true, SetFlag: contactorFlag(5)},
		ChInterlockFeedback: {
			Name: "interlock_feedback", Sensitivity: 3, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.InterlockFeedback = v },
		},
		ChMeasurementPEC: {
			Name: "measurement_pec", Sensitivity: 5, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.MeasurementPEC = v },
		},
		ChCurrentSensorTimeout: {
			Name: "current_sensor_timeout", Sensitivity: 3, Enabled: true,
			SetFlag: func(e *telemetry.ErrorFlags, v bool) { e.CurrentSensorTimeout = v },
		},
	}
}
