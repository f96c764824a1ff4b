// Package diag implements the diagnosis plane: a fixed table of named
// channels that debounce raw anomaly reports into latched error flags,
// plus a liveness sweep over periodic tasks.
package diag

import (
	"bms-core/errcode"
	"bms-core/telemetry"
)

// Outcome is the raw report a caller posts to a channel.
type Outcome int

const (
	OK Outcome = iota
	NOK
	RESET
)

// ChannelID is the closed set of diagnosis channels this plane serves.
// Unknown channel IDs passed to Notify are a programming error, not a
// runtime fault: the table is built once at construction and never
// grows.
type ChannelID int

const (
	ChOverVoltage ChannelID = iota
	ChUnderVoltage
	ChOverTempCharge
	ChUnderTempCharge
	ChOverTempDischarge
	ChUnderTempDischarge
	ChOverCurrentCharge
	ChOverCurrentDischarge
	ChContactor0
	ChContactor1
	ChContactor2
	ChContactor3
	ChContactor4
	ChContactor5
	ChInterlockFeedback
	ChMeasurementPEC
	ChCurrentSensorTimeout

	numChannels
)

// SetFlag applies a latch/clear decision to the error record.
type SetFlag func(errs *telemetry.ErrorFlags, set bool)

// ChannelConfig is one row of the channel table.
type ChannelConfig struct {
	Name        string
	Sensitivity int // consecutive NOK reports before latching
	Enabled     bool
	SetFlag     SetFlag // nil is a valid no-op callback
}

type channelState struct {
	cfg     ChannelConfig
	counter int
	latched bool
}

// Plane is the diagnosis plane instance, bound to the telemetry store
// whose SystemState.Errors record it latches flags into.
type Plane struct {
	store    *telemetry.Store
	channels [numChannels]*channelState
	sysmon   *sysmon
}

// NewPlane builds a Plane from the given channel table. A table missing
// any ChannelID below numChannels is a programming bug and panics, the
// same stance the rest of this core takes on unknown-ID errors.
func NewPlane(store *telemetry.Store, table map[ChannelID]ChannelConfig) *Plane {
	p := &Plane{store: store}
	for id := ChannelID(0); id < numChannels; id++ {
		cfg, ok := table[id]
		if !ok {
			panic(&errcode.E{C: errcode.UnknownBlock, Op: "diag.NewPlane", Msg: "missing channel configuration"})
		}
		p.channels[id] = &channelState{cfg: cfg}
	}
	p.sysmon = newSysmon()
	return p
}

// Notify applies one outcome to a channel per §4.2:
//   - NOK increments the counter; at Sensitivity it latches and invokes
//     SetFlag(true). Further NOKs while latched are no-ops.
//   - OK is a no-op while latched (explicit RESET is required); it
//     resets the counter otherwise.
//   - RESET clears the counter and the latch, and invokes SetFlag(false)
//     unconditionally.
func (p *Plane) Notify(id ChannelID, outcome Outcome) {
	ch := p.channels[id]
	if !ch.cfg.Enabled {
		return
	}
	switch outcome {
	case NOK:
		if ch.latched {
			return
		}
		ch.counter++
		if ch.counter >= ch.cfg.Sensitivity {
			ch.latched = true
			p.applyFlag(ch.cfg.SetFlag, true)
		}
	case OK:
		if ch.latched {
			return
		}
		ch.counter = 0
	case RESET:
		ch.counter = 0
		ch.latched = false
		p.applyFlag(ch.cfg.SetFlag, false)
	}
}

// Latched reports whether a channel currently holds a latched fault.
func (p *Plane) Latched(id ChannelID) bool {
	return p.channels[id].latched
}

func (p *Plane) applyFlag(set SetFlag, v bool) {
	if set == nil {
		return
	}
	ss := p.store.SystemState().Read()
	set(&ss.Errors, v)
	p.store.SystemState().Write(ss)
}

// SysMonNotify records a liveness beacon for module at nowMs.
func (p *Plane) SysMonNotify(module ModuleID, nowMs uint32) {
	p.sysmon.notify(module, nowMs)
}

// SysMonSweep compares every monitored module's deadline against nowMs.
// A missed deadline sets both SysMonTimeout and GeneralError directly,
// unlike the debounced channels above, a single miss is conclusive.
func (p *Plane) SysMonSweep(nowMs uint32) {
	if !p.sysmon.sweep(nowMs) {
		return
	}
	ss := p.store.SystemState().Read()
	ss.Errors.SysMonTimeout = true
	ss.Errors.GeneralError = true
	p.store.SystemState().Write(ss)
}
