// Package system is the composition root: it owns the one telemetry
// store and diagnosis plane the whole core shares, and wires the
// balancing engine, BMS supervisor, and SOX estimator to them. A host
// (a real tick-ISR chain, or cmd/bms-sim's simulated ticker) only ever
// calls the three Trigger entry points below, in priority order, the
// way §2 describes a fixed 1ms/10ms/100ms tick source driving each
// component's Trigger.
package system

import (
	"bms-core/bal"
	"bms-core/bms"
	"bms-core/diag"
	"bms-core/external"
	"bms-core/sox"
	"bms-core/telemetry"
)

// Core is the fully wired control core. Its fields are the same five
// components spec.md §2 names; Core itself adds nothing but the wiring.
type Core struct {
	Store     *telemetry.Store
	Diag      *diag.Plane
	Balancer  *bal.Engine
	Estimator *sox.Estimator
	Bms       *bms.Supervisor
}

// New builds a Core bound to the given external collaborators. The
// channel table may be nil to use DefaultChannelTable.
func New(contactor external.Contactor, interlock external.Interlock, nvm external.NVM, channelTable map[diag.ChannelID]diag.ChannelConfig) *Core {
	if channelTable == nil {
		channelTable = diag.DefaultChannelTable()
	}
	store := telemetry.NewStore()
	diagPlane := diag.NewPlane(store, channelTable)
	balEngine := bal.NewEngine(store, diagPlane)
	estimator := sox.NewEstimator(store, nvm, diagPlane)
	supervisor := bms.NewSupervisor(store, diagPlane, balEngine, contactor, interlock)
	return &Core{Store: store, Diag: diagPlane, Balancer: balEngine, Estimator: estimator, Bms: supervisor}
}

// Trigger1ms advances the balancing engine, the highest-priority (and
// lowest-latency) periodic component. It also carries the shared
// liveness sweep, per §4.2.
func (c *Core) Trigger1ms(nowMs uint32) {
	c.Balancer.Trigger(nowMs)
}

// Trigger10ms advances the BMS supervisor.
func (c *Core) Trigger10ms(nowMs uint32) {
	c.Bms.Trigger(nowMs)
}

// Trigger100ms advances the SOX estimator.
func (c *Core) Trigger100ms(nowMs uint32) {
	c.Estimator.Trigger(nowMs)
}
