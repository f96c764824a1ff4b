// Command bms-sim wires a Core to simulated contactor, interlock and
// NVM drivers and drives it from a host ticker, the way main.go drives
// the HAL from rampTicker there. It is a development harness, not a
// firmware image: on real hardware the three Trigger calls are made
// from tick ISRs, not from a goroutine loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"bms-core/bmsconfig"
	"bms-core/bus"
	"bms-core/canio"
	"bms-core/clock"
	"bms-core/config"
	"bms-core/external"
	"bms-core/system"
	"bms-core/telemetry"
	"bms-core/x/fmtx"
	"bms-core/x/strx"
)

// simContactor reaches its commanded state immediately and mirrors
// feedback into telemetry as it goes, standing in for a contactor
// driver that would otherwise take tens of milliseconds to settle and
// report its own feedback telemetry at its own cadence (§3).
type simContactor struct {
	store *telemetry.Store
	state external.ContactorState
	mask  uint32
}

func (c *simContactor) SetStateRequest(req external.ContactorRequest) {
	switch req {
	case external.ContactorStandby:
		c.state, c.mask = external.ContactorStateStandby, 0
	case external.ContactorNormal:
		c.state, c.mask = external.ContactorStateNormal, bmsconfig.AllContactorsMask
	case external.ContactorCharge:
		c.state, c.mask = external.ContactorStateCharge, bmsconfig.AllContactorsMask
	case external.ContactorError:
		c.state, c.mask = external.ContactorStateError, 0
	case external.ContactorInit:
		c.state, c.mask = external.ContactorUndefined, 0
	}
	c.store.ContactorFeedback().Write(telemetry.ContactorFeedback{Bits: c.mask})
}
func (c *simContactor) GetState() external.ContactorState { return c.state }
func (c *simContactor) GetFeedback() uint32                { return c.mask }

type simInterlock struct {
	store  *telemetry.Store
	closed bool
}

func (i *simInterlock) SetStateRequest(req external.InterlockRequest) {
	i.closed = req == external.InterlockClose
	i.store.InterlockFeedback().Write(telemetry.InterlockFeedback{Closed: i.closed})
}
func (i *simInterlock) GetInterlockFeedback() external.InterlockFeedback {
	if i.closed {
		return external.InterlockOn
	}
	return external.InterlockOff
}

// simNVM keeps the SOC triplet in memory only; a real device would
// persist it across resets.
type simNVM struct {
	min, max, mean int32
	ok             bool
}

func (n *simNVM) GetSOC() (int32, int32, int32, bool) { return n.min, n.max, n.mean, n.ok }
func (n *simNVM) SetSOC(min, max, mean int32) {
	n.min, n.max, n.mean = min, max, mean
	n.ok = true
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := bus.NewBus(16)

	deviceID := strx.Coalesce(os.Getenv("BMS_DEVICE_ID"), "bms-pack-1")
	cfgConn := b.NewConnection("config")
	cfgCtx := context.WithValue(ctx, config.CtxDeviceKey, deviceID)
	config.NewConfigService().Start(cfgCtx, cfgConn)

	// The sim drivers need the store Core creates to mirror their own
	// feedback, but Core needs the drivers up front; build them empty and
	// hand them the store right after construction, the same two-phase
	// wiring system_test.go's fakes use.
	contactorDrv := &simContactor{}
	interlockDrv := &simInterlock{}
	core := system.New(contactorDrv, interlockDrv, &simNVM{}, nil)
	contactorDrv.store = core.Store
	interlockDrv.store = core.Store

	// Seed the feedback paths a freshly booted pack would already have:
	// interlock wired closed, contactor feedback reading STANDBY (all
	// open, matching simContactor/simInterlock's zero values), and a
	// measurement front end already reporting every cell/sensor valid,
	// since this harness has no simulated front end to flip those bits.
	core.Store.InterlockFeedback().Write(telemetry.InterlockFeedback{Closed: true})
	interlockDrv.closed = true
	var cv telemetry.CellVoltage
	for i := range cv.ValidPEC {
		cv.ValidPEC[i] = bmsconfig.AllCellsValidMask
	}
	core.Store.CellVoltage().Write(cv)
	var ct telemetry.CellTemperature
	for i := range ct.ValidBit {
		ct.ValidBit[i] = bmsconfig.AllTempSensorsValidMask
	}
	core.Store.CellTemperature().Write(ct)

	canioConn := b.NewConnection("canio")
	bridge := canio.NewBridge(core.Store, core.Balancer, canioConn, time.Second)
	bridge.Start(ctx)

	fmtx.Print("[bms-sim] core running, 1ms/10ms/100ms ticks driven from host clock\n")

	sysClock := clock.NewSystem()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	printTicker := time.NewTicker(time.Second)
	defer printTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmtx.Print("[bms-sim] shutting down\n")
			return
		case <-ticker.C:
			nowMs := sysClock.NowMs()
			core.Trigger1ms(nowMs)
			if nowMs%10 == 0 {
				core.Trigger10ms(nowMs)
			}
			if nowMs%100 == 0 {
				core.Trigger100ms(nowMs)
			}
		case <-printTicker.C:
			fmtx.Print(canio.Summary(core.Store), "\n")
		}
	}
}
