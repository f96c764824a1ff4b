package system

import (
	"testing"

	"bms-core/bmsconfig"
	"bms-core/clock"
	"bms-core/external"
	"bms-core/telemetry"
)

type fakeContactor struct {
	store *telemetry.Store
	state external.ContactorState
}

func (f *fakeContactor) SetStateRequest(req external.ContactorRequest) {
	switch req {
	case external.ContactorStandby:
		f.state = external.ContactorStateStandby
	case external.ContactorNormal:
		f.state = external.ContactorStateNormal
	case external.ContactorError:
		f.state = external.ContactorStateError
	}
	mask := uint32(0)
	if req == external.ContactorNormal || req == external.ContactorCharge {
		mask = bmsconfig.AllContactorsMask
	}
	f.store.ContactorFeedback().Write(telemetry.ContactorFeedback{Bits: mask})
}
func (f *fakeContactor) GetState() external.ContactorState { return f.state }
func (f *fakeContactor) GetFeedback() uint32                { return f.store.ContactorFeedback().Read().Bits }

type fakeInterlock struct {
	store *telemetry.Store
}

func (f *fakeInterlock) SetStateRequest(req external.InterlockRequest) {
	f.store.InterlockFeedback().Write(telemetry.InterlockFeedback{Closed: req == external.InterlockClose})
}
func (f *fakeInterlock) GetInterlockFeedback() external.InterlockFeedback {
	if f.store.InterlockFeedback().Read().Closed {
		return external.InterlockOn
	}
	return external.InterlockOff
}

type fakeNVM struct{}

func (fakeNVM) GetSOC() (min, max, mean int32, ok bool) { return 0, 0, 0, false }
func (fakeNVM) SetSOC(min, max, mean int32)             {}

// TestCore_ColdBootReachesStandbyAndSOXRuns drives all three tick rates
// together and checks the supervisor and estimator both make progress
// through the shared store, the way a real tick source would.
func TestCore_ColdBootReachesStandbyAndSOXRuns(t *testing.T) {
	// Core needs the drivers before New, but the fakes need the store
	// Core creates; build the fakes empty and hand them core.Store right
	// after New returns.
	contactor := &fakeContactor{}
	interlock := &fakeInterlock{}
	core := New(contactor, interlock, fakeNVM{}, nil)
	contactor.store = core.Store
	interlock.store = core.Store

	core.Store.MinMax().Write(telemetry.MinMax{
		MinMilliV: bmsconfig.CellVoltNomMilliV, MaxMilliV: bmsconfig.CellVoltNomMilliV,
		MinDeciC: 250, MaxDeciC: 250,
	})
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
	core.Store.InterlockFeedback().Write(telemetry.InterlockFeedback{Closed: true})

	clk := clock.NewManual(0)
	for i := 0; i < 200; i++ {
		now := clk.NowMs()
		core.Trigger1ms(now)
		if now%10 == 0 {
			core.Trigger10ms(now)
		}
		if now%100 == 0 {
			core.Trigger100ms(now)
		}
		clk.Advance(1)
	}

	if core.Bms.State() != telemetry.BMSStandby {
		t.Fatalf("supervisor state = %v, want BMSStandby", core.Bms.State())
	}
	sox := core.Store.SOX().Read()
	if sox.Stamp.TimestampMs == 0 {
		t.Fatalf("expected SOX to have run at least once, stamp is zero")
	}
}
