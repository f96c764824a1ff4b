package sox

import (
	"testing"

	"bms-core/bmsconfig"
	"bms-core/diag"
	"bms-core/telemetry"
)

type fakeNVM struct {
	min, max, mean int32
	ok             bool
}

func (f *fakeNVM) GetSOC() (min, max, mean int32, ok bool) { return f.min, f.max, f.mean, f.ok }
func (f *fakeNVM) SetSOC(min, max, mean int32)             { f.min, f.max, f.mean = min, max, mean }

func TestSOC_NoCounter_FullDischargeOverOneHour(t *testing.T) {
	store := telemetry.NewStore()
	nvm := &fakeNVM{min: 5000, max: 5000, mean: 5000, ok: true}
	e := NewEstimator(store, nvm, diag.NewPlane(store, diag.DefaultChannelTable()))

	var now uint32
	var prev uint32
	for i := 0; i < 3600; i++ {
		now += 1000
		store.Current().Write(telemetry.Current{
			Stamp:   telemetry.Stamp{TimestampMs: now, PreviousTimestampMs: prev},
			MilliA:  bmsconfig.CellCapacityMilliAh, // 3500 mA over 3600s drains a 3500mAh cell fully
		})
		prev = now
		e.Trigger(now)
	}

	sox := store.SOX().Read()
	if sox.SocMeanHundredths != 0 {
		t.Fatalf("SocMeanHundredths = %d, want 0 after full discharge", sox.SocMeanHundredths)
	}
}

func TestSOC_SaturatesAtBounds(t *testing.T) {
	store := telemetry.NewStore()
	nvm := &fakeNVM{min: 100, max: 100, mean: 100, ok: true}
	e := NewEstimator(store, nvm, diag.NewPlane(store, diag.DefaultChannelTable()))

	store.Current().Write(telemetry.Current{
		Stamp:  telemetry.Stamp{TimestampMs: 1000, PreviousTimestampMs: 0},
		MilliA: bmsconfig.CellCurrentMaxDischargeMilliA,
	})
	e.Trigger(1000)

	sox := store.SOX().Read()
	if sox.SocMeanHundredths < 0 || sox.SocMeanHundredths > socScale {
		t.Fatalf("SocMeanHundredths = %d, out of [0,%d]", sox.SocMeanHundredths, socScale)
	}
	if sox.SocMeanHundredths != 0 {
		t.Fatalf("SocMeanHundredths = %d, want saturated to 0", sox.SocMeanHundredths)
	}
}

func TestSOF_NominalInputsYieldRatedContinuousCurrents(t *testing.T) {
	store := telemetry.NewStore()
	nvm := &fakeNVM{ok: false}
	e := NewEstimator(store, nvm, diag.NewPlane(store, diag.DefaultChannelTable()))

	store.MinMax().Write(telemetry.MinMax{
		MinMilliV: bmsconfig.CellVoltNomMilliV, MaxMilliV: bmsconfig.CellVoltNomMilliV,
		MinDeciC: 250, MaxDeciC: 250,
	})
	store.ContactorFeedback().Write(telemetry.ContactorFeedback{Bits: 0b11})
	store.Current().Write(telemetry.Current{Stamp: telemetry.Stamp{TimestampMs: 1, PreviousTimestampMs: 0}})

	e.Trigger(1)
	sox := store.SOX().Read()
	if sox.SofContinuousDischargeMilliA != bmsconfig.CellCurrentMaxDischargeMilliA {
		t.Fatalf("SofContinuousDischargeMilliA = %d, want %d", sox.SofContinuousDischargeMilliA, bmsconfig.CellCurrentMaxDischargeMilliA)
	}
	if sox.SofContinuousChargeMilliA != bmsconfig.CellCurrentMaxChargeMilliA {
		t.Fatalf("SofContinuousChargeMilliA = %d, want %d", sox.SofContinuousChargeMilliA, bmsconfig.CellCurrentMaxChargeMilliA)
	}
}

func TestSOF_ContactorsOpenForcesZero(t *testing.T) {
	store := telemetry.NewStore()
	nvm := &fakeNVM{ok: false}
	e := NewEstimator(store, nvm, diag.NewPlane(store, diag.DefaultChannelTable()))

	store.MinMax().Write(telemetry.MinMax{
		MinMilliV: bmsconfig.CellVoltNomMilliV, MaxMilliV: bmsconfig.CellVoltNomMilliV,
	})
	store.ContactorFeedback().Write(telemetry.ContactorFeedback{Bits: 0}) // open
	e.Trigger(1)

	sox := store.SOX().Read()
	if sox.SofContinuousDischargeMilliA != 0 || sox.SofPeakDischargeMilliA != 0 ||
		sox.SofContinuousChargeMilliA != 0 || sox.SofPeakChargeMilliA != 0 {
		t.Fatalf("expected all SOF outputs zero with contactors open, got %+v", sox)
	}
}

func TestSOF_PeakNeverBelowContinuous(t *testing.T) {
	cv := newCurveSet()
	store := telemetry.NewStore()
	e := &Estimator{store: store, cv: cv}
	out := e.computeSOF(cv, bmsconfig.CellVoltMinMilliV+50, bmsconfig.CellVoltMaxMilliV-50, 1000, 0, 0, 0b11)
	if out.SofPeakDischargeMilliA < out.SofContinuousDischargeMilliA {
		t.Fatalf("peak discharge %d < continuous %d", out.SofPeakDischargeMilliA, out.SofContinuousDischargeMilliA)
	}
	if out.SofPeakChargeMilliA < out.SofContinuousChargeMilliA {
		t.Fatalf("peak charge %d < continuous %d", out.SofPeakChargeMilliA, out.SofContinuousChargeMilliA)
	}
}
